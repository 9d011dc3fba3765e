package model

import (
	"github.com/Carmen-Shannon/oxy-ssao/common"
)

// model is the implementation of the Model interface.
type model struct {
	name     string
	vertices []GPUVertex
	indices  []uint32
}

// Model defines the interface for a piece of indexed triangle geometry that render items reference.
// Models are immutable once built and may be shared by any number of render items.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices retrieves the vertex list.
	//
	// Returns:
	//   - []GPUVertex: the vertices; callers must not modify the slice
	Vertices() []GPUVertex

	// Indices retrieves the triangle list indices, three per triangle, counter-clockwise front faces.
	//
	// Returns:
	//   - []uint32: the indices; callers must not modify the slice
	Indices() []uint32

	// IndexCount returns the number of indices.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// VertexData returns the vertices serialized for GPU upload.
	//
	// Returns:
	//   - []byte: the vertex buffer contents
	VertexData() []byte

	// IndexData returns the indices serialized for GPU upload.
	//
	// Returns:
	//   - []byte: the index buffer contents
	IndexData() []byte
}

var _ Model = &model{}

// NewModel creates a new Model from the geometry supplied through options.
//
// Parameters:
//   - name: the model identifier
//   - options: variadic list of ModelBuilderOption functions supplying geometry
//
// Returns:
//   - Model: the new Model
func NewModel(name string, options ...ModelBuilderOption) Model {
	m := &model{name: name}
	for _, opt := range options {
		opt(m)
	}
	if len(m.indices)%3 != 0 {
		panic("model: NewModel index count must be a multiple of three")
	}
	for _, idx := range m.indices {
		if int(idx) >= len(m.vertices) {
			panic("model: NewModel index out of range")
		}
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) IndexCount() int {
	return len(m.indices)
}

func (m *model) VertexData() []byte {
	var v GPUVertex
	buf := make([]byte, 0, len(m.vertices)*v.Size())
	for i := range m.vertices {
		buf = append(buf, m.vertices[i].Marshal()...)
	}
	return buf
}

func (m *model) IndexData() []byte {
	return append([]byte(nil), common.SliceToBytes(m.indices)...)
}
