package renderer

import (
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
)

// Mesh is geometry resident on the GPU.
type Mesh interface {
	// Name returns the name of the source model.
	Name() string

	// IndexCount returns the number of indices drawn.
	IndexCount() int

	// Model returns the source geometry.
	Model() model.Model

	// Release frees the GPU buffers.
	Release()
}

// mesh is the implementation of the Mesh interface shared by the backends.
type mesh struct {
	model   model.Model
	native  any
	release func()
}

var _ Mesh = &mesh{}

func (m *mesh) Name() string {
	return m.model.Name()
}

func (m *mesh) IndexCount() int {
	return m.model.IndexCount()
}

func (m *mesh) Model() model.Model {
	return m.model
}

func (m *mesh) Release() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
}
