package frame_resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
)

// RegionAlignment is the alignment of region bases, and of uniform element strides. WebGPU
// requires dynamic and bound buffer offsets to be multiples of 256.
const RegionAlignment = 256

// constantRegion is the implementation of the ConstantRegion interface.
type constantRegion struct {
	label       string
	buffer      renderer.UploadBuffer
	offset      int
	elementSize int
	stride      int
	count       int
}

// ConstantRegion is a fixed-capacity array of equally sized constant blocks inside a frame slot's
// upload buffer. Element i lives at Offset() + i*Stride().
type ConstantRegion interface {
	// Label returns the debug label.
	Label() string

	// Buffer returns the upload buffer the region lives in.
	Buffer() renderer.UploadBuffer

	// Offset returns the byte offset of element 0 within the buffer.
	Offset() int

	// ElementSize returns the size of one element in bytes.
	ElementSize() int

	// Stride returns the distance between consecutive elements in bytes.
	Stride() int

	// Count returns the number of elements.
	Count() int

	// Size returns the total size of the region in bytes.
	Size() int

	// Write copies one element.
	//
	// Parameters:
	//   - index: the element index
	//   - data: the packed element, at most ElementSize() bytes
	//
	// Returns:
	//   - error: renderer.ErrOutOfRange when the index or data size does not fit
	Write(index int, data []byte) error

	// Binding binds the whole region.
	//
	// Parameters:
	//   - binding: the shader binding index
	//
	// Returns:
	//   - renderer.ConstantBinding: the binding
	Binding(binding int) renderer.ConstantBinding

	// ElementBinding binds a single element.
	//
	// Parameters:
	//   - binding: the shader binding index
	//   - index: the element index
	//
	// Returns:
	//   - renderer.ConstantBinding: the binding
	ElementBinding(binding, index int) renderer.ConstantBinding
}

var _ ConstantRegion = &constantRegion{}

// regionDesc describes one region of a slot buffer before layout.
type regionDesc struct {
	label       string
	elementSize int
	count       int
}

// stride returns the element stride for a buffer of the given usage. Uniform blocks are bound one
// element at a time and need aligned offsets; storage arrays are indexed in the shader.
func (s regionDesc) stride(usage renderer.BufferUsage) int {
	if usage == renderer.BufferUsageUniform {
		return common.AlignUp(s.elementSize, RegionAlignment)
	}
	return s.elementSize
}

// layoutRegions places the regions back to back at aligned bases and returns the buffer size needed.
func layoutRegions(usage renderer.BufferUsage, descs ...regionDesc) (offsets []int, size int) {
	offsets = make([]int, len(descs))
	for i, s := range descs {
		offsets[i] = size
		size = common.AlignUp(size+s.stride(usage)*s.count, RegionAlignment)
	}
	return offsets, size
}

// newRegions creates one upload buffer holding every region and returns them in order.
func newRegions(r renderer.Renderer, label string, usage renderer.BufferUsage, descs ...regionDesc) (renderer.UploadBuffer, []ConstantRegion, error) {
	offsets, size := layoutRegions(usage, descs...)
	buf, err := r.CreateUploadBuffer(label, usage, size)
	if err != nil {
		return nil, nil, err
	}
	regions := make([]ConstantRegion, len(descs))
	for i, s := range descs {
		regions[i] = &constantRegion{
			label:       s.label,
			buffer:      buf,
			offset:      offsets[i],
			elementSize: s.elementSize,
			stride:      s.stride(usage),
			count:       s.count,
		}
	}
	return buf, regions, nil
}

func (c *constantRegion) Label() string {
	return c.label
}

func (c *constantRegion) Buffer() renderer.UploadBuffer {
	return c.buffer
}

func (c *constantRegion) Offset() int {
	return c.offset
}

func (c *constantRegion) ElementSize() int {
	return c.elementSize
}

func (c *constantRegion) Stride() int {
	return c.stride
}

func (c *constantRegion) Count() int {
	return c.count
}

func (c *constantRegion) Size() int {
	return c.stride * c.count
}

func (c *constantRegion) Write(index int, data []byte) error {
	if index < 0 || index >= c.count {
		return fmt.Errorf("%w: %s element %d of %d", renderer.ErrOutOfRange, c.label, index, c.count)
	}
	if len(data) > c.elementSize {
		return fmt.Errorf("%w: %s element is %d bytes, got %d", renderer.ErrOutOfRange, c.label, c.elementSize, len(data))
	}
	return c.buffer.Write(c.offset+index*c.stride, data)
}

func (c *constantRegion) Binding(binding int) renderer.ConstantBinding {
	return renderer.ConstantBinding{Binding: binding, Buffer: c.buffer, Offset: c.offset, Size: c.Size()}
}

func (c *constantRegion) ElementBinding(binding, index int) renderer.ConstantBinding {
	return renderer.ConstantBinding{Binding: binding, Buffer: c.buffer, Offset: c.offset + index*c.stride, Size: c.elementSize}
}
