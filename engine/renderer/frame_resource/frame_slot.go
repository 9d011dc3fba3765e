package frame_resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
)

// frameSlot is the implementation of the FrameSlot interface.
type frameSlot struct {
	index      int
	list       renderer.CommandList
	fenceValue uint64

	uniforms renderer.UploadBuffer
	storage  renderer.UploadBuffer

	objects   ConstantRegion
	materials ConstantRegion
	pass      ConstantRegion
	ssao      ConstantRegion
}

// FrameSlot is one frame's private set of GPU-visible resources. The CPU may only write a slot
// between acquiring it from the ring and committing it; the GPU reads it until the fence reaches
// FenceValue().
type FrameSlot interface {
	// Index returns the slot's position in the ring.
	Index() int

	// CommandList returns the slot's command recording scope.
	CommandList() renderer.CommandList

	// Objects returns the per-object constants region, indexed by a render item's stable index.
	Objects() ConstantRegion

	// Materials returns the per-material constants region, indexed by a material's stable index.
	Materials() ConstantRegion

	// Pass returns the single-element per-pass constants region.
	Pass() ConstantRegion

	// SSAO returns the single-element occlusion constants region.
	SSAO() ConstantRegion

	// FenceValue returns the fence value recorded when the slot was last committed, zero if never.
	FenceValue() uint64
}

var _ FrameSlot = &frameSlot{}

// slotLayout is the per-slot capacity of each region.
type slotLayout struct {
	objects, materials       int
	objectSize, materialSize int
	passSize, ssaoSize       int
}

func newFrameSlot(r renderer.Renderer, index int, layout slotLayout) (*frameSlot, error) {
	s := &frameSlot{
		index: index,
		list:  r.NewCommandList(fmt.Sprintf("frame %d", index)),
	}

	var regions []ConstantRegion
	var err error
	s.storage, regions, err = newRegions(r, fmt.Sprintf("frame %d storage", index), renderer.BufferUsageStorage,
		regionDesc{label: "objects", elementSize: layout.objectSize, count: layout.objects},
		regionDesc{label: "materials", elementSize: layout.materialSize, count: layout.materials},
	)
	if err != nil {
		return nil, err
	}
	s.objects, s.materials = regions[0], regions[1]

	s.uniforms, regions, err = newRegions(r, fmt.Sprintf("frame %d uniforms", index), renderer.BufferUsageUniform,
		regionDesc{label: "pass", elementSize: layout.passSize, count: 1},
		regionDesc{label: "ssao", elementSize: layout.ssaoSize, count: 1},
	)
	if err != nil {
		s.storage.Release()
		return nil, err
	}
	s.pass, s.ssao = regions[0], regions[1]
	return s, nil
}

func (s *frameSlot) Index() int {
	return s.index
}

func (s *frameSlot) CommandList() renderer.CommandList {
	return s.list
}

func (s *frameSlot) Objects() ConstantRegion {
	return s.objects
}

func (s *frameSlot) Materials() ConstantRegion {
	return s.materials
}

func (s *frameSlot) Pass() ConstantRegion {
	return s.pass
}

func (s *frameSlot) SSAO() ConstantRegion {
	return s.ssao
}

func (s *frameSlot) FenceValue() uint64 {
	return s.fenceValue
}

func (s *frameSlot) release() {
	s.storage.Release()
	s.uniforms.Release()
}
