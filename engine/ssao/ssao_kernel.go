package ssao

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// ssaoKernel is the implementation of the SSAOKernel interface.
type ssaoKernel struct {
	mu *sync.Mutex
	r  renderer.Renderer

	kernel     occlusion.SampleKernel
	vectors    occlusion.RandomVectorMap
	random     renderer.Image
	randomView renderer.ViewHandle

	// depth is the kernel's own reference to the shared depth buffer.
	depth renderer.SharedImage
}

// SSAOKernel estimates the accessibility of every ambient map texel from the normal and depth
// targets, writing the raw estimate into image 0 of an AmbientMapPair.
type SSAOKernel interface {
	// Kernel returns the probe offsets.
	Kernel() occlusion.SampleKernel

	// RandomVectors returns the tiled rotation texture as uploaded.
	RandomVectors() occlusion.RandomVectorMap

	// Bind takes a reference to the depth buffer of g, dropping the reference to any earlier one.
	//
	// Parameters:
	//   - g: the targets written by the normal/depth pass
	Bind(g GBuffer)

	// Depth returns the bound depth buffer, nil before Bind.
	Depth() renderer.SharedImage

	// Record dispatches the estimator. The normal and depth targets must be readable.
	//
	// Parameters:
	//   - list: the open command list of the frame
	//   - slot: supplies the pass constants and the occlusion constants
	//   - g: the targets to read
	//   - maps: the ambient maps; image 0 is written
	//
	// Returns:
	//   - error: the first recording error
	Record(list renderer.CommandList, slot frame_resource.FrameSlot, g GBuffer, maps AmbientMapPair) error

	// Release frees the random vector texture and drops the depth reference.
	Release()
}

var _ SSAOKernel = &ssaoKernel{}

// NewSSAOKernel builds the sample kernel and uploads the random vector texture.
//
// Parameters:
//   - r: the renderer
//   - rng: the random source for the kernel lengths and the rotation vectors
//
// Returns:
//   - SSAOKernel: the kernel
//   - error: an error if the texture cannot be created
func NewSSAOKernel(r renderer.Renderer, rng *rand.Rand) (SSAOKernel, error) {
	k := &ssaoKernel{
		mu:      &sync.Mutex{},
		r:       r,
		kernel:  occlusion.NewSampleKernel(rng),
		vectors: occlusion.NewRandomVectorMap(rng),
	}
	random, err := r.CreateImage(renderer.ImageDescriptor{
		Label:  "ssao random vectors",
		Width:  occlusion.RandomMapSize,
		Height: occlusion.RandomMapSize,
		Format: renderer.FormatRGBA8Unorm,
		Usage:  renderer.UsageSampled | renderer.UsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	err = r.UploadImage(random, common.ImageStagingData{
		Pixels:        k.vectors.Pixels,
		Width:         occlusion.RandomMapSize,
		Height:        occlusion.RandomMapSize,
		BytesPerPixel: 4,
	})
	if err != nil {
		random.Release()
		return nil, err
	}
	view, err := r.Views().Allocate(random, renderer.ViewKindShaderRead, pass.RoleRandomVectors)
	if err != nil {
		random.Release()
		return nil, err
	}
	k.random, k.randomView = random, view
	return k, nil
}

func (k *ssaoKernel) Kernel() occlusion.SampleKernel {
	return k.kernel
}

func (k *ssaoKernel) RandomVectors() occlusion.RandomVectorMap {
	return k.vectors
}

func (k *ssaoKernel) Bind(g GBuffer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.depth == g.Depth {
		return
	}
	if k.depth != nil {
		k.depth.Release()
	}
	k.depth = nil
	if g.Depth != nil {
		k.depth = g.Depth.Retain()
	}
}

func (k *ssaoKernel) Depth() renderer.SharedImage {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.depth
}

func (k *ssaoKernel) Record(list renderer.CommandList, slot frame_resource.FrameSlot, g GBuffer, maps AmbientMapPair) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.random == nil {
		return ErrReleased
	}
	if k.depth != g.Depth {
		return fmt.Errorf("%w: estimator is bound to a different depth buffer", ErrPassState)
	}

	if err := transition(list, k.random, pass.StateShaderRead); err != nil {
		return err
	}
	target := maps.Image(0)
	if err := transition(list, target, pass.StateStorageWrite); err != nil {
		return err
	}
	err := list.Dispatch(renderer.DispatchDescriptor{
		Pass:      pass.Ambient,
		Constants: []renderer.ConstantBinding{slot.Pass().Binding(0), slot.SSAO().Binding(1)},
		Reads:     []renderer.ViewHandle{g.NormalView, g.DepthView, k.randomView},
		Writes:    []renderer.ViewHandle{maps.WriteView(0)},
		Width:     maps.Width(),
		Height:    maps.Height(),
	})
	if err != nil {
		return fmt.Errorf("ssao: recording ambient pass: %w", err)
	}
	return transition(list, target, pass.StateShaderRead)
}

func (k *ssaoKernel) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.random != nil {
		freeViews(k.r.Views(), k.randomView)
		k.random.Release()
		k.random, k.randomView = nil, renderer.ViewHandle{}
	}
	if k.depth != nil {
		k.depth.Release()
		k.depth = nil
	}
}
