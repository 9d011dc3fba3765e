package ssao

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// bilateralBlur is the implementation of the BilateralBlur interface.
type bilateralBlur struct {
	mu *sync.Mutex

	sigma   float32
	count   int
	weights occlusion.BlurWeights
}

// BilateralBlur smooths the ambient map while preserving edges. Each iteration runs a horizontal pass
// from the current image of the pair into the scratch image and a vertical pass from the scratch
// image into the other image of the pair.
type BilateralBlur interface {
	// Weights returns the Gaussian weights, computed once per sigma.
	Weights() occlusion.BlurWeights

	// Count returns the number of iterations each Record runs.
	Count() int

	// Configure takes the sigma and iteration count of c, recomputing the weights if sigma changed.
	//
	// Parameters:
	//   - c: the configuration
	//
	// Returns:
	//   - error: an error wrapping occlusion.ErrBlurRadiusExceeded or occlusion.ErrInvalidConfig
	Configure(c occlusion.Config) error

	// Record dispatches every iteration.
	//
	// Parameters:
	//   - list: the open command list of the frame
	//   - slot: supplies the pass constants and the occlusion constants
	//   - g: the normal and depth targets the edge test reads
	//   - maps: the ambient maps, image 0 holding the raw estimate
	//
	// Returns:
	//   - int: the index of the image holding the result
	//   - error: the first recording error
	Record(list renderer.CommandList, slot frame_resource.FrameSlot, g GBuffer, maps AmbientMapPair) (int, error)
}

var _ BilateralBlur = &bilateralBlur{}

// NewBilateralBlur computes the weights of c.
//
// Parameters:
//   - c: the configuration supplying the sigma and iteration count
//
// Returns:
//   - BilateralBlur: the blur
//   - error: an error if the sigma is invalid
func NewBilateralBlur(c occlusion.Config) (BilateralBlur, error) {
	b := &bilateralBlur{mu: &sync.Mutex{}}
	if err := b.Configure(c); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *bilateralBlur) Weights() occlusion.BlurWeights {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.weights
}

func (b *bilateralBlur) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *bilateralBlur) Configure(c occlusion.Config) error {
	if c.BlurCount < 0 {
		return fmt.Errorf("%w: blur count %d", occlusion.ErrInvalidConfig, c.BlurCount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sigma == 0 || c.BlurSigma != b.sigma {
		w, err := occlusion.NewBlurWeights(c.BlurSigma)
		if err != nil {
			return err
		}
		b.weights, b.sigma = w, c.BlurSigma
	}
	b.count = c.BlurCount
	return nil
}

func (b *bilateralBlur) Record(list renderer.CommandList, slot frame_resource.FrameSlot, g GBuffer, maps AmbientMapPair) (int, error) {
	count := b.Count()
	constants := []renderer.ConstantBinding{slot.Pass().Binding(0), slot.SSAO().Binding(1)}
	scratch, scratchRead, scratchWrite := maps.Scratch()
	w, h := maps.Width(), maps.Height()

	for i := 0; i < count; i++ {
		src, dst := i&1, (i+1)&1

		if err := transition(list, scratch, pass.StateStorageWrite); err != nil {
			return 0, err
		}
		err := list.Dispatch(renderer.DispatchDescriptor{
			Pass:      pass.BlurHorizontal,
			Constants: constants,
			Reads:     []renderer.ViewHandle{g.NormalView, g.DepthView, maps.ReadView(src)},
			Writes:    []renderer.ViewHandle{scratchWrite},
			Width:     w,
			Height:    h,
		})
		if err != nil {
			return 0, fmt.Errorf("ssao: recording blur iteration %d horizontal: %w", i, err)
		}
		if err := transition(list, scratch, pass.StateShaderRead); err != nil {
			return 0, err
		}

		target := maps.Image(dst)
		if err := transition(list, target, pass.StateStorageWrite); err != nil {
			return 0, err
		}
		err = list.Dispatch(renderer.DispatchDescriptor{
			Pass:      pass.BlurVertical,
			Constants: constants,
			Reads:     []renderer.ViewHandle{g.NormalView, g.DepthView, scratchRead},
			Writes:    []renderer.ViewHandle{maps.WriteView(dst)},
			Width:     w,
			Height:    h,
		})
		if err != nil {
			return 0, fmt.Errorf("ssao: recording blur iteration %d vertical: %w", i, err)
		}
		if err := transition(list, target, pass.StateShaderRead); err != nil {
			return 0, err
		}
		common.Logger().Debug("blur iteration recorded", "iteration", i, "from", src, "to", dst)
	}
	return maps.Final(count), nil
}
