// package ssao records the screen-space ambient occlusion passes: the normal/depth capture, the
// ambient estimator and the edge-preserving blur, over images it owns and constants it writes into
// the current frame slot.
package ssao

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/scene"
)

var (
	// ErrPassState is returned when a pass is recorded out of order.
	ErrPassState = errors.New("ssao: pass in wrong state")

	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("ssao: released")
)

// Output is what one recorded frame produces.
type Output struct {
	// Ambient is the image holding the final ambient map, readable once the frame executed.
	Ambient renderer.Image

	// AmbientView is the shader-read view of Ambient.
	AmbientView renderer.ViewHandle

	// AmbientIndex is the index of Ambient within the AmbientMapPair.
	AmbientIndex int

	// Iterations is the number of blur iterations recorded.
	Iterations int

	// GBuffer holds the normal and depth targets, for debug display.
	GBuffer GBuffer

	// AmbientTransform maps world space to ambient map texture space: NDCToTexture * Proj * View.
	AmbientTransform [16]float32
}

// ssao is the implementation of the SSAO interface.
type ssao struct {
	mu *sync.Mutex
	r  renderer.Renderer

	config occlusion.Config
	seed   uint64

	width, height int
	normalDepth   NormalDepthPass
	kernel        SSAOKernel
	blur          BilateralBlur
	maps          AmbientMapPair

	last     Output
	released bool
}

// SSAO owns every image and pipeline of the ambient occlusion passes and records them into the
// command list of a frame slot. The caller writes the pass constants of the slot; SSAO writes the
// occlusion constants.
type SSAO interface {
	// Config returns the active configuration.
	Config() occlusion.Config

	// SetConfig validates and applies a configuration from the next recorded frame on.
	//
	// Parameters:
	//   - c: the configuration
	//
	// Returns:
	//   - error: an error wrapping occlusion.ErrInvalidConfig or occlusion.ErrBlurRadiusExceeded
	SetConfig(c occlusion.Config) error

	// Width returns the full-resolution width.
	Width() int

	// Height returns the full-resolution height.
	Height() int

	// NormalDepth returns the normal/depth pass.
	NormalDepth() NormalDepthPass

	// Kernel returns the ambient estimator.
	Kernel() SSAOKernel

	// Blur returns the edge-preserving blur.
	Blur() BilateralBlur

	// AmbientMaps returns the half-resolution ambient images.
	AmbientMaps() AmbientMapPair

	// Record writes the occlusion constants into the slot and records every pass into its command list.
	//
	// Parameters:
	//   - slot: the acquired frame slot, its pass constants already written
	//   - cam: the camera the pass constants were built from
	//   - items: the opaque items to capture
	//
	// Returns:
	//   - Output: the final ambient map and transform
	//   - error: the first recording error
	Record(slot frame_resource.FrameSlot, cam camera.Camera, items []scene.RenderItem) (Output, error)

	// Last returns the Output of the most recent successful Record.
	Last() Output

	// Resize waits for the renderer to go idle, then recreates the targets for the new extent and
	// re-issues their views. Sizes equal to the current one are ignored.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//   - width, height: the new full-resolution extent
	//
	// Returns:
	//   - error: the wait or allocation error
	Resize(ctx context.Context, width, height int) error

	// AmbientImage reads the final ambient map back and scales it to full resolution.
	//
	// Parameters:
	//   - ctx: bounds the wait for submitted work
	//
	// Returns:
	//   - *image.Gray: the ambient map, white meaning unoccluded
	//   - error: the readback error
	AmbientImage(ctx context.Context) (*image.Gray, error)

	// NormalImage reads the normal target back, encoding each component as (n + 1) / 2.
	//
	// Parameters:
	//   - ctx: bounds the wait for submitted work
	//
	// Returns:
	//   - *image.RGBA: the encoded normals
	//   - error: the readback error
	NormalImage(ctx context.Context) (*image.RGBA, error)

	// Release frees every image and view. Submitted work must have completed.
	Release()
}

var _ SSAO = &ssao{}

// New registers the pass pipelines with the renderer and creates the targets at the given extent.
//
// Parameters:
//   - r: the renderer
//   - width, height: the full-resolution extent
//   - options: variadic list of SSAOBuilderOption functions to configure the passes
//
// Returns:
//   - SSAO: the passes
//   - error: a configuration, pipeline or allocation error
func New(r renderer.Renderer, width, height int, options ...SSAOBuilderOption) (SSAO, error) {
	s := &ssao{
		mu:     &sync.Mutex{},
		r:      r,
		config: occlusion.DefaultConfig(),
		seed:   1,
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if err := r.RegisterPipelines(Pipelines()...); err != nil {
		return nil, err
	}

	var err error
	if s.blur, err = NewBilateralBlur(s.config); err != nil {
		return nil, err
	}
	if s.normalDepth, err = NewNormalDepthPass(r, width, height); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x5eed))
	if s.kernel, err = NewSSAOKernel(r, rng); err != nil {
		s.normalDepth.Release()
		return nil, err
	}
	if s.maps, err = NewAmbientMapPair(r, width, height); err != nil {
		s.kernel.Release()
		s.normalDepth.Release()
		return nil, err
	}
	s.kernel.Bind(s.normalDepth.GBuffer())
	s.width, s.height = width, height

	common.Logger().Info("ssao created", "width", width, "height", height,
		"ambientWidth", s.maps.Width(), "ambientHeight", s.maps.Height(), "blurCount", s.config.BlurCount)
	return s, nil
}

func (s *ssao) Config() occlusion.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *ssao) SetConfig(c occlusion.Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.blur.Configure(c); err != nil {
		return err
	}
	s.config = c
	return nil
}

func (s *ssao) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *ssao) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *ssao) NormalDepth() NormalDepthPass {
	return s.normalDepth
}

func (s *ssao) Kernel() SSAOKernel {
	return s.kernel
}

func (s *ssao) Blur() BilateralBlur {
	return s.blur
}

func (s *ssao) AmbientMaps() AmbientMapPair {
	return s.maps
}

func (s *ssao) Record(slot frame_resource.FrameSlot, cam camera.Camera, items []scene.RenderItem) (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return Output{}, ErrReleased
	}

	constants := occlusion.NewGPUSSAOConstants(s.config, s.kernel.Kernel(), s.blur.Weights(), s.maps.Width(), s.maps.Height())
	if err := slot.SSAO().Write(0, constants.Marshal()); err != nil {
		return Output{}, fmt.Errorf("ssao: writing occlusion constants: %w", err)
	}

	list := slot.CommandList()
	if err := s.normalDepth.Record(list, slot, items); err != nil {
		return Output{}, err
	}
	g := s.normalDepth.GBuffer()
	if err := s.kernel.Record(list, slot, g, s.maps); err != nil {
		return Output{}, err
	}
	final, err := s.blur.Record(list, slot, g, s.maps)
	if err != nil {
		return Output{}, err
	}

	s.last = Output{
		Ambient:          s.maps.Image(final),
		AmbientView:      s.maps.ReadView(final),
		AmbientIndex:     final,
		Iterations:       s.blur.Count(),
		GBuffer:          g,
		AmbientTransform: cam.AmbientTransform(),
	}
	return s.last, nil
}

func (s *ssao) Last() Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *ssao) Resize(ctx context.Context, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	if width == s.width && height == s.height {
		return nil
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: ssao resize to %dx%d", renderer.ErrInvalidDescriptor, width, height)
	}
	if err := s.r.Flush(ctx); err != nil {
		return fmt.Errorf("ssao: waiting before resize: %w", err)
	}

	if err := s.normalDepth.Resize(width, height); err != nil {
		return err
	}
	s.kernel.Bind(s.normalDepth.GBuffer())
	if err := s.maps.Resize(width, height); err != nil {
		return err
	}
	s.width, s.height = width, height
	s.last = Output{}
	common.Logger().Info("ssao resized", "width", width, "height", height,
		"ambientWidth", s.maps.Width(), "ambientHeight", s.maps.Height())
	return nil
}

func (s *ssao) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.maps.Release()
	s.kernel.Release()
	s.normalDepth.Release()
	s.last = Output{}
}
