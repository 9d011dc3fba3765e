package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/ssao"
	"github.com/Carmen-Shannon/oxy-ssao/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler replaces the default profiler.
//
// Parameters:
//   - p: the profiler, also observing frame slot waits
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Duration(float64(time.Second) / fps)
	}
}

// WithWindow renders into the window's surface. The extent follows its framebuffer.
//
// Parameters:
//   - w: an open Window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithBackend selects the renderer backend. The default is WebGPU.
//
// Parameters:
//   - backend: the backend type
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithBackend(backend renderer.RendererBackendType) EngineBuilderOption {
	return func(e *engine) {
		e.backend = backend
	}
}

// WithRendererOptions passes options through to renderer.NewRenderer.
//
// Parameters:
//   - options: the renderer options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRendererOptions(options ...renderer.RendererBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.rendererOptions = append(e.rendererOptions, options...)
	}
}

// WithSSAOOptions passes options through to ssao.New.
//
// Parameters:
//   - options: the SSAO options
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSSAOOptions(options ...ssao.SSAOBuilderOption) EngineBuilderOption {
	return func(e *engine) {
		e.ssaoOptions = append(e.ssaoOptions, options...)
	}
}

// WithCamera sets the camera. Its aspect is overwritten to match the extent.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithSize sets the headless extent. Ignored when a window is set.
//
// Parameters:
//   - width, height: the extent in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSize(width, height int) EngineBuilderOption {
	return func(e *engine) {
		e.width, e.height = width, height
	}
}

// WithFramesInFlight sets the number of frame slots. The default is 3.
//
// Parameters:
//   - n: the slot count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFramesInFlight(n int) EngineBuilderOption {
	return func(e *engine) {
		e.frameCount = n
	}
}

// WithObjectCapacity sets the number of render items each slot can hold. The default is 256.
//
// Parameters:
//   - n: the capacity
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithObjectCapacity(n int) EngineBuilderOption {
	return func(e *engine) {
		e.objectCapacity = n
	}
}

// WithSlotWaitTimeout bounds each wait for a frame slot. Zero waits as long as the frame timeout allows.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSlotWaitTimeout(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		e.waitTimeout = d
	}
}

// WithFrameTimeout bounds each frame of the render loop and the final wait of Release. The default is 5s.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameTimeout(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if d > 0 {
			e.frameTimeout = d
		}
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.renderFrameLimit = frameDuration(fps)
	}
}
