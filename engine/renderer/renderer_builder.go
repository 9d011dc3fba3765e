package renderer

import "time"

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithSurface sets the presentation surface, typically a window.Window.
//
// Parameters:
//   - s: the surface to present to
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithSurface(s Surface) RendererBuilderOption {
	return func(r *renderer) {
		r.surface = s
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). It does not select BackendTypeSoftware.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithViewCapacity sets the number of slots in the view heap. The default is 64.
//
// Parameters:
//   - n: the number of view slots, minimum 1
//
// Returns:
//   - RendererBuilderOption: a function that applies the capacity option to a renderer
func WithViewCapacity(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.viewCapacity = max(n, 1)
	}
}

// WithFenceLabel sets the label the frame fence reports in logs and errors.
//
// Parameters:
//   - label: the fence label
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithFenceLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.fenceLabel = label
	}
}

// WithSoftwareWorkers sets the number of worker goroutines the software backend splits each pass
// across. The default is 4.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - RendererBuilderOption: a function that applies the workers option to a renderer
func WithSoftwareWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.softwareWorkers = max(n, 1)
	}
}

// WithSoftwareLatency delays the software backend before it executes each command list, which
// widens the window in which the CPU runs ahead of the simulated GPU.
//
// Parameters:
//   - d: the delay per command list
//
// Returns:
//   - RendererBuilderOption: a function that applies the latency option to a renderer
func WithSoftwareLatency(d time.Duration) RendererBuilderOption {
	return func(r *renderer) {
		r.softwareLatency = d
	}
}
