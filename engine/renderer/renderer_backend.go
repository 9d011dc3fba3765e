package renderer

import (
	"context"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend. A goroutine plays the GPU and executes submitted
	// command lists asynchronously in submission order.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	}
	return "unknown"
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// Surface is the presentation target a window provides.
type Surface interface {
	// SurfaceDescriptor returns the platform descriptor used to create a WebGPU surface.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Width returns the drawable width in pixels.
	Width() int

	// Height returns the drawable height in pixels.
	Height() int
}

// RendererBackend is the contract between the Renderer façade and a GPU API. Backends own the
// native objects behind images, buffers, meshes, views and pipelines, and execute recorded command
// lists. Validation happens in the façade and the command list, never in the backend.
type RendererBackend interface {
	// CreateImage allocates the native storage of img and sets its release hook.
	CreateImage(img *imageBase) error

	// UploadImage copies staging data into img, ordered after all previously submitted work.
	UploadImage(img *imageBase, data common.ImageStagingData) error

	// CreateUploadBuffer allocates the native buffer behind b.
	CreateUploadBuffer(b *uploadBuffer) error

	// CreateMesh allocates the vertex and index buffers behind m.
	CreateMesh(m *mesh) error

	// RegisterPipeline creates the native pipeline objects of p.
	RegisterPipeline(p pipeline.Pipeline) error

	// CreateView creates the native view object of v.
	CreateView(v *View) error

	// ReleaseView frees the native view object of v.
	ReleaseView(v *View)

	// Submit executes closed command lists in order after all previously submitted work.
	Submit(lists []*commandList) error

	// Signal arranges for the fence to reach value once all previously submitted work finished.
	Signal(value uint64)

	// SetFence hands the backend the fence its signals complete.
	SetFence(f fence.Fence)

	// FenceOptions returns options the fence needs to make progress on this backend.
	FenceOptions() []fence.FenceBuilderOption

	// ReadImage copies one channel of img back to the CPU once all submitted work finished.
	ReadImage(ctx context.Context, img *imageBase, channel int) (*common.FloatImage, error)

	// ConfigureSurface (re)configures the presentation surface.
	ConfigureSurface(width, height int)

	// Present displays the image behind a shader-read view.
	Present(v View) error

	// Release frees every native object the backend still holds.
	Release()
}
