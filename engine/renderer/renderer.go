package renderer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[pass.ID]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend
	views       *viewHeap
	fence       fence.Fence
	released    bool

	// Pre-creation config collected from builder options
	surface              Surface
	forceFallbackAdapter bool
	presentMode          PresentMode
	viewCapacity         int
	fenceLabel           string
	softwareWorkers      int
	softwareLatency      time.Duration
}

// Renderer defines the interface for the rendering system.
//
// The Renderer owns the GPU resources of the engine: images, views, upload buffers, meshes and the
// pass pipelines. Work is recorded into CommandLists, which validate resource states as they are
// recorded, and submitted in order. The Renderer also owns the completion fence and implements a
// backend which allows for multiple backend API implementations to exist.
type Renderer interface {
	// BackendType returns the backend the renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Fence returns the completion fence shared by every frame.
	//
	// Returns:
	//   - fence.Fence: the fence
	Fence() fence.Fence

	// Views returns the heap that hands out image view handles.
	//
	// Returns:
	//   - ViewHeap: the view heap
	Views() ViewHeap

	// Pipeline retrieves the registered Pipeline of a pass.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - id: the pass
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline of the pass, or nil if not registered
	Pipeline(id pass.ID) pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the corresponding backend
	// objects, then caching them by pass. Pipelines whose pass is already registered are skipped
	// to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// NewCommandList creates an open command list.
	//
	// Parameters:
	//   - label: the debug label
	//
	// Returns:
	//   - CommandList: the command list
	NewCommandList(label string) CommandList

	// CreateImage creates an image in the Undefined state.
	//
	// Parameters:
	//   - desc: the image descriptor
	//
	// Returns:
	//   - Image: the image
	//   - error: ErrInvalidDescriptor for a malformed descriptor, or a backend allocation error
	CreateImage(desc ImageDescriptor) (Image, error)

	// UploadImage copies tightly packed texels into img, ordered after all submitted work. The image
	// must allow UsageCopyDst and be Undefined or CopyDst; it is left in CopyDst.
	//
	// Parameters:
	//   - img: the destination image
	//   - data: the texels, matching the image extent and format size
	//
	// Returns:
	//   - error: an error if the data or the image state do not fit
	UploadImage(img Image, data common.ImageStagingData) error

	// CreateUploadBuffer creates CPU-writable constant memory.
	//
	// Parameters:
	//   - label: the debug label
	//   - usage: how passes bind the buffer
	//   - size: the size in bytes
	//
	// Returns:
	//   - UploadBuffer: the buffer
	//   - error: an error if allocation fails
	CreateUploadBuffer(label string, usage BufferUsage, size int) (UploadBuffer, error)

	// CreateMesh uploads a model's vertices and indices.
	//
	// Parameters:
	//   - m: the model
	//
	// Returns:
	//   - Mesh: the GPU mesh
	//   - error: an error if allocation fails
	CreateMesh(m model.Model) (Mesh, error)

	// Submit queues closed command lists for execution in order after all prior submissions.
	//
	// Parameters:
	//   - lists: the command lists
	//
	// Returns:
	//   - error: ErrCommandListOpen if a list was not closed
	Submit(lists ...CommandList) error

	// Flush advances the fence and waits until every submitted list finished.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - error: the fence wait error
	Flush(ctx context.Context) error

	// ReadImage copies one channel of an image back to the CPU after all submitted work finished.
	// Depth and single-channel images only have channel 0.
	//
	// Parameters:
	//   - ctx: bounds the wait for the GPU
	//   - img: the image to read
	//   - channel: the channel to extract
	//
	// Returns:
	//   - *common.FloatImage: the texels
	//   - error: an error if the channel does not exist or the readback fails
	ReadImage(ctx context.Context, img Image, channel int) (*common.FloatImage, error)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// Present displays the image behind a shader-read view on the surface.
	//
	// Parameters:
	//   - h: a ViewKindShaderRead view whose image is in StateShaderRead
	//
	// Returns:
	//   - error: ErrNoSurface without a surface, or a view error
	Present(h ViewHandle) error

	// Release frees every view, pipeline and backend object. Images, buffers and meshes handed out
	// earlier must not be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
// A WebGPU renderer without a surface runs headless.
//
// Parameters:
//   - backendType: the type of rendering backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: an error if the backend could not be created
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:              &sync.Mutex{},
		pipelineCache:   make(map[pass.ID]pipeline.Pipeline),
		backendType:     backendType,
		presentMode:     PresentModeVSync,
		viewCapacity:    64,
		softwareWorkers: 4,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.softwareWorkers, r.softwareLatency)
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.surface, r.forceFallbackAdapter, r.presentMode)
		if err != nil {
			return nil, err
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: unknown backend type %d", int(backendType))
	}

	r.fence = fence.NewFence(r.backend.Signal, append(r.backend.FenceOptions(), fence.WithLabel(common.Coalesce(r.fenceLabel, "frame fence")))...)
	r.backend.SetFence(r.fence)
	r.views = newViewHeap(r.viewCapacity, viewHooks{create: r.backend.CreateView, release: r.backend.ReleaseView})

	if r.surface != nil {
		r.backend.ConfigureSurface(r.surface.Width(), r.surface.Height())
	}
	common.Logger().Info("renderer created", "backend", backendType, "views", r.viewCapacity, "surface", r.surface != nil)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Fence() fence.Fence {
	return r.fence
}

func (r *renderer) Views() ViewHeap {
	return r.views
}

func (r *renderer) Pipeline(id pass.ID) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[id]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	for _, p := range pipelines {
		if _, exists := r.pipelineCache[p.Pass()]; exists {
			continue
		}
		if err := r.backend.RegisterPipeline(p); err != nil {
			return fmt.Errorf("renderer: registering %v pipeline: %w", p.Pass(), err)
		}
		r.pipelineCache[p.Pass()] = p
	}
	return nil
}

func (r *renderer) hasPipeline(id pass.ID) bool {
	return r.Pipeline(id) != nil
}

func (r *renderer) NewCommandList(label string) CommandList {
	return newCommandList(label, r.views, r.hasPipeline)
}

func (r *renderer) CreateImage(desc ImageDescriptor) (Image, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	img := &imageBase{desc: desc, state: pass.StateUndefined}
	if err := r.backend.CreateImage(img); err != nil {
		return nil, fmt.Errorf("renderer: creating image %q: %w", desc.Label, err)
	}
	return img, nil
}

func (r *renderer) UploadImage(img Image, data common.ImageStagingData) error {
	if err := data.Validate(); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidDescriptor, img.Label(), err)
	}
	if int(data.Width) != img.Width() || int(data.Height) != img.Height() {
		return fmt.Errorf("%w: %q is %dx%d, staging data is %dx%d", ErrInvalidDescriptor, img.Label(),
			img.Width(), img.Height(), data.Width, data.Height)
	}
	if !img.Usage().Has(UsageCopyDst) {
		return fmt.Errorf("%w: %q does not allow uploads", ErrInvalidTransition, img.Label())
	}
	if s := img.State(); s != pass.StateUndefined && s != pass.StateCopyDst {
		return fmt.Errorf("%w: upload into %q in state %v", ErrResourceState, img.Label(), s)
	}
	b := img.base()
	if err := r.backend.UploadImage(b, data); err != nil {
		return fmt.Errorf("renderer: uploading %q: %w", img.Label(), err)
	}
	b.state = pass.StateCopyDst
	return nil
}

func (r *renderer) CreateUploadBuffer(label string, usage BufferUsage, size int) (UploadBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: upload buffer %q has size %d", ErrInvalidDescriptor, label, size)
	}
	b := newUploadBuffer(label, usage, size)
	if err := r.backend.CreateUploadBuffer(b); err != nil {
		return nil, fmt.Errorf("renderer: creating upload buffer %q: %w", label, err)
	}
	return b, nil
}

func (r *renderer) CreateMesh(m model.Model) (Mesh, error) {
	if m == nil || m.IndexCount() == 0 {
		return nil, fmt.Errorf("%w: mesh without indices", ErrInvalidDescriptor)
	}
	out := &mesh{model: m}
	if err := r.backend.CreateMesh(out); err != nil {
		return nil, fmt.Errorf("renderer: creating mesh %q: %w", m.Name(), err)
	}
	return out, nil
}

func (r *renderer) Submit(lists ...CommandList) error {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released {
		return ErrReleased
	}

	impls := make([]*commandList, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok {
			return fmt.Errorf("renderer: foreign command list %T", l)
		}
		if !cl.Closed() {
			return fmt.Errorf("%w: %s", ErrCommandListOpen, cl.Label())
		}
		impls = append(impls, cl)
	}
	return r.backend.Submit(impls)
}

func (r *renderer) Flush(ctx context.Context) error {
	return r.fence.WaitUntil(ctx, r.fence.Advance())
}

func (r *renderer) ReadImage(ctx context.Context, img Image, channel int) (*common.FloatImage, error) {
	if channel < 0 || channel >= img.Format().Channels() {
		return nil, fmt.Errorf("%w: %q (%v) has no channel %d", ErrOutOfRange, img.Label(), img.Format(), channel)
	}
	return r.backend.ReadImage(ctx, img.base(), channel)
}

func (r *renderer) Resize(width, height int) {
	if r.surface == nil || width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
	common.Logger().Info("surface resized", "width", width, "height", height)
}

func (r *renderer) Present(h ViewHandle) error {
	if r.surface == nil {
		return ErrNoSurface
	}
	v, err := r.views.Resolve(h)
	if err != nil {
		return err
	}
	if v.Kind != ViewKindShaderRead {
		return fmt.Errorf("%w: presenting a %v view", ErrIncompatibleView, v.Kind)
	}
	if v.Image.State() != pass.StateShaderRead {
		return fmt.Errorf("%w: presenting %q in state %v", ErrResourceState, v.Image.Label(), v.Image.State())
	}
	return r.backend.Present(v)
}

func (r *renderer) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	pipelines := r.pipelineCache
	r.pipelineCache = make(map[pass.ID]pipeline.Pipeline)
	r.mu.Unlock()

	r.views.releaseAll()
	for _, p := range pipelines {
		p.Release()
	}
	r.backend.Release()
	common.Logger().Info("renderer released", "backend", r.backendType)
}
