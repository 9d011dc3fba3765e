package renderer

import (
	"context"
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

// presentSource blits a shader-read image to the surface.
//
//go:embed assets/present.wgsl
var presentSource string

// wgpuMesh holds the GPU buffers of a mesh.
type wgpuMesh struct {
	vertex, index *wgpu.Buffer
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	pipelines map[pass.ID]pipeline.Pipeline
	fence     fence.Fence

	// Present blit, created on first surface configuration.
	presentPipeline *wgpu.RenderPipeline
	presentLayout   *wgpu.BindGroupLayout
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surface Surface, forceFallbackAdapter bool, mode PresentMode) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:        &sync.Mutex{},
		instance:  wgpu.CreateInstance(nil),
		pipelines: make(map[pass.ID]pipeline.Pipeline),
	}
	switch mode {
	case PresentModeUncapped:
		w.presentMode = wgpu.PresentModeImmediate
	default:
		w.presentMode = wgpu.PresentModeFifo
	}
	if surface != nil {
		w.surface = w.instance.CreateSurface(surface.SurfaceDescriptor())
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: requesting adapter: %w", err)
	}
	w.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: requesting device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()
	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	if b.presentPipeline == nil {
		if err := b.createPresentPipeline(); err != nil {
			common.Logger().Error("present pipeline creation failed", "err", err)
		}
	}
}

func textureFormat(f Format) wgpu.TextureFormat {
	switch f {
	case FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	case FormatR32Float:
		return wgpu.TextureFormatR32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func textureUsage(u Usage) wgpu.TextureUsage {
	out := wgpu.TextureUsageCopySrc
	if u.Has(UsageRenderTarget) || u.Has(UsageDepth) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(UsageSampled) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(UsageStorage) {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u.Has(UsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

func (b *wgpuRendererBackendImpl) CreateImage(img *imageBase) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     img.desc.Label,
		Usage:     textureUsage(img.desc.Usage),
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(img.desc.Width),
			Height:             uint32(img.desc.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        textureFormat(img.desc.Format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}
	img.native = tex
	img.release = tex.Release
	return nil
}

func (b *wgpuRendererBackendImpl) UploadImage(img *imageBase, data common.ImageStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int(data.BytesPerPixel) != img.desc.Format.BytesPerTexel() {
		return fmt.Errorf("%w: %v needs %d bytes per texel, got %d", ErrInvalidDescriptor, img.desc.Format, img.desc.Format.BytesPerTexel(), data.BytesPerPixel)
	}
	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  img.native.(*wgpu.Texture),
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.Width * data.BytesPerPixel,
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateUploadBuffer(buf *uploadBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	usage := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	if buf.usage == BufferUsageStorage {
		usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}
	gpu, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            buf.label,
		Size:             uint64(buf.Size()),
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	buf.native = gpu
	buf.release = gpu.Release
	return nil
}

func (b *wgpuRendererBackendImpl) CreateMesh(m *mesh) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	native := &wgpuMesh{}
	vertexData, indexData := m.model.VertexData(), m.model.IndexData()

	vb, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            m.model.Name() + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return err
	}
	b.queue.WriteBuffer(vb, 0, vertexData)
	native.vertex = vb

	ib, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            m.model.Name() + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		vb.Release()
		return err
	}
	b.queue.WriteBuffer(ib, 0, indexData)
	native.index = ib

	m.native = native
	m.release = func() {
		native.vertex.Release()
		native.index.Release()
	}
	return nil
}

// validateShaders runs every shader of p through the WGSL validator. Constructs the validator does
// not implement yet are logged and left to the driver.
func validateShaders(p pipeline.Pipeline) error {
	for _, s := range p.Shaders() {
		err := s.Validate()
		switch {
		case err == nil:
		case errors.Is(err, shader.ErrUnsupportedByValidator):
			common.Logger().Debug("shader validation skipped", "shader", s.Key(), "err", err)
		default:
			return err
		}
	}
	return nil
}

func (b *wgpuRendererBackendImpl) createBindGroupLayouts(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, *wgpu.PipelineLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		bgl, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, nil, err
	}
	return bindGroupLayouts, layout, nil
}

func (b *wgpuRendererBackendImpl) RegisterPipeline(p pipeline.Pipeline) error {
	if err := validateShaders(p); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	switch p.Type() {
	case pipeline.PipelineTypeCompute:
		err = b.registerComputePipeline(p)
	default:
		err = b.registerRenderPipeline(p)
	}
	if err != nil {
		return err
	}
	b.pipelines[p.Pass()] = p
	return nil
}

func (b *wgpuRendererBackendImpl) registerRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return err
	}

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	bindGroupLayouts, pipelineLayout, err := b.createBindGroupLayouts(p.Pass().String(), merged)
	if err != nil {
		return err
	}

	depthCompare := wgpu.CompareFunctionLess
	if !p.DepthTestEnabled() {
		depthCompare = wgpu.CompareFunctionAlways
	}
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.Pass().String() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexShader.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets: []wgpu.ColorTargetState{{
				Format:    p.ColorFormat(),
				WriteMask: p.WriteMask(),
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            p.DepthFormat(),
			DepthWriteEnabled: p.DepthWriteEnabled(),
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return err
	}

	p.SetBindGroupLayouts(bindGroupLayouts)
	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) registerComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}

	bindGroupLayouts, layout, err := b.createBindGroupLayouts(p.Pass().String(), computeShader.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Pass().String() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetBindGroupLayouts(bindGroupLayouts)
	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) createPresentPipeline() error {
	s := shader.NewShader("present", shader.ShaderTypeVertex, presentSource)
	fsh := shader.NewShader("present", shader.ShaderTypeFragment, presentSource)
	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return err
	}
	layouts, pipelineLayout, err := b.createBindGroupLayouts("present", fsh.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}
	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Present Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: s.EntryPoint(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: fsh.EntryPoint(),
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}
	b.presentPipeline = created
	b.presentLayout = layouts[0]
	return nil
}

func (b *wgpuRendererBackendImpl) CreateView(v *View) error {
	tex := v.Image.base().native.(*wgpu.Texture)
	aspect := wgpu.TextureAspectAll
	if v.Image.Format() == FormatDepth32Float && v.Kind == ViewKindShaderRead {
		aspect = wgpu.TextureAspectDepthOnly
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           v.Image.Label() + " " + v.Kind.String(),
		Format:          textureFormat(v.Image.Format()),
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          aspect,
	})
	if err != nil {
		return err
	}
	v.native = view
	return nil
}

func (b *wgpuRendererBackendImpl) ReleaseView(v *View) {
	if view, ok := v.native.(*wgpu.TextureView); ok {
		view.Release()
	}
	v.native = nil
}

// flushBuffers writes the CPU shadow of every upload buffer the lists bind. The writes are ordered
// before the command buffers submitted after them.
func (b *wgpuRendererBackendImpl) flushBuffers(lists []*commandList) {
	seen := make(map[*uploadBuffer]bool)
	for _, l := range lists {
		for i := range l.commands {
			for _, c := range l.commands[i].constants {
				buf, ok := c.Buffer.(*uploadBuffer)
				if !ok || seen[buf] {
					continue
				}
				seen[buf] = true
				if offset, data := buf.takeDirty(); len(data) > 0 {
					b.queue.WriteBuffer(buf.native.(*wgpu.Buffer), uint64(offset), data)
				}
			}
		}
	}
}

// bindGroupEntries binds constants at their binding indices and views after them in order.
func bindGroupEntries(constants []ConstantBinding, views ...View) []wgpu.BindGroupEntry {
	entries := make([]wgpu.BindGroupEntry, 0, len(constants)+len(views))
	for _, c := range constants {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(c.Binding),
			Buffer:  c.Buffer.(*uploadBuffer).native.(*wgpu.Buffer),
			Offset:  uint64(c.Offset),
			Size:    uint64(c.Size),
		})
	}
	for i, v := range views {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding:     uint32(len(constants) + i),
			TextureView: v.native.(*wgpu.TextureView),
		})
	}
	return entries
}

func (b *wgpuRendererBackendImpl) Submit(lists []*commandList) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushBuffers(lists)

	var bindGroups []*wgpu.BindGroup
	defer func() {
		for _, bg := range bindGroups {
			bg.Release()
		}
	}()
	createBindGroup := func(p pipeline.Pipeline, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   p.Pass().String(),
			Layout:  p.BindGroupLayouts()[0],
			Entries: entries,
		})
		if err != nil {
			return nil, err
		}
		bindGroups = append(bindGroups, bg)
		return bg, nil
	}

	buffers := make([]*wgpu.CommandBuffer, 0, len(lists))
	defer func() {
		for _, cb := range buffers {
			cb.Release()
		}
	}()

	for _, l := range lists {
		encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: l.label})
		if err != nil {
			return err
		}

		var renderPass *wgpu.RenderPassEncoder
		for i := range l.commands {
			cmd := &l.commands[i]
			switch cmd.kind {
			case commandTransition:
				// WebGPU derives barriers from usage; the recorded state only guards validation.

			case commandBeginRenderPass:
				p := b.pipelines[cmd.pass]
				bg, err := createBindGroup(p, bindGroupEntries(cmd.constants))
				if err != nil {
					encoder.Release()
					return err
				}
				renderPass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
					Label: cmd.pass.String(),
					ColorAttachments: []wgpu.RenderPassColorAttachment{{
						View:    cmd.color.native.(*wgpu.TextureView),
						LoadOp:  wgpu.LoadOpClear,
						StoreOp: wgpu.StoreOpStore,
						ClearValue: wgpu.Color{
							R: float64(cmd.clearColor[0]),
							G: float64(cmd.clearColor[1]),
							B: float64(cmd.clearColor[2]),
							A: float64(cmd.clearColor[3]),
						},
					}},
					DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
						View:            cmd.depth.native.(*wgpu.TextureView),
						DepthLoadOp:     wgpu.LoadOpClear,
						DepthStoreOp:    wgpu.StoreOpStore,
						DepthClearValue: cmd.clearDepth,
					},
				})
				renderPass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))
				renderPass.SetBindGroup(0, bg, nil)

			case commandDraw:
				m := cmd.mesh.(*mesh).native.(*wgpuMesh)
				renderPass.SetVertexBuffer(0, m.vertex, 0, wgpu.WholeSize)
				renderPass.SetIndexBuffer(m.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
				renderPass.DrawIndexed(uint32(cmd.mesh.IndexCount()), 1, 0, 0, uint32(cmd.object))

			case commandEndRenderPass:
				renderPass.End()
				renderPass.Release()
				renderPass = nil

			case commandDispatch:
				p := b.pipelines[cmd.pass]
				views := append(append([]View(nil), cmd.reads...), cmd.writes...)
				bg, err := createBindGroup(p, bindGroupEntries(cmd.constants, views...))
				if err != nil {
					encoder.Release()
					return err
				}
				wg := p.Shader(shader.ShaderTypeCompute).WorkgroupSize()
				computePass := encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: cmd.pass.String()})
				computePass.SetPipeline(p.Pipeline().(*wgpu.ComputePipeline))
				computePass.SetBindGroup(0, bg, nil)
				computePass.DispatchWorkgroups(
					(uint32(cmd.width)+wg[0]-1)/wg[0],
					(uint32(cmd.height)+wg[1]-1)/wg[1],
					1,
				)
				computePass.End()
				computePass.Release()
			}
		}

		cb, err := encoder.Finish(nil)
		encoder.Release()
		if err != nil {
			return fmt.Errorf("renderer: finishing %s: %w", l.label, err)
		}
		buffers = append(buffers, cb)
	}

	b.queue.Submit(buffers...)
	return nil
}

func (b *wgpuRendererBackendImpl) Signal(value uint64) {
	f := b.fence
	b.queue.OnSubmittedWorkDone(func(status wgpu.QueueWorkDoneStatus) {
		if status != wgpu.QueueWorkDoneStatusSuccess {
			f.Abandon(fmt.Errorf("queue work done status %d at fence value %d", status, value))
			return
		}
		f.Signal(value)
	})
}

func (b *wgpuRendererBackendImpl) SetFence(f fence.Fence) {
	b.fence = f
}

func (b *wgpuRendererBackendImpl) FenceOptions() []fence.FenceBuilderOption {
	return []fence.FenceBuilderOption{
		fence.WithPoller(func() { b.device.Poll(false, nil) }, time.Millisecond),
	}
}

func (b *wgpuRendererBackendImpl) ReadImage(ctx context.Context, img *imageBase, channel int) (*common.FloatImage, error) {
	b.mu.Lock()
	width, height := img.desc.Width, img.desc.Height
	bpp := img.desc.Format.BytesPerTexel()
	bytesPerRow := common.AlignUp(width*bpp, 256)
	size := uint64(bytesPerRow * height)

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: img.desc.Label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	aspect := wgpu.TextureAspectAll
	if img.desc.Format == FormatDepth32Float {
		aspect = wgpu.TextureAspectDepthOnly
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: img.native.(*wgpu.Texture), Aspect: aspect},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{BytesPerRow: uint32(bytesPerRow), RowsPerImage: uint32(height)},
		},
		&wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	cb, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	b.queue.Submit(cb)
	cb.Release()

	mapped := make(chan wgpu.BufferMapAsyncStatus, 1)
	err = staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapped <- status
	})
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for waiting := true; waiting; {
		b.device.Poll(false, nil)
		select {
		case status := <-mapped:
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("renderer: mapping readback of %q: status %d", img.desc.Label, status)
			}
			waiting = false
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("renderer: reading %q: %w", img.desc.Label, ctx.Err())
		}
	}

	raw := staging.GetMappedRange(0, uint(size))
	out := &common.FloatImage{Width: width, Height: height, Pix: make([]float32, width*height)}
	for y := 0; y < height; y++ {
		row := raw[y*bytesPerRow:]
		for x := 0; x < width; x++ {
			out.Pix[y*width+x] = decodeChannel(img.desc.Format, row[x*bpp:], channel)
		}
	}
	staging.Unmap()
	return out, nil
}

// decodeChannel reads one channel of a texel.
func decodeChannel(f Format, texel []byte, channel int) float32 {
	switch f {
	case FormatRGBA16Float:
		return float16.Frombits(binary.LittleEndian.Uint16(texel[channel*2:])).Float32()
	case FormatRGBA8Unorm:
		return float32(texel[channel]) / 255
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(texel[channel*4:]))
}

func (b *wgpuRendererBackendImpl) Present(v View) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil || b.presentPipeline == nil {
		return ErrNoSurface
	}
	if v.Image.Format() == FormatDepth32Float {
		return fmt.Errorf("%w: depth images cannot be presented", ErrIncompatibleView)
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTexture.Release()
	target, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer target.Release()

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Present",
		Layout: b.presentLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding:     0,
			TextureView: v.native.(*wgpu.TextureView),
		}},
	})
	if err != nil {
		return err
	}
	defer bg.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	blit := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{A: 1},
		}},
	})
	blit.SetPipeline(b.presentPipeline)
	blit.SetBindGroup(0, bg, nil)
	blit.Draw(3, 1, 0, 0)
	blit.End()
	blit.Release()

	cb, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(cb)
	cb.Release()
	b.surface.Present()
	return nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.presentPipeline != nil {
		b.presentPipeline.Release()
		b.presentLayout.Release()
		b.presentPipeline = nil
	}
	if b.surface != nil {
		b.surface.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}

// mergeBindGroupLayouts combines vertex and fragment shader bind group layout descriptors into
// a single set of descriptors per group. When both shaders declare the same group, their entries
// are merged by binding number. If both shaders declare the same binding, the visibility flags
// are OR'd together so the binding is accessible from both stages.
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader, keyed by group index
//   - fragmentLayouts: bind group layout descriptors from the fragment shader, keyed by group index
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					// same binding in both stages, OR the visibility
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
