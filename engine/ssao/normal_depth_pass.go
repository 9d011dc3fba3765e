package ssao

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/scene"
)

// NormalClear is the value the normal target is cleared to. Covered texels are written with w = 1,
// so a zero w marks texels no geometry covered.
var NormalClear = [4]float32{0, 0, 1, 0}

// PassState is the recording state of the normal/depth pass.
type PassState int

const (
	// PassStateIdle means no recording is in progress and both targets are readable.
	PassStateIdle PassState = iota

	// PassStateTransitioningToWritable means the targets are being moved into their attachment states.
	PassStateTransitioningToWritable

	// PassStateRendering means the raster pass is open.
	PassStateRendering

	// PassStateTransitioningToReadable means the targets are being moved back to ShaderRead.
	PassStateTransitioningToReadable
)

func (s PassState) String() string {
	switch s {
	case PassStateIdle:
		return "Idle"
	case PassStateTransitioningToWritable:
		return "TransitioningToWritable"
	case PassStateRendering:
		return "Rendering"
	case PassStateTransitioningToReadable:
		return "TransitioningToReadable"
	}
	return fmt.Sprintf("ssao.PassState(%d)", int(s))
}

// GBuffer is the view-space normal target and the shared depth buffer, with the shader-read views
// the compute passes bind.
type GBuffer struct {
	Normal     renderer.Image
	Depth      renderer.SharedImage
	NormalView renderer.ViewHandle
	DepthView  renderer.ViewHandle
}

// normalDepthPass is the implementation of the NormalDepthPass interface.
type normalDepthPass struct {
	mu *sync.Mutex

	r       renderer.Renderer
	state   PassState
	observe func(PassState)

	width, height int
	gbuffer       GBuffer
	colorTarget   renderer.ViewHandle
	depthTarget   renderer.ViewHandle
}

// NormalDepthPass rasterises opaque render items into a full-resolution view-space normal target and
// the shared depth buffer. Every Record walks Idle, TransitioningToWritable, Rendering,
// TransitioningToReadable and back to Idle, recording an explicit barrier at each edge.
type NormalDepthPass interface {
	// State returns the recording state. It is Idle between calls to Record.
	State() PassState

	// Width returns the target width in texels.
	Width() int

	// Height returns the target height in texels.
	Height() int

	// GBuffer returns the targets and their shader-read views.
	//
	// Returns:
	//   - GBuffer: the current targets, replaced by Resize
	GBuffer() GBuffer

	// Record draws the enabled items into the targets.
	//
	// Parameters:
	//   - list: the open command list of the frame
	//   - slot: supplies the pass constants and the object array
	//   - items: the opaque items, drawn in order
	//
	// Returns:
	//   - error: ErrPassState when called re-entrantly, or the first recording error
	Record(list renderer.CommandList, slot frame_resource.FrameSlot, items []scene.RenderItem) error

	// Resize releases the targets and their views and creates new ones.
	//
	// Parameters:
	//   - width, height: the new full-resolution extent
	//
	// Returns:
	//   - error: an error if allocation fails
	Resize(width, height int) error

	// Release frees the views and drops the pass's reference to the depth buffer.
	Release()
}

var _ NormalDepthPass = &normalDepthPass{}

// NewNormalDepthPass creates the normal target and the shared depth buffer.
//
// Parameters:
//   - r: the renderer
//   - width, height: the full-resolution extent
//
// Returns:
//   - NormalDepthPass: the pass, Idle
//   - error: an error if allocation fails
func NewNormalDepthPass(r renderer.Renderer, width, height int) (NormalDepthPass, error) {
	p := &normalDepthPass{mu: &sync.Mutex{}, r: r}
	if err := p.allocate(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *normalDepthPass) State() PassState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *normalDepthPass) Width() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width
}

func (p *normalDepthPass) Height() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

func (p *normalDepthPass) GBuffer() GBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gbuffer
}

func (p *normalDepthPass) Record(list renderer.CommandList, slot frame_resource.FrameSlot, items []scene.RenderItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PassStateIdle {
		return fmt.Errorf("%w: normal/depth pass is %v", ErrPassState, p.state)
	}
	if p.gbuffer.Normal == nil {
		return ErrReleased
	}

	p.setState(PassStateTransitioningToWritable)
	if err := transition(list, p.gbuffer.Normal, pass.StateRenderTarget); err != nil {
		return p.abort(err)
	}
	if err := transition(list, p.gbuffer.Depth, pass.StateDepthWrite); err != nil {
		return p.abort(err)
	}

	p.setState(PassStateRendering)
	err := list.BeginRenderPass(renderer.RenderPassDescriptor{
		Pass:       pass.NormalDepth,
		Color:      p.colorTarget,
		Depth:      p.depthTarget,
		ClearColor: NormalClear,
		ClearDepth: 1,
		Constants:  []renderer.ConstantBinding{slot.Pass().Binding(0), slot.Objects().Binding(1)},
	})
	if err != nil {
		return p.abort(err)
	}
	drawn := 0
	for _, it := range items {
		if !it.Enabled() || it.ObjectIndex() < 0 {
			continue
		}
		if it.ObjectIndex() >= slot.Objects().Count() {
			_ = list.EndRenderPass()
			return p.abort(fmt.Errorf("%w: %q has object index %d, slot holds %d", renderer.ErrOutOfRange,
				it.Name(), it.ObjectIndex(), slot.Objects().Count()))
		}
		if err := list.DrawIndexed(it.Mesh(), it.ObjectIndex()); err != nil {
			_ = list.EndRenderPass()
			return p.abort(err)
		}
		drawn++
	}
	if err := list.EndRenderPass(); err != nil {
		return p.abort(err)
	}

	p.setState(PassStateTransitioningToReadable)
	if err := transition(list, p.gbuffer.Normal, pass.StateShaderRead); err != nil {
		return p.abort(err)
	}
	if err := transition(list, p.gbuffer.Depth, pass.StateShaderRead); err != nil {
		return p.abort(err)
	}
	p.setState(PassStateIdle)
	common.Logger().Debug("normal/depth pass recorded", "slot", slot.Index(), "items", drawn)
	return nil
}

func (p *normalDepthPass) setState(s PassState) {
	p.state = s
	if p.observe != nil {
		p.observe(s)
	}
}

// abort returns the pass to Idle so the next frame can record again.
func (p *normalDepthPass) abort(err error) error {
	state := p.state
	p.setState(PassStateIdle)
	return fmt.Errorf("ssao: normal/depth pass failed while %v: %w", state, err)
}

func (p *normalDepthPass) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != PassStateIdle {
		return fmt.Errorf("%w: resize while %v", ErrPassState, p.state)
	}
	p.free()
	return p.allocate(width, height)
}

func (p *normalDepthPass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free()
}

// allocate creates the targets and views. The caller holds mu, except during construction.
func (p *normalDepthPass) allocate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: normal/depth targets %dx%d", renderer.ErrInvalidDescriptor, width, height)
	}
	normal, err := p.r.CreateImage(renderer.ImageDescriptor{
		Label:  "ssao normal map",
		Width:  width,
		Height: height,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.UsageRenderTarget | renderer.UsageSampled,
	})
	if err != nil {
		return err
	}
	depthImage, err := p.r.CreateImage(renderer.ImageDescriptor{
		Label:  "ssao depth buffer",
		Width:  width,
		Height: height,
		Format: renderer.FormatDepth32Float,
		Usage:  renderer.UsageDepth | renderer.UsageSampled,
	})
	if err != nil {
		normal.Release()
		return err
	}
	depth := renderer.NewSharedImage(depthImage)

	views := p.r.Views()
	handles := make([]renderer.ViewHandle, 0, 4)
	for _, v := range []struct {
		img  renderer.Image
		kind renderer.ViewKind
		role pass.Role
	}{
		{normal, renderer.ViewKindRenderTarget, pass.RoleNormalMap},
		{depth, renderer.ViewKindDepthTarget, pass.RoleDepth},
		{normal, renderer.ViewKindShaderRead, pass.RoleNormalMap},
		{depth, renderer.ViewKindShaderRead, pass.RoleDepth},
	} {
		h, err := views.Allocate(v.img, v.kind, v.role)
		if err != nil {
			freeViews(views, handles...)
			normal.Release()
			depth.Release()
			return err
		}
		handles = append(handles, h)
	}

	p.width, p.height = width, height
	p.colorTarget, p.depthTarget = handles[0], handles[1]
	p.gbuffer = GBuffer{Normal: normal, Depth: depth, NormalView: handles[2], DepthView: handles[3]}
	return nil
}

// free releases the views and the targets. The caller holds mu.
func (p *normalDepthPass) free() {
	if p.gbuffer.Normal == nil {
		return
	}
	freeViews(p.r.Views(), p.colorTarget, p.depthTarget, p.gbuffer.NormalView, p.gbuffer.DepthView)
	p.gbuffer.Normal.Release()
	p.gbuffer.Depth.Release()
	p.gbuffer = GBuffer{}
	p.colorTarget, p.depthTarget = renderer.ViewHandle{}, renderer.ViewHandle{}
}

// transition records a barrier from the image's current state.
func transition(list renderer.CommandList, img renderer.Image, after pass.State) error {
	return list.Transition(img, img.State(), after)
}

// freeViews frees every valid handle, logging the ones the heap rejects.
func freeViews(views renderer.ViewHeap, handles ...renderer.ViewHandle) {
	for _, h := range handles {
		if !h.Valid() {
			continue
		}
		if err := views.Free(h); err != nil {
			common.Logger().Warn("freeing ssao view", "handle", h, "err", err)
		}
	}
}
