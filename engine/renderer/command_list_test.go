package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/go-gl/mathgl/mgl32"
)

type listFixture struct {
	heap          *viewHeap
	list          *commandList
	normal, depth *imageBase
	ambient       *imageBase
	constants     []ConstantBinding

	normalTarget, depthTarget ViewHandle
	normalRead, depthRead     ViewHandle
	ambientRead, ambientWrite ViewHandle
}

func newListFixture(t *testing.T) *listFixture {
	t.Helper()
	f := &listFixture{
		heap:    newViewHeap(16, viewHooks{}),
		normal:  &imageBase{desc: ImageDescriptor{Label: "normal", Width: 8, Height: 8, Format: FormatRGBA16Float, Usage: UsageRenderTarget | UsageSampled}},
		depth:   &imageBase{desc: ImageDescriptor{Label: "depth", Width: 8, Height: 8, Format: FormatDepth32Float, Usage: UsageDepth | UsageSampled}},
		ambient: &imageBase{desc: ImageDescriptor{Label: "ambient", Width: 4, Height: 4, Format: FormatR32Float, Usage: UsageStorage | UsageSampled}},
	}
	f.list = newCommandList("test", f.heap, func(pass.ID) bool { return true })
	f.constants = []ConstantBinding{{Binding: 0, Buffer: newUploadBuffer("pass", BufferUsageUniform, 512), Offset: 0, Size: 496}}

	alloc := func(img Image, kind ViewKind, role pass.Role) ViewHandle {
		h, err := f.heap.Allocate(img, kind, role)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		return h
	}
	f.normalTarget = alloc(f.normal, ViewKindRenderTarget, pass.RoleNormalMap)
	f.depthTarget = alloc(f.depth, ViewKindDepthTarget, pass.RoleDepth)
	f.normalRead = alloc(f.normal, ViewKindShaderRead, pass.RoleNormalMap)
	f.depthRead = alloc(f.depth, ViewKindShaderRead, pass.RoleDepth)
	f.ambientRead = alloc(f.ambient, ViewKindShaderRead, pass.RoleAmbient0)
	f.ambientWrite = alloc(f.ambient, ViewKindStorage, pass.RoleAmbient0)
	return f
}

func (f *listFixture) renderPass() RenderPassDescriptor {
	return RenderPassDescriptor{Pass: pass.NormalDepth, Color: f.normalTarget, Depth: f.depthTarget, ClearDepth: 1, Constants: f.constants}
}

func TestTransitionTracksState(t *testing.T) {
	f := newListFixture(t)
	if err := f.list.Transition(f.normal, pass.StateUndefined, pass.StateRenderTarget); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if f.normal.State() != pass.StateRenderTarget {
		t.Errorf("State() = %v, want RenderTarget", f.normal.State())
	}

	tests := []struct {
		name          string
		img           Image
		before, after pass.State
	}{
		{"stale before", f.normal, pass.StateUndefined, pass.StateShaderRead},
		{"usage forbids storage", f.normal, pass.StateRenderTarget, pass.StateStorageWrite},
		{"depth image as render target", f.depth, pass.StateUndefined, pass.StateRenderTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.list.Transition(tt.img, tt.before, tt.after); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition() error = %v, want ErrInvalidTransition", err)
			}
		})
	}
	if f.list.Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.list.Len())
	}
}

func TestRenderPassRequiresAttachmentStates(t *testing.T) {
	f := newListFixture(t)
	if err := f.list.BeginRenderPass(f.renderPass()); !errors.Is(err, ErrResourceState) {
		t.Fatalf("BeginRenderPass() before transitions error = %v, want ErrResourceState", err)
	}

	_ = f.list.Transition(f.normal, pass.StateUndefined, pass.StateRenderTarget)
	_ = f.list.Transition(f.depth, pass.StateUndefined, pass.StateDepthWrite)
	if err := f.list.BeginRenderPass(f.renderPass()); err != nil {
		t.Fatalf("BeginRenderPass() error = %v", err)
	}
	if err := f.list.BeginRenderPass(f.renderPass()); !errors.Is(err, ErrRenderPassActive) {
		t.Errorf("nested BeginRenderPass() error = %v, want ErrRenderPassActive", err)
	}
	if err := f.list.Transition(f.ambient, pass.StateUndefined, pass.StateStorageWrite); !errors.Is(err, ErrRenderPassActive) {
		t.Errorf("Transition() inside a pass error = %v, want ErrRenderPassActive", err)
	}
	if err := f.list.Close(); !errors.Is(err, ErrRenderPassActive) {
		t.Errorf("Close() inside a pass error = %v, want ErrRenderPassActive", err)
	}
	if err := f.list.EndRenderPass(); err != nil {
		t.Fatalf("EndRenderPass() error = %v", err)
	}
	if err := f.list.EndRenderPass(); !errors.Is(err, ErrNoRenderPass) {
		t.Errorf("second EndRenderPass() error = %v, want ErrNoRenderPass", err)
	}
}

func TestDrawOutsideRenderPass(t *testing.T) {
	f := newListFixture(t)
	m := &mesh{model: model.NewModel("quad", model.WithQuad(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}))}
	if err := f.list.DrawIndexed(m, 0); !errors.Is(err, ErrNoRenderPass) {
		t.Errorf("DrawIndexed() error = %v, want ErrNoRenderPass", err)
	}
}

func TestDispatchChecksViews(t *testing.T) {
	f := newListFixture(t)
	_ = f.list.Transition(f.normal, pass.StateUndefined, pass.StateShaderRead)
	_ = f.list.Transition(f.depth, pass.StateUndefined, pass.StateShaderRead)

	desc := DispatchDescriptor{
		Pass:      pass.Ambient,
		Constants: f.constants,
		Reads:     []ViewHandle{f.normalRead, f.depthRead},
		Writes:    []ViewHandle{f.ambientWrite},
		Width:     4,
		Height:    4,
	}
	if err := f.list.Dispatch(desc); !errors.Is(err, ErrResourceState) {
		t.Fatalf("Dispatch() without the output barrier error = %v, want ErrResourceState", err)
	}

	_ = f.list.Transition(f.ambient, pass.StateUndefined, pass.StateStorageWrite)
	if err := f.list.Dispatch(desc); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(d *DispatchDescriptor)
		wantErr error
	}{
		{"read through a storage view", func(d *DispatchDescriptor) { d.Reads = []ViewHandle{f.ambientWrite} }, ErrIncompatibleView},
		{"stale handle", func(d *DispatchDescriptor) { d.Reads = []ViewHandle{{index: 0, generation: 7}} }, ErrInvalidViewHandle},
		{"empty grid", func(d *DispatchDescriptor) { d.Width = 0 }, ErrInvalidDescriptor},
		{"constants out of range", func(d *DispatchDescriptor) {
			d.Constants = []ConstantBinding{{Binding: 0, Buffer: f.constants[0].Buffer, Offset: 256, Size: 496}}
		}, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := desc
			tt.mutate(&d)
			if err := f.list.Dispatch(d); !errors.Is(err, tt.wantErr) {
				t.Errorf("Dispatch() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDispatchRejectsReadWriteAlias(t *testing.T) {
	f := newListFixture(t)
	// One image cannot be in both states at once, so the alias surfaces as a state error.
	_ = f.list.Transition(f.ambient, pass.StateUndefined, pass.StateStorageWrite)
	err := f.list.Dispatch(DispatchDescriptor{
		Pass:   pass.BlurHorizontal,
		Reads:  []ViewHandle{f.ambientRead},
		Writes: []ViewHandle{f.ambientWrite},
		Width:  4,
		Height: 4,
	})
	if !errors.Is(err, ErrResourceState) {
		t.Errorf("Dispatch() error = %v, want ErrResourceState", err)
	}
}

func TestDispatchRequiresPipeline(t *testing.T) {
	f := newListFixture(t)
	f.list.pipeline = func(id pass.ID) bool { return id != pass.BlurVertical }
	_ = f.list.Transition(f.ambient, pass.StateUndefined, pass.StateStorageWrite)
	err := f.list.Dispatch(DispatchDescriptor{Pass: pass.BlurVertical, Writes: []ViewHandle{f.ambientWrite}, Width: 1, Height: 1})
	if !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("Dispatch() error = %v, want ErrPipelineNotFound", err)
	}
}

func TestClosedListRejectsRecording(t *testing.T) {
	f := newListFixture(t)
	if err := f.list.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.list.Transition(f.normal, pass.StateUndefined, pass.StateRenderTarget); !errors.Is(err, ErrCommandListClosed) {
		t.Errorf("Transition() on a closed list error = %v, want ErrCommandListClosed", err)
	}
	if err := f.list.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if f.list.Closed() || f.list.Len() != 0 {
		t.Errorf("after Reset Closed() = %v, Len() = %d", f.list.Closed(), f.list.Len())
	}
	if err := f.list.Transition(f.normal, pass.StateUndefined, pass.StateRenderTarget); err != nil {
		t.Errorf("Transition() after Reset error = %v", err)
	}
}
