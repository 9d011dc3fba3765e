package scene

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

type fixture struct {
	r    renderer.Renderer
	ring frame_resource.FrameRing
	mesh renderer.Mesh
}

func newFixture(t *testing.T, frames, objects int) *fixture {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSoftwareWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Release)
	ring, err := frame_resource.NewFrameRing(r, frame_resource.WithFrameCount(frames), frame_resource.WithObjectCapacity(objects))
	if err != nil {
		t.Fatal(err)
	}
	mesh, err := r.CreateMesh(model.NewModel("quad", model.WithQuad(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{r: r, ring: ring, mesh: mesh}
}

// frame runs one acquire, update, commit cycle and returns what the update wrote.
func (f *fixture) frame(t *testing.T, s Scene) (frame_resource.FrameSlot, UpdateStats) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slot, err := f.ring.AcquireNextSlot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stats, err := s.Update(slot)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, err := f.ring.Commit(); err != nil {
		t.Fatal(err)
	}
	return slot, stats
}

func TestDirtyItemReachesEverySlotOnce(t *testing.T) {
	const frames = 3
	f := newFixture(t, frames, 8)
	s := NewScene("test", frames, 8)
	item := NewRenderItem("quad", f.mesh)
	if err := s.Add(item); err != nil {
		t.Fatal(err)
	}

	touched := map[int]bool{}
	for frame := range 6 {
		slot, stats := f.frame(t, s)
		want := 0
		if frame < frames {
			want = 1
			touched[slot.Index()] = true
		}
		if stats.Objects != want {
			t.Errorf("frame %d: wrote %d objects, want %d", frame, stats.Objects, want)
		}
	}
	if len(touched) != frames {
		t.Errorf("item reached %d distinct slots, want %d", len(touched), frames)
	}

	item.SetPosition(1, 2, 3)
	item.SetPosition(4, 5, 6)
	copies := 0
	for range 2 * frames {
		_, stats := f.frame(t, s)
		copies += stats.Objects
	}
	if copies != frames {
		t.Errorf("two mutations produced %d copies, want %d", copies, frames)
	}
	if got := item.Pending(); got != 0 {
		t.Errorf("Pending() = %d after propagation", got)
	}
}

// worldX reads the translation x of it from the object region of slot.
func worldX(t *testing.T, slot frame_resource.FrameSlot, it RenderItem) float32 {
	t.Helper()
	objects := slot.Objects()
	data, err := objects.Buffer().Bytes(objects.Offset()+it.ObjectIndex()*objects.Stride(), objects.ElementSize())
	if err != nil {
		t.Fatal(err)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[12*4:]))
}

// movingItem moves the wrapped item once, right after its first pack of a frame.
type movingItem struct {
	RenderItem
	moved atomic.Bool
}

func (m *movingItem) TakeConstants() (model.GPUObjectConstants, bool) {
	c, ok := m.RenderItem.TakeConstants()
	if ok && m.moved.CompareAndSwap(false, true) {
		m.SetPosition(9, 0, 0)
	}
	return c, ok
}

func TestMutationAfterPackReachesEverySlot(t *testing.T) {
	const frames = 3
	f := newFixture(t, frames, 2)
	s := NewScene("test", frames, 2)
	item := &movingItem{RenderItem: NewRenderItem("quad", f.mesh, WithPosition(1, 0, 0))}
	if err := s.Add(item); err != nil {
		t.Fatal(err)
	}

	slots := map[int]frame_resource.FrameSlot{}
	for range 2 * frames {
		slot, _ := f.frame(t, s)
		slots[slot.Index()] = slot
	}
	if got := item.Pending(); got != 0 {
		t.Fatalf("Pending() = %d after propagation", got)
	}
	for i, slot := range slots {
		if x := worldX(t, slot, item); x != 9 {
			t.Errorf("slot %d holds world x = %v, want 9", i, x)
		}
	}
}

func TestConcurrentMutationConverges(t *testing.T) {
	const frames = 3
	f := newFixture(t, frames, 4)
	s := NewScene("test", frames, 4)
	m := material.NewMaterial("stone", 0, frames)
	s.AddMaterial(m)
	item := NewRenderItem("quad", f.mesh, WithMaterial(m))
	if err := s.Add(item); err != nil {
		t.Fatal(err)
	}

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; !stop.Load(); i++ {
			item.SetPosition(float32(i%100), 0, 0)
			m.SetRoughness(float32(i%10) / 10)
		}
	}()
	for range 100 {
		f.frame(t, s)
	}
	stop.Store(true)
	wg.Wait()

	item.SetPosition(42, 0, 0)
	slots := map[int]frame_resource.FrameSlot{}
	for range frames {
		slot, _ := f.frame(t, s)
		slots[slot.Index()] = slot
	}
	if item.Pending() != 0 || m.Pending() != 0 {
		t.Fatalf("Pending() = %d item, %d material after %d quiet frames", item.Pending(), m.Pending(), frames)
	}
	for i, slot := range slots {
		if x := worldX(t, slot, item); x != 42 {
			t.Errorf("slot %d holds world x = %v, want 42", i, x)
		}
	}
}

func TestUpdateWritesWorldAtObjectIndex(t *testing.T) {
	f := newFixture(t, 1, 4)
	s := NewScene("test", 1, 4)
	a := NewRenderItem("a", f.mesh)
	b := NewRenderItem("b", f.mesh, WithPosition(7, 0, 0))
	if err := s.Add(a, b); err != nil {
		t.Fatal(err)
	}
	slot, _ := f.frame(t, s)

	objects := slot.Objects()
	data, err := objects.Buffer().Bytes(objects.Offset()+b.ObjectIndex()*objects.Stride(), objects.ElementSize())
	if err != nil {
		t.Fatal(err)
	}
	// Translation lives in the fourth column of the column-major world matrix.
	if x := math.Float32frombits(binary.LittleEndian.Uint32(data[12*4:])); x != 7 {
		t.Errorf("world[12] of %q = %v, want 7", b.Name(), x)
	}
}

func TestParallelPacking(t *testing.T) {
	const n = 10
	f := newFixture(t, 2, n)
	s := NewScene("test", 2, n, WithTracker(NewDirtyObjectTracker(WithPackWorkers(3), WithPackBatchSize(2))))
	for i := range n {
		if err := s.Add(NewRenderItem("item", f.mesh, WithPosition(float32(i), 0, 0))); err != nil {
			t.Fatal(err)
		}
	}
	slot, stats := f.frame(t, s)
	if stats.Objects != n {
		t.Fatalf("wrote %d objects, want %d", stats.Objects, n)
	}
	objects := slot.Objects()
	for _, it := range s.Items() {
		data, _ := objects.Buffer().Bytes(objects.Offset()+it.ObjectIndex()*objects.Stride(), objects.ElementSize())
		var got model.GPUObjectConstants
		if err := got.Unmarshal(data); err != nil {
			t.Fatal(err)
		}
		if got.World != it.World() {
			t.Errorf("object %d world mismatch", it.ObjectIndex())
		}
	}
}

func TestMaterialPropagation(t *testing.T) {
	const frames = 2
	f := newFixture(t, frames, 2)
	s := NewScene("test", frames, 2)
	m := material.NewMaterial("stone", 3, frames)
	s.AddMaterial(m)
	if err := s.Add(NewRenderItem("quad", f.mesh, WithMaterial(m))); err != nil {
		t.Fatal(err)
	}

	total := 0
	for range 4 {
		_, stats := f.frame(t, s)
		total += stats.Materials
	}
	if total != frames {
		t.Errorf("material copied %d times, want %d", total, frames)
	}
	if c := s.Items()[0].Constants(); c.MaterialIndex != 3 {
		t.Errorf("MaterialIndex = %d, want 3", c.MaterialIndex)
	}
}

func TestSceneAddRemove(t *testing.T) {
	f := newFixture(t, 1, 2)
	s := NewScene("test", 1, 2)
	a, b, c := NewRenderItem("a", f.mesh), NewRenderItem("b", f.mesh, WithEnabled(false)), NewRenderItem("c", f.mesh)

	if err := s.Add(a, b); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{"full", s.Add(c), ErrSceneFull},
		{"twice", s.Add(a), ErrAlreadyAdded},
		{"remove foreign", s.Remove(c), ErrNotInScene},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.wantErr) {
				t.Errorf("error = %v, want %v", tt.err, tt.wantErr)
			}
		})
	}

	if got := s.Opaque(); len(got) != 1 || got[0] != a {
		t.Errorf("Opaque() = %v, want only a", got)
	}
	freed := a.ObjectIndex()
	if err := s.Remove(a); err != nil {
		t.Fatal(err)
	}
	if a.ID() != 0 || a.ObjectIndex() != -1 {
		t.Errorf("removed item keeps ID %d, index %d", a.ID(), a.ObjectIndex())
	}
	if err := s.Add(c); err != nil {
		t.Fatal(err)
	}
	if c.ObjectIndex() != freed {
		t.Errorf("new item got index %d, want reused %d", c.ObjectIndex(), freed)
	}
	if s.Item(c.ID()) != c || s.Len() != 2 {
		t.Errorf("Item(%d) or Len() = %d wrong", c.ID(), s.Len())
	}
}
