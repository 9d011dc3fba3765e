package frame_resource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
)

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSoftwareWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Release)
	return r
}

// delayedFence completes each value delay after it was advanced, in order, like a GPU queue.
type delayedFence struct {
	fence.Fence
	queue chan uint64
	wg    sync.WaitGroup
}

func newDelayedFence(t *testing.T, delay time.Duration) *delayedFence {
	t.Helper()
	d := &delayedFence{queue: make(chan uint64, 64)}
	d.Fence = fence.NewFence(func(v uint64) { d.queue <- v }, fence.WithLabel("delayed"))
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for v := range d.queue {
			time.Sleep(delay)
			d.Signal(v)
		}
	}()
	t.Cleanup(func() {
		close(d.queue)
		d.wg.Wait()
	})
	return d
}

func TestAcquireNeverReusesBusySlot(t *testing.T) {
	const frames = 3
	f := newDelayedFence(t, 5*time.Millisecond)
	ring, err := NewFrameRing(newTestRenderer(t), WithFrameCount(frames), WithFence(f))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for frame := range 12 {
		slot, err := ring.AcquireNextSlot(ctx)
		if err != nil {
			t.Fatalf("frame %d: AcquireNextSlot() error = %v", frame, err)
		}
		if slot.Index() != frame%frames {
			t.Errorf("frame %d: got slot %d, want %d", frame, slot.Index(), frame%frames)
		}
		if done := f.CompletedValue(); slot.FenceValue() > done {
			t.Fatalf("frame %d: slot %d still busy (fence %d, completed %d)", frame, slot.Index(), slot.FenceValue(), done)
		}
		if ahead := f.IssuedValue() - f.CompletedValue(); ahead > frames-1 {
			t.Fatalf("frame %d: CPU is %d frames ahead", frame, ahead)
		}
		if _, err := ring.Commit(); err != nil {
			t.Fatalf("frame %d: Commit() error = %v", frame, err)
		}
		if ring.Current() != nil {
			t.Error("Current() after Commit is not nil")
		}
	}
	if err := ring.Release(ctx); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestAcquireWaitTimeout(t *testing.T) {
	stuck := fence.NewFence(func(uint64) {})
	waits := 0
	ring, err := NewFrameRing(newTestRenderer(t),
		WithFrameCount(1),
		WithFence(stuck),
		WithWaitTimeout(20*time.Millisecond),
		WithWaitObserver(func(int, time.Duration) { waits++ }),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ring.AcquireNextSlot(context.Background()); err != nil {
		t.Fatalf("first AcquireNextSlot() error = %v", err)
	}
	if _, err := ring.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := ring.AcquireNextSlot(context.Background()); !errors.Is(err, fence.ErrWaitTimeout) {
		t.Errorf("AcquireNextSlot() on a stuck fence error = %v, want ErrWaitTimeout", err)
	}
	if waits != 1 {
		t.Errorf("observer saw %d waits, want 1", waits)
	}
}

func TestAcquireDeviceLost(t *testing.T) {
	lost := fence.NewFence(func(uint64) {})
	ring, err := NewFrameRing(newTestRenderer(t), WithFrameCount(1), WithFence(lost))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = ring.AcquireNextSlot(context.Background())
	_, _ = ring.Commit()
	lost.Abandon(errors.New("adapter removed"))
	if _, err := ring.AcquireNextSlot(context.Background()); !errors.Is(err, fence.ErrDeviceLost) {
		t.Errorf("AcquireNextSlot() after Abandon error = %v, want ErrDeviceLost", err)
	}
}

func TestCommitWithoutSlot(t *testing.T) {
	ring, err := NewFrameRing(newTestRenderer(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ring.Commit(); !errors.Is(err, ErrNoCurrentSlot) {
		t.Errorf("Commit() error = %v, want ErrNoCurrentSlot", err)
	}
	if ring.FrameCount() != DefaultFrameCount {
		t.Errorf("FrameCount() = %d, want %d", ring.FrameCount(), DefaultFrameCount)
	}
}

func TestSlotRegions(t *testing.T) {
	ring, err := NewFrameRing(newTestRenderer(t), WithFrameCount(2), WithObjectCapacity(5), WithMaterialLayout(3, 112))
	if err != nil {
		t.Fatal(err)
	}
	s := ring.Slot(1)

	tests := []struct {
		name                  string
		region                ConstantRegion
		count, stride, offset int
	}{
		{"objects", s.Objects(), 5, 144, 0},
		{"materials", s.Materials(), 3, 112, 768},
		{"pass", s.Pass(), 1, 512, 0},
		{"ssao", s.SSAO(), 1, 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.region
			if r.Count() != tt.count || r.Stride() != tt.stride || r.Offset() != tt.offset {
				t.Errorf("count, stride, offset = %d, %d, %d, want %d, %d, %d", r.Count(), r.Stride(), r.Offset(), tt.count, tt.stride, tt.offset)
			}
			if r.Offset()%RegionAlignment != 0 {
				t.Errorf("Offset() = %d is not aligned", r.Offset())
			}
			if end := r.Offset() + r.Size(); end > r.Buffer().Size() {
				t.Errorf("region ends at %d past buffer size %d", end, r.Buffer().Size())
			}
		})
	}
	if s.Objects().Buffer() == ring.Slot(0).Objects().Buffer() {
		t.Error("slots share an objects buffer")
	}
}

func TestRegionWrite(t *testing.T) {
	ring, err := NewFrameRing(newTestRenderer(t), WithFrameCount(1), WithObjectCapacity(2))
	if err != nil {
		t.Fatal(err)
	}
	objects := ring.Slot(0).Objects()

	if err := objects.Write(1, []byte{7, 7, 7, 7}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := objects.Buffer().Bytes(objects.Offset()+objects.Stride(), 4)
	if err != nil || got[0] != 7 || got[3] != 7 {
		t.Errorf("element 1 bytes = %v, %v", got, err)
	}
	if err := objects.Write(2, []byte{1}); !errors.Is(err, renderer.ErrOutOfRange) {
		t.Errorf("Write(2) error = %v, want ErrOutOfRange", err)
	}
	if err := objects.Write(0, make([]byte, objects.ElementSize()+1)); !errors.Is(err, renderer.ErrOutOfRange) {
		t.Errorf("oversized Write() error = %v, want ErrOutOfRange", err)
	}
	b := objects.ElementBinding(1, 1)
	if b.Offset != objects.Offset()+objects.Stride() || b.Size != objects.ElementSize() {
		t.Errorf("ElementBinding() = %+v", b)
	}
}
