package frame_resource

import "testing"

func TestDirtyStateCopiesOncePerSlot(t *testing.T) {
	for _, frames := range []int{1, 2, 3} {
		d := NewDirtyState(frames)
		copies := 0
		for range 10 {
			if d.Consume() {
				copies++
			}
		}
		if copies != frames {
			t.Errorf("frames=%d: %d copies, want %d", frames, copies, frames)
		}
		if !d.IsClean() || d.Pending() != 0 {
			t.Errorf("frames=%d: Pending() = %d after propagation", frames, d.Pending())
		}
	}
}

func TestDirtyStateMarkResets(t *testing.T) {
	d := NewDirtyState(3)
	d.Consume()
	d.Consume()
	d.MarkDirty()
	d.MarkDirty()
	if d.Pending() != 3 {
		t.Errorf("Pending() after two marks = %d, want 3", d.Pending())
	}
}

func TestNewDirtyStatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewDirtyState(0) did not panic")
		}
	}()
	NewDirtyState(0)
}
