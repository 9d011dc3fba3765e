package frame_resource

import "fmt"

// DirtyState counts the frame slots that still hold stale constants for one entity. It moves from
// Clean to Propagating(frames) on every mutation and back down one step per frame the entity is
// copied, so each change reaches every slot exactly once.
//
// A mutation resets the count instead of incrementing it, and the count never goes negative.
// DirtyState is not safe for concurrent use; the owning entity guards it with its own lock and
// must read its constants under the same lock that Consume runs under.
type DirtyState struct {
	frames  int
	pending int
}

// NewDirtyState returns a state that is Propagating(frames), so a new entity reaches every slot.
//
// Parameters:
//   - frames: the number of frame slots in flight
//
// Returns:
//   - DirtyState: the state
func NewDirtyState(frames int) DirtyState {
	if frames < 1 {
		panic(fmt.Sprintf("frame_resource: NewDirtyState requires at least one frame, got %d", frames))
	}
	return DirtyState{frames: frames, pending: frames}
}

// MarkDirty records a mutation.
func (d *DirtyState) MarkDirty() {
	d.pending = d.frames
}

// Pending returns the number of slots still to be written.
func (d *DirtyState) Pending() int {
	return d.pending
}

// IsClean reports whether every slot holds the current constants.
func (d *DirtyState) IsClean() bool {
	return d.pending == 0
}

// Frames returns the slot count the state propagates across.
func (d *DirtyState) Frames() int {
	return d.frames
}

// Consume records that the current slot received the constants. It reports false, and leaves the
// state unchanged, when the entity was already clean.
func (d *DirtyState) Consume() bool {
	if d.pending == 0 {
		return false
	}
	d.pending--
	return true
}
