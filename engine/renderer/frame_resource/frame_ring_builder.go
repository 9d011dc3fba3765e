package frame_resource

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
)

// FrameRingBuilderOption is a functional option used to configure a FrameRing during construction.
type FrameRingBuilderOption func(*frameRing)

// WithFrameCount sets the number of frames in flight.
//
// Parameters:
//   - n: the slot count, at least one
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the slot count
func WithFrameCount(n int) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.frameCount = n
	}
}

// WithObjectCapacity sets the number of object constant blocks per slot.
//
// Parameters:
//   - n: the capacity
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the object capacity
func WithObjectCapacity(n int) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.layout.objects = n
	}
}

// WithMaterialLayout sets the number and size of material constant blocks per slot.
//
// Parameters:
//   - n: the capacity
//   - elementSize: the size of one packed material
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the material layout
func WithMaterialLayout(n, elementSize int) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.layout.materials = n
		fr.layout.materialSize = elementSize
	}
}

// WithWaitTimeout bounds every slot wait. Zero, the default, waits as long as the caller's context allows.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the wait timeout
func WithWaitTimeout(d time.Duration) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.waitTimeout = d
	}
}

// WithWaitObserver registers a callback invoked after every slot wait with its duration.
//
// Parameters:
//   - fn: the callback
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the observer
func WithWaitObserver(fn func(slot int, waited time.Duration)) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.onWait = fn
	}
}

// WithFence gates slot reuse on f instead of the renderer's fence.
//
// Parameters:
//   - f: the fence
//
// Returns:
//   - FrameRingBuilderOption: a function that sets the fence
func WithFence(f fence.Fence) FrameRingBuilderOption {
	return func(fr *frameRing) {
		fr.fence = f
	}
}
