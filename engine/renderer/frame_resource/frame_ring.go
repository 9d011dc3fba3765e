package frame_resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/fence"
)

// DefaultFrameCount is the number of frames in flight when WithFrameCount is not given.
const DefaultFrameCount = 3

// defaultMaterialSize is the size of one packed material block.
const defaultMaterialSize = 112

var (
	// ErrNoCurrentSlot is returned by Commit before the first AcquireNextSlot or after a commit.
	ErrNoCurrentSlot = errors.New("frame_resource: no slot acquired")

	// ErrReleased is returned once the ring was released.
	ErrReleased = errors.New("frame_resource: ring released")
)

// frameRing is the implementation of the FrameRing interface.
type frameRing struct {
	mu *sync.Mutex

	renderer renderer.Renderer
	fence    fence.Fence
	slots    []*frameSlot

	next     int
	current  *frameSlot
	released bool

	frameCount  int
	layout      slotLayout
	waitTimeout time.Duration
	onWait      func(slot int, waited time.Duration)
}

// FrameRing rotates through a fixed number of frame slots so the CPU can record frame n+1 while
// the GPU still executes frame n. A slot is handed out again only after the GPU finished the
// work last committed from it, which keeps the CPU at most FrameCount()-1 frames ahead.
type FrameRing interface {
	// FrameCount returns the number of slots.
	FrameCount() int

	// Fence returns the fence slot reuse is gated on.
	Fence() fence.Fence

	// Slot returns the slot at index i.
	//
	// Parameters:
	//   - i: the slot index in [0, FrameCount())
	//
	// Returns:
	//   - FrameSlot: the slot
	Slot(i int) FrameSlot

	// Current returns the slot being recorded, nil between a commit and the next acquire.
	Current() FrameSlot

	// AcquireNextSlot makes the next slot in round-robin order current. When the GPU has not yet
	// reached the slot's recorded fence value the call blocks until it does; this is the only
	// point where frame recording waits on the GPU. The slot's command list is reset.
	//
	// Parameters:
	//   - ctx: bounds the wait, combined with the ring's wait timeout when one is configured
	//
	// Returns:
	//   - FrameSlot: the slot, free for CPU writes
	//   - error: fence.ErrWaitTimeout or fence.ErrDeviceLost when the wait failed
	AcquireNextSlot(ctx context.Context) (FrameSlot, error)

	// Commit closes and submits the current slot's command list, advances the fence and records
	// the new value into the slot.
	//
	// Returns:
	//   - uint64: the fence value that marks the slot's work complete
	//   - error: ErrNoCurrentSlot without a current slot, or a submission error
	Commit() (uint64, error)

	// Release waits for in-flight work and frees every slot's buffers.
	//
	// Parameters:
	//   - ctx: bounds the wait for in-flight work
	//
	// Returns:
	//   - error: the wait error, buffers are freed regardless
	Release(ctx context.Context) error
}

var _ FrameRing = &frameRing{}

// NewFrameRing creates the ring and allocates every slot's regions.
//
// Parameters:
//   - r: the renderer the regions and command lists are created on
//   - options: variadic list of FrameRingBuilderOption functions to configure the ring
//
// Returns:
//   - FrameRing: the ring, with no slot current
//   - error: an error if a buffer could not be created
func NewFrameRing(r renderer.Renderer, options ...FrameRingBuilderOption) (FrameRing, error) {
	if r == nil {
		panic("frame_resource: NewFrameRing requires a renderer")
	}
	fr := &frameRing{
		mu:         &sync.Mutex{},
		renderer:   r,
		fence:      r.Fence(),
		frameCount: DefaultFrameCount,
		layout: slotLayout{
			objects:      64,
			materials:    16,
			objectSize:   (&model.GPUObjectConstants{}).Size(),
			materialSize: defaultMaterialSize,
			passSize:     (&camera.GPUPassConstants{}).Size(),
			ssaoSize:     (&occlusion.GPUSSAOConstants{}).Size(),
		},
	}
	for _, opt := range options {
		opt(fr)
	}
	if fr.frameCount < 1 {
		panic(fmt.Sprintf("frame_resource: NewFrameRing requires at least one frame, got %d", fr.frameCount))
	}
	if fr.layout.objects < 1 || fr.layout.materials < 1 {
		panic("frame_resource: NewFrameRing requires positive region capacities")
	}

	for i := range fr.frameCount {
		s, err := newFrameSlot(r, i, fr.layout)
		if err != nil {
			for _, created := range fr.slots {
				created.release()
			}
			return nil, fmt.Errorf("frame_resource: creating slot %d: %w", i, err)
		}
		fr.slots = append(fr.slots, s)
	}
	common.Logger().Info("frame ring created", "frames", fr.frameCount, "objects", fr.layout.objects, "materials", fr.layout.materials)
	return fr, nil
}

func (fr *frameRing) FrameCount() int {
	return fr.frameCount
}

func (fr *frameRing) Fence() fence.Fence {
	return fr.fence
}

func (fr *frameRing) Slot(i int) FrameSlot {
	return fr.slots[i]
}

func (fr *frameRing) Current() FrameSlot {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fr.current == nil {
		return nil
	}
	return fr.current
}

func (fr *frameRing) AcquireNextSlot(ctx context.Context) (FrameSlot, error) {
	fr.mu.Lock()
	if fr.released {
		fr.mu.Unlock()
		return nil, ErrReleased
	}
	s := fr.slots[fr.next]
	fr.mu.Unlock()

	if target := s.fenceValue; target != 0 && fr.fence.CompletedValue() < target {
		if fr.waitTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, fr.waitTimeout)
			defer cancel()
		}
		start := time.Now()
		err := fr.fence.WaitUntil(ctx, target)
		waited := time.Since(start)
		if fr.onWait != nil {
			fr.onWait(s.index, waited)
		}
		if err != nil {
			return nil, fmt.Errorf("frame_resource: waiting for slot %d (fence %d): %w", s.index, target, err)
		}
		common.Logger().Debug("frame slot wait", "slot", s.index, "fence", target, "waited", waited)
	}

	if err := s.list.Reset(); err != nil {
		return nil, err
	}

	fr.mu.Lock()
	fr.current = s
	fr.next = (fr.next + 1) % fr.frameCount
	fr.mu.Unlock()
	return s, nil
}

func (fr *frameRing) Commit() (uint64, error) {
	fr.mu.Lock()
	s := fr.current
	fr.current = nil
	fr.mu.Unlock()
	if s == nil {
		return 0, ErrNoCurrentSlot
	}

	if !s.list.Closed() {
		if err := s.list.Close(); err != nil {
			return 0, err
		}
	}
	if err := fr.renderer.Submit(s.list); err != nil {
		return 0, fmt.Errorf("frame_resource: submitting slot %d: %w", s.index, err)
	}
	s.fenceValue = fr.fence.Advance()
	return s.fenceValue, nil
}

func (fr *frameRing) Release(ctx context.Context) error {
	fr.mu.Lock()
	if fr.released {
		fr.mu.Unlock()
		return nil
	}
	fr.released = true
	fr.mu.Unlock()

	var err error
	if issued := fr.fence.IssuedValue(); issued > 0 {
		err = fr.fence.WaitUntil(ctx, issued)
	}
	for _, s := range fr.slots {
		s.release()
	}
	return err
}
