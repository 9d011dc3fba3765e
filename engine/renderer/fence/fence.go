package fence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
)

var (
	// ErrWaitTimeout is returned by WaitUntil when the context ends before the target is reached.
	ErrWaitTimeout = errors.New("fence: wait timed out")

	// ErrDeviceLost is returned by WaitUntil once the fence has been abandoned.
	ErrDeviceLost = errors.New("fence: device lost")
)

// SignalFunc enqueues a GPU-side signal. The backend must call Fence.Signal(value) once all
// work submitted before the call has finished executing.
type SignalFunc func(value uint64)

// fenceImpl is the implementation of the Fence interface.
type fenceImpl struct {
	mu *sync.Mutex

	label     string
	issued    uint64
	completed uint64

	// changed is closed and replaced every time completed moves or the fence is abandoned.
	changed chan struct{}
	lost    error

	enqueue      SignalFunc
	poll         func()
	pollInterval time.Duration
}

// Fence is a monotonically increasing completion counter shared between the CPU and the GPU.
// The CPU advances it after submitting a frame; the GPU reports values as their work finishes.
// It is the only happens-before edge between CPU frame recording and GPU completion.
type Fence interface {
	// Label returns the fence's debug label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Advance increments the issued value and enqueues a GPU-side signal to that value after all
	// work submitted so far.
	//
	// Returns:
	//   - uint64: the newly issued value
	Advance() uint64

	// IssuedValue returns the highest value handed out by Advance.
	//
	// Returns:
	//   - uint64: the last issued value
	IssuedValue() uint64

	// CompletedValue returns the highest value the GPU has reported finished. Never blocks.
	//
	// Returns:
	//   - uint64: the completed value
	CompletedValue() uint64

	// WaitUntil blocks until CompletedValue() >= target. A context without a deadline waits
	// forever; a cancelled or expired context yields ErrWaitTimeout. An abandoned fence yields
	// ErrDeviceLost.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//   - target: the value to wait for
	//
	// Returns:
	//   - error: nil once the target completed, otherwise ErrWaitTimeout or ErrDeviceLost
	WaitUntil(ctx context.Context, target uint64) error

	// Signal records that the GPU finished all work up to value. Values lower than the current
	// completed value are ignored.
	//
	// Parameters:
	//   - value: the completed value reported by the GPU
	Signal(value uint64)

	// Abandon wakes every waiter with ErrDeviceLost wrapping cause. Later waits fail immediately.
	//
	// Parameters:
	//   - cause: the reason the device was lost
	Abandon(cause error)
}

var _ Fence = &fenceImpl{}

// NewFence creates a new Fence whose GPU-side signals are enqueued through enqueue.
//
// Parameters:
//   - enqueue: the backend hook that arranges for Signal to be called when prior work completes
//   - options: variadic list of FenceBuilderOption functions to configure the Fence
//
// Returns:
//   - Fence: a new Fence starting at zero
func NewFence(enqueue SignalFunc, options ...FenceBuilderOption) Fence {
	if enqueue == nil {
		panic("fence: NewFence requires a signal function")
	}
	f := &fenceImpl{
		mu:           &sync.Mutex{},
		label:        "fence",
		changed:      make(chan struct{}),
		enqueue:      enqueue,
		pollInterval: time.Millisecond,
	}
	for _, opt := range options {
		opt(f)
	}
	f.issued = f.completed
	return f
}

func (f *fenceImpl) Label() string {
	return f.label
}

func (f *fenceImpl) Advance() uint64 {
	f.mu.Lock()
	f.issued++
	value := f.issued
	f.mu.Unlock()

	f.enqueue(value)
	return value
}

func (f *fenceImpl) IssuedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued
}

func (f *fenceImpl) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *fenceImpl) Signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if value <= f.completed {
		if value < f.completed {
			common.Logger().Warn("fence signal regression ignored", "fence", f.label, "value", value, "completed", f.completed)
		}
		return
	}
	f.completed = value
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fenceImpl) Abandon(cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lost != nil {
		return
	}
	if cause == nil {
		f.lost = ErrDeviceLost
	} else {
		f.lost = fmt.Errorf("%w: %w", ErrDeviceLost, cause)
	}
	common.Logger().Error("fence abandoned", "fence", f.label, "err", f.lost)
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *fenceImpl) WaitUntil(ctx context.Context, target uint64) error {
	var tick <-chan time.Time
	if f.poll != nil {
		ticker := time.NewTicker(f.pollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		f.mu.Lock()
		completed, lost, changed := f.completed, f.lost, f.changed
		f.mu.Unlock()

		if completed >= target {
			return nil
		}
		if lost != nil {
			return lost
		}
		if f.poll != nil {
			f.poll()
		}

		select {
		case <-changed:
		case <-tick:
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for %d on %s (completed %d): %w", ErrWaitTimeout, target, f.label, completed, ctx.Err())
		}
	}
}
