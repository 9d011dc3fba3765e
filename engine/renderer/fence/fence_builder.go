package fence

import "time"

// FenceBuilderOption is a functional option applied to a fence during construction via NewFence.
type FenceBuilderOption func(*fenceImpl)

// WithLabel sets the debug label reported in logs and errors.
//
// Parameters:
//   - label: the fence label
//
// Returns:
//   - FenceBuilderOption: a function that applies the label option to a fence
func WithLabel(label string) FenceBuilderOption {
	return func(f *fenceImpl) {
		f.label = label
	}
}

// WithInitialValue starts the fence at the given completed value.
//
// Parameters:
//   - value: both the issued and completed starting value
//
// Returns:
//   - FenceBuilderOption: a function that applies the initial value option to a fence
func WithInitialValue(value uint64) FenceBuilderOption {
	return func(f *fenceImpl) {
		f.completed = value
	}
}

// WithPoller installs a function that WaitUntil calls periodically while blocked. Backends whose
// completion callbacks only fire during a device poll use this to make progress.
//
// Parameters:
//   - poll: the function to call while waiting
//   - interval: how often to call it; zero keeps the one millisecond default
//
// Returns:
//   - FenceBuilderOption: a function that applies the poller option to a fence
func WithPoller(poll func(), interval time.Duration) FenceBuilderOption {
	return func(f *fenceImpl) {
		f.poll = poll
		if interval > 0 {
			f.pollInterval = interval
		}
	}
}
