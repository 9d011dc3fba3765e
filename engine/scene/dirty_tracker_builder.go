package scene

// TrackerBuilderOption is a functional option for configuring a DirtyObjectTracker.
type TrackerBuilderOption func(*dirtyObjectTracker)

// WithPackWorkers sets the number of workers that pack object constants. Defaults to
// runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - TrackerBuilderOption: option function to apply
func WithPackWorkers(n int) TrackerBuilderOption {
	return func(t *dirtyObjectTracker) {
		t.workers = max(n, 1)
	}
}

// WithPackBatchSize sets how many objects one pool task packs. Updates with at most this many dirty
// objects are packed on the calling goroutine.
//
// Parameters:
//   - n: the batch size
//
// Returns:
//   - TrackerBuilderOption: option function to apply
func WithPackBatchSize(n int) TrackerBuilderOption {
	return func(t *dirtyObjectTracker) {
		t.batchSize = n
	}
}
