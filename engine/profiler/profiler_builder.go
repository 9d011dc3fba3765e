package profiler

import "time"

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval sets how often Tick reports. Values <= 0 are ignored.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces time.Now, for deterministic frame rates.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithMemoryStats toggles the runtime.ReadMemStats call of each report, which stops the world.
//
// Parameters:
//   - enabled: whether reports include heap and GC figures
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithMemoryStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}
