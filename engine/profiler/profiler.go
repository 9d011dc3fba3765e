package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
)

// Stats is one reporting window of the profiler.
type Stats struct {
	// FPS is the number of ticks per second over the window.
	FPS float64

	// Stalls is the number of frame slot acquisitions that had to wait for the GPU.
	Stalls int

	// StallTotal is the summed wait time of those acquisitions.
	StallTotal time.Duration

	// StallMax is the longest single wait.
	StallMax time.Duration

	// HeapMB is the live heap in MiB.
	HeapMB float64

	// AllocRateMB is the allocation rate in MiB per second.
	AllocRateMB float64

	// GCCount is the cumulative number of collections.
	GCCount uint32

	// MaxPause is the longest GC pause since the previous window.
	MaxPause time.Duration
}

// Profiler tracks frame rate, fence stalls and memory statistics for performance monitoring.
// Outputs stats to the package logger at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	readMem        bool
	lastGCCount    uint32
	lastTotalAlloc uint64

	stalls     int
	stallTotal time.Duration
	stallMax   time.Duration
	last       Stats
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		now:            time.Now,
		updateInterval: time.Second,
		readMem:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// ObserveWait records how long a frame slot acquisition waited on the fence. Its signature matches
// frame_resource.WithWaitObserver.
//
// Parameters:
//   - slot: the slot index that was waited for
//   - waited: the time spent blocked
func (p *Profiler) ObserveWait(slot int, waited time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stalls++
	p.stallTotal += waited
	p.stallMax = max(p.stallMax, waited)
}

// Last returns the most recently reported window.
func (p *Profiler) Last() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - Stats: the window just closed, zero when nothing was reported
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() (Stats, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	s := Stats{
		FPS:        float64(p.frameCount) / elapsed.Seconds(),
		Stalls:     p.stalls,
		StallTotal: p.stallTotal,
		StallMax:   p.stallMax,
	}
	if p.readMem {
		p.fillMemory(&s, elapsed)
	}

	common.Logger().Info("profiler",
		"fps", s.FPS,
		"stalls", s.Stalls,
		"stallTotal", s.StallTotal,
		"stallMax", s.StallMax,
		"heapMB", s.HeapMB,
		"allocRateMB", s.AllocRateMB,
		"gc", s.GCCount,
		"maxPause", s.MaxPause)

	p.frameCount = 0
	p.lastTime = currentTime
	p.stalls, p.stallTotal, p.stallMax = 0, 0, 0
	p.last = s
	return s, true
}

func (p *Profiler) fillMemory(s *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	gcCount := p.memStats.NumGC
	start := p.lastGCCount
	if gcCount-start > 256 {
		start = gcCount - 256
	}
	for i := start; i < gcCount; i++ {
		s.MaxPause = max(s.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
	}
	s.GCCount = gcCount
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
