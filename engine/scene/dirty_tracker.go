package scene

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/material"
)

// UpdateStats reports how many blocks one Update copied into a slot.
type UpdateStats struct {
	Objects   int
	Materials int
}

// dirtyObjectTracker is the implementation of the DirtyObjectTracker interface.
type dirtyObjectTracker struct {
	pool      worker.DynamicWorkerPool
	workers   int
	batchSize int
}

// DirtyObjectTracker copies the constants of dirty render items and materials into the current
// frame slot. Each entity is copied at its stable index and its dirty count is decremented once,
// so a change made while N frames are in flight reaches all N slots and then stops.
type DirtyObjectTracker interface {
	// Update writes every pending entity into slot.
	//
	// Parameters:
	//   - slot: the frame slot acquired for the current frame
	//   - items: the render items to consider
	//   - materials: the materials to consider
	//
	// Returns:
	//   - UpdateStats: the number of blocks written
	//   - error: a region write error; entities that were not written are marked dirty again
	Update(slot frame_resource.FrameSlot, items []RenderItem, materials []material.Material) (UpdateStats, error)
}

var _ DirtyObjectTracker = &dirtyObjectTracker{}

// NewDirtyObjectTracker creates a tracker that packs large batches on a worker pool.
//
// Parameters:
//   - options: variadic list of TrackerBuilderOption functions to configure the tracker
//
// Returns:
//   - DirtyObjectTracker: the tracker
func NewDirtyObjectTracker(options ...TrackerBuilderOption) DirtyObjectTracker {
	t := &dirtyObjectTracker{
		workers:   max(runtime.NumCPU()-1, 1),
		batchSize: 256,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.batchSize < 1 {
		t.batchSize = 1
	}
	t.pool = worker.NewDynamicWorkerPool(t.workers, 256, 1*time.Second)
	return t
}

func (t *dirtyObjectTracker) Update(slot frame_resource.FrameSlot, items []RenderItem, materials []material.Material) (UpdateStats, error) {
	var stats UpdateStats

	// Phase 1: take. Each item packs and consumes under its own lock, so a setter racing the
	// frame either lands before the pack or re-marks the item for every slot. Large sets are split
	// into batches on the pool, a WaitGroup is the barrier.
	packed := make([][]byte, len(items))
	take := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if c, ok := items[i].TakeConstants(); ok {
				packed[i] = c.Marshal()
			}
		}
	}
	if len(items) <= t.batchSize {
		take(0, len(items))
	} else {
		var wg sync.WaitGroup
		taskID := 0
		for lo := 0; lo < len(items); lo += t.batchSize {
			lo, hi := lo, min(lo+t.batchSize, len(items))
			wg.Add(1)
			t.pool.SubmitTask(worker.Task{
				ID: taskID,
				Do: func() (any, error) {
					defer wg.Done()
					take(lo, hi)
					return nil, nil
				},
			})
			taskID++
		}
		wg.Wait()
	}

	// Phase 2: serial copy into the slot. A failed write re-marks what was taken but not written.
	objects := slot.Objects()
	for i, it := range items {
		if packed[i] == nil {
			continue
		}
		if err := objects.Write(it.ObjectIndex(), packed[i]); err != nil {
			for _, rest := range items[i:] {
				rest.MarkDirty()
			}
			return stats, fmt.Errorf("scene: writing %q into slot %d: %w", it.Name(), slot.Index(), err)
		}
		stats.Objects++
	}

	matRegion := slot.Materials()
	for _, m := range materials {
		c, ok := m.TakeConstants()
		if !ok {
			continue
		}
		if err := matRegion.Write(m.Index(), c.Marshal()); err != nil {
			m.MarkDirty()
			return stats, fmt.Errorf("scene: writing material %q into slot %d: %w", m.Name(), slot.Index(), err)
		}
		stats.Materials++
	}
	return stats, nil
}
