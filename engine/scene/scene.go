package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/material"
)

var (
	// ErrSceneFull is returned by Add when every object index is taken.
	ErrSceneFull = errors.New("scene: object capacity exhausted")

	// ErrAlreadyAdded is returned by Add for an item that belongs to a scene.
	ErrAlreadyAdded = errors.New("scene: item already in a scene")

	// ErrNotInScene is returned by Remove for an item the scene does not hold.
	ErrNotInScene = errors.New("scene: item not in scene")
)

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.RWMutex

	name       string
	frameCount int
	capacity   int

	items     []RenderItem
	registry  map[uint64]RenderItem
	nextID    uint64
	freeIndex []int

	materials []material.Material
	tracker   DirtyObjectTracker
}

// Scene holds the opaque render items of one view and the materials they reference, and keeps
// their constants current in every frame slot.
type Scene interface {
	// Name returns the scene name.
	Name() string

	// FrameCount returns the number of frame slots items propagate across.
	FrameCount() int

	// ObjectCapacity returns the number of object indices available.
	ObjectCapacity() int

	// Add assigns each item an ID and a stable object index, and marks it dirty for every slot.
	//
	// Parameters:
	//   - items: the items to add
	//
	// Returns:
	//   - error: ErrSceneFull or ErrAlreadyAdded, items before the failing one stay added
	Add(items ...RenderItem) error

	// Remove drops an item and returns its object index to the free list.
	//
	// Parameters:
	//   - item: the item to remove
	//
	// Returns:
	//   - error: ErrNotInScene when the item is not held by this scene
	Remove(item RenderItem) error

	// Item looks an item up by ID.
	//
	// Parameters:
	//   - id: the item ID
	//
	// Returns:
	//   - RenderItem: the item, or nil
	Item(id uint64) RenderItem

	// Items returns every item in insertion order.
	Items() []RenderItem

	// Opaque returns the enabled items in insertion order, the draw list of the normal/depth pass.
	Opaque() []RenderItem

	// AddMaterial registers a material for propagation.
	//
	// Parameters:
	//   - m: the material
	AddMaterial(m material.Material)

	// Materials returns the registered materials.
	Materials() []material.Material

	// Len returns the number of items.
	Len() int

	// Update copies every pending item and material into slot.
	//
	// Parameters:
	//   - slot: the frame slot acquired for the current frame
	//
	// Returns:
	//   - UpdateStats: the number of blocks written
	//   - error: a region write error
	Update(slot frame_resource.FrameSlot) (UpdateStats, error)
}

var _ Scene = &scene{}

// NewScene creates an empty scene.
//
// Parameters:
//   - name: the scene name
//   - frameCount: the number of frame slots in flight
//   - objectCapacity: the number of elements in each slot's object region
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, frameCount, objectCapacity int, options ...SceneBuilderOption) Scene {
	if frameCount < 1 {
		panic("scene: NewScene requires at least one frame")
	}
	if objectCapacity < 1 {
		panic("scene: NewScene requires a positive object capacity")
	}
	s := &scene{
		mu:         &sync.RWMutex{},
		name:       name,
		frameCount: frameCount,
		capacity:   objectCapacity,
		registry:   make(map[uint64]RenderItem),
		nextID:     1,
		freeIndex:  make([]int, 0, objectCapacity),
	}
	for i := objectCapacity - 1; i >= 0; i-- {
		s.freeIndex = append(s.freeIndex, i)
	}
	for _, option := range options {
		option(s)
	}
	if s.tracker == nil {
		s.tracker = NewDirtyObjectTracker()
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) FrameCount() int {
	return s.frameCount
}

func (s *scene) ObjectCapacity() int {
	return s.capacity
}

func (s *scene) Add(items ...RenderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if err := s.insert(it); err != nil {
			return err
		}
	}
	return nil
}

// insert attaches one item. The caller holds the write lock.
func (s *scene) insert(it RenderItem) error {
	if it.ID() != 0 {
		return fmt.Errorf("%w: %q has ID %d", ErrAlreadyAdded, it.Name(), it.ID())
	}
	if len(s.freeIndex) == 0 {
		return fmt.Errorf("%w: %d items", ErrSceneFull, len(s.items))
	}
	index := s.freeIndex[len(s.freeIndex)-1]
	s.freeIndex = s.freeIndex[:len(s.freeIndex)-1]

	it.attach(s.nextID, index, s.frameCount)
	s.registry[s.nextID] = it
	s.items = append(s.items, it)
	s.nextID++
	return nil
}

func (s *scene) Remove(item RenderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := item.ID()
	if held, ok := s.registry[id]; !ok || held != item {
		return fmt.Errorf("%w: %q", ErrNotInScene, item.Name())
	}
	delete(s.registry, id)
	for i, it := range s.items {
		if it == item {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.freeIndex = append(s.freeIndex, item.ObjectIndex())
	item.detach()
	return nil
}

func (s *scene) Item(id uint64) RenderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Items() []RenderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]RenderItem(nil), s.items...)
}

func (s *scene) Opaque() []RenderItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RenderItem, 0, len(s.items))
	for _, it := range s.items {
		if it.Enabled() {
			out = append(out, it)
		}
	}
	return out
}

func (s *scene) AddMaterial(m material.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials = append(s.materials, m)
}

func (s *scene) Materials() []material.Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]material.Material(nil), s.materials...)
}

func (s *scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *scene) Update(slot frame_resource.FrameSlot) (UpdateStats, error) {
	stats, err := s.tracker.Update(slot, s.Items(), s.Materials())
	if err != nil {
		return stats, err
	}
	if stats.Objects > 0 || stats.Materials > 0 {
		common.Logger().Debug("scene constants copied", "scene", s.name, "slot", slot.Index(), "objects", stats.Objects, "materials", stats.Materials)
	}
	return stats, nil
}
