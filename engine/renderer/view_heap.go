package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
)

// ViewKind is the way a view exposes its image to a pass.
type ViewKind int

const (
	// ViewKindShaderRead exposes the image for reads.
	ViewKindShaderRead ViewKind = iota

	// ViewKindStorage exposes the image for compute writes.
	ViewKindStorage

	// ViewKindRenderTarget exposes the image as a colour attachment.
	ViewKindRenderTarget

	// ViewKindDepthTarget exposes the image as the depth attachment.
	ViewKindDepthTarget
)

func (k ViewKind) String() string {
	switch k {
	case ViewKindShaderRead:
		return "ShaderRead"
	case ViewKindStorage:
		return "Storage"
	case ViewKindRenderTarget:
		return "RenderTarget"
	case ViewKindDepthTarget:
		return "DepthTarget"
	}
	return fmt.Sprintf("ViewKind(%d)", int(k))
}

// usage returns the image usage the view kind requires.
func (k ViewKind) usage() Usage {
	switch k {
	case ViewKindStorage:
		return UsageStorage
	case ViewKindRenderTarget:
		return UsageRenderTarget
	case ViewKindDepthTarget:
		return UsageDepth
	default:
		return UsageSampled
	}
}

// state returns the image state a pass requires when accessing the image through the view.
func (k ViewKind) state() pass.State {
	switch k {
	case ViewKindStorage:
		return pass.StateStorageWrite
	case ViewKindRenderTarget:
		return pass.StateRenderTarget
	case ViewKindDepthTarget:
		return pass.StateDepthWrite
	default:
		return pass.StateShaderRead
	}
}

// ViewHandle is a typed reference into a ViewHeap. The zero value never resolves.
type ViewHandle struct {
	index      uint32
	generation uint32
}

// Valid reports whether the handle was issued by a heap. A valid handle may still be stale.
func (h ViewHandle) Valid() bool {
	return h.generation != 0
}

func (h ViewHandle) String() string {
	return fmt.Sprintf("view#%d.%d", h.index, h.generation)
}

// View is the resolved target of a ViewHandle.
type View struct {
	Image Image
	Kind  ViewKind
	Role  pass.Role

	native any
}

// viewHooks create and release the backend object behind a view.
type viewHooks struct {
	create  func(v *View) error
	release func(v *View)
}

type viewSlot struct {
	view       View
	generation uint32
	live       bool
}

// viewHeap is the implementation of the ViewHeap interface.
type viewHeap struct {
	mu    *sync.Mutex
	slots []viewSlot
	free  []uint32
	live  int
	hooks viewHooks
}

// ViewHeap hands out typed, range-checked handles to image views. A freed slot is reused with a new
// generation so handles to the old view are rejected.
type ViewHeap interface {
	// Allocate creates a view of img.
	//
	// Parameters:
	//   - img: the image to view
	//   - kind: how passes access the image through the view
	//   - role: what the image is used for
	//
	// Returns:
	//   - ViewHandle: the handle of the new view
	//   - error: ErrViewHeapExhausted when every slot is live, ErrIncompatibleView when the image's usage forbids the kind
	Allocate(img Image, kind ViewKind, role pass.Role) (ViewHandle, error)

	// Resolve looks up a handle.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - View: the view
	//   - error: ErrInvalidViewHandle when the handle is zero, out of range, freed or stale
	Resolve(h ViewHandle) (View, error)

	// Free releases the view. The image itself is not released.
	//
	// Parameters:
	//   - h: the handle
	//
	// Returns:
	//   - error: ErrInvalidViewHandle when the handle does not resolve
	Free(h ViewHandle) error

	// Capacity returns the number of slots.
	Capacity() int

	// Len returns the number of live views.
	Len() int
}

var _ ViewHeap = &viewHeap{}

func newViewHeap(capacity int, hooks viewHooks) *viewHeap {
	if capacity < 1 {
		panic("renderer: view heap capacity must be positive")
	}
	h := &viewHeap{
		mu:    &sync.Mutex{},
		slots: make([]viewSlot, capacity),
		free:  make([]uint32, 0, capacity),
		hooks: hooks,
	}
	for i := capacity - 1; i >= 0; i-- {
		h.free = append(h.free, uint32(i))
	}
	return h
}

func (h *viewHeap) Allocate(img Image, kind ViewKind, role pass.Role) (ViewHandle, error) {
	if img == nil {
		return ViewHandle{}, fmt.Errorf("%w: nil image", ErrIncompatibleView)
	}
	if !img.Usage().Has(kind.usage()) {
		return ViewHandle{}, fmt.Errorf("%w: %s view of %q needs usage %b, image has %b", ErrIncompatibleView, kind, img.Label(), kind.usage(), img.Usage())
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.free) == 0 {
		return ViewHandle{}, fmt.Errorf("%w: %d views live", ErrViewHeapExhausted, h.live)
	}
	index := h.free[len(h.free)-1]

	v := View{Image: img, Kind: kind, Role: role}
	if h.hooks.create != nil {
		if err := h.hooks.create(&v); err != nil {
			return ViewHandle{}, fmt.Errorf("renderer: creating %s view of %q: %w", kind, img.Label(), err)
		}
	}
	h.free = h.free[:len(h.free)-1]

	s := &h.slots[index]
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.view = v
	s.live = true
	h.live++
	return ViewHandle{index: index, generation: s.generation}, nil
}

func (h *viewHeap) Resolve(handle ViewHandle) (View, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.slot(handle)
	if err != nil {
		return View{}, err
	}
	return s.view, nil
}

func (h *viewHeap) Free(handle ViewHandle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.slot(handle)
	if err != nil {
		return err
	}
	if h.hooks.release != nil {
		h.hooks.release(&s.view)
	}
	s.view = View{}
	s.live = false
	h.live--
	h.free = append(h.free, handle.index)
	return nil
}

func (h *viewHeap) Capacity() int {
	return len(h.slots)
}

func (h *viewHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live
}

// releaseAll frees every live view.
func (h *viewHeap) releaseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.slots {
		s := &h.slots[i]
		if !s.live {
			continue
		}
		if h.hooks.release != nil {
			h.hooks.release(&s.view)
		}
		s.view = View{}
		s.live = false
		h.free = append(h.free, uint32(i))
	}
	h.live = 0
}

func (h *viewHeap) slot(handle ViewHandle) (*viewSlot, error) {
	if !handle.Valid() {
		return nil, fmt.Errorf("%w: zero handle", ErrInvalidViewHandle)
	}
	if int(handle.index) >= len(h.slots) {
		return nil, fmt.Errorf("%w: %s out of range (capacity %d)", ErrInvalidViewHandle, handle, len(h.slots))
	}
	s := &h.slots[handle.index]
	if !s.live || s.generation != handle.generation {
		return nil, fmt.Errorf("%w: %s is stale", ErrInvalidViewHandle, handle)
	}
	return s, nil
}
