package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window is the platform boundary of the engine: a drawable surface, its resize notifications and
// key presses. It satisfies renderer.Surface.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never opened
	Close() error

	// ProcessMessages runs the window message loop on the calling thread.
	// Blocks until the window is closed. Calls the update callback each iteration.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	mu *sync.Mutex

	title               string
	minWidth, minHeight int
	maxWidth, maxHeight int
	width, height       int
	internalWindow      any

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
}

var (
	_ Window           = &engineWindow{}
	_ renderer.Surface = &engineWindow{}
)

// NewWindow creates and opens a window with the specified options.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		mu:        &sync.Mutex{},
		title:     "oxy ssao",
		maxWidth:  3840,
		maxHeight: 2160,
		minWidth:  64,
		minHeight: 64,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if w.minWidth > w.maxWidth || w.minHeight > w.maxHeight {
		panic("window: NewWindow requires min size <= max size")
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("window: failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onKeyDown = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if ok := platformProcessMessages(w); !ok {
			break
		}
		w.mu.Lock()
		update := w.onUpdate
		w.mu.Unlock()
		if update != nil {
			update()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *engineWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

// resized stores the new framebuffer size and notifies the resize callback outside the lock.
func (w *engineWindow) resized(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	cb := w.onResize
	w.mu.Unlock()
	if cb != nil {
		cb(width, height)
	}
}

func (w *engineWindow) keyDown(key uint32) {
	w.mu.Lock()
	cb := w.onKeyDown
	w.mu.Unlock()
	if cb != nil {
		cb(key)
	}
}
