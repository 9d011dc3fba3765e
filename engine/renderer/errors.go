package renderer

import "errors"

var (
	// ErrInvalidDescriptor is returned when an image, pass or dispatch descriptor is malformed.
	ErrInvalidDescriptor = errors.New("renderer: invalid descriptor")

	// ErrOutOfRange is returned when a buffer access or object index does not fit.
	ErrOutOfRange = errors.New("renderer: out of range")

	// ErrInvalidTransition is returned when a transition does not start from the image's current
	// state or targets a state its usage forbids.
	ErrInvalidTransition = errors.New("renderer: invalid transition")

	// ErrResourceState is returned when a pass accesses an image that is not in the state the
	// access requires. It reports a missing barrier.
	ErrResourceState = errors.New("renderer: resource in wrong state")

	// ErrCommandListClosed is returned when recording into a closed list.
	ErrCommandListClosed = errors.New("renderer: command list closed")

	// ErrCommandListOpen is returned when submitting a list that was not closed.
	ErrCommandListOpen = errors.New("renderer: command list not closed")

	// ErrRenderPassActive is returned when an operation is not allowed inside a raster pass.
	ErrRenderPassActive = errors.New("renderer: render pass active")

	// ErrNoRenderPass is returned by draws and EndRenderPass outside a raster pass.
	ErrNoRenderPass = errors.New("renderer: no render pass")

	// ErrPipelineNotFound is returned when a pass runs before its pipeline was registered.
	ErrPipelineNotFound = errors.New("renderer: pipeline not registered")

	// ErrViewHeapExhausted is returned when every view slot is live.
	ErrViewHeapExhausted = errors.New("renderer: view heap exhausted")

	// ErrInvalidViewHandle is returned for zero, out of range, freed or stale view handles.
	ErrInvalidViewHandle = errors.New("renderer: invalid view handle")

	// ErrIncompatibleView is returned when a view kind does not match the image usage or the
	// way a pass binds it.
	ErrIncompatibleView = errors.New("renderer: incompatible view")

	// ErrNoSurface is returned by Present when the renderer was created without a surface.
	ErrNoSurface = errors.New("renderer: no surface")

	// ErrReleased is returned by every operation on a released renderer.
	ErrReleased = errors.New("renderer: released")
)
