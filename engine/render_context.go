package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/scene"
	"github.com/Carmen-Shannon/oxy-ssao/engine/ssao"
)

// Frame is what one recorded and submitted frame produced.
type Frame struct {
	// Slot is the index of the frame slot the frame was recorded into.
	Slot int

	// FenceValue is the value the fence reaches once the GPU finished the frame.
	FenceValue uint64

	// Update counts the constant blocks the scene wrote into the slot.
	Update scene.UpdateStats

	// Output is the SSAO result of the frame.
	Output ssao.Output
}

// RenderContext is everything a frame touches: the renderer, the frame ring, the camera, the scene and
// the SSAO passes. It is created by the engine and handed to callbacks instead of living in globals.
type RenderContext struct {
	mu *sync.Mutex

	Renderer renderer.Renderer
	Ring     frame_resource.FrameRing
	Camera   camera.Camera
	Scene    scene.Scene
	SSAO     ssao.SSAO

	width, height int
}

// Size returns the full-resolution extent frames are recorded at.
func (rc *RenderContext) Size() (width, height int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.width, rc.height
}

// Frame records and submits one frame: acquire the next slot, propagate dirty constants into it,
// write the pass constants, record the SSAO passes and commit.
//
// Parameters:
//   - ctx: bounds the wait for the slot
//   - totalTime: seconds since the engine started
//   - deltaTime: seconds since the previous frame
//
// Returns:
//   - Frame: the submitted frame
//   - error: the first acquisition, update, recording or submission error
func (rc *RenderContext) Frame(ctx context.Context, totalTime, deltaTime float32) (Frame, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	slot, err := rc.Ring.AcquireNextSlot(ctx)
	if err != nil {
		return Frame{}, err
	}
	stats, err := rc.Scene.Update(slot)
	if err != nil {
		return Frame{}, rc.abandon(slot, err)
	}
	pc := rc.Camera.PassConstants(rc.width, rc.height, totalTime, deltaTime)
	if err := slot.Pass().Write(0, pc.Marshal()); err != nil {
		return Frame{}, rc.abandon(slot, err)
	}
	out, err := rc.SSAO.Record(slot, rc.Camera, rc.Scene.Opaque())
	if err != nil {
		return Frame{}, rc.abandon(slot, err)
	}
	fenceValue, err := rc.Ring.Commit()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Slot: slot.Index(), FenceValue: fenceValue, Update: stats, Output: out}, nil
}

// abandon commits the slot anyway so the ring advances, and returns the original error. The partly
// recorded list is still closed and submitted, since the ring cannot skip a fence value.
func (rc *RenderContext) abandon(slot frame_resource.FrameSlot, cause error) error {
	if _, err := rc.Ring.Commit(); err != nil {
		return errors.Join(fmt.Errorf("engine: frame on slot %d: %w", slot.Index(), cause), err)
	}
	return fmt.Errorf("engine: frame on slot %d: %w", slot.Index(), cause)
}

// Resize waits for in-flight frames, then recreates the SSAO targets, reconfigures the surface and
// updates the camera aspect.
//
// Parameters:
//   - ctx: bounds the wait
//   - width, height: the new extent in pixels
//
// Returns:
//   - error: the SSAO resize error
func (rc *RenderContext) Resize(ctx context.Context, width, height int) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if width <= 0 || height <= 0 {
		// Minimised windows report a zero framebuffer.
		common.Logger().Debug("ignoring empty resize", "width", width, "height", height)
		return nil
	}
	if err := rc.SSAO.Resize(ctx, width, height); err != nil {
		return err
	}
	rc.Renderer.Resize(width, height)
	rc.Camera.SetAspect(float32(width) / float32(height))
	rc.width, rc.height = width, height
	return nil
}

// Release waits for the ring, then frees the SSAO passes and the renderer.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - error: the ring wait error; resources are freed regardless
func (rc *RenderContext) Release(ctx context.Context) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	err := rc.Ring.Release(ctx)
	rc.SSAO.Release()
	rc.Renderer.Release()
	return err
}
