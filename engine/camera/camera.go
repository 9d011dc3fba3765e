package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
)

type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix              [16]float32
	projectionMatrix        [16]float32
	viewProjectionMatrix    [16]float32
	inverseViewMatrix       [16]float32
	inverseProjectionMatrix [16]float32
}

// Camera defines the interface for the camera system.
// The camera holds a look-at pose and perspective settings and keeps its view and projection
// matrices current whenever either changes. It produces the per-pass constant block every frame.
type Camera interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - x, y, z: target components
	Target() (x, y, z float32)

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// InverseProjectionMatrix returns the inverse of the current projection matrix as 16 floats
	// (column-major). The ambient pass uses it to rebuild view-space positions from depth.
	//
	// Returns:
	//   - [16]float32: the inverse projection matrix
	InverseProjectionMatrix() [16]float32

	// AmbientTransform returns the matrix taking world space to the ambient map's texture space,
	// NDCToTexture * Proj * View. Consumers use it to sample the ambient map for a world position.
	//
	// Returns:
	//   - [16]float32: the world-to-texture matrix
	AmbientTransform() [16]float32

	// PassConstants packs the camera state into the per-pass constant block.
	//
	// Parameters:
	//   - width, height: the full render target size in pixels
	//   - totalTime: seconds since start
	//   - deltaTime: seconds since the previous frame
	//
	// Returns:
	//   - GPUPassConstants: the packed block
	PassConstants(width, height int, totalTime, deltaTime float32) GPUPassConstants

	// LookAt moves the camera and aims it at target.
	//
	// Parameters:
	//   - px, py, pz: the new position
	//   - tx, ty, tz: the new target
	LookAt(px, py, pz, tx, ty, tz float32)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetClip sets the near and far clipping plane distances and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance
	//   - far: far plane distance
	SetClip(near, far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at (0, 0, 5) looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 5},
		up:       [3]float32{0, 1, 0},
		fov:      45.0 * (math.Pi / 180.0), // radians
		aspect:   1.0,
		near:     0.1,
		far:      100.0,
	}
	for _, option := range options {
		option(c)
	}
	if c.near <= 0 || c.far <= c.near {
		panic("camera: NewCamera requires 0 < near < far")
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Target() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target[0], c.target[1], c.target[2]
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) AmbientTransform() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [16]float32
	toTex := common.NDCToTexture()
	common.Mul4(out[:], toTex[:], c.viewProjectionMatrix[:])
	return out
}

func (c *cameraImpl) PassConstants(width, height int, totalTime, deltaTime float32) GPUPassConstants {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := GPUPassConstants{
		View:             c.viewMatrix,
		InvView:          c.inverseViewMatrix,
		Proj:             c.projectionMatrix,
		InvProj:          c.inverseProjectionMatrix,
		ViewProj:         c.viewProjectionMatrix,
		EyePosition:      c.position,
		RenderTargetSize: [2]float32{float32(width), float32(height)},
		NearZ:            c.near,
		FarZ:             c.far,
		TotalTime:        totalTime,
		DeltaTime:        deltaTime,
	}
	if width > 0 && height > 0 {
		g.InvRenderTargetSize = [2]float32{1 / float32(width), 1 / float32(height)}
	}
	toTex := common.NDCToTexture()
	common.Mul4(g.ProjTex[:], toTex[:], c.projectionMatrix[:])
	common.Mul4(g.ViewProjTex[:], toTex[:], c.viewProjectionMatrix[:])
	return g
}

func (c *cameraImpl) LookAt(px, py, pz, tx, ty, tz float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{px, py, pz}
	c.target = [3]float32{tx, ty, tz}
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection, view-projection and inverse matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.position[0], c.position[1], c.position[2],
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2],
	)

	common.Perspective(c.projectionMatrix[:],
		c.fov, c.aspect, c.near, c.far,
	)

	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseViewMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}
