package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/material"
)

// renderItem is the implementation of the RenderItem interface.
type renderItem struct {
	mu *sync.Mutex

	id          uint64
	name        string
	enabled     bool
	objectIndex int

	mesh     renderer.Mesh
	material material.Material

	position     [3]float32
	rotation     [3]float32
	scale        [3]float32
	world        [16]float32
	texTransform [16]float32

	dirty frame_resource.DirtyState
}

// RenderItem is one opaque draw: a mesh, the material it is shaded with and its transforms.
// The item owns a stable index into the object region of every frame slot; every setter marks the
// item dirty so its constants are copied into each in-flight slot exactly once.
type RenderItem interface {
	// ID returns the identifier assigned by the scene, zero before the item was added.
	ID() uint64

	// Name returns the debug name.
	Name() string

	// Enabled reports whether the item is drawn.
	Enabled() bool

	// ObjectIndex returns the item's element in the object region, -1 before the item was added.
	ObjectIndex() int

	// Mesh returns the geometry drawn.
	Mesh() renderer.Mesh

	// Material returns the material, or nil.
	Material() material.Material

	// World returns the model-to-world transform (column-major).
	World() [16]float32

	// TexTransform returns the texture coordinate transform (column-major).
	TexTransform() [16]float32

	// Pending returns the number of frame slots that still hold stale constants for the item.
	Pending() int

	// Constants packs the item for the object region.
	//
	// Returns:
	//   - model.GPUObjectConstants: the packed block
	Constants() model.GPUObjectConstants

	// TakeConstants packs the item and counts one slot as written, in a single step against
	// concurrent setters. A mutation made after the call marks the item dirty for every slot again.
	//
	// Returns:
	//   - model.GPUObjectConstants: the packed block
	//   - bool: false, with a zero block, when every slot is already current
	TakeConstants() (model.GPUObjectConstants, bool)

	// MarkDirty schedules the item to be copied into every slot again.
	MarkDirty()

	// SetEnabled sets whether the item is drawn.
	//
	// Parameters:
	//   - enabled: true to draw the item
	SetEnabled(enabled bool)

	// SetPosition moves the item and marks it dirty.
	//
	// Parameters:
	//   - x, y, z: the world position
	SetPosition(x, y, z float32)

	// SetRotation sets the Euler rotation (radians) and marks the item dirty.
	//
	// Parameters:
	//   - rx, ry, rz: the rotation angles
	SetRotation(rx, ry, rz float32)

	// SetScale sets the scale and marks the item dirty.
	//
	// Parameters:
	//   - sx, sy, sz: the scale factors
	SetScale(sx, sy, sz float32)

	// SetWorld replaces the world transform directly and marks the item dirty. Later calls to
	// SetPosition, SetRotation or SetScale rebuild it from their components.
	//
	// Parameters:
	//   - world: the column-major transform
	SetWorld(world [16]float32)

	// SetTexTransform sets the texture coordinate transform and marks the item dirty.
	//
	// Parameters:
	//   - t: the column-major transform
	SetTexTransform(t [16]float32)

	// SetMaterial assigns the material and marks the item dirty.
	//
	// Parameters:
	//   - m: the material
	SetMaterial(m material.Material)

	attach(id uint64, objectIndex int, frames int)
	detach()
}

var _ RenderItem = &renderItem{}

// NewRenderItem creates a render item at the origin with unit scale.
//
// Parameters:
//   - name: the debug name
//   - mesh: the geometry to draw
//   - options: variadic list of RenderItemBuilderOption functions to configure the item
//
// Returns:
//   - RenderItem: the item, not yet part of a scene
func NewRenderItem(name string, mesh renderer.Mesh, options ...RenderItemBuilderOption) RenderItem {
	if mesh == nil {
		panic("scene: NewRenderItem requires a mesh")
	}
	it := &renderItem{
		mu:          &sync.Mutex{},
		name:        name,
		enabled:     true,
		objectIndex: -1,
		mesh:        mesh,
		scale:       [3]float32{1, 1, 1},
	}
	common.Identity(it.texTransform[:])
	for _, opt := range options {
		opt(it)
	}
	it.rebuildWorld()
	return it
}

func (it *renderItem) ID() uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.id
}

func (it *renderItem) Name() string {
	return it.name
}

func (it *renderItem) Enabled() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.enabled
}

func (it *renderItem) ObjectIndex() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.objectIndex
}

func (it *renderItem) Mesh() renderer.Mesh {
	return it.mesh
}

func (it *renderItem) Material() material.Material {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.material
}

func (it *renderItem) World() [16]float32 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.world
}

func (it *renderItem) TexTransform() [16]float32 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.texTransform
}

func (it *renderItem) Pending() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.dirty.Pending()
}

func (it *renderItem) Constants() model.GPUObjectConstants {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.pack()
}

func (it *renderItem) TakeConstants() (model.GPUObjectConstants, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if !it.dirty.Consume() {
		return model.GPUObjectConstants{}, false
	}
	return it.pack(), true
}

func (it *renderItem) MarkDirty() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.markDirty()
}

func (it *renderItem) SetEnabled(enabled bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.enabled = enabled
}

func (it *renderItem) SetPosition(x, y, z float32) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.position = [3]float32{x, y, z}
	it.rebuildWorld()
	it.markDirty()
}

func (it *renderItem) SetRotation(rx, ry, rz float32) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.rotation = [3]float32{rx, ry, rz}
	it.rebuildWorld()
	it.markDirty()
}

func (it *renderItem) SetScale(sx, sy, sz float32) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.scale = [3]float32{sx, sy, sz}
	it.rebuildWorld()
	it.markDirty()
}

func (it *renderItem) SetWorld(world [16]float32) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.world = world
	it.markDirty()
}

func (it *renderItem) SetTexTransform(t [16]float32) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.texTransform = t
	it.markDirty()
}

func (it *renderItem) SetMaterial(m material.Material) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.material = m
	it.markDirty()
}

func (it *renderItem) attach(id uint64, objectIndex int, frames int) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.id = id
	it.objectIndex = objectIndex
	it.dirty = frame_resource.NewDirtyState(frames)
}

func (it *renderItem) detach() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.id = 0
	it.objectIndex = -1
	it.dirty = frame_resource.DirtyState{}
}

// markDirty is a no-op before the item joins a scene; attach starts it dirty for every slot.
func (it *renderItem) markDirty() {
	if it.dirty.Frames() > 0 {
		it.dirty.MarkDirty()
	}
}

// pack requires it.mu.
func (it *renderItem) pack() model.GPUObjectConstants {
	c := model.GPUObjectConstants{World: it.world, TexTransform: it.texTransform}
	if it.material != nil {
		c.MaterialIndex = uint32(it.material.Index())
	}
	return c
}

func (it *renderItem) rebuildWorld() {
	p, r, s := it.position, it.rotation, it.scale
	common.BuildModelMatrix(it.world[:], p[0], p[1], p[2], r[0], r[1], r[2], s[0], s[1], s[2])
}
