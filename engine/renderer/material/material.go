package material

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/frame_resource"
)

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	name            string
	index           int
	diffuseAlbedo   [4]float32
	fresnelR0       [3]float32
	roughness       float32
	transform       [16]float32
	diffuseMapIndex uint32
	normalMapIndex  uint32
	dirty           frame_resource.DirtyState
}

// Material defines the interface for a render material: the surface constants a shading pass
// reads from the material region of the current frame slot.
//
// Every setter marks the material dirty, which schedules its constants to be copied into each
// in-flight frame slot exactly once.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// Index retrieves the material's stable position in the material region.
	//
	// Returns:
	//   - int: the constant buffer index
	Index() int

	// DiffuseAlbedo retrieves the RGBA albedo of the material.
	//
	// Returns:
	//   - [4]float32: the albedo
	DiffuseAlbedo() [4]float32

	// FresnelR0 retrieves the reflectance at normal incidence.
	//
	// Returns:
	//   - [3]float32: the reflectance
	FresnelR0() [3]float32

	// Roughness retrieves the roughness factor, 0 smooth to 1 fully rough.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// Transform retrieves the texture coordinate transform (column-major).
	//
	// Returns:
	//   - [16]float32: the transform
	Transform() [16]float32

	// TextureIndices retrieves the diffuse and normal map indices.
	//
	// Returns:
	//   - diffuse: the diffuse map index
	//   - normal: the normal map index
	TextureIndices() (diffuse, normal uint32)

	// Pending retrieves the number of frame slots that still hold stale constants.
	//
	// Returns:
	//   - int: the slots left to write
	Pending() int

	// Constants packs the material for upload.
	//
	// Returns:
	//   - GPUMaterialConstants: the packed block
	Constants() GPUMaterialConstants

	// TakeConstants packs the material and counts one slot as written, in a single step against
	// concurrent setters.
	//
	// Returns:
	//   - GPUMaterialConstants: the packed block
	//   - bool: false, with a zero block, when every slot is already current
	TakeConstants() (GPUMaterialConstants, bool)

	// MarkDirty schedules the material to be copied into every slot again.
	MarkDirty()

	// SetDiffuseAlbedo sets the albedo and marks the material dirty.
	//
	// Parameters:
	//   - albedo: the RGBA albedo
	SetDiffuseAlbedo(albedo [4]float32)

	// SetFresnelR0 sets the reflectance and marks the material dirty.
	//
	// Parameters:
	//   - r0: the reflectance at normal incidence
	SetFresnelR0(r0 [3]float32)

	// SetRoughness sets the roughness and marks the material dirty.
	//
	// Parameters:
	//   - roughness: the roughness factor
	SetRoughness(roughness float32)

	// SetTransform sets the texture coordinate transform and marks the material dirty.
	//
	// Parameters:
	//   - transform: the column-major transform
	SetTransform(transform [16]float32)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options. The material
// starts dirty for frameCount frames so its constants reach every frame slot.
//
// Parameters:
//   - name: the material identifier
//   - index: the stable index in the material region
//   - frameCount: the number of frame slots in flight
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(name string, index, frameCount int, options ...MaterialBuilderOption) Material {
	if index < 0 {
		panic("material: NewMaterial requires a non-negative index")
	}
	m := &material{
		mu:            &sync.Mutex{},
		name:          name,
		index:         index,
		diffuseAlbedo: [4]float32{1, 1, 1, 1},
		fresnelR0:     [3]float32{0.01, 0.01, 0.01},
		roughness:     1.0,
		transform:     [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		dirty:         frame_resource.NewDirtyState(frameCount),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Index() int {
	return m.index
}

func (m *material) DiffuseAlbedo() [4]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diffuseAlbedo
}

func (m *material) FresnelR0() [3]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fresnelR0
}

func (m *material) Roughness() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roughness
}

func (m *material) Transform() [16]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transform
}

func (m *material) TextureIndices() (diffuse, normal uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diffuseMapIndex, m.normalMapIndex
}

func (m *material) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty.Pending()
}

func (m *material) Constants() GPUMaterialConstants {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pack()
}

func (m *material) TakeConstants() (GPUMaterialConstants, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty.Consume() {
		return GPUMaterialConstants{}, false
	}
	return m.pack(), true
}

func (m *material) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty.MarkDirty()
}

func (m *material) SetDiffuseAlbedo(albedo [4]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffuseAlbedo = albedo
	m.dirty.MarkDirty()
}

func (m *material) SetFresnelR0(r0 [3]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fresnelR0 = r0
	m.dirty.MarkDirty()
}

func (m *material) SetRoughness(roughness float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roughness = roughness
	m.dirty.MarkDirty()
}

func (m *material) SetTransform(transform [16]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transform = transform
	m.dirty.MarkDirty()
}

// pack requires m.mu.
func (m *material) pack() GPUMaterialConstants {
	return GPUMaterialConstants{
		DiffuseAlbedo:   m.diffuseAlbedo,
		FresnelR0:       m.fresnelR0,
		Roughness:       m.roughness,
		MatTransform:    m.transform,
		DiffuseMapIndex: m.diffuseMapIndex,
		NormalMapIndex:  m.normalMapIndex,
	}
}
