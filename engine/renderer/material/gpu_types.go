package material

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUMaterialConstantsSource is the canonical WGSL definition of the MaterialConstants struct.
// Matches GPUMaterialConstants layout exactly (112 bytes).
//
//go:embed assets/material_constants.wgsl
var GPUMaterialConstantsSource string

// GPUMaterialConstants is the per-material block stored at a material's stable index in the
// material region of a frame slot.
type GPUMaterialConstants struct {
	DiffuseAlbedo   [4]float32  // offset  0: RGBA albedo
	FresnelR0       [3]float32  // offset 16: reflectance at normal incidence
	Roughness       float32     // offset 28
	MatTransform    [16]float32 // offset 32: texture coordinate transform, column-major
	DiffuseMapIndex uint32      // offset 96
	NormalMapIndex  uint32      // offset 100
	_pad            [2]uint32   // offset 104: padding to 112 bytes
}

// Size returns the size of the GPUMaterialConstants struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (112)
func (g *GPUMaterialConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterialConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (g *GPUMaterialConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.DiffuseAlbedo[i]))
	}
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(g.FresnelR0[i]))
	}
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.Roughness))
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[32+i*4:], math.Float32bits(g.MatTransform[i]))
	}
	binary.LittleEndian.PutUint32(buf[96:], g.DiffuseMapIndex)
	binary.LittleEndian.PutUint32(buf[100:], g.NormalMapIndex)
	return buf
}
