package model

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPUVertexSource is the canonical WGSL definition of the VertexInput struct.
// Matches GPUVertex layout exactly (32 bytes).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Matches the WGSL VertexInput struct layout exactly (see GPUVertexSource).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space
	Normal   [3]float32 // offset 12: unit vertex normal
	TexCoord [2]float32 // offset 24: UV texture coordinate
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (32)
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Normal[0]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Normal[1]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Normal[2]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.TexCoord[0]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.TexCoord[1]))
	return buf
}

// GPUObjectConstantsSource is the canonical WGSL definition of the ObjectConstants struct.
// Matches GPUObjectConstants layout exactly (144 bytes).
//
//go:embed assets/object_constants.wgsl
var GPUObjectConstantsSource string

// GPUObjectConstants is the per-object block stored at a render item's stable index in the
// object region of a frame slot. Matrices are column-major.
type GPUObjectConstants struct {
	World         [16]float32 // offset   0: model-to-world transform
	TexTransform  [16]float32 // offset  64: texture coordinate transform
	MaterialIndex uint32      // offset 128: index into the material region
	_pad          [3]uint32   // offset 132: padding to 144 bytes
}

// Size returns the size of the GPUObjectConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUObjectConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUObjectConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUObjectConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.World[i]))
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.TexTransform[i]))
	}
	binary.LittleEndian.PutUint32(buf[128:], g.MaterialIndex)
	return buf
}

// Unmarshal decodes a block previously produced by Marshal.
//
// Parameters:
//   - buf: at least Size() bytes
//
// Returns:
//   - error: an error if buf is too short
func (g *GPUObjectConstants) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("model: object constants need %d bytes, got %d", g.Size(), len(buf))
	}
	for i := range 16 {
		g.World[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		g.TexTransform[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[64+i*4:]))
	}
	g.MaterialIndex = binary.LittleEndian.Uint32(buf[128:])
	return nil
}
