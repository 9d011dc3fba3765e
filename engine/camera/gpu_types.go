package camera

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"
)

// GPUPassConstantsSource is the canonical WGSL definition of the PassConstants struct.
// Matches GPUPassConstants layout exactly (496 bytes).
//
//go:embed assets/pass_constants.wgsl
var GPUPassConstantsSource string

// GPUPassConstants is the GPU-aligned per-pass constant block written into every frame slot.
// Matches the WGSL PassConstants struct layout exactly (see GPUPassConstantsSource).
// All matrices are column-major, the layout WGSL mat4x4 expects.
type GPUPassConstants struct {
	View                [16]float32 // offset   0
	InvView             [16]float32 // offset  64
	Proj                [16]float32 // offset 128
	InvProj             [16]float32 // offset 192
	ViewProj            [16]float32 // offset 256
	ProjTex             [16]float32 // offset 320: NDCToTexture * Proj
	ViewProjTex         [16]float32 // offset 384: NDCToTexture * Proj * View
	EyePosition         [3]float32  // offset 448
	_pad0               float32     // offset 460
	RenderTargetSize    [2]float32  // offset 464
	InvRenderTargetSize [2]float32  // offset 472
	NearZ               float32     // offset 480
	FarZ                float32     // offset 484
	TotalTime           float32     // offset 488
	DeltaTime           float32     // offset 492
}

// Size returns the size of the GPUPassConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (496)
func (g *GPUPassConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// floats lists every field in declaration order, padding included.
func (g *GPUPassConstants) floats() []*float32 {
	out := make([]*float32, 0, g.Size()/4)
	for _, m := range []*[16]float32{&g.View, &g.InvView, &g.Proj, &g.InvProj, &g.ViewProj, &g.ProjTex, &g.ViewProjTex} {
		for i := range m {
			out = append(out, &m[i])
		}
	}
	out = append(out, &g.EyePosition[0], &g.EyePosition[1], &g.EyePosition[2], &g._pad0)
	out = append(out, &g.RenderTargetSize[0], &g.RenderTargetSize[1], &g.InvRenderTargetSize[0], &g.InvRenderTargetSize[1])
	out = append(out, &g.NearZ, &g.FarZ, &g.TotalTime, &g.DeltaTime)
	return out
}

// Marshal serializes the GPUPassConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUPassConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i, f := range g.floats() {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(*f))
	}
	return buf
}

// Unmarshal decodes a block previously produced by Marshal.
//
// Parameters:
//   - buf: at least Size() bytes
//
// Returns:
//   - error: an error if buf is too short
func (g *GPUPassConstants) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("camera: pass constants need %d bytes, got %d", g.Size(), len(buf))
	}
	for i, f := range g.floats() {
		*f = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}
