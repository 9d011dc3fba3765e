package occlusion

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUSSAOConstantsSource is the canonical WGSL definition of the SSAOConstants struct.
// Matches GPUSSAOConstants layout exactly (336 bytes).
//
//go:embed assets/ssao_constants.wgsl
var GPUSSAOConstantsSource string

// GPUSSAOConstants is the GPU-aligned constant block shared by the ambient and blur passes.
// Matches the WGSL SSAOConstants struct layout exactly (see GPUSSAOConstantsSource).
type GPUSSAOConstants struct {
	Offsets             [KernelSize][4]float32 // offset   0: probe offsets, w unused
	BlurWeights         [3][4]float32          // offset 224: taps -r..r, zero padded
	InvRenderTargetSize [2]float32             // offset 272: 1 / ambient map size
	NoiseScale          [2]float32             // offset 280: ambient map size / RandomMapSize
	OcclusionRadius     float32                // offset 288
	FadeStart           float32                // offset 292
	FadeEnd             float32                // offset 296
	SurfaceEpsilon      float32                // offset 300
	AccessPower         float32                // offset 304
	OcclusionAddend     float32                // offset 308
	NormalTolerance     float32                // offset 312
	DepthTolerance      float32                // offset 316
	BlurRadius          uint32                 // offset 320
	_pad                [3]uint32              // offset 324: padding to 336 bytes
}

// NewGPUSSAOConstants packs a config, kernel and blur weights for an ambient map of the given size.
//
// Parameters:
//   - c: the estimator configuration; disabled configs are packed with their no-op exponent and addend
//   - k: the sample kernel
//   - w: the blur weights
//   - ambientWidth, ambientHeight: the ambient map size in texels
//
// Returns:
//   - GPUSSAOConstants: the packed block
func NewGPUSSAOConstants(c Config, k SampleKernel, w BlurWeights, ambientWidth, ambientHeight int) GPUSSAOConstants {
	power, addend := c.Effective()
	g := GPUSSAOConstants{
		InvRenderTargetSize: [2]float32{1 / float32(ambientWidth), 1 / float32(ambientHeight)},
		NoiseScale:          [2]float32{float32(ambientWidth) / RandomMapSize, float32(ambientHeight) / RandomMapSize},
		OcclusionRadius:     c.OcclusionRadius,
		FadeStart:           c.FadeStart,
		FadeEnd:             c.FadeEnd,
		SurfaceEpsilon:      c.SurfaceEpsilon,
		AccessPower:         power,
		OcclusionAddend:     addend,
		NormalTolerance:     c.NormalTolerance,
		DepthTolerance:      c.DepthTolerance,
		BlurRadius:          uint32(w.Radius()),
	}
	for i := range k {
		g.Offsets[i] = [4]float32(k[i])
	}
	packed := w.packed()
	for i, v := range packed {
		g.BlurWeights[i/4][i%4] = v
	}
	return g
}

// Size returns the size of the GPUSSAOConstants struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (336)
func (g *GPUSSAOConstants) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSSAOConstants struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSSAOConstants) Marshal() []byte {
	buf := make([]byte, g.Size())
	off := 0
	putF := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	for _, v := range g.Offsets {
		for _, c := range v {
			putF(c)
		}
	}
	for _, v := range g.BlurWeights {
		for _, c := range v {
			putF(c)
		}
	}
	putF(g.InvRenderTargetSize[0])
	putF(g.InvRenderTargetSize[1])
	putF(g.NoiseScale[0])
	putF(g.NoiseScale[1])
	for _, v := range []float32{
		g.OcclusionRadius, g.FadeStart, g.FadeEnd, g.SurfaceEpsilon,
		g.AccessPower, g.OcclusionAddend, g.NormalTolerance, g.DepthTolerance,
	} {
		putF(v)
	}
	binary.LittleEndian.PutUint32(buf[off:], g.BlurRadius)
	return buf
}

// Unmarshal decodes a block previously produced by Marshal.
//
// Parameters:
//   - buf: at least Size() bytes
//
// Returns:
//   - error: an error if buf is too short
func (g *GPUSSAOConstants) Unmarshal(buf []byte) error {
	if len(buf) < g.Size() {
		return fmt.Errorf("occlusion: SSAO constants need %d bytes, got %d", g.Size(), len(buf))
	}
	off := 0
	getF := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		return v
	}
	for i := range g.Offsets {
		for c := range g.Offsets[i] {
			g.Offsets[i][c] = getF()
		}
	}
	for i := range g.BlurWeights {
		for c := range g.BlurWeights[i] {
			g.BlurWeights[i][c] = getF()
		}
	}
	g.InvRenderTargetSize = [2]float32{getF(), getF()}
	g.NoiseScale = [2]float32{getF(), getF()}
	g.OcclusionRadius = getF()
	g.FadeStart = getF()
	g.FadeEnd = getF()
	g.SurfaceEpsilon = getF()
	g.AccessPower = getF()
	g.OcclusionAddend = getF()
	g.NormalTolerance = getF()
	g.DepthTolerance = getF()
	g.BlurRadius = binary.LittleEndian.Uint32(buf[off:])
	return nil
}

// Config rebuilds the estimator settings carried by the block. Enabled is always true because a
// disabled config is already folded into AccessPower and OcclusionAddend.
func (g *GPUSSAOConstants) Config() Config {
	return Config{
		Enabled:         true,
		AccessPower:     g.AccessPower,
		OcclusionAddend: g.OcclusionAddend,
		OcclusionRadius: g.OcclusionRadius,
		FadeStart:       g.FadeStart,
		FadeEnd:         g.FadeEnd,
		SurfaceEpsilon:  g.SurfaceEpsilon,
		NormalTolerance: g.NormalTolerance,
		DepthTolerance:  g.DepthTolerance,
	}
}

// Kernel returns the probe offsets carried by the block.
func (g *GPUSSAOConstants) Kernel() SampleKernel {
	var k SampleKernel
	for i := range g.Offsets {
		k[i] = mgl32.Vec4(g.Offsets[i])
	}
	return k
}

// Weights returns the blur kernel carried by the block.
func (g *GPUSSAOConstants) Weights() BlurWeights {
	w := BlurWeights{radius: min(int(g.BlurRadius), MaxBlurRadius)}
	for i := 0; i < w.Len(); i++ {
		w.weights[i] = g.BlurWeights[i/4][i%4]
	}
	return w
}
