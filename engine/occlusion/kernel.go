package occlusion

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// KernelSize is the number of hemisphere probes per pixel.
	KernelSize = 14

	// RandomMapSize is the edge length of the tiled random rotation texture.
	RandomMapSize = 4
)

// SampleKernel holds the fixed probe offsets: the eight cube corners followed by the six face
// centres, each normalised and then scaled by a random length in [0.25, 1.0]. The w component is zero.
type SampleKernel [KernelSize]mgl32.Vec4

// NewSampleKernel builds a kernel from the given source of randomness.
//
// Parameters:
//   - rng: the random source; a fixed seed yields a reproducible kernel
//
// Returns:
//   - SampleKernel: the kernel
func NewSampleKernel(rng *rand.Rand) SampleKernel {
	dirs := [KernelSize]mgl32.Vec3{
		{+1, +1, +1}, {-1, -1, -1},
		{-1, +1, +1}, {+1, -1, -1},
		{+1, +1, -1}, {-1, -1, +1},
		{-1, +1, -1}, {+1, -1, +1},

		{-1, 0, 0}, {+1, 0, 0},
		{0, -1, 0}, {0, +1, 0},
		{0, 0, -1}, {0, 0, +1},
	}
	var k SampleKernel
	for i, d := range dirs {
		length := 0.25 + 0.75*rng.Float32()
		v := d.Normalize().Mul(length)
		k[i] = v.Vec4(0)
	}
	return k
}

// RandomVectorMap is a RandomMapSize x RandomMapSize RGBA8 texture of random directions encoded
// as (v + 1) / 2. It is tiled across the ambient map so neighbouring pixels rotate the kernel differently.
type RandomVectorMap struct {
	Pixels []byte
}

// NewRandomVectorMap fills a map from the given source of randomness.
//
// Parameters:
//   - rng: the random source
//
// Returns:
//   - RandomVectorMap: the encoded texture
func NewRandomVectorMap(rng *rand.Rand) RandomVectorMap {
	m := RandomVectorMap{Pixels: make([]byte, RandomMapSize*RandomMapSize*4)}
	for i := 0; i < RandomMapSize*RandomMapSize; i++ {
		m.Pixels[i*4+0] = byte(rng.IntN(256))
		m.Pixels[i*4+1] = byte(rng.IntN(256))
		m.Pixels[i*4+2] = byte(rng.IntN(256))
		m.Pixels[i*4+3] = 0
	}
	return m
}

// Vector decodes the direction stored at texel (x, y), wrapping coordinates.
func (m RandomVectorMap) Vector(x, y int) mgl32.Vec3 {
	x = ((x % RandomMapSize) + RandomMapSize) % RandomMapSize
	y = ((y % RandomMapSize) + RandomMapSize) % RandomMapSize
	i := (y*RandomMapSize + x) * 4
	return DecodeUnorm(m.Pixels[i], m.Pixels[i+1], m.Pixels[i+2])
}

// DecodeUnorm maps three unorm bytes from [0, 255] back to a vector in [-1, 1].
func DecodeUnorm(r, g, b byte) mgl32.Vec3 {
	return mgl32.Vec3{float32(r)/255*2 - 1, float32(g)/255*2 - 1, float32(b)/255*2 - 1}
}
