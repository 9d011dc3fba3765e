package occlusion

import (
	"math"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DepthSampler returns the stored clip depth in [0, 1] at texture coordinate (u, v).
type DepthSampler func(u, v float32) float32

// Estimator is the CPU form of the ambient kernel. The software backend runs it per pixel and the
// WGSL shader performs the same arithmetic.
type Estimator struct {
	Config  Config
	Kernel  SampleKernel
	Proj    mgl32.Mat4
	InvProj mgl32.Mat4
	// ProjTex maps view space to texture space: NDCToTexture * Proj.
	ProjTex mgl32.Mat4
}

// ViewPosition reconstructs the view-space position of the texel at (u, v) with the given stored depth.
//
// Parameters:
//   - invProj: the inverse projection matrix
//   - u, v: texture coordinates in [0, 1], v pointing down
//   - depth: the stored clip depth
//
// Returns:
//   - mgl32.Vec3: the view-space position
func ViewPosition(invProj mgl32.Mat4, u, v, depth float32) mgl32.Vec3 {
	ndc := mgl32.Vec4{u*2 - 1, 1 - v*2, depth, 1}
	h := invProj.Mul4x1(ndc)
	return h.Vec3().Mul(1 / h.W())
}

// ViewDepth converts a stored clip depth into a view-space z (negative in front of the camera).
func ViewDepth(proj mgl32.Mat4, depth float32) float32 {
	return -common.LinearDepth(proj[:], depth)
}

// Access estimates the accessibility of one pixel.
//
// Parameters:
//   - u, v: the texture coordinate of the pixel centre
//   - depth: the stored clip depth at the pixel
//   - n: the view-space unit normal at the pixel
//   - randVec: the decoded random rotation vector for the pixel
//   - sample: reads the depth buffer at arbitrary texture coordinates
//
// Returns:
//   - float32: accessibility in [0, 1], 1 meaning unoccluded
func (e *Estimator) Access(u, v, depth float32, n, randVec mgl32.Vec3, sample DepthSampler) float32 {
	power, addend := e.Config.Effective()
	if depth >= 1 {
		return 1
	}

	p := ViewPosition(e.InvProj, u, v, depth)
	var occlusionSum float32
	for i := range e.Kernel {
		offset := reflect(e.Kernel[i].Vec3(), randVec)
		flip := float32(1)
		if offset.Dot(n) < 0 {
			flip = -1
		}
		q := p.Add(offset.Mul(flip * e.Config.OcclusionRadius))
		if q.Z() > -1e-6 {
			continue
		}

		projQ := e.ProjTex.Mul4x1(q.Vec4(1))
		qu, qv := projQ.X()/projQ.W(), projQ.Y()/projQ.W()

		rz := ViewDepth(e.Proj, sample(qu, qv))
		r := q.Mul(rz / q.Z())

		distZ := r.Z() - p.Z()
		toR := r.Sub(p)
		var dp float32
		if l := toR.Len(); l > 1e-6 {
			dp = max(n.Dot(toR.Mul(1/l)), 0)
		}
		occlusionSum += dp * e.Config.OcclusionFactor(distZ)
	}

	access := 1 - occlusionSum/KernelSize
	return common.Saturate(float32(math.Pow(float64(access), float64(power))) + addend)
}

// reflect mirrors v about the plane with normal n, n need not be unit length but must be non-zero.
func reflect(v, n mgl32.Vec3) mgl32.Vec3 {
	l2 := n.Dot(n)
	if l2 == 0 {
		return v
	}
	return v.Sub(n.Mul(2 * v.Dot(n) / l2))
}

// BlurTap is one neighbour of the pixel being blurred.
type BlurTap struct {
	Value  float32
	Normal mgl32.Vec3
	// Depth is the neighbour's view-space z.
	Depth float32
}

// Blur combines the centre pixel with its neighbours using the Gaussian weights, excluding taps
// whose normal or depth disagree with the centre and renormalising over the remaining weight.
//
// Parameters:
//   - c: supplies the edge tolerances
//   - w: the Gaussian kernel
//   - centre: the pixel being blurred
//   - taps: neighbours indexed by offset + w.Radius(); taps[w.Radius()] is ignored
//
// Returns:
//   - float32: the blurred value
func Blur(c Config, w BlurWeights, centre BlurTap, taps []BlurTap) float32 {
	total := w.At(0)
	acc := total * centre.Value
	for i := -w.Radius(); i <= w.Radius(); i++ {
		if i == 0 {
			continue
		}
		t := taps[i+w.Radius()]
		if t.Normal.Dot(centre.Normal) < c.NormalTolerance {
			continue
		}
		if abs(t.Depth-centre.Depth) > c.DepthTolerance {
			continue
		}
		weight := w.At(i)
		acc += weight * t.Value
		total += weight
	}
	return acc / total
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
