package occlusion

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/go-gl/mathgl/mgl32"
)

// testEstimator builds an estimator for a 60 degree square frustum.
func testEstimator(t *testing.T, c Config) *Estimator {
	t.Helper()
	var proj mgl32.Mat4
	common.Perspective(proj[:], float32(math.Pi/3), 1, 0.1, 100)
	inv := proj.Inv()
	toTex := mgl32.Mat4(common.NDCToTexture())
	return &Estimator{
		Config:  c,
		Kernel:  NewSampleKernel(rand.New(rand.NewPCG(11, 13))),
		Proj:    proj,
		InvProj: inv,
		ProjTex: toTex.Mul4(proj),
	}
}

// planeDepth returns a sampler for a camera-facing plane at view distance d.
func planeDepth(proj mgl32.Mat4, d float32) DepthSampler {
	clip := proj.Mul4x1(mgl32.Vec4{0, 0, -d, 1})
	depth := clip.Z() / clip.W()
	return func(u, v float32) float32 { return depth }
}

func TestViewPositionRoundTrip(t *testing.T) {
	e := testEstimator(t, DefaultConfig())
	want := mgl32.Vec3{0.4, -0.3, -5}
	clip := e.Proj.Mul4x1(want.Vec4(1))
	ndc := clip.Vec3().Mul(1 / clip.W())
	u, v := ndc.X()*0.5+0.5, 0.5-ndc.Y()*0.5

	got := ViewPosition(e.InvProj, u, v, ndc.Z())
	if got.Sub(want).Len() > 2e-3 {
		t.Errorf("ViewPosition() = %v, want %v", got, want)
	}
	if z := ViewDepth(e.Proj, ndc.Z()); math.Abs(float64(z-want.Z())) > 1e-3 {
		t.Errorf("ViewDepth() = %v, want %v", z, want.Z())
	}
}

func TestAccessFlatPlaneIsUnoccluded(t *testing.T) {
	e := testEstimator(t, DefaultConfig())
	sample := planeDepth(e.Proj, 4)
	depth := sample(0, 0)
	n := mgl32.Vec3{0, 0, 1}
	rng := rand.New(rand.NewPCG(5, 5))

	for i := 0; i < 64; i++ {
		u, v := 0.2+0.6*rng.Float32(), 0.2+0.6*rng.Float32()
		r := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
		if got := e.Access(u, v, depth, n, r, sample); math.Abs(float64(got-1)) > 1e-4 {
			t.Fatalf("Access(%v, %v) = %v, want 1", u, v, got)
		}
	}
}

func TestAccessOccluderInFront(t *testing.T) {
	e := testEstimator(t, DefaultConfig())
	back := planeDepth(e.Proj, 4)(0, 0)
	front := planeDepth(e.Proj, 3.6)(0, 0)
	// Everything but the pixel itself sees a surface 0.4 units closer to the camera.
	sample := func(u, v float32) float32 { return front }

	got := e.Access(0.5, 0.5, back, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0.3, 0.5, 0.8}, sample)
	if got > 0.9 {
		t.Errorf("Access() = %v, want clearly occluded", got)
	}
}

func TestAccessDisabledIsConstant(t *testing.T) {
	c := DefaultConfig()
	c.Enabled = false
	e := testEstimator(t, c)
	front := planeDepth(e.Proj, 3.6)(0, 0)
	sample := func(u, v float32) float32 { return front }

	for _, depth := range []float32{0, 0.5, 0.97, 0.999} {
		if got := e.Access(0.5, 0.5, depth, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, sample); got != 1 {
			t.Errorf("disabled Access(depth=%v) = %v, want 1", depth, got)
		}
	}
}

func TestAccessBackgroundIsUnoccluded(t *testing.T) {
	e := testEstimator(t, DefaultConfig())
	sample := func(u, v float32) float32 { return 0.2 }
	if got := e.Access(0.5, 0.5, 1, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, sample); got != 1 {
		t.Errorf("Access() on background = %v, want 1", got)
	}
}

func TestBlurExcludesEdges(t *testing.T) {
	c := DefaultConfig()
	w := MustBlurWeights(1)
	up := mgl32.Vec3{0, 0, 1}
	centre := BlurTap{Value: 1, Normal: up, Depth: -4}
	taps := make([]BlurTap, w.Len())
	for i := range taps {
		taps[i] = BlurTap{Value: 1, Normal: up, Depth: -4}
	}
	// Far tap and a tap with a perpendicular normal carry value zero but must be ignored.
	taps[0] = BlurTap{Value: 0, Normal: up, Depth: -9}
	taps[w.Len()-1] = BlurTap{Value: 0, Normal: mgl32.Vec3{1, 0, 0}, Depth: -4}

	if got := Blur(c, w, centre, taps); math.Abs(float64(got-1)) > 1e-6 {
		t.Errorf("Blur() = %v, want 1 with edge taps excluded", got)
	}

	taps[0] = BlurTap{Value: 0, Normal: up, Depth: -4}
	if got := Blur(c, w, centre, taps); got >= 1 {
		t.Errorf("Blur() = %v, want below 1 once the tap passes", got)
	}
}

func BenchmarkAccess(b *testing.B) {
	e := &Estimator{Config: DefaultConfig(), Kernel: NewSampleKernel(rand.New(rand.NewPCG(1, 1)))}
	common.Perspective(e.Proj[:], float32(math.Pi/3), 1, 0.1, 100)
	e.InvProj = e.Proj.Inv()
	e.ProjTex = mgl32.Mat4(common.NDCToTexture()).Mul4(e.Proj)
	sample := planeDepth(e.Proj, 4)
	depth := sample(0, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Access(0.5, 0.5, depth, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0.2, 0.7, 0.1}, sample)
	}
}
