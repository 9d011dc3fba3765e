package renderer

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

func TestNormalMatrix(t *testing.T) {
	// A slope rising along +X: the tangent runs up the slope, the normal points away from it.
	tangent := mgl32.Vec3{1, 1, 0}.Normalize()
	normal := mgl32.Vec3{-1, 1, 0}.Normalize()
	tests := []struct {
		name  string
		world mgl32.Mat4
	}{
		{"identity", mgl32.Ident4()},
		{"uniform scale", mgl32.Scale3D(3, 3, 3)},
		{"non-uniform scale", mgl32.Scale3D(1, 4, 1)},
		{"rotated and stretched", mgl32.HomogRotate3DZ(0.6).Mul4(mgl32.Scale3D(2, 0.5, 1))},
		{"mirrored", mgl32.Scale3D(-1, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := normalMatrix(tt.world).Mul3x1(normal).Normalize()
			tan := tt.world.Mat3().Mul3x1(tangent).Normalize()
			if d := n.Dot(tan); math.Abs(float64(d)) > 1e-5 {
				t.Errorf("transformed normal . tangent = %v, want 0", d)
			}
			// The normal stays on the same side of the surface as the transformed geometric normal.
			if d := n.Dot(tt.world.Mat3().Mul3x1(normal)); d <= 0 {
				t.Errorf("normal flipped: dot = %v", d)
			}
		})
	}
}

func TestTransformMeshNonUniformScale(t *testing.T) {
	const size = 16
	u, v := mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0.5, 0.5}
	slope := model.NewModel("slope", model.WithQuad(mgl32.Vec3{-0.5, -0.25, -0.25}, u, v))
	world := mgl32.Scale3D(1, 4, 1)
	r := &rasterPass{width: size, height: size, constants: camera.NewCamera().PassConstants(size, size, 0, 0)}
	r.transformMesh(slope, model.GPUObjectConstants{World: [16]float32(world)})
	if len(r.triangles) == 0 {
		t.Fatal("no triangles survived the vertex stage")
	}

	view := mgl32.Mat4(r.constants.View).Mat3()
	tangents := []mgl32.Vec3{
		view.Mul3x1(world.Mat3().Mul3x1(u)).Normalize(),
		view.Mul3x1(world.Mat3().Mul3x1(v)).Normalize(),
	}
	for ti, tri := range r.triangles {
		for i := range 3 {
			n := tri.nOverW[i].Mul(1 / tri.invW[i])
			if l := n.Len(); math.Abs(float64(l-1)) > 1e-4 {
				t.Errorf("triangle %d vertex %d normal length = %v", ti, i, l)
			}
			for _, tan := range tangents {
				if d := n.Dot(tan); math.Abs(float64(d)) > 1e-4 {
					t.Errorf("triangle %d vertex %d: normal . tangent = %v, want 0", ti, i, d)
				}
			}
		}
	}
}

func TestQuantizeHalf(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want float32
	}{
		{"zero", 0, 0},
		{"one", 1, 1},
		{"negative", -0.5, -0.5},
		{"unit normal component", 0.70710677, 0.70703125},
		{"max", 65504, 65504},
		{"overflow", 1e6, float32(math.Inf(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantizeHalf(tt.in); got != tt.want {
				t.Errorf("quantizeHalf(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
