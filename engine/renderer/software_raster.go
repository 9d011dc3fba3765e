package renderer

import (
	"math"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

// clipVertex is a vertex after the vertex stage.
type clipVertex struct {
	clip   mgl32.Vec4
	normal mgl32.Vec3
}

// screenTriangle is a triangle ready for scan conversion. Attributes are pre-divided by w so they
// interpolate linearly in screen space.
type screenTriangle struct {
	x, y   [3]float32
	z      [3]float32
	invW   [3]float32
	nOverW [3]mgl32.Vec3
	area   float32
	bbox   [4]int // minX, minY, maxX, maxY inclusive
}

// rasterPass accumulates the triangles of one raster pass and scan converts them at the end.
type rasterPass struct {
	color, depth  *softwareImage
	width, height int
	constants     camera.GPUPassConstants
	triangles     []screenTriangle
}

// transformMesh runs the vertex stage of the normal/depth pass over a model and appends the
// visible triangles, clipped against the near plane.
func (r *rasterPass) transformMesh(m model.Model, object model.GPUObjectConstants) {
	world := mgl32.Mat4(object.World)
	viewProj := mgl32.Mat4(r.constants.ViewProj)
	normalView := mgl32.Mat4(r.constants.View).Mat3().Mul3(normalMatrix(world))

	verts := m.Vertices()
	out := make([]clipVertex, len(verts))
	for i := range verts {
		p := mgl32.Vec3(verts[i].Position).Vec4(1)
		n := mgl32.Vec3(verts[i].Normal)
		out[i] = clipVertex{
			clip:   viewProj.Mul4x1(world.Mul4x1(p)),
			normal: normalView.Mul3x1(n).Normalize(),
		}
	}

	indices := m.Indices()
	for t := 0; t+2 < len(indices); t += 3 {
		poly := clipNear([]clipVertex{out[indices[t]], out[indices[t+1]], out[indices[t+2]]})
		for k := 1; k+1 < len(poly); k++ {
			if tri, ok := r.project(poly[0], poly[k], poly[k+1]); ok {
				r.triangles = append(r.triangles, tri)
			}
		}
	}
}

// normalMatrix is the cofactor matrix of the upper 3x3 of world. It maps normals like the inverse
// transpose up to a positive scale, so non-uniform scales keep normals perpendicular to surfaces.
func normalMatrix(world mgl32.Mat4) mgl32.Mat3 {
	m := world.Mat3()
	c0, c1, c2 := m.Col(0), m.Col(1), m.Col(2)
	cof := mgl32.Mat3FromCols(c1.Cross(c2), c2.Cross(c0), c0.Cross(c1))
	if m.Det() < 0 {
		cof = cof.Mul(-1)
	}
	return cof
}

// clipNear clips a polygon against the z >= 0 half space of clip coordinates.
func clipNear(poly []clipVertex) []clipVertex {
	out := make([]clipVertex, 0, len(poly)+1)
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		aIn, bIn := a.clip.Z() >= 0, b.clip.Z() >= 0
		if aIn {
			out = append(out, a)
		}
		if aIn != bIn {
			t := a.clip.Z() / (a.clip.Z() - b.clip.Z())
			out = append(out, clipVertex{
				clip:   a.clip.Add(b.clip.Sub(a.clip).Mul(t)),
				normal: a.normal.Add(b.normal.Sub(a.normal).Mul(t)),
			})
		}
	}
	return out
}

func (r *rasterPass) project(v0, v1, v2 clipVertex) (screenTriangle, bool) {
	var tri screenTriangle
	for i, v := range [3]clipVertex{v0, v1, v2} {
		w := v.clip.W()
		if w <= 1e-7 {
			return tri, false
		}
		invW := 1 / w
		ndcX, ndcY := v.clip.X()*invW, v.clip.Y()*invW
		tri.x[i] = (ndcX*0.5 + 0.5) * float32(r.width)
		tri.y[i] = (0.5 - ndcY*0.5) * float32(r.height)
		tri.z[i] = v.clip.Z() * invW
		tri.invW[i] = invW
		tri.nOverW[i] = v.normal.Mul(invW)
	}
	tri.area = edge(tri.x[0], tri.y[0], tri.x[1], tri.y[1], tri.x[2], tri.y[2])
	if float32(math.Abs(float64(tri.area))) < 1e-9 {
		return tri, false
	}

	minX := min(tri.x[0], tri.x[1], tri.x[2])
	maxX := max(tri.x[0], tri.x[1], tri.x[2])
	minY := min(tri.y[0], tri.y[1], tri.y[2])
	maxY := max(tri.y[0], tri.y[1], tri.y[2])
	tri.bbox = [4]int{
		common.Clamp(int(math.Floor(float64(minX))), 0, r.width-1),
		common.Clamp(int(math.Floor(float64(minY))), 0, r.height-1),
		common.Clamp(int(math.Ceil(float64(maxX))), 0, r.width-1),
		common.Clamp(int(math.Ceil(float64(maxY))), 0, r.height-1),
	}
	if maxX < 0 || maxY < 0 || minX > float32(r.width) || minY > float32(r.height) {
		return tri, false
	}
	return tri, true
}

// edge is twice the signed area of (a, b, p).
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// clear fills the targets with the pass clear values.
func (r *rasterPass) clear(color [4]float32, depth float32, y0, y1 int) {
	for y := y0; y < y1; y++ {
		for x := 0; x < r.width; x++ {
			i := y*r.width + x
			copy(r.color.pix[i*4:i*4+4], color[:])
			r.depth.pix[i] = depth
		}
	}
}

// rasterize scan converts every accumulated triangle over rows [y0, y1), in draw order. Depth
// test is less-than with depth writes; the fragment stage writes the normalized view normal with
// w = 1 so covered texels are distinguishable from the cleared background.
func (r *rasterPass) rasterize(y0, y1 int) {
	for ti := range r.triangles {
		tri := &r.triangles[ti]
		lo, hi := max(tri.bbox[1], y0), min(tri.bbox[3], y1-1)
		for y := lo; y <= hi; y++ {
			py := float32(y) + 0.5
			for x := tri.bbox[0]; x <= tri.bbox[2]; x++ {
				px := float32(x) + 0.5
				b0 := edge(tri.x[1], tri.y[1], tri.x[2], tri.y[2], px, py) / tri.area
				b1 := edge(tri.x[2], tri.y[2], tri.x[0], tri.y[0], px, py) / tri.area
				b2 := edge(tri.x[0], tri.y[0], tri.x[1], tri.y[1], px, py) / tri.area
				if b0 < 0 || b1 < 0 || b2 < 0 {
					continue
				}
				z := b0*tri.z[0] + b1*tri.z[1] + b2*tri.z[2]
				i := y*r.width + x
				if z < 0 || z > 1 || z >= r.depth.pix[i] {
					continue
				}
				r.depth.pix[i] = z

				invW := b0*tri.invW[0] + b1*tri.invW[1] + b2*tri.invW[2]
				n := tri.nOverW[0].Mul(b0).Add(tri.nOverW[1].Mul(b1)).Add(tri.nOverW[2].Mul(b2)).Mul(1 / invW)
				if l := n.Len(); l > 0 {
					n = n.Mul(1 / l)
				}
				px4 := r.color.pix[i*4 : i*4+4]
				px4[0], px4[1], px4[2], px4[3] = quantizeHalf(n[0]), quantizeHalf(n[1]), quantizeHalf(n[2]), 1
			}
		}
	}
}

// quantizeHalf rounds v to the precision of the RGBA16Float normal target.
func quantizeHalf(v float32) float32 {
	return float16.Fromfloat32(v).Float32()
}
