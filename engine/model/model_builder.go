package model

import "github.com/go-gl/mathgl/mgl32"

// ModelBuilderOption is a functional option applied to a model during construction via NewModel.
type ModelBuilderOption func(*model)

// WithVertices appends vertices to the model.
//
// Parameters:
//   - vertices: the vertices to append
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices option to a model
func WithVertices(vertices ...GPUVertex) ModelBuilderOption {
	return func(m *model) {
		m.vertices = append(m.vertices, vertices...)
	}
}

// WithIndices appends triangle indices to the model. Indices are relative to the whole vertex list.
//
// Parameters:
//   - indices: the indices to append
//
// Returns:
//   - ModelBuilderOption: a function that applies the indices option to a model
func WithIndices(indices ...uint32) ModelBuilderOption {
	return func(m *model) {
		m.indices = append(m.indices, indices...)
	}
}

// WithQuad appends a single parallelogram spanning origin, origin+u, origin+u+v and origin+v.
// Its normal is u x v, so the visible face is the one seen counter-clockwise.
//
// Parameters:
//   - origin: one corner
//   - u: the first edge
//   - v: the second edge
//
// Returns:
//   - ModelBuilderOption: a function that appends the quad to a model
func WithQuad(origin, u, v mgl32.Vec3) ModelBuilderOption {
	return func(m *model) {
		n := u.Cross(v).Normalize()
		base := uint32(len(m.vertices))
		corners := []struct {
			p  mgl32.Vec3
			uv [2]float32
		}{
			{origin, [2]float32{0, 1}},
			{origin.Add(u), [2]float32{1, 1}},
			{origin.Add(u).Add(v), [2]float32{1, 0}},
			{origin.Add(v), [2]float32{0, 0}},
		}
		for _, c := range corners {
			m.vertices = append(m.vertices, GPUVertex{
				Position: [3]float32(c.p),
				Normal:   [3]float32(n),
				TexCoord: c.uv,
			})
		}
		m.indices = append(m.indices, base, base+1, base+2, base, base+2, base+3)
	}
}

// WithBox appends the six outward-facing faces of the axis-aligned box spanning lo to hi.
//
// Parameters:
//   - lo: the minimum corner
//   - hi: the maximum corner
//
// Returns:
//   - ModelBuilderOption: a function that appends the faces to a model
func WithBox(lo, hi mgl32.Vec3) ModelBuilderOption {
	d := hi.Sub(lo)
	dx, dy, dz := mgl32.Vec3{d.X(), 0, 0}, mgl32.Vec3{0, d.Y(), 0}, mgl32.Vec3{0, 0, d.Z()}
	faces := []ModelBuilderOption{
		WithQuad(mgl32.Vec3{hi.X(), lo.Y(), lo.Z()}, dy, dz),
		WithQuad(lo, dz, dy),
		WithQuad(mgl32.Vec3{lo.X(), hi.Y(), lo.Z()}, dz, dx),
		WithQuad(lo, dx, dz),
		WithQuad(mgl32.Vec3{lo.X(), lo.Y(), hi.Z()}, dx, dy),
		WithQuad(lo, dy, dx),
	}
	return func(m *model) {
		for _, f := range faces {
			f(m)
		}
	}
}
