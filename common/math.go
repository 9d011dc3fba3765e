package common

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// Identity resets a 4x4 column-major matrix to the identity.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	id := mgl32.Ident4()
	copy(m, id[:])
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// mat4 copies a flat column-major slice into an mgl32 matrix.
func mat4(m []float32) mgl32.Mat4 {
	var out mgl32.Mat4
	copy(out[:], m)
	return out
}

// Mul4 stores a * b in out. All matrices are column-major; out may alias a or b.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	r := mat4(a).Mul4(mat4(b))
	copy(out, r[:])
}

// Perspective creates a right-handed perspective projection matrix mapping view depth
// [-near, -far] to clip depth [0, 1], the WebGPU convention. mgl32.Perspective targets the
// OpenGL [-1, 1] range, so the depth row is built here.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func Perspective(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	p := mgl32.Mat4{}
	p[0] = f / aspect
	p[5] = f
	p[10] = far / (near - far)
	p[11] = -1
	p[14] = (near * far) / (near - far)
	copy(out, p[:])
}

// BuildModelMatrix constructs a model matrix T * Ry * Rx * Rz * S from position, Euler rotation
// and scale.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - posX, posY, posZ: translation in world space
//   - rotX, rotY, rotZ: rotation angles in radians around each axis
//   - scaleX, scaleY, scaleZ: scale factors along each axis
func BuildModelMatrix(out []float32, posX, posY, posZ, rotX, rotY, rotZ, scaleX, scaleY, scaleZ float32) {
	m := mgl32.Translate3D(posX, posY, posZ).
		Mul4(mgl32.HomogRotate3DY(rotY)).
		Mul4(mgl32.HomogRotate3DX(rotX)).
		Mul4(mgl32.HomogRotate3DZ(rotZ)).
		Mul4(mgl32.Scale3D(scaleX, scaleY, scaleZ))
	copy(out, m[:])
}

// Invert4 inverts a 4x4 column-major matrix. A singular matrix leaves out unchanged.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was inverted, false if singular
func Invert4(out, m []float32) bool {
	src := mat4(m)
	if src.Det() == 0 {
		return false
	}
	inv := src.Inv()
	copy(out, inv[:])
	return true
}

// LookAt creates a right-handed view matrix for a camera at eye looking at center.
// A zero forward or side vector is left unnormalised instead of producing NaNs.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eyeX, eyeY, eyeZ: camera position in world space
//   - centerX, centerY, centerZ: target point the camera looks at
//   - upX, upY, upZ: up vector defining camera orientation (typically 0,1,0)
func LookAt(out []float32, eyeX, eyeY, eyeZ, centerX, centerY, centerZ, upX, upY, upZ float32) {
	eye := mgl32.Vec3{eyeX, eyeY, eyeZ}
	z := safeNormalize(eye.Sub(mgl32.Vec3{centerX, centerY, centerZ}))
	x := safeNormalize(mgl32.Vec3{upX, upY, upZ}.Cross(z))
	y := z.Cross(x)
	v := mgl32.Mat4FromRows(
		x.Vec4(-x.Dot(eye)),
		y.Vec4(-y.Dot(eye)),
		z.Vec4(-z.Dot(eye)),
		mgl32.Vec4{0, 0, 0, 1},
	)
	copy(out, v[:])
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if l := v.Len(); l != 0 {
		return v.Mul(1 / l)
	}
	return v
}

// NDCToTexture returns the matrix mapping clip-space x/y in [-1, 1] to texture
// coordinates in [0, 1] with v pointing down, leaving z and w untouched.
//
// Returns:
//   - [16]float32: the column-major NDC-to-texture matrix
func NDCToTexture() [16]float32 {
	return [16]float32{
		0.5, 0, 0, 0,
		0, -0.5, 0, 0,
		0, 0, 1, 0,
		0.5, 0.5, 0, 1,
	}
}

// LinearDepth converts a [0, 1] clip depth produced by Perspective back into a positive
// view-space distance along the camera's forward axis.
//
// Parameters:
//   - proj: the projection matrix built by Perspective
//   - ndcDepth: the stored depth value in [0, 1]
//
// Returns:
//   - float32: the distance in front of the camera
func LinearDepth(proj []float32, ndcDepth float32) float32 {
	// z_ndc = (A*z + B) / -z  =>  z = -B / (z_ndc + A)
	return proj[14] / (ndcDepth + proj[10])
}
