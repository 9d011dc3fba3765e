// package pass holds the closed sets of identifiers shared by the renderer, its pipelines and the
// passes built on top of it.
package pass

import "fmt"

// ID identifies one of the GPU passes the renderer knows how to execute.
type ID int

const (
	// NormalDepth rasterises opaque geometry into the view-space normal target and shared depth buffer.
	NormalDepth ID = iota

	// Ambient estimates per-pixel accessibility into a half-resolution ambient map.
	Ambient

	// BlurHorizontal is the horizontal half of one edge-preserving blur iteration.
	BlurHorizontal

	// BlurVertical is the vertical half of one edge-preserving blur iteration.
	BlurVertical

	idCount
)

// IDs returns every pass in execution order.
//
// Returns:
//   - []ID: all pass identifiers
func IDs() []ID {
	return []ID{NormalDepth, Ambient, BlurHorizontal, BlurVertical}
}

// Valid reports whether the identifier names a known pass.
func (p ID) Valid() bool {
	return p >= NormalDepth && p < idCount
}

// IsCompute reports whether the pass is dispatched as compute work rather than a raster pass.
func (p ID) IsCompute() bool {
	return p == Ambient || p == BlurHorizontal || p == BlurVertical
}

func (p ID) String() string {
	switch p {
	case NormalDepth:
		return "NormalDepth"
	case Ambient:
		return "Ambient"
	case BlurHorizontal:
		return "BlurHorizontal"
	case BlurVertical:
		return "BlurVertical"
	}
	return fmt.Sprintf("pass.ID(%d)", int(p))
}

// Role identifies what an image is used for within the occlusion pipeline.
type Role int

const (
	// RoleNormalMap is the full-resolution view-space normal target.
	RoleNormalMap Role = iota

	// RoleDepth is the shared full-resolution depth buffer.
	RoleDepth

	// RoleAmbient0 is the first image of the ambient ping-pong pair.
	RoleAmbient0

	// RoleAmbient1 is the second image of the ambient ping-pong pair.
	RoleAmbient1

	// RoleScratch holds the horizontal blur result between the two halves of an iteration.
	RoleScratch

	// RoleRandomVectors is the tiled 4x4 random rotation texture.
	RoleRandomVectors

	roleCount
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r >= RoleNormalMap && r < roleCount
}

func (r Role) String() string {
	switch r {
	case RoleNormalMap:
		return "NormalMap"
	case RoleDepth:
		return "Depth"
	case RoleAmbient0:
		return "Ambient0"
	case RoleAmbient1:
		return "Ambient1"
	case RoleScratch:
		return "Scratch"
	case RoleRandomVectors:
		return "RandomVectors"
	}
	return fmt.Sprintf("pass.Role(%d)", int(r))
}

// State is the access state an image is in. Transitions between states are explicit.
type State int

const (
	// StateUndefined is the state of a freshly created image.
	StateUndefined State = iota

	// StateRenderTarget allows the image to be a colour attachment.
	StateRenderTarget

	// StateDepthWrite allows the image to be the depth attachment.
	StateDepthWrite

	// StateShaderRead allows the image to be read by a pass.
	StateShaderRead

	// StateStorageWrite allows a compute pass to write the image.
	StateStorageWrite

	// StateCopyDst allows CPU uploads into the image.
	StateCopyDst
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "Undefined"
	case StateRenderTarget:
		return "RenderTarget"
	case StateDepthWrite:
		return "DepthWrite"
	case StateShaderRead:
		return "ShaderRead"
	case StateStorageWrite:
		return "StorageWrite"
	case StateCopyDst:
		return "CopyDst"
	}
	return fmt.Sprintf("pass.State(%d)", int(s))
}
