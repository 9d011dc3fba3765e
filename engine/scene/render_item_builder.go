package scene

import "github.com/Carmen-Shannon/oxy-ssao/engine/renderer/material"

// RenderItemBuilderOption is a functional option for configuring a RenderItem during construction.
type RenderItemBuilderOption func(*renderItem)

// WithPosition sets the initial world position.
//
// Parameters:
//   - x, y, z: the position
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithPosition(x, y, z float32) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.position = [3]float32{x, y, z}
	}
}

// WithRotation sets the initial Euler rotation in radians.
//
// Parameters:
//   - rx, ry, rz: the rotation angles
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithRotation(rx, ry, rz float32) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.rotation = [3]float32{rx, ry, rz}
	}
}

// WithScale sets the initial scale.
//
// Parameters:
//   - sx, sy, sz: the scale factors
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithScale(sx, sy, sz float32) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.scale = [3]float32{sx, sy, sz}
	}
}

// WithTexTransform sets the texture coordinate transform.
//
// Parameters:
//   - t: the column-major transform
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithTexTransform(t [16]float32) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.texTransform = t
	}
}

// WithMaterial sets the material.
//
// Parameters:
//   - m: the material
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithMaterial(m material.Material) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.material = m
	}
}

// WithEnabled sets whether the item is drawn.
//
// Parameters:
//   - enabled: true to draw the item
//
// Returns:
//   - RenderItemBuilderOption: option function to apply
func WithEnabled(enabled bool) RenderItemBuilderOption {
	return func(it *renderItem) {
		it.enabled = enabled
	}
}
