package common

import "cmp"

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp restricts v to the closed range [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Saturate clamps v to [0, 1].
func Saturate(v float32) float32 {
	return Clamp(v, 0, 1)
}

// AlignUp rounds size up to the next multiple of alignment, which must be a power of two.
//
// Parameters:
//   - size: the value to align
//   - alignment: the power-of-two alignment
//
// Returns:
//   - int: size rounded up to alignment
func AlignUp(size, alignment int) int {
	if alignment <= 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}
