package occlusion

import (
	"fmt"
	"math"
)

const (
	// MaxBlurRadius is the largest blur radius the constant block has room for.
	MaxBlurRadius = 5

	// MaxBlurTaps is the number of weights a radius of MaxBlurRadius needs.
	MaxBlurTaps = 2*MaxBlurRadius + 1
)

// BlurWeights is a normalised, symmetric Gaussian kernel with at most MaxBlurTaps taps.
type BlurWeights struct {
	weights [MaxBlurTaps]float32
	radius  int
}

// NewBlurWeights computes w_i = exp(-i^2 / (2*sigma^2)) for i in [-r, r] with r = ceil(2*sigma),
// normalised to sum to one.
//
// Parameters:
//   - sigma: the standard deviation in texels, must be positive
//
// Returns:
//   - BlurWeights: the kernel
//   - error: ErrInvalidConfig for a non-positive sigma, ErrBlurRadiusExceeded when r > MaxBlurRadius
func NewBlurWeights(sigma float32) (BlurWeights, error) {
	if !(sigma > 0) {
		return BlurWeights{}, fmt.Errorf("%w: blur sigma %v must be positive", ErrInvalidConfig, sigma)
	}
	radius := int(math.Ceil(2 * float64(sigma)))
	if radius > MaxBlurRadius {
		return BlurWeights{}, fmt.Errorf("%w: sigma %v needs radius %d, maximum is %d", ErrBlurRadiusExceeded, sigma, radius, MaxBlurRadius)
	}

	w := BlurWeights{radius: radius}
	twoSigma2 := 2 * float64(sigma) * float64(sigma)
	var sum float64
	raw := make([]float64, 2*radius+1)
	for i := -radius; i <= radius; i++ {
		x := float64(i)
		raw[i+radius] = math.Exp(-x * x / twoSigma2)
		sum += raw[i+radius]
	}
	for i, v := range raw {
		w.weights[i] = float32(v / sum)
	}
	return w, nil
}

// MustBlurWeights is NewBlurWeights for sigmas known at compile time. It panics on error.
func MustBlurWeights(sigma float32) BlurWeights {
	w, err := NewBlurWeights(sigma)
	if err != nil {
		panic(err)
	}
	return w
}

// Radius returns the number of taps on each side of the centre.
func (w BlurWeights) Radius() int {
	return w.radius
}

// Len returns the number of taps, 2*Radius()+1.
func (w BlurWeights) Len() int {
	return 2*w.radius + 1
}

// At returns the weight of the tap at offset i from the centre, zero outside [-Radius, Radius].
func (w BlurWeights) At(i int) float32 {
	if i < -w.radius || i > w.radius {
		return 0
	}
	return w.weights[i+w.radius]
}

// Weights returns a copy of the taps from -Radius to Radius.
func (w BlurWeights) Weights() []float32 {
	out := make([]float32, w.Len())
	copy(out, w.weights[:w.Len()])
	return out
}

// Sum returns the total weight, one within floating point tolerance for any valid kernel.
func (w BlurWeights) Sum() float32 {
	var s float32
	for _, v := range w.weights[:w.Len()] {
		s += v
	}
	return s
}

// packed lays the taps out in the constant block's fixed-capacity array, zero-filling unused slots.
func (w BlurWeights) packed() [MaxBlurTaps + 1]float32 {
	var out [MaxBlurTaps + 1]float32
	copy(out[:], w.weights[:w.Len()])
	return out
}
