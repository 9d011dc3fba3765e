// package occlusion holds the screen-space ambient occlusion math shared by every backend: the
// sample kernel, the random rotation texture, the Gaussian blur weights, the tunable scalars and
// the per-pixel estimator the GPU shaders mirror.
package occlusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-ssao/common"
)

var (
	// ErrBlurRadiusExceeded is returned when a blur sigma implies more taps than MaxBlurTaps.
	ErrBlurRadiusExceeded = errors.New("occlusion: blur radius exceeds maximum")

	// ErrInvalidConfig is returned by Config.Validate for out-of-range scalars.
	ErrInvalidConfig = errors.New("occlusion: invalid config")
)

// Config holds the tunable scalars of the estimator and the blur.
type Config struct {
	// Enabled toggles the estimator. Disabled configs still run every pass but produce full accessibility.
	Enabled bool

	// AccessPower is the exponent applied to the averaged accessibility.
	AccessPower float32

	// OcclusionAddend is a signed bias added after the exponent.
	OcclusionAddend float32

	// OcclusionRadius is the view-space length of the hemisphere probes.
	OcclusionRadius float32

	// FadeStart is the depth discrepancy where occlusion starts to fade out.
	FadeStart float32

	// FadeEnd is the depth discrepancy at and beyond which a probe no longer occludes.
	FadeEnd float32

	// SurfaceEpsilon suppresses self occlusion from probes landing on their own surface.
	SurfaceEpsilon float32

	// BlurSigma is the Gaussian standard deviation of the edge-preserving blur, in texels.
	BlurSigma float32

	// BlurCount is the number of horizontal+vertical blur iterations. Zero disables the blur.
	BlurCount int

	// NormalTolerance is the minimum dot product between a blur tap's normal and the centre normal.
	NormalTolerance float32

	// DepthTolerance is the largest view-depth difference between a blur tap and the centre.
	DepthTolerance float32
}

// DefaultConfig returns the standard estimator settings.
//
// Returns:
//   - Config: radius 0.5, fade 0.2 to 1.0, epsilon 0.05, power 6, sigma 2.5, three blur iterations
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		AccessPower:     6,
		OcclusionAddend: 0,
		OcclusionRadius: 0.5,
		FadeStart:       0.2,
		FadeEnd:         1.0,
		SurfaceEpsilon:  0.05,
		BlurSigma:       2.5,
		BlurCount:       3,
		NormalTolerance: 0.8,
		DepthTolerance:  0.2,
	}
}

// NewConfig builds a Config from DefaultConfig with the given options applied and validates it.
//
// Parameters:
//   - options: variadic list of ConfigBuilderOption functions to configure the Config
//
// Returns:
//   - Config: the validated configuration
//   - error: an error wrapping ErrInvalidConfig or ErrBlurRadiusExceeded
func NewConfig(options ...ConfigBuilderOption) (Config, error) {
	c := DefaultConfig()
	for _, opt := range options {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every scalar. The blur sigma check is the one a misconfigured engine hits first.
//
// Returns:
//   - error: nil, or an error wrapping ErrInvalidConfig or ErrBlurRadiusExceeded
func (c Config) Validate() error {
	if _, err := NewBlurWeights(c.BlurSigma); err != nil {
		return err
	}
	switch {
	case c.BlurCount < 0:
		return fmt.Errorf("%w: blur count %d is negative", ErrInvalidConfig, c.BlurCount)
	case c.OcclusionRadius <= 0:
		return fmt.Errorf("%w: occlusion radius %v must be positive", ErrInvalidConfig, c.OcclusionRadius)
	case c.FadeEnd <= c.FadeStart:
		return fmt.Errorf("%w: fade end %v must exceed fade start %v", ErrInvalidConfig, c.FadeEnd, c.FadeStart)
	case c.SurfaceEpsilon < 0:
		return fmt.Errorf("%w: surface epsilon %v is negative", ErrInvalidConfig, c.SurfaceEpsilon)
	case c.AccessPower <= 0 || math.IsNaN(float64(c.AccessPower)):
		return fmt.Errorf("%w: access power %v must be positive", ErrInvalidConfig, c.AccessPower)
	}
	return nil
}

// Effective returns the exponent and addend the kernel should use. A disabled config maps to
// power 1 and addend 1, which saturates every output to full accessibility.
//
// Returns:
//   - power: the accessibility exponent
//   - addend: the additive bias
func (c Config) Effective() (power, addend float32) {
	if !c.Enabled {
		return 1, 1
	}
	return c.AccessPower, c.OcclusionAddend
}

// OcclusionFactor maps a positive depth discrepancy to an occlusion contribution in [0, 1].
// Discrepancies within SurfaceEpsilon or beyond FadeEnd contribute nothing; between FadeStart and
// FadeEnd the contribution ramps linearly to zero.
//
// Parameters:
//   - distZ: how much closer to the camera the occluder is than the probe origin
//
// Returns:
//   - float32: the occlusion contribution
func (c Config) OcclusionFactor(distZ float32) float32 {
	if distZ <= c.SurfaceEpsilon {
		return 0
	}
	fadeLength := c.FadeEnd - c.FadeStart
	return common.Saturate((c.FadeEnd - distZ) / fadeLength)
}
