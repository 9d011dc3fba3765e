package occlusion

// ConfigBuilderOption is a functional option applied to a Config during construction via NewConfig.
type ConfigBuilderOption func(*Config)

// WithEnabled toggles the estimator.
//
// Parameters:
//   - enabled: false forces full accessibility
//
// Returns:
//   - ConfigBuilderOption: a function that applies the enabled option to a config
func WithEnabled(enabled bool) ConfigBuilderOption {
	return func(c *Config) {
		c.Enabled = enabled
	}
}

// WithAccessPower sets the accessibility exponent.
//
// Parameters:
//   - power: the exponent applied to averaged accessibility
//
// Returns:
//   - ConfigBuilderOption: a function that applies the power option to a config
func WithAccessPower(power float32) ConfigBuilderOption {
	return func(c *Config) {
		c.AccessPower = power
	}
}

// WithOcclusionAddend sets the signed bias added after the exponent.
//
// Parameters:
//   - addend: the bias
//
// Returns:
//   - ConfigBuilderOption: a function that applies the addend option to a config
func WithOcclusionAddend(addend float32) ConfigBuilderOption {
	return func(c *Config) {
		c.OcclusionAddend = addend
	}
}

// WithOcclusionRadius sets the view-space probe length.
//
// Parameters:
//   - radius: the probe length
//
// Returns:
//   - ConfigBuilderOption: a function that applies the radius option to a config
func WithOcclusionRadius(radius float32) ConfigBuilderOption {
	return func(c *Config) {
		c.OcclusionRadius = radius
	}
}

// WithFade sets the fade window of the occlusion function.
//
// Parameters:
//   - start: the discrepancy where fading begins
//   - end: the discrepancy where occlusion reaches zero
//
// Returns:
//   - ConfigBuilderOption: a function that applies the fade option to a config
func WithFade(start, end float32) ConfigBuilderOption {
	return func(c *Config) {
		c.FadeStart = start
		c.FadeEnd = end
	}
}

// WithSurfaceEpsilon sets the self-occlusion threshold.
//
// Parameters:
//   - epsilon: discrepancies at or below this never occlude
//
// Returns:
//   - ConfigBuilderOption: a function that applies the epsilon option to a config
func WithSurfaceEpsilon(epsilon float32) ConfigBuilderOption {
	return func(c *Config) {
		c.SurfaceEpsilon = epsilon
	}
}

// WithBlurSigma sets the Gaussian standard deviation of the blur.
//
// Parameters:
//   - sigma: the standard deviation in texels; ceil(2*sigma) must not exceed MaxBlurRadius
//
// Returns:
//   - ConfigBuilderOption: a function that applies the sigma option to a config
func WithBlurSigma(sigma float32) ConfigBuilderOption {
	return func(c *Config) {
		c.BlurSigma = sigma
	}
}

// WithBlurCount sets the number of blur iterations.
//
// Parameters:
//   - count: iterations, zero disables the blur
//
// Returns:
//   - ConfigBuilderOption: a function that applies the count option to a config
func WithBlurCount(count int) ConfigBuilderOption {
	return func(c *Config) {
		c.BlurCount = count
	}
}

// WithEdgeTolerance sets the blur's edge-preservation thresholds.
//
// Parameters:
//   - normalDot: minimum normal dot product for a tap to contribute
//   - depth: maximum view-depth difference for a tap to contribute
//
// Returns:
//   - ConfigBuilderOption: a function that applies the tolerance option to a config
func WithEdgeTolerance(normalDot, depth float32) ConfigBuilderOption {
	return func(c *Config) {
		c.NormalTolerance = normalDot
		c.DepthTolerance = depth
	}
}
