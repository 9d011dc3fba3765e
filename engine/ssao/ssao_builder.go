package ssao

import "github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"

// SSAOBuilderOption is a functional option applied to the passes during construction via New.
type SSAOBuilderOption func(*ssao)

// WithConfig sets the estimator and blur configuration. The default is occlusion.DefaultConfig.
//
// Parameters:
//   - c: the configuration, validated by New
//
// Returns:
//   - SSAOBuilderOption: a function that applies the configuration option
func WithConfig(c occlusion.Config) SSAOBuilderOption {
	return func(s *ssao) {
		s.config = c
	}
}

// WithSeed sets the seed of the sample kernel lengths and the random rotation texture. Equal seeds
// produce identical ambient maps for identical input.
//
// Parameters:
//   - seed: the seed
//
// Returns:
//   - SSAOBuilderOption: a function that applies the seed option
func WithSeed(seed uint64) SSAOBuilderOption {
	return func(s *ssao) {
		s.seed = seed
	}
}
