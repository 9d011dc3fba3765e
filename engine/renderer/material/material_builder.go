package material

// MaterialBuilderOption is a functional option applied to a material during construction via NewMaterial.
type MaterialBuilderOption func(*material)

// WithDiffuseAlbedo sets the RGBA albedo.
//
// Parameters:
//   - albedo: the albedo
//
// Returns:
//   - MaterialBuilderOption: a function that applies the albedo option to a material
func WithDiffuseAlbedo(albedo [4]float32) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseAlbedo = albedo
	}
}

// WithFresnelR0 sets the reflectance at normal incidence.
//
// Parameters:
//   - r0: the reflectance
//
// Returns:
//   - MaterialBuilderOption: a function that applies the reflectance option to a material
func WithFresnelR0(r0 [3]float32) MaterialBuilderOption {
	return func(m *material) {
		m.fresnelR0 = r0
	}
}

// WithRoughness sets the roughness factor.
//
// Parameters:
//   - roughness: 0 smooth to 1 fully rough
//
// Returns:
//   - MaterialBuilderOption: a function that applies the roughness option to a material
func WithRoughness(roughness float32) MaterialBuilderOption {
	return func(m *material) {
		m.roughness = roughness
	}
}

// WithTransform sets the texture coordinate transform.
//
// Parameters:
//   - transform: the column-major transform
//
// Returns:
//   - MaterialBuilderOption: a function that applies the transform option to a material
func WithTransform(transform [16]float32) MaterialBuilderOption {
	return func(m *material) {
		m.transform = transform
	}
}

// WithTextureIndices sets the diffuse and normal map indices.
//
// Parameters:
//   - diffuse: the diffuse map index
//   - normal: the normal map index
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTextureIndices(diffuse, normal uint32) MaterialBuilderOption {
	return func(m *material) {
		m.diffuseMapIndex = diffuse
		m.normalMapIndex = normal
	}
}
