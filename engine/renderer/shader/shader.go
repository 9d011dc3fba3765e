package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader entry point runs in.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Visibility returns the wgpu stage flag for the shader type.
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for pipeline creation.
type shader struct {
	key        string
	source     string
	shaderType ShaderType
	entryPoint string
	reflection *Reflection
	module     *wgpu.ShaderModuleDescriptor
}

// Shader defines the interface for an embedded and reflected WGSL shader stage. It exposes the
// shader's unique key, source code, entry point, bind group layout descriptors, vertex buffer
// layouts and workgroup size needed for pipeline creation.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader's entry point.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "cs_main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [1, 1, 1] when @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptors retrieves the layout descriptors of the shader's resource
	// bindings, with visibility set to the shader's stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// VertexLayouts retrieves the vertex buffer layout read by the shader's entry point.
	// Non-vertex shaders, and vertex shaders without located inputs, return nil.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the packed layout of the entry point's attributes
	VertexLayouts() []wgpu.VertexBufferLayout

	// Reflection retrieves the naga reflection of the shader source.
	//
	// Returns:
	//   - *Reflection: the reflection data
	Reflection() *Reflection

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// Validate compiles the source with naga and reports the first error.
	//
	// Returns:
	//   - error: the compilation error, or nil
	Validate() error
}

var _ Shader = &shader{}

// NewShader creates a new Shader from embedded WGSL source. The entry point defaults to the first
// entry point of the requested stage; a module with several entry points of one stage selects
// between them with WithEntryPoint.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage of the entry point
//   - source: the WGSL source code
//   - options: variadic list of ShaderBuilderOption functions
//
// Returns:
//   - Shader: a new Shader instance
func NewShader(key string, shaderType ShaderType, source string, options ...ShaderBuilderOption) Shader {
	if source == "" {
		panic(fmt.Sprintf("shader: %s has no source", key))
	}
	reflection, err := Reflect(source)
	if err != nil {
		panic(fmt.Sprintf("shader: %s reflection failed: %v", key, err))
	}
	s := &shader{
		key:        key,
		source:     source,
		shaderType: shaderType,
		reflection: reflection,
	}
	for _, opt := range options {
		opt(s)
	}

	entries := s.reflection.EntryPoints[shaderType]
	if s.entryPoint == "" && len(entries) > 0 {
		s.entryPoint = entries[0]
	}
	found := false
	for _, e := range entries {
		found = found || e == s.entryPoint
	}
	if !found {
		panic(fmt.Sprintf("shader: %s has no @%s entry point %q", key, shaderType, s.entryPoint))
	}

	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	if s.shaderType != ShaderTypeCompute {
		return [3]uint32{}
	}
	return s.reflection.Workgroups[s.entryPoint]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.reflection.BindGroupLayouts(s.shaderType.Visibility())
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	if s.shaderType != ShaderTypeVertex {
		return nil
	}
	return s.reflection.VertexLayouts(s.entryPoint)
}

func (s *shader) Reflection() *Reflection {
	return s.reflection
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
