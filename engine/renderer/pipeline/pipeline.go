package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// pipeline is the implementation of the Pipeline interface.
// It holds the configuration of one pass and, once registered with a WebGPU backend, the backend objects.
type pipeline struct {
	// pass is the pass this pipeline executes, used as the cache key
	pass         pass.ID
	pipelineType PipelineType

	vertexShader, fragmentShader, computeShader shader.Shader

	renderPipeline   *wgpu.RenderPipeline
	computePipeline  *wgpu.ComputePipeline
	bindGroupLayouts []*wgpu.BindGroupLayout

	// The following only apply to render pipelines.

	depthTestEnabled  bool
	depthWriteEnabled bool
	cullMode          wgpu.CullMode
	topology          wgpu.PrimitiveTopology
	frontFace         wgpu.FrontFace
	writeMask         wgpu.ColorWriteMask
	colorFormat       wgpu.TextureFormat
	depthFormat       wgpu.TextureFormat
}

// Pipeline defines the interface for the GPU pipeline of one pass, encapsulating either a render
// pipeline (vertex + fragment shaders) or a compute pipeline (compute shader) together with the
// fixed-function state required to create it.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// Pass returns the pass this pipeline executes. Pipelines are cached by pass.
	//
	// Returns:
	//   - pass.ID: the pass identifier
	Pass() pass.ID

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Shaders returns every shader attached to the pipeline.
	//
	// Returns:
	//   - []shader.Shader: the attached shaders
	Shaders() []shader.Shader

	// Pipeline returns the underlying pipeline object, either *wgpu.RenderPipeline or *wgpu.ComputePipeline.
	// Note: The caller is responsible for type asserting the returned value as either pipeline type.
	//
	// Returns:
	//   - any: the underlying pipeline object, nil until registered with a WebGPU backend
	Pipeline() any

	// BindGroupLayouts returns the backend layouts created at registration, indexed by group.
	//
	// Returns:
	//   - []*wgpu.BindGroupLayout: the layouts
	BindGroupLayouts() []*wgpu.BindGroupLayout

	// DepthTestEnabled returns whether depth testing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth testing is enabled, false otherwise
	DepthTestEnabled() bool

	// DepthWriteEnabled returns whether depth writing is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if depth writing is enabled, false otherwise
	DepthWriteEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// ColorFormat returns the format of the colour attachment of a render pipeline.
	//
	// Returns:
	//   - wgpu.TextureFormat: the colour format
	ColorFormat() wgpu.TextureFormat

	// DepthFormat returns the format of the depth attachment of a render pipeline.
	//
	// Returns:
	//   - wgpu.TextureFormat: the depth format
	DepthFormat() wgpu.TextureFormat

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// SetComputePipeline sets the compute pipeline
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline to set
	SetComputePipeline(p *wgpu.ComputePipeline)

	// SetBindGroupLayouts stores the layouts the backend created for the pipeline.
	//
	// Parameters:
	//   - layouts: the layouts indexed by group
	SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout)

	// Release releases the backend objects held by the pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates the pipeline of one pass. Compute passes require a compute shader and render
// passes require a vertex and a fragment shader.
//
// Parameters:
//   - id: the pass this pipeline executes
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(id pass.ID, opts ...PipelineBuilderOption) Pipeline {
	if !id.Valid() {
		panic(fmt.Sprintf("pipeline: unknown pass %v", id))
	}
	p := &pipeline{
		pass:              id,
		pipelineType:      PipelineTypeRender,
		depthTestEnabled:  true,
		depthWriteEnabled: true,
		cullMode:          wgpu.CullModeNone,
		topology:          wgpu.PrimitiveTopologyTriangleList,
		frontFace:         wgpu.FrontFaceCCW,
		writeMask:         wgpu.ColorWriteMaskAll,
		colorFormat:       wgpu.TextureFormatRGBA16Float,
		depthFormat:       wgpu.TextureFormatDepth32Float,
	}
	if id.IsCompute() {
		p.pipelineType = PipelineTypeCompute
	}
	for _, opt := range opts {
		opt(p)
	}

	switch p.pipelineType {
	case PipelineTypeCompute:
		if p.computeShader == nil {
			panic(fmt.Sprintf("pipeline: %v requires a compute shader", id))
		}
	case PipelineTypeRender:
		if p.vertexShader == nil || p.fragmentShader == nil {
			panic(fmt.Sprintf("pipeline: %v requires vertex and fragment shaders", id))
		}
	}
	return p
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) Pass() pass.ID {
	return p.pass
}

func (p *pipeline) Pipeline() any {
	switch p.pipelineType {
	case PipelineTypeRender:
		return p.renderPipeline
	case PipelineTypeCompute:
		return p.computePipeline
	default:
		return nil
	}
}

func (p *pipeline) BindGroupLayouts() []*wgpu.BindGroupLayout {
	return p.bindGroupLayouts
}

func (p *pipeline) DepthTestEnabled() bool {
	return p.depthTestEnabled
}

func (p *pipeline) DepthWriteEnabled() bool {
	return p.depthWriteEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) ColorFormat() wgpu.TextureFormat {
	return p.colorFormat
}

func (p *pipeline) DepthFormat() wgpu.TextureFormat {
	return p.depthFormat
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) Shaders() []shader.Shader {
	var out []shader.Shader
	for _, s := range []shader.Shader{p.vertexShader, p.fragmentShader, p.computeShader} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}

func (p *pipeline) SetBindGroupLayouts(layouts []*wgpu.BindGroupLayout) {
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for _, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
		}
	}
	p.bindGroupLayouts = nil
}
