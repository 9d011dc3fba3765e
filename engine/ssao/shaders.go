package ssao

import (
	_ "embed"
	"strings"

	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/normal_depth.wgsl
var normalDepthBody string

//go:embed assets/ambient.wgsl
var ambientBody string

//go:embed assets/blur.wgsl
var blurBody string

// compose prepends the shared struct definitions to a shader body.
func compose(parts ...string) string {
	return strings.Join(parts, "\n")
}

// NormalDepthSource returns the complete WGSL module of the normal/depth pass.
func NormalDepthSource() string {
	return compose(camera.GPUPassConstantsSource, model.GPUObjectConstantsSource, model.GPUVertexSource, normalDepthBody)
}

// AmbientSource returns the complete WGSL module of the ambient estimator.
func AmbientSource() string {
	return compose(camera.GPUPassConstantsSource, occlusion.GPUSSAOConstantsSource, ambientBody)
}

// BlurSource returns the complete WGSL module of both blur directions.
func BlurSource() string {
	return compose(camera.GPUPassConstantsSource, occlusion.GPUSSAOConstantsSource, blurBody)
}

// Pipelines builds one pipeline per pass. The normal/depth pipeline writes RGBA16Float normals with
// a less-than depth test and no culling.
//
// Returns:
//   - []pipeline.Pipeline: the pipelines, in pass execution order
func Pipelines() []pipeline.Pipeline {
	nd := NormalDepthSource()
	ambient := AmbientSource()
	blur := BlurSource()

	return []pipeline.Pipeline{
		pipeline.NewPipeline(pass.NormalDepth,
			pipeline.WithVertexShader(shader.NewShader("normal_depth_vs", shader.ShaderTypeVertex, nd)),
			pipeline.WithFragmentShader(shader.NewShader("normal_depth_fs", shader.ShaderTypeFragment, nd)),
			pipeline.WithDepthTestEnabled(true),
			pipeline.WithDepthWriteEnabled(true),
			pipeline.WithCullMode(wgpu.CullModeNone),
			pipeline.WithAttachmentFormats(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatDepth32Float),
		),
		pipeline.NewPipeline(pass.Ambient,
			pipeline.WithComputeShader(shader.NewShader("ambient_cs", shader.ShaderTypeCompute, ambient)),
		),
		pipeline.NewPipeline(pass.BlurHorizontal,
			pipeline.WithComputeShader(shader.NewShader("blur_horizontal_cs", shader.ShaderTypeCompute, blur,
				shader.WithEntryPoint("cs_blur_horizontal"))),
		),
		pipeline.NewPipeline(pass.BlurVertical,
			pipeline.WithComputeShader(shader.NewShader("blur_vertical_cs", shader.ShaderTypeCompute, blur,
				shader.WithEntryPoint("cs_blur_vertical"))),
		),
	}
}
