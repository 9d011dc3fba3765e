package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

const computeSource = `
@compute @workgroup_size(8, 8, 1)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`

const renderSource = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0);
}
`

func TestNewPipelineType(t *testing.T) {
	cs := shader.NewShader("cs", shader.ShaderTypeCompute, computeSource)
	vs := shader.NewShader("vs", shader.ShaderTypeVertex, renderSource)
	fs := shader.NewShader("fs", shader.ShaderTypeFragment, renderSource)

	tests := []struct {
		name string
		id   pass.ID
		opts []PipelineBuilderOption
		want PipelineType
	}{
		{"normal depth", pass.NormalDepth, []PipelineBuilderOption{WithVertexShader(vs), WithFragmentShader(fs)}, PipelineTypeRender},
		{"ambient", pass.Ambient, []PipelineBuilderOption{WithComputeShader(cs)}, PipelineTypeCompute},
		{"blur", pass.BlurVertical, []PipelineBuilderOption{WithComputeShader(cs)}, PipelineTypeCompute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.id, tt.opts...)
			if p.Type() != tt.want {
				t.Errorf("Type() = %v, want %v", p.Type(), tt.want)
			}
			if p.Pass() != tt.id {
				t.Errorf("Pass() = %v, want %v", p.Pass(), tt.id)
			}
		})
	}
}

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline(pass.NormalDepth,
		WithVertexShader(shader.NewShader("vs", shader.ShaderTypeVertex, renderSource)),
		WithFragmentShader(shader.NewShader("fs", shader.ShaderTypeFragment, renderSource)),
	)
	if p.CullMode() != wgpu.CullModeNone || !p.DepthTestEnabled() || !p.DepthWriteEnabled() {
		t.Errorf("unexpected defaults: cull %v depth test %v depth write %v", p.CullMode(), p.DepthTestEnabled(), p.DepthWriteEnabled())
	}
	if p.DepthFormat() != wgpu.TextureFormatDepth32Float || p.ColorFormat() != wgpu.TextureFormatRGBA16Float {
		t.Errorf("unexpected formats: %v %v", p.ColorFormat(), p.DepthFormat())
	}
	if len(p.Shaders()) != 2 {
		t.Errorf("Shaders() returned %d shaders, want 2", len(p.Shaders()))
	}
}

func TestNewPipelineMissingShaderPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewPipeline without a compute shader did not panic")
		}
	}()
	NewPipeline(pass.Ambient)
}
