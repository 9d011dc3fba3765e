package renderer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/shader"
)

const testRenderSource = `
@vertex
fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(p, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0);
}
`

const testComputeSource = `
@compute @workgroup_size(8, 8, 1)
fn cs_main() {
}
`

// testPipelines returns one placeholder pipeline per pass. The software backend ignores the shaders.
func testPipelines() []pipeline.Pipeline {
	vs := shader.NewShader("test vs", shader.ShaderTypeVertex, testRenderSource)
	fs := shader.NewShader("test fs", shader.ShaderTypeFragment, testRenderSource)
	out := []pipeline.Pipeline{pipeline.NewPipeline(pass.NormalDepth, pipeline.WithVertexShader(vs), pipeline.WithFragmentShader(fs))}
	for _, id := range []pass.ID{pass.Ambient, pass.BlurHorizontal, pass.BlurVertical} {
		cs := shader.NewShader("test "+id.String(), shader.ShaderTypeCompute, testComputeSource)
		out = append(out, pipeline.NewPipeline(id, pipeline.WithComputeShader(cs)))
	}
	return out
}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, append([]RendererBuilderOption{WithSoftwareWorkers(2)}, options...)...)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	if err := r.RegisterPipelines(testPipelines()...); err != nil {
		t.Fatalf("RegisterPipelines() error = %v", err)
	}
	t.Cleanup(r.Release)
	return r
}

func mustImage(t *testing.T, r Renderer, desc ImageDescriptor) Image {
	t.Helper()
	img, err := r.CreateImage(desc)
	if err != nil {
		t.Fatalf("CreateImage(%q) error = %v", desc.Label, err)
	}
	return img
}

func TestNewRendererUnknownBackend(t *testing.T) {
	if _, err := NewRenderer(RendererBackendType(42)); err == nil {
		t.Fatal("NewRenderer() with an unknown backend succeeded")
	}
}

func TestRegisterPipelinesKeepsFirst(t *testing.T) {
	r := newTestRenderer(t)
	first := r.Pipeline(pass.Ambient)
	if first == nil {
		t.Fatal("Pipeline(Ambient) = nil after registration")
	}
	if err := r.RegisterPipelines(testPipelines()...); err != nil {
		t.Fatalf("RegisterPipelines() second call error = %v", err)
	}
	if r.Pipeline(pass.Ambient) != first {
		t.Error("re-registering replaced the cached pipeline")
	}
}

func TestSubmitRequiresClosedList(t *testing.T) {
	r := newTestRenderer(t)
	l := r.NewCommandList("open")
	if err := r.Submit(l); !errors.Is(err, ErrCommandListOpen) {
		t.Errorf("Submit(open list) error = %v, want ErrCommandListOpen", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Submit(l); err != nil {
		t.Errorf("Submit(closed list) error = %v", err)
	}
}

func TestFlushCompletesIssuedWork(t *testing.T) {
	r := newTestRenderer(t, WithSoftwareLatency(20*time.Millisecond))
	l := r.NewCommandList("empty")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Submit(l); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if f := r.Fence(); f.CompletedValue() != f.IssuedValue() {
		t.Errorf("after Flush completed = %d, issued = %d", f.CompletedValue(), f.IssuedValue())
	}
}

func TestPresentWithoutSurface(t *testing.T) {
	r := newTestRenderer(t)
	if err := r.Present(ViewHandle{}); !errors.Is(err, ErrNoSurface) {
		t.Errorf("Present() error = %v, want ErrNoSurface", err)
	}
}

func TestUseAfterRelease(t *testing.T) {
	r, err := NewRenderer(BackendTypeSoftware)
	if err != nil {
		t.Fatal(err)
	}
	r.Release()
	r.Release()

	l := r.NewCommandList("late")
	_ = l.Close()
	if err := r.Submit(l); !errors.Is(err, ErrReleased) {
		t.Errorf("Submit() after Release error = %v, want ErrReleased", err)
	}
	if err := r.RegisterPipelines(testPipelines()...); !errors.Is(err, ErrReleased) {
		t.Errorf("RegisterPipelines() after Release error = %v, want ErrReleased", err)
	}
}
