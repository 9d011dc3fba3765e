package renderer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustView(t *testing.T, r Renderer, img Image, kind ViewKind, role pass.Role) ViewHandle {
	t.Helper()
	h, err := r.Views().Allocate(img, kind, role)
	if err != nil {
		t.Fatalf("Allocate(%q, %v) error = %v", img.Label(), kind, err)
	}
	return h
}

// passConstantsBuffer writes the constants of the default camera for a size x size target.
func passConstantsBuffer(t *testing.T, r Renderer, size int) (UploadBuffer, ConstantBinding) {
	t.Helper()
	pc := camera.NewCamera().PassConstants(size, size, 0, 0)
	buf, err := r.CreateUploadBuffer("pass", BufferUsageUniform, 512)
	if err != nil {
		t.Fatal(err)
	}
	if err := buf.Write(0, pc.Marshal()); err != nil {
		t.Fatal(err)
	}
	return buf, ConstantBinding{Binding: 0, Buffer: buf, Offset: 0, Size: pc.Size()}
}

func TestSoftwareNormalDepthQuad(t *testing.T) {
	const size = 16
	r := newTestRenderer(t)
	normal := mustImage(t, r, ImageDescriptor{Label: "normal", Width: size, Height: size, Format: FormatRGBA16Float, Usage: UsageRenderTarget | UsageSampled})
	depth := mustImage(t, r, ImageDescriptor{Label: "depth", Width: size, Height: size, Format: FormatDepth32Float, Usage: UsageDepth | UsageSampled})
	color := mustView(t, r, normal, ViewKindRenderTarget, pass.RoleNormalMap)
	depthTarget := mustView(t, r, depth, ViewKindDepthTarget, pass.RoleDepth)

	_, passBinding := passConstantsBuffer(t, r, size)
	object := model.GPUObjectConstants{World: [16]float32(mgl32.Ident4())}
	objects, err := r.CreateUploadBuffer("objects", BufferUsageStorage, object.Size())
	if err != nil {
		t.Fatal(err)
	}
	_ = objects.Write(0, object.Marshal())

	// A 2x2 quad facing the camera at the origin, well inside the frustum.
	quad, err := r.CreateMesh(model.NewModel("quad", model.WithQuad(mgl32.Vec3{-1, -1, 0}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{0, 2, 0})))
	if err != nil {
		t.Fatal(err)
	}

	l := r.NewCommandList("normal depth")
	steps := []func() error{
		func() error { return l.Transition(normal, pass.StateUndefined, pass.StateRenderTarget) },
		func() error { return l.Transition(depth, pass.StateUndefined, pass.StateDepthWrite) },
		func() error {
			return l.BeginRenderPass(RenderPassDescriptor{
				Pass:       pass.NormalDepth,
				Color:      color,
				Depth:      depthTarget,
				ClearDepth: 1,
				Constants:  []ConstantBinding{passBinding, {Binding: 1, Buffer: objects, Offset: 0, Size: object.Size()}},
			})
		},
		func() error { return l.DrawIndexed(quad, 0) },
		l.EndRenderPass,
		func() error { return l.Transition(normal, pass.StateRenderTarget, pass.StateShaderRead) },
		func() error { return l.Transition(depth, pass.StateDepthWrite, pass.StateShaderRead) },
		l.Close,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
	}
	if err := r.Submit(l); err != nil {
		t.Fatal(err)
	}

	ctx := testContext(t)
	if err := r.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	d, err := r.ReadImage(ctx, depth, 0)
	if err != nil {
		t.Fatal(err)
	}
	nz, err := r.ReadImage(ctx, normal, 2)
	if err != nil {
		t.Fatal(err)
	}
	nw, err := r.ReadImage(ctx, normal, 3)
	if err != nil {
		t.Fatal(err)
	}

	if c := d.At(size/2, size/2); c <= 0 || c >= 1 {
		t.Errorf("centre depth = %v, want inside (0, 1)", c)
	}
	if c := d.At(0, 0); c != 1 {
		t.Errorf("corner depth = %v, want the clear value 1", c)
	}
	if c := nz.At(size/2, size/2); c != 1 {
		t.Errorf("centre normal z = %v, want 1", c)
	}
	if c := nz.At(0, 0); c != 0 {
		t.Errorf("corner normal z = %v, want 0", c)
	}
	if c := nw.At(size/2, size/2); c != 1 {
		t.Errorf("centre normal w = %v, want 1 for covered texels", c)
	}
	if c := nw.At(0, 0); c != 0 {
		t.Errorf("corner normal w = %v, want the clear value 0", c)
	}
}

func TestSoftwareBlurPreservesConstantInput(t *testing.T) {
	const size = 8
	r := newTestRenderer(t, WithSoftwareLatency(30*time.Millisecond))

	upload := func(desc ImageDescriptor, data common.ImageStagingData) Image {
		img := mustImage(t, r, desc)
		if err := r.UploadImage(img, data); err != nil {
			t.Fatalf("UploadImage(%q) error = %v", desc.Label, err)
		}
		return img
	}
	normals := make([]uint16, size*size*4)
	depths := make([]float32, size*size)
	values := make([]float32, size*size)
	for i := range depths {
		normals[i*4+2] = float16.Fromfloat32(1).Bits()
		depths[i] = 0.9
		values[i] = 0.25
	}
	normal := upload(ImageDescriptor{Label: "normal", Width: size, Height: size, Format: FormatRGBA16Float, Usage: UsageSampled | UsageCopyDst},
		common.ImageStagingData{Pixels: common.SliceToBytes(normals), Width: size, Height: size, BytesPerPixel: 8})
	depth := upload(ImageDescriptor{Label: "depth", Width: size, Height: size, Format: FormatDepth32Float, Usage: UsageDepth | UsageSampled | UsageCopyDst},
		common.ImageStagingData{Pixels: common.SliceToBytes(depths), Width: size, Height: size, BytesPerPixel: 4})
	input := upload(ImageDescriptor{Label: "input", Width: size, Height: size, Format: FormatR32Float, Usage: UsageSampled | UsageCopyDst},
		common.ImageStagingData{Pixels: common.SliceToBytes(values), Width: size, Height: size, BytesPerPixel: 4})
	output := mustImage(t, r, ImageDescriptor{Label: "output", Width: size, Height: size, Format: FormatR32Float, Usage: UsageSampled | UsageStorage})

	_, passBinding := passConstantsBuffer(t, r, size)
	weights := occlusion.MustBlurWeights(2.5)
	sc := occlusion.NewGPUSSAOConstants(occlusion.DefaultConfig(), occlusion.SampleKernel{}, weights, size, size)
	ssaoBuf, err := r.CreateUploadBuffer("ssao", BufferUsageUniform, 512)
	if err != nil {
		t.Fatal(err)
	}
	_ = ssaoBuf.Write(0, sc.Marshal())

	l := r.NewCommandList("blur")
	for _, img := range []Image{normal, depth, input} {
		if err := l.Transition(img, pass.StateCopyDst, pass.StateShaderRead); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Transition(output, pass.StateUndefined, pass.StateStorageWrite); err != nil {
		t.Fatal(err)
	}
	err = l.Dispatch(DispatchDescriptor{
		Pass:      pass.BlurHorizontal,
		Constants: []ConstantBinding{passBinding, {Binding: 1, Buffer: ssaoBuf, Offset: 0, Size: sc.Size()}},
		Reads: []ViewHandle{
			mustView(t, r, normal, ViewKindShaderRead, pass.RoleNormalMap),
			mustView(t, r, depth, ViewKindShaderRead, pass.RoleDepth),
			mustView(t, r, input, ViewKindShaderRead, pass.RoleAmbient0),
		},
		Writes: []ViewHandle{mustView(t, r, output, ViewKindStorage, pass.RoleScratch)},
		Width:  size,
		Height: size,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Submit(l); err != nil {
		t.Fatal(err)
	}

	// The readback is queued behind the delayed submission.
	out, err := r.ReadImage(testContext(t), output, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out.Pix {
		if math.Abs(float64(v-0.25)) > 1e-6 {
			t.Fatalf("texel %d = %v, want 0.25", i, v)
		}
	}
}

func TestSoftwareReadbackWaitsForEarlierWork(t *testing.T) {
	r := newTestRenderer(t, WithSoftwareLatency(50*time.Millisecond))
	for range 3 {
		l := r.NewCommandList("slow")
		_ = l.Close()
		if err := r.Submit(l); err != nil {
			t.Fatal(err)
		}
	}
	target := r.Fence().Advance()
	if r.Fence().CompletedValue() >= target {
		t.Fatal("signal completed before the work queued ahead of it")
	}

	img := mustImage(t, r, ImageDescriptor{Label: "ambient", Width: 2, Height: 2, Format: FormatR32Float, Usage: UsageSampled})
	if _, err := r.ReadImage(testContext(t), img, 0); err != nil {
		t.Fatal(err)
	}
	if got := r.Fence().CompletedValue(); got < target {
		t.Errorf("readback returned with the fence at %d, before %d", got, target)
	}
}

func TestReadImageRejectsChannel(t *testing.T) {
	r := newTestRenderer(t)
	img := mustImage(t, r, ImageDescriptor{Label: "ambient", Width: 2, Height: 2, Format: FormatR32Float, Usage: UsageSampled})
	if _, err := r.ReadImage(testContext(t), img, 1); err == nil {
		t.Error("ReadImage(channel 1) of a single-channel image succeeded")
	}
}
