package renderer

import (
	"github.com/Carmen-Shannon/oxy-ssao/common"
	"github.com/Carmen-Shannon/oxy-ssao/engine/camera"
	"github.com/Carmen-Shannon/oxy-ssao/engine/model"
	"github.com/Carmen-Shannon/oxy-ssao/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-ssao/engine/renderer/pass"
	"github.com/go-gl/mathgl/mgl32"
)

// objectConstantsSize is the stride of the object array bound to the normal/depth pass.
var objectConstantsSize = (&model.GPUObjectConstants{}).Size()

// run executes one command list on the executor goroutine.
func (b *softwareRendererBackend) run(label string, commands []command) {
	var raster *rasterPass
	var rasterConstants []ConstantBinding

	for i := range commands {
		cmd := &commands[i]
		switch cmd.kind {
		case commandTransition:
			// State was tracked at record time, the CPU needs no barrier.

		case commandBeginRenderPass:
			raster = b.beginRaster(label, cmd)
			rasterConstants = cmd.constants

		case commandDraw:
			if raster == nil {
				continue
			}
			var object model.GPUObjectConstants
			data, ok := constantRange(rasterConstants, 1, cmd.object*objectConstantsSize, objectConstantsSize)
			if !ok || object.Unmarshal(data) != nil {
				common.Logger().Error("software draw without object constants", "list", label, "mesh", cmd.mesh.Name(), "object", cmd.object)
				continue
			}
			raster.transformMesh(cmd.mesh.Model(), object)

		case commandEndRenderPass:
			if raster != nil {
				b.parallelRows(raster.height, raster.rasterize)
			}
			raster, rasterConstants = nil, nil

		case commandDispatch:
			switch cmd.pass {
			case pass.Ambient:
				b.ambient(label, cmd)
			case pass.BlurHorizontal:
				b.blur(label, cmd, 1, 0)
			case pass.BlurVertical:
				b.blur(label, cmd, 0, 1)
			}
		}
	}
}

func (b *softwareRendererBackend) beginRaster(label string, cmd *command) *rasterPass {
	color := cmd.color.native.(*softwareImage)
	depth := cmd.depth.native.(*softwareImage)
	if color.channels != 4 {
		common.Logger().Error("software raster target must have four channels", "list", label, "image", cmd.color.Image.Label())
		return nil
	}
	r := &rasterPass{
		color:  color,
		depth:  depth,
		width:  cmd.color.Image.Width(),
		height: cmd.color.Image.Height(),
	}
	data, ok := constantRange(cmd.constants, 0, 0, r.constants.Size())
	if !ok || r.constants.Unmarshal(data) != nil {
		common.Logger().Error("software raster pass without pass constants", "list", label, "pass", cmd.pass)
		return nil
	}
	b.parallelRows(r.height, func(y0, y1 int) {
		r.clear(cmd.clearColor, cmd.clearDepth, y0, y1)
	})
	return r
}

// gbuffer reads the full-resolution normal and depth targets with nearest, clamped texture
// coordinates, the way the compute shaders use textureLoad.
type gbuffer struct {
	normal, depth *softwareImage
	width, height int
	proj          mgl32.Mat4
	constants     camera.GPUPassConstants
}

func (g *gbuffer) texel(u, v float32) int {
	x := common.Clamp(int(u*float32(g.width)), 0, g.width-1)
	y := common.Clamp(int(v*float32(g.height)), 0, g.height-1)
	return y*g.width + x
}

func (g *gbuffer) depthAt(u, v float32) float32 {
	return g.depth.pix[g.texel(u, v)]
}

func (g *gbuffer) normalAt(u, v float32) mgl32.Vec3 {
	i := g.texel(u, v) * 4
	return mgl32.Vec3{g.normal.pix[i], g.normal.pix[i+1], g.normal.pix[i+2]}
}

// passInputs decodes the two constant blocks every compute pass binds and the normal/depth reads.
func passInputs(label string, cmd *command) (*gbuffer, *occlusion.GPUSSAOConstants, bool) {
	var pc camera.GPUPassConstants
	var sc occlusion.GPUSSAOConstants
	pcData, ok0 := constantRange(cmd.constants, 0, 0, pc.Size())
	scData, ok1 := constantRange(cmd.constants, 1, 0, sc.Size())
	if !ok0 || !ok1 || pc.Unmarshal(pcData) != nil || sc.Unmarshal(scData) != nil || len(cmd.reads) < 3 || len(cmd.writes) < 1 {
		common.Logger().Error("software dispatch with incomplete bindings", "list", label, "pass", cmd.pass)
		return nil, nil, false
	}
	normal := cmd.reads[0]
	g := &gbuffer{
		normal:    normal.native.(*softwareImage),
		depth:     cmd.reads[1].native.(*softwareImage),
		width:     normal.Image.Width(),
		height:    normal.Image.Height(),
		proj:      mgl32.Mat4(pc.Proj),
		constants: pc,
	}
	if g.normal.channels != 4 {
		common.Logger().Error("software dispatch normal input must have four channels", "list", label, "pass", cmd.pass)
		return nil, nil, false
	}
	return g, &sc, true
}

// ambient runs the occlusion estimator for every texel of the output image.
// Reads: normal, depth, random vectors. Writes: ambient.
func (b *softwareRendererBackend) ambient(label string, cmd *command) {
	g, sc, ok := passInputs(label, cmd)
	if !ok {
		return
	}
	random := cmd.reads[2]
	randPix := random.native.(*softwareImage)
	rw, rh := random.Image.Width(), random.Image.Height()

	out := cmd.writes[0]
	outPix := out.native.(*softwareImage)
	w, h := min(cmd.width, out.Image.Width()), min(cmd.height, out.Image.Height())
	ow, oh := float32(out.Image.Width()), float32(out.Image.Height())

	est := occlusion.Estimator{
		Config:  sc.Config(),
		Kernel:  sc.Kernel(),
		Proj:    g.proj,
		InvProj: mgl32.Mat4(g.constants.InvProj),
		ProjTex: mgl32.Mat4(g.constants.ProjTex),
	}

	b.parallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				u, v := (float32(x)+0.5)/ow, (float32(y)+0.5)/oh
				ri := ((y%rh)*rw + x%rw) * randPix.channels
				randVec := mgl32.Vec3{randPix.pix[ri]*2 - 1, randPix.pix[ri+1]*2 - 1, randPix.pix[ri+2]*2 - 1}
				outPix.pix[(y*out.Image.Width()+x)*outPix.channels] = est.Access(u, v, g.depthAt(u, v), g.normalAt(u, v), randVec, g.depthAt)
			}
		}
	})
}

// blur runs one direction of the edge-preserving blur.
// Reads: normal, depth, input. Writes: output.
func (b *softwareRendererBackend) blur(label string, cmd *command, dx, dy int) {
	g, sc, ok := passInputs(label, cmd)
	if !ok {
		return
	}
	cfg, weights := sc.Config(), sc.Weights()

	in := cmd.reads[2]
	inPix := in.native.(*softwareImage)
	out := cmd.writes[0]
	outPix := out.native.(*softwareImage)
	iw, ih := in.Image.Width(), in.Image.Height()
	w, h := min(cmd.width, out.Image.Width(), iw), min(cmd.height, out.Image.Height(), ih)

	tapAt := func(x, y int) occlusion.BlurTap {
		x, y = common.Clamp(x, 0, iw-1), common.Clamp(y, 0, ih-1)
		u, v := (float32(x)+0.5)/float32(iw), (float32(y)+0.5)/float32(ih)
		return occlusion.BlurTap{
			Value:  inPix.pix[(y*iw+x)*inPix.channels],
			Normal: g.normalAt(u, v),
			Depth:  occlusion.ViewDepth(g.proj, g.depthAt(u, v)),
		}
	}

	b.parallelRows(h, func(y0, y1 int) {
		taps := make([]occlusion.BlurTap, weights.Len())
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				for i := -weights.Radius(); i <= weights.Radius(); i++ {
					taps[i+weights.Radius()] = tapAt(x+i*dx, y+i*dy)
				}
				centre := taps[weights.Radius()]
				outPix.pix[(y*out.Image.Width()+x)*outPix.channels] = occlusion.Blur(cfg, weights, centre, taps)
			}
		}
	})
}

// constantRange reads size bytes at offset within a binding's range.
func constantRange(bindings []ConstantBinding, binding, offset, size int) ([]byte, bool) {
	for _, c := range bindings {
		if c.Binding != binding {
			continue
		}
		if offset < 0 || offset+size > c.Size {
			return nil, false
		}
		data, err := c.Buffer.Bytes(c.Offset+offset, size)
		return data, err == nil
	}
	return nil, false
}
