package shader

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ErrUnsupportedVertexInput is returned when a vertex entry point reads an attribute type no vertex
// format can carry.
var ErrUnsupportedVertexInput = errors.New("shader: unsupported vertex input type")

// Member is one field of a host-shareable struct.
type Member struct {
	Name   string
	Offset uint64
	Size   uint64
}

// TypeLayout is the host-shareable size of a named WGSL struct and the placement of its members.
type TypeLayout struct {
	Size    uint64
	Members []Member
}

// Member looks up a member by name.
func (l TypeLayout) Member(name string) (Member, bool) {
	for _, m := range l.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// Binding is one @group/@binding resource of a module and the layout entry it needs.
type Binding struct {
	Group   int
	Binding int
	Name    string
	Entry   wgpu.BindGroupLayoutEntry
}

// Reflection is everything the renderer needs to know about a WGSL module to build its pipelines.
type Reflection struct {
	Layouts     map[string]TypeLayout
	Bindings    []Binding
	EntryPoints map[ShaderType][]string
	Workgroups  map[string][3]uint32

	vertexLayouts map[string]wgpu.VertexBufferLayout
}

var storageFormats = map[ir.StorageFormat]wgpu.TextureFormat{
	ir.StorageFormatR32Float:    wgpu.TextureFormatR32Float,
	ir.StorageFormatR32Uint:     wgpu.TextureFormatR32Uint,
	ir.StorageFormatRgba16Float: wgpu.TextureFormatRGBA16Float,
	ir.StorageFormatRgba8Unorm:  wgpu.TextureFormatRGBA8Unorm,
	ir.StorageFormatRgba32Float: wgpu.TextureFormatRGBA32Float,
}

var storageAccess = map[ir.StorageAccess]wgpu.StorageTextureAccess{
	ir.StorageAccessRead:      wgpu.StorageTextureAccessReadOnly,
	ir.StorageAccessWrite:     wgpu.StorageTextureAccessWriteOnly,
	ir.StorageAccessReadWrite: wgpu.StorageTextureAccessReadWrite,
}

var vertexFormats = map[ir.ScalarKind][5]wgpu.VertexFormat{
	ir.ScalarFloat: {1: wgpu.VertexFormatFloat32, 2: wgpu.VertexFormatFloat32x2, 3: wgpu.VertexFormatFloat32x3, 4: wgpu.VertexFormatFloat32x4},
	ir.ScalarUint:  {1: wgpu.VertexFormatUint32, 2: wgpu.VertexFormatUint32x2, 3: wgpu.VertexFormatUint32x3, 4: wgpu.VertexFormatUint32x4},
	ir.ScalarSint:  {1: wgpu.VertexFormatSint32, 2: wgpu.VertexFormatSint32x2, 3: wgpu.VertexFormatSint32x3, 4: wgpu.VertexFormatSint32x4},
}

// Reflect parses and lowers a WGSL module with naga and collects its struct layouts, resource
// bindings, entry points and vertex inputs.
//
// Parameters:
//   - source: the WGSL source
//
// Returns:
//   - *Reflection: the reflection data
//   - error: the parse or lowering error, or ErrUnsupportedVertexInput
func Reflect(source string) (*Reflection, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}

	r := &Reflection{
		Layouts:       make(map[string]TypeLayout),
		EntryPoints:   make(map[ShaderType][]string),
		Workgroups:    make(map[string][3]uint32),
		vertexLayouts: make(map[string]wgpu.VertexBufferLayout),
	}
	for _, t := range module.Types {
		st, ok := t.Inner.(ir.StructType)
		if !ok || t.Name == "" {
			continue
		}
		layout := TypeLayout{Size: uint64(st.Span)}
		for _, m := range st.Members {
			layout.Members = append(layout.Members, Member{
				Name:   m.Name,
				Offset: uint64(m.Offset),
				Size:   uint64(ir.TypeSize(module, m.Type)),
			})
		}
		r.Layouts[t.Name] = layout
	}

	for _, g := range module.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		r.Bindings = append(r.Bindings, Binding{
			Group:   int(g.Binding.Group),
			Binding: int(g.Binding.Binding),
			Name:    g.Name,
			Entry:   layoutEntry(module, g),
		})
	}
	slices.SortFunc(r.Bindings, func(a, b Binding) int {
		if c := cmp.Compare(a.Group, b.Group); c != 0 {
			return c
		}
		return cmp.Compare(a.Binding, b.Binding)
	})

	for _, ep := range module.EntryPoints {
		var t ShaderType
		switch ep.Stage {
		case ir.StageVertex:
			t = ShaderTypeVertex
			layout, err := vertexLayout(module, ep)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedVertexInput, ep.Name, err)
			}
			if len(layout.Attributes) > 0 {
				r.vertexLayouts[ep.Name] = layout
			}
		case ir.StageFragment:
			t = ShaderTypeFragment
		case ir.StageCompute:
			t = ShaderTypeCompute
			wg := ep.Workgroup
			for i := range wg {
				wg[i] = max(wg[i], 1)
			}
			r.Workgroups[ep.Name] = wg
		default:
			continue
		}
		r.EntryPoints[t] = append(r.EntryPoints[t], ep.Name)
	}
	return r, nil
}

// BindGroupLayouts builds one layout descriptor per bind group from the module's resources.
//
// Parameters:
//   - visibility: the stage flags applied to every entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
func (r *Reflection) BindGroupLayouts(visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	out := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, b := range r.Bindings {
		desc := out[b.Group]
		e := b.Entry
		e.Visibility = visibility
		desc.Entries = append(desc.Entries, e)
		out[b.Group] = desc
	}
	return out
}

// VertexLayouts returns the tightly packed vertex buffer layout read by a vertex entry point, or nil
// when it reads no located attributes.
func (r *Reflection) VertexLayouts(entryPoint string) []wgpu.VertexBufferLayout {
	l, ok := r.vertexLayouts[entryPoint]
	if !ok {
		return nil
	}
	return []wgpu.VertexBufferLayout{l}
}

func layoutEntry(module *ir.Module, g ir.GlobalVariable) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: g.Binding.Binding}
	switch g.Space {
	case ir.SpaceUniform:
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		e.Buffer.MinBindingSize = uint64(ir.TypeSize(module, g.Type))
		return e
	case ir.SpaceStorage:
		e.Buffer.Type = wgpu.BufferBindingTypeStorage
		if g.Access == ir.StorageRead {
			e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		}
		e.Buffer.MinBindingSize = uint64(ir.TypeSize(module, g.Type))
		return e
	}

	switch t := module.Types[g.Type].Inner.(type) {
	case ir.ImageType:
		dim := viewDimension(t)
		switch t.Class {
		case ir.ImageClassStorage:
			e.StorageTexture.ViewDimension = dim
			e.StorageTexture.Format = storageFormats[t.StorageFormat]
			e.StorageTexture.Access = storageAccess[t.StorageAccess]
		case ir.ImageClassDepth:
			e.Texture.ViewDimension = dim
			e.Texture.SampleType = wgpu.TextureSampleTypeDepth
		default:
			// Every pass reads textures with textureLoad, so float textures never need filtering.
			e.Texture.ViewDimension = dim
			e.Texture.Multisampled = t.Multisampled
			switch t.SampledKind {
			case ir.ScalarUint:
				e.Texture.SampleType = wgpu.TextureSampleTypeUint
			case ir.ScalarSint:
				e.Texture.SampleType = wgpu.TextureSampleTypeSint
			default:
				e.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			}
		}
	case ir.SamplerType:
		e.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
		if t.Comparison {
			e.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	}
	return e
}

func viewDimension(t ir.ImageType) wgpu.TextureViewDimension {
	switch t.Dim {
	case ir.Dim1D:
		return wgpu.TextureViewDimension1D
	case ir.Dim3D:
		return wgpu.TextureViewDimension3D
	case ir.DimCube:
		if t.Arrayed {
			return wgpu.TextureViewDimensionCubeArray
		}
		return wgpu.TextureViewDimensionCube
	default:
		if t.Arrayed {
			return wgpu.TextureViewDimension2DArray
		}
		return wgpu.TextureViewDimension2D
	}
}

// vertexLayout packs the located arguments of a vertex entry point, and the located members of its
// struct arguments, in declaration order.
func vertexLayout(module *ir.Module, ep ir.EntryPoint) (wgpu.VertexBufferLayout, error) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	add := func(name string, binding *ir.Binding, handle ir.TypeHandle) error {
		if binding == nil {
			return nil
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return nil
		}
		format, size, ok := vertexFormat(module.Types[handle].Inner)
		if !ok {
			return fmt.Errorf("attribute %s at location %d", name, loc.Location)
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         format,
			Offset:         layout.ArrayStride,
			ShaderLocation: loc.Location,
		})
		layout.ArrayStride += size
		return nil
	}

	for _, arg := range ep.Function.Arguments {
		if st, ok := module.Types[arg.Type].Inner.(ir.StructType); ok && arg.Binding == nil {
			for _, m := range st.Members {
				if err := add(m.Name, m.Binding, m.Type); err != nil {
					return layout, err
				}
			}
			continue
		}
		if err := add(arg.Name, arg.Binding, arg.Type); err != nil {
			return layout, err
		}
	}
	return layout, nil
}

func vertexFormat(inner ir.TypeInner) (wgpu.VertexFormat, uint64, bool) {
	var scalar ir.ScalarType
	count := 1
	switch t := inner.(type) {
	case ir.ScalarType:
		scalar = t
	case ir.VectorType:
		scalar, count = t.Scalar, int(t.Size)
	default:
		return 0, 0, false
	}
	formats, ok := vertexFormats[scalar.Kind]
	if !ok || scalar.Width != 4 || count < 1 || count > 4 {
		return 0, 0, false
	}
	return formats[count], uint64(count) * 4, true
}
