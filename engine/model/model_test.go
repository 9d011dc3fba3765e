package model

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestWithQuad(t *testing.T) {
	m := NewModel("floor", WithQuad(mgl32.Vec3{-1, 0, 1}, mgl32.Vec3{2, 0, 0}, mgl32.Vec3{0, 0, -2}))

	if len(m.Vertices()) != 4 || m.IndexCount() != 6 {
		t.Fatalf("quad has %d vertices and %d indices, want 4 and 6", len(m.Vertices()), m.IndexCount())
	}
	for i, v := range m.Vertices() {
		if v.Normal != [3]float32{0, 1, 0} {
			t.Errorf("vertex %d normal = %v, want +Y", i, v.Normal)
		}
	}
	if got := len(m.VertexData()); got != 4*32 {
		t.Errorf("len(VertexData()) = %d, want 128", got)
	}
	idx := m.IndexData()
	if len(idx) != 24 || binary.LittleEndian.Uint32(idx[20:]) != 3 {
		t.Errorf("IndexData() = %v", idx)
	}
}

func TestWithBoxFacesOutward(t *testing.T) {
	lo, hi := mgl32.Vec3{-1, 0, -2}, mgl32.Vec3{1, 3, 2}
	m := NewModel("box", WithBox(lo, hi))
	if len(m.Vertices()) != 24 || m.IndexCount() != 36 {
		t.Fatalf("box has %d vertices and %d indices, want 24 and 36", len(m.Vertices()), m.IndexCount())
	}
	centre := lo.Add(hi).Mul(0.5)
	for i, v := range m.Vertices() {
		out := mgl32.Vec3(v.Position).Sub(centre)
		if mgl32.Vec3(v.Normal).Dot(out) <= 0 {
			t.Errorf("vertex %d at %v has inward normal %v", i, v.Position, v.Normal)
		}
	}
}

func TestNewModelRejectsBadIndices(t *testing.T) {
	tests := []struct {
		name    string
		options []ModelBuilderOption
	}{
		{name: "partial triangle", options: []ModelBuilderOption{WithVertices(GPUVertex{}, GPUVertex{}), WithIndices(0, 1)}},
		{name: "out of range", options: []ModelBuilderOption{WithVertices(GPUVertex{}), WithIndices(0, 0, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("NewModel did not panic")
				}
			}()
			NewModel(tt.name, tt.options...)
		})
	}
}

func TestObjectConstantsLayout(t *testing.T) {
	g := GPUObjectConstants{MaterialIndex: 7}
	g.World[12] = 3
	if g.Size() != 144 {
		t.Fatalf("Size() = %d, want 144", g.Size())
	}
	var back GPUObjectConstants
	if err := back.Unmarshal(g.Marshal()); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back != g {
		t.Errorf("Unmarshal(Marshal()) = %+v, want %+v", back, g)
	}
}
