// gl3d/batch_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"
)

func TestShiftZ(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	values := []uint32{0, 1, 0xFFFF, 0x10000, 0xFFFFFF, 0x7FFFFFFF}
	for range 1000 {
		values = append(values, r.Uint32()>>r.IntN(32))
	}

	for _, z := range values {
		s, shift := ShiftZ(z)
		if s > 0xFFFF {
			t.Errorf("%#x: shifted value %#x does not fit in 16 bits", z, s)
		}
		if s != z>>shift {
			t.Errorf("%#x: expected %#x, got %#x", z, z>>shift, s)
		}
		if shift > 0 && z>>(shift-1) <= 0xFFFF {
			t.Errorf("%#x: shift %d is not minimal", z, shift)
		}
	}
}

func TestBuildFanAndEdges(t *testing.T) {
	b := makeBatchBuilder(DefaultConfig())

	tri := triangle(polyAttr(31, 1))
	q := quad(0, 0, 16, 16, 0x1000, white, polyAttr(31, 1))
	degenerate := triangle(polyAttr(31, 1))
	degenerate.Degenerate = true

	polys, err := b.Build([]*gpu3d.Polygon{tri, degenerate, q}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(polys) != 2 {
		t.Fatalf("expected degenerate polygon to be skipped, got %d polygons", len(polys))
	}

	if polys[0].count != 3 || polys[1].count != 6 {
		t.Errorf("expected 3 and 6 triangle indices, got %d and %d", polys[0].count, polys[1].count)
	}
	if polys[0].edgeCount != 6 || polys[1].edgeCount != 8 {
		t.Errorf("expected 6 and 8 edge indices, got %d and %d", polys[0].edgeCount, polys[1].edgeCount)
	}

	idx := b.Indices()
	expected := []uint16{
		0, 1, 2, // triangle
		3, 4, 5, 3, 5, 6, // quad fan
		0, 1, 1, 2, 2, 0, // triangle outline
		3, 4, 4, 5, 5, 6, 6, 3, // quad outline
	}
	if len(idx) != len(expected) {
		t.Fatalf("expected %d indices, got %d: %v", len(expected), len(idx), idx)
	}
	for i := range idx {
		if idx[i] != expected[i] {
			t.Fatalf("expected indices %v, got %v", expected, idx)
		}
	}
	if polys[0].edgeFirst != 9 || polys[1].edgeFirst != 15 {
		t.Errorf("expected edge ranges at 9 and 15, got %d and %d", polys[0].edgeFirst, polys[1].edgeFirst)
	}

	if n := len(b.Vertices()); n != 7*renderer.VertexWords {
		t.Errorf("expected 7 vertices, got %d words", n)
	}
}

func TestBuildVertexPacking(t *testing.T) {
	b := makeBatchBuilder(DefaultConfig())

	p := triangle(polyAttr(20, 3) | 1<<15)
	p.Vertices[1] = &gpu3d.Vertex{
		FinalPosition: [2]int32{100, 50},
		HiresPosition: [2]int32{100<<4 | 8, 50 << 4},
		FinalColor:    [3]uint16{511, 256, 3},
		TexCoords:     [2]int16{-16, 32},
	}
	p.FinalZ[1] = 0x123456
	p.FinalW[1] = 0x0800
	p.WBuffer = true
	p.TexParam, p.TexPalette = 0x1234, 0x56

	for _, tc := range []struct {
		scale int
		x, y  uint16
	}{{1, 100, 50}, {3, 301, 150}} {
		if _, err := b.Build([]*gpu3d.Polygon{p}, tc.scale); err != nil {
			t.Fatal(err)
		}
		v := renderer.UnpackVertex(b.Vertices()[renderer.VertexWords:])
		if v.X != tc.x || v.Y != tc.y {
			t.Errorf("scale %d: expected position (%d,%d), got (%d,%d)", tc.scale, tc.x, tc.y, v.X, v.Y)
		}
		if v.R != 255 || v.G != 128 || v.B != 1 || v.A != 20 {
			t.Errorf("expected color 255,128,1,20, got %d,%d,%d,%d", v.R, v.G, v.B, v.A)
		}
		if v.Z != 0x91A2 || v.ZShift() != 5 {
			t.Errorf("expected Z 0x91a2 shifted by 5, got %#x shifted by %d", v.Z, v.ZShift())
		}
		if v.W != 0x0800 || v.Attr&renderer.VertexAttrWBuffer == 0 {
			t.Errorf("expected W-buffered vertex with W 0x800, got %#x attr %#x", v.W, v.Attr)
		}
		if v.PolygonID() != 3 || v.Attr&(1<<15) == 0 || v.Attr&renderer.VertexAttrFacing == 0 {
			t.Errorf("unexpected attribute word %#x", v.Attr)
		}
		if v.S != -16 || v.T != 32 || v.TexParam != 0x1234 || v.TexPalette != 0x56 {
			t.Errorf("unexpected texture parameters %+v", v)
		}
	}
}

func TestBuildCapacity(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  func(*Config)
		n    int
	}{
		{"polygons", func(c *Config) { c.MaxPolygons = 3 }, 4},
		{"vertices", func(c *Config) { c.MaxVertices = 8 }, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.cfg(&cfg)
			b := makeBatchBuilder(cfg)

			var polys []*gpu3d.Polygon
			for range tc.n {
				polys = append(polys, triangle(polyAttr(31, 1)))
			}
			if _, err := b.Build(polys, 1); !errors.Is(err, util.ErrCapacityExceeded) {
				t.Errorf("expected ErrCapacityExceeded, got %v", err)
			}
			if _, err := b.Build(polys[:tc.n-1], 1); err != nil {
				t.Errorf("expected %d polygons to fit, got %v", tc.n-1, err)
			}
		})
	}
}
