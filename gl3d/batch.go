// gl3d/batch.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"fmt"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"
)

// rendererPolygon pairs an upstream polygon with its render key and its
// index ranges in the frame's shared index buffer.
type rendererPolygon struct {
	poly *gpu3d.Polygon
	key  RenderKey

	// Triangle indices.
	first, count int
	// Line indices for edge marking.
	edgeFirst, edgeCount int
}

// batchBuilder packs a frame's polygons into one vertex buffer and one
// index buffer: fan triangles for all polygons first, followed by the
// edge region.
type batchBuilder struct {
	maxPolygons int

	vertices  util.FixedBuffer[uint32]
	triangles util.FixedBuffer[uint16]
	edges     util.FixedBuffer[uint16]
	indices   []uint16

	polys []rendererPolygon
}

func makeBatchBuilder(cfg Config) batchBuilder {
	return batchBuilder{
		maxPolygons: cfg.MaxPolygons,
		vertices:    util.MakeFixedBuffer[uint32]("vertex buffer", cfg.MaxVertices*renderer.VertexWords),
		triangles: util.MakeFixedBuffer[uint16]("triangle index buffer",
			cfg.MaxPolygons*(gpu3d.MaxPolygonVertices-2)*3),
		edges:   util.MakeFixedBuffer[uint16]("edge index buffer", cfg.MaxPolygons*gpu3d.MaxPolygonVertices*2),
		indices: make([]uint16, 0, cfg.MaxPolygons*gpu3d.MaxPolygonVertices*5),
		polys:   make([]rendererPolygon, 0, cfg.MaxPolygons),
	}
}

// ShiftZ reduces a depth value to 16 bits, returning the reduced value
// and the number of bits it was shifted right by.
func ShiftZ(z uint32) (shifted, shift uint32) {
	for z > 0xFFFF {
		z >>= 1
		shift++
	}
	return z, shift
}

// Build packs the non-degenerate polygons of polys. scale is the
// supersampling factor applied to vertex positions. The returned slice
// is valid until the next call to Build.
func (b *batchBuilder) Build(polys []*gpu3d.Polygon, scale int) ([]rendererPolygon, error) {
	b.vertices.Reset()
	b.triangles.Reset()
	b.edges.Reset()
	b.polys = b.polys[:0]

	var vbuf [renderer.VertexWords]uint32
	for pi, p := range polys {
		if p.Degenerate {
			continue
		}
		if len(b.polys) == b.maxPolygons {
			return nil, fmt.Errorf("polygon %d: %d polygons exceeds capacity %d: %w", pi, len(b.polys)+1,
				b.maxPolygons, util.ErrCapacityExceeded)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("polygon %d: %w", pi, err)
		}

		rp := rendererPolygon{
			poly:      p,
			key:       ClassifyPolygon(p),
			first:     b.triangles.Len(),
			edgeFirst: b.edges.Len(),
		}

		alpha := uint8((p.Attr >> 16) & 0x1F)
		firstIdx := b.vertices.Len() / renderer.VertexWords
		n := len(p.Vertices)
		if firstIdx+n > 0x10000 {
			return nil, fmt.Errorf("polygon %d: vertex %d not addressable with 16-bit indices: %w", pi,
				firstIdx+n-1, util.ErrCapacityExceeded)
		}

		for j, v := range p.Vertices {
			z, zshift := ShiftZ(p.FinalZ[j])
			x, y := v.FinalPosition[0], v.FinalPosition[1]
			if scale > 1 {
				x = (v.HiresPosition[0] * int32(scale)) >> 4
				y = (v.HiresPosition[1] * int32(scale)) >> 4
			}

			rv := renderer.Vertex{
				X: uint16(x),
				Y: uint16(y),
				Z: uint16(z),
				W: uint16(p.FinalW[j]),
				R: uint8(v.FinalColor[0] >> 1),
				G: uint8(v.FinalColor[1] >> 1),
				B: uint8(v.FinalColor[2] >> 1),
				A: alpha,
				S: v.TexCoords[0],
				T: v.TexCoords[1],

				Attr:       renderer.MakeVertexAttr(p.Attr, p.FacingView, p.WBuffer, zshift),
				TexParam:   p.TexParam,
				TexPalette: p.TexPalette,
			}
			if err := b.vertices.Append(rv.Pack(vbuf[:0])...); err != nil {
				return nil, fmt.Errorf("polygon %d vertex %d: %w", pi, j, err)
			}

			if j >= 2 {
				cur := uint16(firstIdx + j)
				if err := b.triangles.Append(uint16(firstIdx), cur-1, cur); err != nil {
					return nil, fmt.Errorf("polygon %d: %w", pi, err)
				}
			}
		}

		// The polygon outline as a closed loop.
		for j := range n {
			a, c := uint16(firstIdx+j), uint16(firstIdx+(j+1)%n)
			if err := b.edges.Append(a, c); err != nil {
				return nil, fmt.Errorf("polygon %d: %w", pi, err)
			}
		}

		rp.count = b.triangles.Len() - rp.first
		rp.edgeCount = b.edges.Len() - rp.edgeFirst
		b.polys = append(b.polys, rp)
	}

	// Concatenate the two index regions for upload.
	base := b.triangles.Len()
	b.indices = append(append(b.indices[:0], b.triangles.Slice()...), b.edges.Slice()...)
	for i := range b.polys {
		b.polys[i].edgeFirst += base
	}

	return b.polys, nil
}

// Vertices returns the packed vertex words from the last Build.
func (b *batchBuilder) Vertices() []uint32 { return b.vertices.Slice() }

// Indices returns the triangle and edge indices from the last Build.
func (b *batchBuilder) Indices() []uint16 { return b.indices }
