// renderer/soft_raster.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	gomath "math"

	"github.com/ndsemu/gl3d/util"
)

type rasterState struct {
	target             *softTarget
	vpX, vpY, vpW, vpH int
	draw               *DrawCommand
	prog               ProgramDesc
}

type fragment struct {
	color [4]float32
	attr  [4]uint8
	depth uint32
}

// varyings are the per-vertex values interpolated across a primitive.
type varyings struct {
	x, y    float64
	depth   float64
	r, g, b float64
}

func (s *SoftwareRenderer) draw(rs *rasterState) {
	d := rs.draw
	switch d.Primitive {
	case PrimitiveFullscreen:
		s.drawFullscreen(rs)

	case PrimitiveTriangles, PrimitiveLines:
		per := util.Select(d.Primitive == PrimitiveLines, 2, 3)
		if d.First < 0 || d.First+d.Count > len(s.indices) {
			s.lg.Errorf("draw [%d,+%d) outside of %d indices", d.First, d.Count, len(s.indices))
			return
		}
		var vtx [3]Vertex
		for i := d.First; i+per <= d.First+d.Count; i += per {
			ok := true
			for j := range per {
				idx := int(s.indices[i+j])
				if VertexWords*(idx+1) > len(s.vertices) {
					ok = false
					break
				}
				vtx[j] = UnpackVertex(s.vertices[VertexWords*idx:])
			}
			if !ok {
				s.lg.Errorf("index %d out of range", i)
				continue
			}
			if per == 3 {
				s.drawTriangle(rs, vtx)
			} else {
				s.drawLine(rs, vtx[0], vtx[1])
			}
		}
	}
}

// toWindow maps a vertex from screen-size units to the viewport.
func (s *SoftwareRenderer) toWindow(rs *rasterState, v Vertex) varyings {
	sw, sh := float64(s.config.ScreenSize[0]), float64(s.config.ScreenSize[1])
	if sw == 0 || sh == 0 {
		sw, sh = float64(rs.vpW), float64(rs.vpH)
	}
	return varyings{
		x:     float64(rs.vpX) + float64(v.X)*float64(rs.vpW)/sw,
		y:     float64(rs.vpY) + float64(v.Y)*float64(rs.vpH)/sh,
		depth: float64(v.Depth()),
		r:     float64(v.R),
		g:     float64(v.G),
		b:     float64(v.B),
	}
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft decides ownership of pixels whose centers lie exactly on an
// edge; an edge shared by two triangles is traversed in opposite
// directions by each, so exactly one of them owns such pixels.
func topLeft(ax, ay, bx, by float64) bool {
	return by < ay || (by == ay && bx > ax)
}

func (s *SoftwareRenderer) drawTriangle(rs *rasterState, vtx [3]Vertex) {
	v := [3]varyings{s.toWindow(rs, vtx[0]), s.toWindow(rs, vtx[1]), s.toWindow(rs, vtx[2])}
	// Flat attributes come from the last vertex, as with GL's default
	// provoking vertex.
	flat := vtx[2]

	area := edge(v[0].x, v[0].y, v[1].x, v[1].y, v[2].x, v[2].y)
	if area == 0 {
		return
	}
	if area < 0 {
		v[1], v[2] = v[2], v[1]
		area = -area
	}

	t := rs.target
	x0 := max(int(gomath.Floor(min(v[0].x, v[1].x, v[2].x))), rs.vpX, 0)
	x1 := min(int(gomath.Ceil(max(v[0].x, v[1].x, v[2].x))), rs.vpX+rs.vpW, t.desc.Width)
	y0 := max(int(gomath.Floor(min(v[0].y, v[1].y, v[2].y))), rs.vpY, 0)
	y1 := min(int(gomath.Ceil(max(v[0].y, v[1].y, v[2].y))), rs.vpY+rs.vpH, t.desc.Height)

	inside := func(w, ax, ay, bx, by float64) bool {
		return w > 0 || (w == 0 && topLeft(ax, ay, bx, by))
	}

	for y := y0; y < y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float64(x) + 0.5
			w0 := edge(v[1].x, v[1].y, v[2].x, v[2].y, px, py)
			w1 := edge(v[2].x, v[2].y, v[0].x, v[0].y, px, py)
			w2 := edge(v[0].x, v[0].y, v[1].x, v[1].y, px, py)
			if !inside(w0, v[1].x, v[1].y, v[2].x, v[2].y) ||
				!inside(w1, v[2].x, v[2].y, v[0].x, v[0].y) ||
				!inside(w2, v[0].x, v[0].y, v[1].x, v[1].y) {
				continue
			}

			l0, l1, l2 := w0/area, w1/area, w2/area
			iv := varyings{
				depth: l0*v[0].depth + l1*v[1].depth + l2*v[2].depth,
				r:     l0*v[0].r + l1*v[1].r + l2*v[2].r,
				g:     l0*v[0].g + l1*v[1].g + l2*v[2].g,
				b:     l0*v[0].b + l1*v[1].b + l2*v[2].b,
			}
			if f, ok := s.shadeRender(rs.prog.Flags, iv, flat); ok {
				s.writeFragment(rs, x, y, &f)
			}
		}
	}
}

// drawLine rasterizes a line with a DDA walk, omitting the final
// endpoint.
func (s *SoftwareRenderer) drawLine(rs *rasterState, a, b Vertex) {
	va, vb := s.toWindow(rs, a), s.toWindow(rs, b)
	dx, dy := vb.x-va.x, vb.y-va.y
	n := int(gomath.Max(gomath.Abs(dx), gomath.Abs(dy)))
	if n == 0 {
		return
	}
	t := rs.target
	for i := range n {
		f := float64(i) / float64(n)
		x := int(gomath.Floor(va.x + f*dx))
		y := int(gomath.Floor(va.y + f*dy))
		if x < max(rs.vpX, 0) || y < max(rs.vpY, 0) || x >= min(rs.vpX+rs.vpW, t.desc.Width) ||
			y >= min(rs.vpY+rs.vpH, t.desc.Height) {
			continue
		}
		iv := varyings{
			depth: va.depth + f*(vb.depth-va.depth),
			r:     va.r + f*(vb.r-va.r),
			g:     va.g + f*(vb.g-va.g),
			b:     va.b + f*(vb.b-va.b),
		}
		if frag, ok := s.shadeRender(rs.prog.Flags, iv, b); ok {
			s.writeFragment(rs, x, y, &frag)
		}
	}
}

func (s *SoftwareRenderer) drawFullscreen(rs *rasterState) {
	t := rs.target
	var sample *softTarget
	if rs.prog.Kind == ProgramFinal {
		if sample = s.target(rs.draw.Sample); sample == nil || sample.depth == nil || sample.attr == nil {
			s.lg.Errorf("%d: final pass needs a target with depth and attributes", rs.draw.Sample)
			return
		}
	}

	for y := max(rs.vpY, 0); y < min(rs.vpY+rs.vpH, t.desc.Height); y++ {
		for x := max(rs.vpX, 0); x < min(rs.vpX+rs.vpW, t.desc.Width); x++ {
			var f fragment
			switch rs.prog.Kind {
			case ProgramClear:
				f = shadeClear(&rs.draw.Clear)
			case ProgramFinal:
				f = s.shadeFinal(sample, x, y)
			default:
				continue
			}
			s.writeFragment(rs, x, y, &f)
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Per-fragment operations

func (s *SoftwareRenderer) writeFragment(rs *rasterState, x, y int, f *fragment) {
	t := rs.target
	p := &rs.draw.Pipeline
	idx := y*t.desc.Width + x

	st := &p.Stencil
	if t.stencil != nil {
		cur := t.stencil[idx]
		if !st.Func.Test(uint32(st.Ref&st.ReadMask), uint32(cur&st.ReadMask)) {
			t.stencil[idx] = updateStencil(cur, st.Fail, st)
			return
		}
	}

	depthPass := true
	if t.depth != nil {
		depthPass = p.Depth.Func.Test(f.depth, t.depth[idx])
	}
	if t.stencil != nil {
		t.stencil[idx] = updateStencil(t.stencil[idx], util.Select(depthPass, st.Pass, st.DepthFail), st)
	}
	if !depthPass {
		return
	}
	if p.Depth.Write && t.depth != nil {
		t.depth[idx] = f.depth
	}

	if t.color != nil && p.ColorMask != MaskNone {
		px := t.color[4*idx : 4*idx+4]
		out := f.color
		if p.Blend.Enabled {
			out = blend(&p.Blend, f.color, [4]float32{
				float32(px[0]) / 255, float32(px[1]) / 255, float32(px[2]) / 255, float32(px[3]) / 255})
		}
		for c := range 4 {
			if p.ColorMask&(1<<c) != 0 {
				px[c] = uint8(util.Clamp(out[c], 0, 1)*255 + 0.5)
			}
		}
	}

	if t.attr != nil && p.AttrMask != MaskNone {
		px := t.attr[4*idx : 4*idx+4]
		for c := range 4 {
			if p.AttrMask&(1<<c) != 0 {
				px[c] = f.attr[c]
			}
		}
	}
}

func updateStencil(cur uint8, op StencilOp, st *StencilState) uint8 {
	return (cur &^ st.WriteMask) | (op.Apply(cur, st.Ref) & st.WriteMask)
}

func blendFactor(f BlendFactor, src, dst [4]float32, constant [4]float32, c int) float32 {
	switch f {
	case BlendZero:
		return 0
	case BlendOne:
		return 1
	case BlendSrcAlpha:
		return src[3]
	case BlendOneMinusSrcAlpha:
		return 1 - src[3]
	case BlendDstAlpha:
		return dst[3]
	case BlendOneMinusDstAlpha:
		return 1 - dst[3]
	case BlendConstantColor:
		return constant[c]
	case BlendOneMinusConstantColor:
		return 1 - constant[c]
	default:
		return 0
	}
}

func blend(b *BlendState, src, dst [4]float32) [4]float32 {
	var out [4]float32
	for c := range 4 {
		sf, df, eq := b.SrcRGB, b.DstRGB, b.EquationRGB
		if c == 3 {
			sf, df, eq = b.SrcAlpha, b.DstAlpha, b.EquationAlpha
		}
		if eq == BlendMax {
			out[c] = max(src[c], dst[c])
		} else {
			out[c] = src[c]*blendFactor(sf, src, dst, b.Constant, c) + dst[c]*blendFactor(df, src, dst, b.Constant, c)
		}
	}
	return out
}

///////////////////////////////////////////////////////////////////////////
// Shading

func shadeClear(c *ClearUniforms) fragment {
	return fragment{
		color: [4]float32{float32(c.Color[0]) / 31, float32(c.Color[1]) / 31, float32(c.Color[2]) / 31,
			float32(c.Color[3]) / 31},
		attr:  [4]uint8{uint8(c.PolygonID), 0, uint8(util.Select(c.Fog != 0, 255, 0)), 255},
		depth: c.Depth,
	}
}

// shadeRender returns the fragment for a render program, or false if the
// fragment is discarded.
func (s *SoftwareRenderer) shadeRender(flags RenderFlags, iv varyings, flat Vertex) (fragment, bool) {
	alpha := flat.A & 0x1F
	switch {
	case flags&FlagShadowMask != 0:
		return fragment{color: [4]float32{0, 0, 0, 1}, depth: uint32(iv.depth + 0.5)}, true
	case flags&FlagTrans != 0:
		if alpha == 0 || alpha == 31 {
			return fragment{}, false
		}
	default:
		if alpha != 31 {
			return fragment{}, false
		}
	}

	col := [4]float32{float32(iv.r) / 255, float32(iv.g) / 255, float32(iv.b) / 255, float32(alpha) / 31}
	if (flat.Attr>>4)&0x3 == 2 {
		toon := s.config.ToonColors[util.Clamp(int(col[0]*31+0.5), 0, 31)]
		for c := range 3 {
			if s.config.DispCnt&(1<<1) != 0 {
				col[c] = min(col[c]+toon[c], 1)
			} else {
				col[c] = toon[c]
			}
		}
	}

	return fragment{
		color: col,
		attr: [4]uint8{flat.PolygonID(), 255, uint8(util.Select(flat.Attr&(1<<15) != 0, 255, 0)),
			255},
		depth: uint32(iv.depth + 0.5),
	}, true
}

func (s *SoftwareRenderer) shadeFinal(t *softTarget, x, y int) fragment {
	w := t.desc.Width
	idx := y*w + x
	depth := t.depth[idx]
	attr := t.attr[4*idx : 4*idx+4]

	if s.config.DispCnt&(1<<5) != 0 && attr[1] != 0 {
		id := attr[0]
		isEdge := false
		for _, o := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nx, ny := x+o[0], y+o[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= t.desc.Height {
				continue
			}
			n := ny*w + nx
			if t.attr[4*n] != id && depth < t.depth[n] {
				isEdge = true
				break
			}
		}
		if isEdge {
			e := s.config.EdgeColors[(id>>3)&7]
			return fragment{color: [4]float32{e[0], e[1], e[2], 1}}
		}
	}

	var d float32
	if s.config.DispCnt&(1<<7) != 0 && attr[2] != 0 {
		d = s.config.FogDensityAt(depth)
	}
	return fragment{color: [4]float32{d, d, d, d}}
}
