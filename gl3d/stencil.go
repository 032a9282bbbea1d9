// gl3d/stencil.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"
)

// Stencil bit allocation. The clear pass fills the stencil with 0xFF,
// which no polygon ID can produce, so that "background" can be told
// apart from every polygon.
const (
	StencilPolygonID    = 0x3F
	StencilSameIDMarker = 0x40
	StencilShadowBit    = 0x80

	stencilBackground = 0xFF
)

// The pipelines below implement the stencil tricks that emulate the
// hardware's shadow volumes and its rule that consecutive translucent
// overdraws by the same polygon ID blend only once.

func stencil(f renderer.CompareFunc, ref, read, write uint8, fail, zfail, pass renderer.StencilOp) renderer.StencilState {
	return renderer.StencilState{Func: f, Ref: ref, ReadMask: read, WriteMask: write, Fail: fail,
		DepthFail: zfail, Pass: pass}
}

const (
	keep    = renderer.StencilKeep
	zero    = renderer.StencilZero
	replace = renderer.StencilReplace
	invert  = renderer.StencilInvert
)

func fogMask(fog bool) renderer.ColorMask {
	return util.Select(fog, renderer.MaskB, renderer.MaskNone)
}

// translucentFog reports whether a translucent polygon writes the fog
// flag: only when fog is enabled and the polygon's own fog bit is clear.
func translucentFog(p *gpu3d.Polygon, st *gpu3d.RenderState) bool {
	return st.FogEnable() && !p.Attributes().Fog
}

// clearPipeline fills the stencil with the background sentinel rather
// than the clear plane's polygon ID, which only goes to the attribute
// target, so that the corrective pass can find uncovered pixels.
func clearPipeline() renderer.Pipeline {
	return renderer.Pipeline{
		Depth:     renderer.DepthState{Func: renderer.CompareAlways, Write: true},
		Stencil:   stencil(renderer.CompareAlways, stencilBackground, 0xFF, 0xFF, replace, replace, replace),
		ColorMask: renderer.MaskAll,
		AttrMask:  renderer.MaskAll,
	}
}

// opaquePipeline stamps the polygon ID into the stencil of every pixel
// the polygon covers.
func opaquePipeline(id uint8, st *gpu3d.RenderState) renderer.Pipeline {
	return renderer.Pipeline{
		Depth:     renderer.DepthState{Func: renderer.CompareLess, Write: true},
		Stencil:   stencil(renderer.CompareAlways, id, 0xFF, 0xFF, keep, keep, replace),
		ColorMask: renderer.MaskAll,
		AttrMask:  renderer.MaskR | fogMask(st.FogEnable()),
	}
}

// edgePipeline flags the outlines of opaque polygons in the attribute
// target for the final pass.
func edgePipeline() renderer.Pipeline {
	return renderer.Pipeline{
		Depth:    renderer.DepthState{Func: renderer.CompareLEqual},
		Stencil:  stencil(renderer.CompareAlways, 0, 0, 0, keep, keep, keep),
		AttrMask: renderer.MaskG,
	}
}

func translucentBlend(st *gpu3d.RenderState) renderer.BlendState {
	b := renderer.BlendState{
		Enabled:       true,
		SrcRGB:        renderer.BlendOne,
		DstRGB:        renderer.BlendZero,
		SrcAlpha:      renderer.BlendOne,
		DstAlpha:      renderer.BlendOne,
		EquationRGB:   renderer.BlendAdd,
		EquationAlpha: renderer.BlendMax,
	}
	if st.AlphaBlend() {
		b.SrcRGB, b.DstRGB = renderer.BlendSrcAlpha, renderer.BlendOneMinusSrcAlpha
	}
	return b
}

// Corrective sub-pass, run when the clear plane is fully transparent.

// correctiveShadowMaskPipeline flips bit 0 of background pixels where
// the mask fails the depth test, turning 0xFF into 0xFE.
func correctiveShadowMaskPipeline() renderer.Pipeline {
	return renderer.Pipeline{
		Depth:   renderer.DepthState{Func: renderer.CompareLess},
		Stencil: stencil(renderer.CompareEqual, stencilBackground, 0xFF, 0x01, keep, invert, keep),
	}
}

// correctiveShadowPipeline draws a shadow whose ID matches the clear
// plane's into the pixels marked by correctiveShadowMaskPipeline.
func correctiveShadowPipeline(p *gpu3d.Polygon, st *gpu3d.RenderState) renderer.Pipeline {
	id := p.PolygonID()
	return renderer.Pipeline{
		Depth:     renderer.DepthState{Func: renderer.CompareLess, Write: p.Attributes().DepthWrite},
		Stencil:   stencil(renderer.CompareEqual, 0xFE, 0xFF, ^(StencilSameIDMarker | id), keep, keep, invert),
		ColorMask: renderer.MaskAll,
		AttrMask:  fogMask(translucentFog(p, st)),
	}
}

// correctiveTranslucentPipeline draws translucent polygons over the
// background without blending. Inverting 0xFF under this write mask
// leaves exactly the same-ID marker and the polygon's ID, so the
// translucent pass then skips the pixels this pass already drew.
func correctiveTranslucentPipeline(p *gpu3d.Polygon, st *gpu3d.RenderState) renderer.Pipeline {
	id := p.PolygonID()
	return renderer.Pipeline{
		Depth:     renderer.DepthState{Func: renderer.CompareLess, Write: p.Attributes().DepthWrite},
		Stencil:   stencil(renderer.CompareEqual, stencilBackground, 0xFE, ^(StencilSameIDMarker | id), keep, keep, invert),
		ColorMask: renderer.MaskAll,
		AttrMask:  fogMask(translucentFog(p, st)),
	}
}

// Translucent pass.

// shadowMaskPipeline sets the shadow bit where the mask fails the depth
// test, i.e. inside the shadow volume. The bit is cleared beforehand.
func shadowMaskPipeline() renderer.Pipeline {
	return renderer.Pipeline{
		Depth:   renderer.DepthState{Func: renderer.CompareLess},
		Stencil: stencil(renderer.CompareAlways, StencilShadowBit, StencilShadowBit, StencilShadowBit, keep, replace, keep),
	}
}

// shadowCancelPipeline is the first of the two shadow draws: it clears
// the shadow bit where the pixel belongs to a polygon with the shadow's
// own ID, since polygons do not shadow themselves.
func shadowCancelPipeline(p *gpu3d.Polygon) renderer.Pipeline {
	return renderer.Pipeline{
		Depth:   renderer.DepthState{Func: renderer.CompareLess},
		Stencil: stencil(renderer.CompareEqual, p.PolygonID(), StencilPolygonID, StencilShadowBit, keep, keep, zero),
	}
}

// shadowDrawPipeline blends the shadow into the pixels whose shadow bit
// survived and stamps the shadow's ID with the same-ID marker.
func shadowDrawPipeline(p *gpu3d.Polygon, st *gpu3d.RenderState) renderer.Pipeline {
	id := p.PolygonID()
	return renderer.Pipeline{
		Blend: translucentBlend(st),
		Depth: renderer.DepthState{Func: renderer.CompareLess, Write: p.Attributes().DepthWrite},
		Stencil: stencil(renderer.CompareEqual, StencilShadowBit|StencilSameIDMarker|id, StencilShadowBit,
			StencilPolygonID|StencilSameIDMarker, keep, keep, replace),
		ColorMask: renderer.MaskAll,
		AttrMask:  fogMask(translucentFog(p, st)),
	}
}

// translucentPipeline blends unless the pixel was last drawn by a
// translucent polygon with the same ID, then marks it as such.
func translucentPipeline(p *gpu3d.Polygon, st *gpu3d.RenderState) renderer.Pipeline {
	id := p.PolygonID()
	return renderer.Pipeline{
		Blend: translucentBlend(st),
		Depth: renderer.DepthState{Func: renderer.CompareLess, Write: p.Attributes().DepthWrite},
		Stencil: stencil(renderer.CompareNotEqual, StencilSameIDMarker|id, StencilPolygonID|StencilSameIDMarker,
			StencilPolygonID|StencilSameIDMarker, keep, keep, replace),
		ColorMask: renderer.MaskAll,
		AttrMask:  fogMask(translucentFog(p, st)),
	}
}

// finalPipeline blends the fog/edge program's output using the fog color
// as the constant color.
func finalPipeline(st *gpu3d.RenderState) renderer.Pipeline {
	r, g, b, a := st.FogColorChannels()
	blend := renderer.BlendState{
		Enabled:       true,
		SrcRGB:        renderer.BlendConstantColor,
		DstRGB:        renderer.BlendOneMinusSrcAlpha,
		SrcAlpha:      renderer.BlendConstantColor,
		DstAlpha:      renderer.BlendOneMinusSrcAlpha,
		EquationRGB:   renderer.BlendAdd,
		EquationAlpha: renderer.BlendMax,
		Constant:      [4]float32{float32(b) / 31, float32(g) / 31, float32(r) / 31, float32(a) / 31},
	}
	if st.FogAlphaOnly() {
		blend.SrcRGB, blend.DstRGB = renderer.BlendZero, renderer.BlendOne
	}
	return renderer.Pipeline{
		Blend:     blend,
		Depth:     renderer.DepthState{Func: renderer.CompareAlways},
		Stencil:   stencil(renderer.CompareAlways, 0, 0, 0, keep, keep, keep),
		ColorMask: renderer.MaskAll,
	}
}
