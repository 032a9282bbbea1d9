// gl3d/compositor.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"
)

// framePlan is everything the compositor needs to record a frame.
type framePlan struct {
	state  *gpu3d.RenderState
	target renderer.TargetID
	flags  renderer.RenderFlags

	// Set if the frame has any polygons, even if all are degenerate.
	havePolygons bool
	polys        []rendererPolygon
	// Index of the first translucent polygon in polys, or -1.
	split int
}

// FrameCompositor records the fixed per-frame sequence of passes into a
// command buffer.
type FrameCompositor struct {
	shaders *ShaderVariantCache
}

func (fc *FrameCompositor) Compose(cb *renderer.CommandBuffer, plan *framePlan) {
	fc.clearPass(cb, plan.state)
	if !plan.havePolygons {
		return
	}

	fc.opaquePass(cb, plan)
	if plan.state.EdgeMarking() {
		fc.edgePass(cb, plan)
	}
	if plan.split >= 0 {
		if plan.state.ClearAlpha() == 0 {
			fc.correctivePass(cb, plan)
		}
		fc.translucentPass(cb, plan)
	}
	if plan.state.NeedsFinalPass() {
		cb.DrawFullscreen(fc.shaders.Final(), finalPipeline(plan.state), plan.target, nil)
	}
}

func (fc *FrameCompositor) clearPass(cb *renderer.CommandBuffer, st *gpu3d.RenderState) {
	c := st.ClearColor()
	cb.DrawFullscreen(fc.shaders.Clear(), clearPipeline(), 0, &renderer.ClearUniforms{
		Color:     [4]uint32{uint32(c.R()), uint32(c.G()), uint32(c.B()), uint32(st.ClearAlpha())},
		Depth:     st.ClearDepth(),
		PolygonID: uint32(st.ClearPolygonID()),
		Fog:       util.BoolBit[uint32](st.ClearFog()),
	})
}

// drawBatch draws the run of same-key polygons starting at i and returns
// the index following it.
func drawBatch(cb *renderer.CommandBuffer, prog renderer.ProgramID, p renderer.Pipeline,
	polys []rendererPolygon, i int) int {
	n := batchLength(polys, i)
	last := polys[i+n-1]
	cb.DrawIndexed(prog, p, renderer.PrimitiveTriangles, polys[i].first, last.first+last.count-polys[i].first)
	return i + n
}

func drawSingle(cb *renderer.CommandBuffer, prog renderer.ProgramID, p renderer.Pipeline, rp rendererPolygon) {
	cb.DrawIndexed(prog, p, renderer.PrimitiveTriangles, rp.first, rp.count)
}

// opaquePass draws the fully opaque pixels of every polygon other than
// shadow masks; the opaque program discards everything else.
func (fc *FrameCompositor) opaquePass(cb *renderer.CommandBuffer, plan *framePlan) {
	prog := fc.shaders.Render(plan.flags)
	polys := plan.polys
	for i := 0; i < len(polys); {
		if polys[i].poly.IsShadowMask {
			i++
			continue
		}
		i = drawBatch(cb, prog, opaquePipeline(polys[i].poly.PolygonID(), plan.state), polys, i)
	}
}

// edgePass draws the outlines of the opaque polygons as lines.
func (fc *FrameCompositor) edgePass(cb *renderer.CommandBuffer, plan *framePlan) {
	n := util.Select(plan.split >= 0, plan.split, len(plan.polys))
	if n == 0 {
		return
	}
	opaque := plan.polys[:n]
	last := opaque[n-1]
	cb.DrawIndexed(fc.shaders.Render(plan.flags), edgePipeline(), renderer.PrimitiveLines, opaque[0].edgeFirst,
		last.edgeFirst+last.edgeCount-opaque[0].edgeFirst)
}

// correctivePass handles translucent pixels drawn directly over a
// transparent clear plane; those must not blend.
func (fc *FrameCompositor) correctivePass(cb *renderer.CommandBuffer, plan *framePlan) {
	trans := fc.shaders.Render(plan.flags | renderer.FlagTrans)
	mask := fc.shaders.Render(plan.flags | renderer.FlagShadowMask)
	clearID := plan.state.ClearPolygonID()

	polys := plan.polys
	for i := 0; i < len(polys); {
		p := polys[i].poly
		switch {
		case p.IsShadowMask:
			i = drawBatch(cb, mask, correctiveShadowMaskPipeline(), polys, i)

		case p.Translucent && p.IsShadow:
			// A shadow only shows on the clear plane if its ID matches
			// the plane's.
			if p.PolygonID() != clearID {
				i++
				continue
			}
			i = drawBatch(cb, trans, correctiveShadowPipeline(p, plan.state), polys, i)

		case p.Translucent:
			i = drawBatch(cb, trans, correctiveTranslucentPipeline(p, plan.state), polys, i)

		default:
			i++
		}
	}
}

func (fc *FrameCompositor) translucentPass(cb *renderer.CommandBuffer, plan *framePlan) {
	trans := fc.shaders.Render(plan.flags | renderer.FlagTrans)
	mask := fc.shaders.Render(plan.flags | renderer.FlagShadowMask)

	polys := plan.polys
	for i := 0; i < len(polys); {
		p := polys[i].poly
		switch {
		case p.IsShadowMask:
			cb.ClearStencil(StencilShadowBit, 0)
			i = drawBatch(cb, mask, shadowMaskPipeline(), polys, i)

		case p.Translucent && p.IsShadow:
			drawSingle(cb, trans, shadowCancelPipeline(p), polys[i])
			drawSingle(cb, trans, shadowDrawPipeline(p, plan.state), polys[i])
			i++

		case p.Translucent:
			i = drawBatch(cb, trans, translucentPipeline(p, plan.state), polys, i)

		default:
			i++
		}
	}
}
