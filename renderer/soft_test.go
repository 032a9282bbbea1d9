// renderer/soft_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/ndsemu/gl3d/log"
)

type softFixture struct {
	dev    *SoftwareRenderer
	clear  ProgramID
	opaque ProgramID
	target TargetID
}

func makeSoftFixture(t *testing.T, w, h int) *softFixture {
	t.Helper()

	f := &softFixture{dev: NewSoftwareRenderer(nil)}
	var err error
	if f.clear, err = f.dev.CompileProgram(ProgramDesc{Name: "clear", Kind: ProgramClear}); err != nil {
		t.Fatal(err)
	}
	if f.opaque, err = f.dev.CompileProgram(ProgramDesc{Name: "ZO", Kind: ProgramRender}); err != nil {
		t.Fatal(err)
	}
	f.target, err = f.dev.CreateTarget(TargetDesc{Name: "test", Width: w, Height: h,
		Attachments: AttachColor | AttachAttr | AttachDepthStencil})
	if err != nil {
		t.Fatal(err)
	}
	f.dev.UploadShaderConfig(&ShaderConfig{ScreenSize: [2]float32{float32(w), float32(h)}})

	// Two triangles covering the whole target.
	var verts []uint32
	for _, p := range [][2]uint16{{0, 0}, {uint16(w), 0}, {uint16(w), uint16(h)}, {0, uint16(h)}} {
		v := Vertex{X: p[0], Y: p[1], Z: 0x100, R: 255, A: 31, Attr: MakeVertexAttr(5<<24, true, false, 0)}
		verts = v.Pack(verts)
	}
	f.dev.UploadGeometry(verts, []uint16{0, 1, 2, 0, 2, 3})
	return f
}

func (f *softFixture) clearTo(cb *CommandBuffer, color [4]uint32) {
	cb.BindTarget(f.target)
	cb.DrawFullscreen(f.clear, Pipeline{
		Depth: DepthState{Func: CompareAlways, Write: true},
		Stencil: StencilState{Func: CompareAlways, Ref: 0xFF, ReadMask: 0xFF, WriteMask: 0xFF,
			Fail: StencilReplace, DepthFail: StencilReplace, Pass: StencilReplace},
		ColorMask: MaskAll,
		AttrMask:  MaskAll,
	}, 0, &ClearUniforms{Color: color, Depth: 0xFFFFFF, PolygonID: 63, Fog: 1})
}

func allEqual(t *testing.T, what string, pix []uint32, want uint32) {
	t.Helper()
	if len(pix) == 0 {
		t.Fatalf("%s: no pixels", what)
	}
	for i, p := range pix {
		if p != want {
			t.Errorf("%s: pixel %d: expected %#x, got %#x", what, i, want, p)
			return
		}
	}
}

func TestSoftwareClear(t *testing.T) {
	f := makeSoftFixture(t, 4, 3)
	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)

	f.clearTo(cb, [4]uint32{31, 0, 0, 31})
	stats := f.dev.RenderCommandBuffer(cb)
	if stats.FullscreenDraws() != 1 || stats.DrawCalls() != 1 {
		t.Errorf("unexpected stats %s", stats.String())
	}

	allEqual(t, "color", f.dev.ReadAttachment(f.target, AttachColor), 0xFF0000FF)
	allEqual(t, "attr", f.dev.ReadAttachment(f.target, AttachAttr), 0xFFFF003F)
	allEqual(t, "depth", f.dev.ReadAttachment(f.target, AttachDepthStencil), 0xFFFFFF)
	allEqual(t, "stencil", f.dev.ReadAttachment(f.target, AttachStencil), 0xFF)
}

func TestSoftwareSharedEdgeCoverage(t *testing.T) {
	f := makeSoftFixture(t, 8, 8)
	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)

	f.clearTo(cb, [4]uint32{})
	cb.ClearStencil(0xFF, 0)
	cb.DrawIndexed(f.opaque, Pipeline{
		Depth: DepthState{Func: CompareAlways},
		Stencil: StencilState{Func: CompareAlways, ReadMask: 0xFF, WriteMask: 0xFF,
			Fail: StencilKeep, DepthFail: StencilKeep, Pass: StencilIncr},
	}, PrimitiveTriangles, 0, 6)
	stats := f.dev.RenderCommandBuffer(cb)
	if stats.Triangles() != 2 {
		t.Errorf("expected 2 triangles, got %d", stats.Triangles())
	}

	// Every pixel is covered by exactly one of the two triangles.
	allEqual(t, "stencil", f.dev.ReadAttachment(f.target, AttachStencil), 1)
}

func TestSoftwareStencilAndDepth(t *testing.T) {
	f := makeSoftFixture(t, 4, 4)
	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)

	f.clearTo(cb, [4]uint32{0, 0, 31, 31})
	// Stencil holds 0xFF everywhere, so an EQUAL 5 test rejects it all.
	cb.DrawIndexed(f.opaque, Pipeline{
		Depth:     DepthState{Func: CompareLess, Write: true},
		Stencil:   StencilState{Func: CompareEqual, Ref: 5, ReadMask: 0xFF, WriteMask: 0xFF},
		ColorMask: MaskAll,
	}, PrimitiveTriangles, 0, 6)
	f.dev.RenderCommandBuffer(cb)
	allEqual(t, "rejected color", f.dev.ReadAttachment(f.target, AttachColor), 0xFFFF0000)
	allEqual(t, "rejected depth", f.dev.ReadAttachment(f.target, AttachDepthStencil), 0xFFFFFF)

	cb.Reset()
	cb.BindTarget(f.target)
	cb.DrawIndexed(f.opaque, Pipeline{
		Depth: DepthState{Func: CompareLess, Write: true},
		Stencil: StencilState{Func: CompareAlways, Ref: 5, ReadMask: 0xFF, WriteMask: 0xFF,
			Fail: StencilKeep, DepthFail: StencilKeep, Pass: StencilReplace},
		ColorMask: MaskAll,
		AttrMask:  MaskR | MaskB,
	}, PrimitiveTriangles, 0, 6)
	f.dev.RenderCommandBuffer(cb)
	allEqual(t, "color", f.dev.ReadAttachment(f.target, AttachColor), 0xFF0000FF)
	allEqual(t, "depth", f.dev.ReadAttachment(f.target, AttachDepthStencil), 0x100)
	allEqual(t, "stencil", f.dev.ReadAttachment(f.target, AttachStencil), 5)
	// Polygon ID in R, fog flag (clear) in B; G and A keep the clear values.
	allEqual(t, "attr", f.dev.ReadAttachment(f.target, AttachAttr), 0xFF000005)

	// The same geometry again fails the LESS depth test.
	cb.Reset()
	cb.BindTarget(f.target)
	cb.DrawIndexed(f.opaque, Pipeline{
		Depth: DepthState{Func: CompareLess},
		Stencil: StencilState{Func: CompareAlways, Ref: 9, ReadMask: 0xFF, WriteMask: 0xFF,
			Fail: StencilKeep, DepthFail: StencilInvert, Pass: StencilReplace},
	}, PrimitiveTriangles, 0, 6)
	f.dev.RenderCommandBuffer(cb)
	allEqual(t, "depth-fail stencil", f.dev.ReadAttachment(f.target, AttachStencil), 0xFA)
}

func TestSoftwareBlend(t *testing.T) {
	f := makeSoftFixture(t, 4, 4)
	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)

	f.clearTo(cb, [4]uint32{0, 0, 31, 31})
	cb.DrawIndexed(f.opaque, Pipeline{
		Blend: BlendState{Enabled: true, SrcRGB: BlendOne, DstRGB: BlendOne, SrcAlpha: BlendOne,
			DstAlpha: BlendOne, EquationRGB: BlendAdd, EquationAlpha: BlendMax},
		Depth:     DepthState{Func: CompareAlways},
		Stencil:   StencilState{Func: CompareAlways},
		ColorMask: MaskAll,
	}, PrimitiveTriangles, 0, 6)
	f.dev.RenderCommandBuffer(cb)
	allEqual(t, "color", f.dev.ReadAttachment(f.target, AttachColor), 0xFFFF00FF)
}

func TestSoftwareReadbackAndBlit(t *testing.T) {
	f := makeSoftFixture(t, 4, 4)
	small, err := f.dev.CreateTarget(TargetDesc{Name: "small", Width: 2, Height: 2, Attachments: AttachColor})
	if err != nil {
		t.Fatal(err)
	}

	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)
	f.clearTo(cb, [4]uint32{31, 0, 0, 31})
	cb.Blit(f.target, small, FilterNearest)
	stats := f.dev.RenderCommandBuffer(cb)
	if stats.Blits() != 1 {
		t.Errorf("expected 1 blit, got %d", stats.Blits())
	}
	allEqual(t, "blit", f.dev.ReadAttachment(small, AttachColor), 0xFF0000FF)

	f.dev.BeginReadback(small)
	dst := make([]uint32, 4)
	f.dev.FinishReadback(dst)
	// BGRA byte order: red lands in bits 16-23.
	allEqual(t, "readback", dst, 0xFFFF0000)

	if err := f.dev.ResizeTarget(small, 0, 2); err == nil {
		t.Errorf("expected error resizing to zero width")
	}
}

func TestTruncatedCommandsReported(t *testing.T) {
	var buf bytes.Buffer
	dev := NewSoftwareRenderer(log.NewWithHandler(slog.NewJSONHandler(&buf, nil)))

	cb := GetCommandBuffer()
	defer ReturnCommandBuffer(cb)
	cb.Viewport(0, 0, 1<<40, 1)
	if cb.Truncated() != 1 {
		t.Fatalf("expected 1 truncated value, got %d", cb.Truncated())
	}

	dev.RenderCommandBuffer(cb)
	if !strings.Contains(buf.String(), "1 non-32-bit values were added to the command buffer") {
		t.Errorf("expected the device to log the truncation, got %q", buf.String())
	}

	cb.Reset()
	if cb.Truncated() != 0 {
		t.Errorf("expected Reset to clear the truncation count, got %d", cb.Truncated())
	}
}
