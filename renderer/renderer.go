// renderer/renderer.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	"log/slog"
)

type (
	ProgramID uint32
	TextureID uint32
	TargetID  uint32
)

// RenderFlags select one of the render program variants.
type RenderFlags uint8

const (
	FlagWBuffer    RenderFlags = 1 << 0
	FlagTrans      RenderFlags = 1 << 1
	FlagShadowMask RenderFlags = 1 << 2

	NumRenderFlagCombinations = 8
)

// Valid reports whether the combination names a program that exists;
// translucent and shadow-mask are mutually exclusive.
func (f RenderFlags) Valid() bool {
	return f < NumRenderFlagCombinations && (f&FlagTrans == 0 || f&FlagShadowMask == 0)
}

func (f RenderFlags) String() string {
	s := "Z"
	if f&FlagWBuffer != 0 {
		s = "W"
	}
	switch {
	case f&FlagTrans != 0:
		return s + "T"
	case f&FlagShadowMask != 0:
		return s + "SM"
	default:
		return s + "O"
	}
}

type ProgramKind uint8

const (
	ProgramClear ProgramKind = iota
	ProgramRender
	ProgramFinal
)

// ProgramDesc describes a program to build. Executors that do not run
// GLSL use Kind and Flags to select their equivalent fragment behavior.
type ProgramDesc struct {
	Name           string
	Kind           ProgramKind
	Flags          RenderFlags
	VertexSource   string
	FragmentSource string
}

type TextureFormat uint8

const (
	// One unsigned byte per texel; texture image memory.
	TextureR8UI TextureFormat = iota
	// 16-bit BGR555 plus a one-bit alpha; palette memory.
	TextureRGB5A1
)

func (f TextureFormat) BytesPerTexel() int {
	if f == TextureRGB5A1 {
		return 2
	}
	return 1
}

type TextureDesc struct {
	Name          string
	Format        TextureFormat
	Width, Height int
}

// Attachment identifies one image of a render target.
type Attachment uint8

const (
	AttachColor Attachment = 1 << iota
	// Per-pixel attributes: R opaque polygon ID, G edge flag, B fog flag.
	AttachAttr
	AttachDepthStencil
	// Only meaningful for ReadAttachment: the stencil half of the
	// depth/stencil attachment.
	AttachStencil
)

type TargetDesc struct {
	Name          string
	Width, Height int
	Attachments   Attachment
}

// Device is the host graphics device as the 3D core sees it. Resources
// are created up front; per frame the core uploads geometry, textures
// and the shader configuration and then submits a CommandBuffer.
//
// There are two implementations: OpenGL3Renderer, which drives an
// OpenGL 3.3 core context, and SoftwareRenderer, which executes the same
// commands on the CPU.
type Device interface {
	// CompileProgram compiles and links the given program.
	CompileProgram(desc ProgramDesc) (ProgramID, error)

	CreateTexture(desc TextureDesc) (TextureID, error)
	// UpdateTexture replaces the given rectangle of the texture; data
	// holds w*h texels, tightly packed.
	UpdateTexture(id TextureID, x, y, w, h int, data []byte)

	CreateTarget(desc TargetDesc) (TargetID, error)
	// ResizeTarget reallocates all of the target's attachments at the
	// new size; their contents are undefined afterward.
	ResizeTarget(id TargetID, w, h int) error

	// UploadGeometry replaces the device's vertex and index buffers.
	// vertices holds VertexWords words per vertex.
	UploadGeometry(vertices []uint32, indices []uint16)

	UploadShaderConfig(cfg *ShaderConfig)

	// RenderCommandBuffer executes all of the commands in the provided
	// command buffer, returning statistics about what was rendered.
	RenderCommandBuffer(cb *CommandBuffer) RendererStats

	// BeginReadback starts an asynchronous read of the target's color
	// attachment as BGRA8.
	BeginReadback(id TargetID)
	// FinishReadback waits for the readback started by BeginReadback
	// and copies its pixels, top row first, to dst.
	FinishReadback(dst []uint32)

	// ReadAttachment synchronously reads an attachment; for debugging and
	// tests. Color and attribute pixels are returned as R | G<<8 | B<<16
	// | A<<24, depth as 24-bit values and stencil as 8-bit values.
	ReadAttachment(id TargetID, a Attachment) []uint32

	// TextureHandle returns the native handle of the target's color
	// attachment for presentation code that samples it directly.
	TextureHandle(id TargetID) uint32

	// Dispose releases resources allocated by the device.
	Dispose()
}

// RendererStats encapsulates assorted statistics from rendering.
type RendererStats struct {
	nBuffers, bufferBytes int
	nDrawCalls            int
	nLines, nTriangles    int
	nFullscreen           int
	nStencilClears        int
	nBlits                int
}

func (rs *RendererStats) DrawCalls() int       { return rs.nDrawCalls }
func (rs *RendererStats) Triangles() int       { return rs.nTriangles }
func (rs *RendererStats) Lines() int           { return rs.nLines }
func (rs *RendererStats) FullscreenDraws() int { return rs.nFullscreen }
func (rs *RendererStats) Blits() int           { return rs.nBlits }

func (rs *RendererStats) String() string {
	return fmt.Sprintf("%d buffers (%.2f KB), %d draw calls: %d lines, %d tris, %d full-screen, %d stencil clears, %d blits",
		rs.nBuffers, float32(rs.bufferBytes)/1024, rs.nDrawCalls, rs.nLines, rs.nTriangles, rs.nFullscreen,
		rs.nStencilClears, rs.nBlits)
}

func (rs *RendererStats) Merge(s RendererStats) {
	rs.nBuffers += s.nBuffers
	rs.bufferBytes += s.bufferBytes
	rs.nDrawCalls += s.nDrawCalls
	rs.nLines += s.nLines
	rs.nTriangles += s.nTriangles
	rs.nFullscreen += s.nFullscreen
	rs.nStencilClears += s.nStencilClears
	rs.nBlits += s.nBlits
}

func (rs RendererStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("buffers", rs.nBuffers),
		slog.Int("buffer_memory", rs.bufferBytes),
		slog.Int("draw_calls", rs.nDrawCalls),
		slog.Int("lines", rs.nLines),
		slog.Int("tris", rs.nTriangles),
		slog.Int("fullscreen", rs.nFullscreen),
		slog.Int("stencil_clears", rs.nStencilClears),
		slog.Int("blits", rs.nBlits),
	)
}

// account records for a command as it is executed; shared by the
// executors so that their statistics agree.
func (rs *RendererStats) account(cmd *Command) {
	switch cmd.Op {
	case RendererDraw:
		rs.nDrawCalls++
		switch cmd.Draw.Primitive {
		case PrimitiveTriangles:
			rs.nTriangles += cmd.Draw.Count / 3
		case PrimitiveLines:
			rs.nLines += cmd.Draw.Count / 2
		case PrimitiveFullscreen:
			rs.nFullscreen++
		}
	case RendererClearStencil:
		rs.nStencilClears++
	case RendererBlit:
		rs.nBlits++
	}
}
