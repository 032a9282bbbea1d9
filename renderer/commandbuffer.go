// renderer/commandbuffer.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	"io"
	"sync"

	"github.com/goforj/godump"
)

// The command buffer stores a series of rendering commands, represented by
// the following values. Each one is followed in the buffer by a fixed
// number of arguments, after which the next command follows. Comments
// after each command briefly describe its arguments.
//
// Every draw carries its complete Pipeline, so commands never depend on
// state set by earlier commands other than the bound target, viewport and
// textures.
const (
	RendererBindTarget   = iota // 1 uint32: target id
	RendererViewport            // 4 int32: x, y, width, height
	RendererBindTextures        // 2 uint32: texture ids for units 0 and 1
	RendererClearStencil        // 2 uint32: write mask, value
	RendererDraw                // drawArgWords uint32, see DrawIndexed
	RendererBlit                // 3 uint32: source target, destination target, filter
)

const drawArgWords = 5 + pipelineWords + 7

type Primitive uint8

const (
	PrimitiveTriangles Primitive = iota
	PrimitiveLines
	// A full-screen quad; takes no indices.
	PrimitiveFullscreen
)

func (p Primitive) String() string {
	return [...]string{"triangles", "lines", "fullscreen", "?"}[p&3]
}

type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

// ClearUniforms are the inputs of the clear program: the 5-bit clear
// color and alpha, the 24-bit clear depth, the clear polygon ID and fog
// flag.
type ClearUniforms struct {
	Color     [4]uint32
	Depth     uint32
	PolygonID uint32
	Fog       uint32
}

type DrawCommand struct {
	Program   ProgramID
	Primitive Primitive
	// Range of the index buffer to draw, in indices.
	First, Count int
	// Target whose depth and attribute attachments a full-screen draw
	// samples, or zero.
	Sample   TargetID
	Pipeline Pipeline
	Clear    ClearUniforms
}

type BlitCommand struct {
	Src, Dst TargetID
	Filter   Filter
}

// Command is the decoded form of one command in a CommandBuffer.
type Command struct {
	Op int

	Target                    TargetID
	X, Y, Width, Height       int
	Textures                  [2]TextureID
	StencilMask, StencilValue uint8
	Draw                      DrawCommand
	Blit                      BlitCommand
}

// CommandBuffer encodes a sequence of rendering commands in an
// API-agnostic manner. The 3D core builds one per frame and hands it to a
// Device for execution.
type CommandBuffer struct {
	Buf []uint32
	// Number of values that did not fit in 32 bits; the device reports
	// them when it runs the buffer.
	truncated int
}

// CommandBuffers are managed using a sync.Pool so that their buf slice
// allocations persist across multiple uses.
var commandBufferPool = sync.Pool{New: func() any { return &CommandBuffer{} }}

func GetCommandBuffer() *CommandBuffer {
	return commandBufferPool.Get().(*CommandBuffer)
}

func ReturnCommandBuffer(cb *CommandBuffer) {
	cb.Reset()
	commandBufferPool.Put(cb)
}

// Reset resets the command buffer's length to zero so that it can be
// reused.
func (cb *CommandBuffer) Reset() {
	cb.Buf = cb.Buf[:0]
	cb.truncated = 0
}

// Truncated returns the number of values added to the buffer that did
// not fit in 32 bits.
func (cb *CommandBuffer) Truncated() int {
	return cb.truncated
}

func (cb *CommandBuffer) appendInts(ints ...int) {
	for _, i := range ints {
		if i != int(int32(i)) && i != int(uint32(i)) {
			cb.truncated++
		}
		cb.Buf = append(cb.Buf, uint32(i))
	}
}

// BindTarget directs subsequent draws to the given render target.
func (cb *CommandBuffer) BindTarget(id TargetID) {
	cb.appendInts(RendererBindTarget, int(id))
}

// Viewport adds a command to the command buffer to set the viewport to the
// specified rectangle.
func (cb *CommandBuffer) Viewport(x, y, w, h int) {
	cb.appendInts(RendererViewport, x, y, w, h)
}

// BindTextures binds the texture and palette memory images that render
// programs sample.
func (cb *CommandBuffer) BindTextures(tex, pal TextureID) {
	cb.appendInts(RendererBindTextures, int(tex), int(pal))
}

// ClearStencil sets the stencil bits selected by mask to value over the
// whole bound target.
func (cb *CommandBuffer) ClearStencil(mask, value uint8) {
	cb.appendInts(RendererClearStencil, int(mask), int(value))
}

// DrawIndexed draws count indices starting at first from the device's
// index buffer.
func (cb *CommandBuffer) DrawIndexed(prog ProgramID, p Pipeline, prim Primitive, first, count int) {
	cb.appendDraw(DrawCommand{Program: prog, Pipeline: p, Primitive: prim, First: first, Count: count})
}

// DrawFullscreen draws a quad covering the viewport. sample names the
// target whose depth and attributes the program reads, if any; clear
// supplies the clear program's uniforms and may be nil.
func (cb *CommandBuffer) DrawFullscreen(prog ProgramID, p Pipeline, sample TargetID, clear *ClearUniforms) {
	d := DrawCommand{Program: prog, Pipeline: p, Primitive: PrimitiveFullscreen, Sample: sample}
	if clear != nil {
		d.Clear = *clear
	}
	cb.appendDraw(d)
}

func (cb *CommandBuffer) appendDraw(d DrawCommand) {
	cb.appendInts(RendererDraw, int(d.Program), int(d.Primitive), d.First, d.Count, int(d.Sample))
	cb.Buf = d.Pipeline.encode(cb.Buf)
	c := d.Clear
	cb.Buf = append(cb.Buf, c.Color[0], c.Color[1], c.Color[2], c.Color[3], c.Depth, c.PolygonID, c.Fog)
}

// Blit copies the color attachment of src to dst, scaling to fit.
func (cb *CommandBuffer) Blit(src, dst TargetID, filter Filter) {
	cb.appendInts(RendererBlit, int(src), int(dst), int(filter))
}

// decode decodes the command starting at cb.Buf[i] and returns it along
// with the index of the following command.
func (cb *CommandBuffer) decode(i int) (Command, int) {
	buf := cb.Buf
	cmd := Command{Op: int(buf[i])}
	i++

	switch cmd.Op {
	case RendererBindTarget:
		cmd.Target = TargetID(buf[i])
		i++

	case RendererViewport:
		cmd.X, cmd.Y = int(int32(buf[i])), int(int32(buf[i+1]))
		cmd.Width, cmd.Height = int(int32(buf[i+2])), int(int32(buf[i+3]))
		i += 4

	case RendererBindTextures:
		cmd.Textures = [2]TextureID{TextureID(buf[i]), TextureID(buf[i+1])}
		i += 2

	case RendererClearStencil:
		cmd.StencilMask, cmd.StencilValue = uint8(buf[i]), uint8(buf[i+1])
		i += 2

	case RendererDraw:
		d := &cmd.Draw
		d.Program = ProgramID(buf[i])
		d.Primitive = Primitive(buf[i+1])
		d.First, d.Count = int(buf[i+2]), int(buf[i+3])
		d.Sample = TargetID(buf[i+4])
		d.Pipeline = decodePipeline(buf[i+5 : i+5+pipelineWords])
		c := buf[i+5+pipelineWords:]
		d.Clear = ClearUniforms{
			Color:     [4]uint32{c[0], c[1], c[2], c[3]},
			Depth:     c[4],
			PolygonID: c[5],
			Fog:       c[6],
		}
		i += drawArgWords

	case RendererBlit:
		cmd.Blit = BlitCommand{Src: TargetID(buf[i]), Dst: TargetID(buf[i+1]), Filter: Filter(buf[i+2])}
		i += 3

	default:
		panic(fmt.Sprintf("%d: unknown command in CommandBuffer", cmd.Op))
	}

	return cmd, i
}

// Commands returns the decoded commands in the buffer, in order.
func (cb *CommandBuffer) Commands() []Command {
	var cmds []Command
	for i := 0; i < len(cb.Buf); {
		var cmd Command
		cmd, i = cb.decode(i)
		cmds = append(cmds, cmd)
	}
	return cmds
}

// Dump writes a human-readable listing of the buffer's commands.
func (cb *CommandBuffer) Dump(w io.Writer) {
	godump.Fdump(w, cb.Commands())
}

func (c Command) String() string {
	switch c.Op {
	case RendererBindTarget:
		return fmt.Sprintf("BindTarget %d", c.Target)
	case RendererViewport:
		return fmt.Sprintf("Viewport %d,%d %dx%d", c.X, c.Y, c.Width, c.Height)
	case RendererBindTextures:
		return fmt.Sprintf("BindTextures %d %d", c.Textures[0], c.Textures[1])
	case RendererClearStencil:
		return fmt.Sprintf("ClearStencil mask=%#x value=%#x", c.StencilMask, c.StencilValue)
	case RendererDraw:
		d := c.Draw
		return fmt.Sprintf("Draw program=%d %s [%d,+%d) %s", d.Program, d.Primitive, d.First, d.Count, d.Pipeline)
	case RendererBlit:
		return fmt.Sprintf("Blit %d -> %d filter=%d", c.Blit.Src, c.Blit.Dst, c.Blit.Filter)
	default:
		return fmt.Sprintf("Command(%d)", c.Op)
	}
}
