// renderer/soft.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/ndsemu/gl3d/log"

	"golang.org/x/image/draw"
)

// SoftwareRenderer executes command buffers on the CPU. It implements the
// same depth, stencil, blend and color-mask semantics as the OpenGL
// executor so that the 3D core's pass sequence can be run and inspected
// without a graphics context; shading is simplified (vertex colors and
// toon tables, no texturing).
type SoftwareRenderer struct {
	lg *log.Logger

	programs []ProgramDesc
	textures []*softTexture
	targets  []*softTarget

	vertices []uint32
	indices  []uint16
	config   ShaderConfig

	readback        []uint32
	readbackPending bool
}

type softTexture struct {
	desc TextureDesc
	data []byte
}

type softTarget struct {
	desc TargetDesc
	// 4 bytes per pixel; nil if the target lacks the attachment.
	color, attr []uint8
	depth       []uint32
	stencil     []uint8
}

func NewSoftwareRenderer(l *log.Logger) *SoftwareRenderer {
	l.Info("Created SoftwareRenderer")
	return &SoftwareRenderer{lg: l}
}

func (s *SoftwareRenderer) Dispose() {
	s.programs = nil
	s.textures = nil
	s.targets = nil
}

// IDs are indices into the corresponding slices plus one so that zero is
// never a valid id.

func (s *SoftwareRenderer) CompileProgram(desc ProgramDesc) (ProgramID, error) {
	if desc.Kind == ProgramRender && !desc.Flags.Valid() {
		return 0, fmt.Errorf("%s: invalid render flags %#x", desc.Name, uint8(desc.Flags))
	}
	s.programs = append(s.programs, desc)
	return ProgramID(len(s.programs)), nil
}

func (s *SoftwareRenderer) program(id ProgramID) (ProgramDesc, bool) {
	if id == 0 || int(id) > len(s.programs) {
		return ProgramDesc{}, false
	}
	return s.programs[id-1], true
}

func (s *SoftwareRenderer) CreateTexture(desc TextureDesc) (TextureID, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("%s: invalid size %dx%d", desc.Name, desc.Width, desc.Height)
	}
	t := &softTexture{desc: desc, data: make([]byte, desc.Width*desc.Height*desc.Format.BytesPerTexel())}
	s.textures = append(s.textures, t)
	return TextureID(len(s.textures)), nil
}

func (s *SoftwareRenderer) UpdateTexture(id TextureID, x, y, w, h int, data []byte) {
	if id == 0 || int(id) > len(s.textures) {
		s.lg.Errorf("%d: unknown texture", id)
		return
	}
	t := s.textures[id-1]
	bpt := t.desc.Format.BytesPerTexel()
	if len(data) < w*h*bpt || x < 0 || y < 0 || x+w > t.desc.Width || y+h > t.desc.Height {
		s.lg.Errorf("%s: invalid update %d,%d %dx%d with %d bytes", t.desc.Name, x, y, w, h, len(data))
		return
	}
	for row := range h {
		dst := t.data[((y+row)*t.desc.Width+x)*bpt:]
		copy(dst[:w*bpt], data[row*w*bpt:])
	}
}

// TextureData returns the current contents of a texture.
func (s *SoftwareRenderer) TextureData(id TextureID) []byte {
	if id == 0 || int(id) > len(s.textures) {
		return nil
	}
	return s.textures[id-1].data
}

func (s *SoftwareRenderer) CreateTarget(desc TargetDesc) (TargetID, error) {
	t := &softTarget{desc: desc}
	if err := t.allocate(desc.Width, desc.Height); err != nil {
		return 0, err
	}
	s.targets = append(s.targets, t)
	return TargetID(len(s.targets)), nil
}

func (s *SoftwareRenderer) ResizeTarget(id TargetID, w, h int) error {
	t := s.target(id)
	if t == nil {
		return fmt.Errorf("%d: unknown target", id)
	}
	return t.allocate(w, h)
}

func (s *SoftwareRenderer) target(id TargetID) *softTarget {
	if id == 0 || int(id) > len(s.targets) {
		return nil
	}
	return s.targets[id-1]
}

func (t *softTarget) allocate(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%s: invalid size %dx%d", t.desc.Name, w, h)
	}
	t.desc.Width, t.desc.Height = w, h
	n := w * h
	t.color, t.attr, t.depth, t.stencil = nil, nil, nil, nil
	if t.desc.Attachments&AttachColor != 0 {
		t.color = make([]uint8, 4*n)
	}
	if t.desc.Attachments&AttachAttr != 0 {
		t.attr = make([]uint8, 4*n)
	}
	if t.desc.Attachments&AttachDepthStencil != 0 {
		t.depth = make([]uint32, n)
		t.stencil = make([]uint8, n)
	}
	return nil
}

func (t *softTarget) rgba() *image.RGBA {
	return &image.RGBA{Pix: t.color, Stride: 4 * t.desc.Width, Rect: image.Rect(0, 0, t.desc.Width, t.desc.Height)}
}

func (s *SoftwareRenderer) TextureHandle(id TargetID) uint32 {
	if s.target(id) == nil {
		return 0
	}
	return uint32(id)
}

func (s *SoftwareRenderer) UploadGeometry(vertices []uint32, indices []uint16) {
	s.vertices = append(s.vertices[:0], vertices...)
	s.indices = append(s.indices[:0], indices...)
}

func (s *SoftwareRenderer) UploadShaderConfig(cfg *ShaderConfig) {
	s.config = *cfg
}

func (s *SoftwareRenderer) RenderCommandBuffer(cb *CommandBuffer) RendererStats {
	var stats RendererStats
	stats.nBuffers++
	stats.bufferBytes += 4 * len(cb.Buf)
	if n := cb.Truncated(); n > 0 {
		s.lg.Errorf("%d non-32-bit values were added to the command buffer", n)
	}

	var rs rasterState

	for i := 0; i < len(cb.Buf); {
		var cmd Command
		cmd, i = cb.decode(i)
		stats.account(&cmd)

		switch cmd.Op {
		case RendererBindTarget:
			if rs.target = s.target(cmd.Target); rs.target == nil {
				s.lg.Errorf("%d: unknown target", cmd.Target)
			} else {
				rs.vpX, rs.vpY, rs.vpW, rs.vpH = 0, 0, rs.target.desc.Width, rs.target.desc.Height
			}

		case RendererViewport:
			rs.vpX, rs.vpY, rs.vpW, rs.vpH = cmd.X, cmd.Y, cmd.Width, cmd.Height

		case RendererBindTextures:
			// Texturing is not emulated.

		case RendererClearStencil:
			if rs.target != nil && rs.target.stencil != nil {
				m := cmd.StencilMask
				for j, v := range rs.target.stencil {
					rs.target.stencil[j] = (v &^ m) | (cmd.StencilValue & m)
				}
			}

		case RendererDraw:
			if rs.target == nil {
				s.lg.Errorf("draw with no target bound")
				continue
			}
			prog, ok := s.program(cmd.Draw.Program)
			if !ok {
				s.lg.Errorf("%d: unknown program", cmd.Draw.Program)
				continue
			}
			rs.draw = &cmd.Draw
			rs.prog = prog
			s.draw(&rs)

		case RendererBlit:
			src, dst := s.target(cmd.Blit.Src), s.target(cmd.Blit.Dst)
			if src == nil || dst == nil || src.color == nil || dst.color == nil {
				s.lg.Errorf("blit %d -> %d: invalid targets", cmd.Blit.Src, cmd.Blit.Dst)
				continue
			}
			var scaler draw.Scaler = draw.NearestNeighbor
			if cmd.Blit.Filter == FilterLinear {
				scaler = draw.ApproxBiLinear
			}
			d := dst.rgba()
			scaler.Scale(d, d.Bounds(), src.rgba(), src.rgba().Bounds(), draw.Src, nil)

		default:
			s.lg.Error("unhandled command", slog.Int("op", cmd.Op))
		}
	}

	return stats
}

func (s *SoftwareRenderer) BeginReadback(id TargetID) {
	t := s.target(id)
	if t == nil || t.color == nil {
		s.lg.Errorf("%d: invalid readback target", id)
		return
	}
	n := t.desc.Width * t.desc.Height
	if cap(s.readback) < n {
		s.readback = make([]uint32, n)
	}
	s.readback = s.readback[:n]
	for i := range n {
		c := t.color[4*i : 4*i+4]
		s.readback[i] = uint32(c[2]) | uint32(c[1])<<8 | uint32(c[0])<<16 | uint32(c[3])<<24
	}
	s.readbackPending = true
}

func (s *SoftwareRenderer) FinishReadback(dst []uint32) {
	if s.readbackPending {
		copy(dst, s.readback)
		s.readbackPending = false
	}
}

func (s *SoftwareRenderer) ReadAttachment(id TargetID, a Attachment) []uint32 {
	t := s.target(id)
	if t == nil {
		return nil
	}
	n := t.desc.Width * t.desc.Height
	pix := make([]uint32, n)
	switch a {
	case AttachColor, AttachAttr:
		src := t.color
		if a == AttachAttr {
			src = t.attr
		}
		if src == nil {
			return nil
		}
		for i := range pix {
			c := src[4*i : 4*i+4]
			pix[i] = uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24
		}
	case AttachDepthStencil:
		if t.depth == nil {
			return nil
		}
		copy(pix, t.depth)
	case AttachStencil:
		if t.stencil == nil {
			return nil
		}
		for i, v := range t.stencil {
			pix[i] = uint32(v)
		}
	}
	return pix
}
