// gpu3d/state.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gpu3d

// DISP3DCNT bits the renderer looks at.
const (
	DispCntTextureMapping = 1 << 0
	DispCntHighlight      = 1 << 1
	DispCntAlphaTest      = 1 << 2
	DispCntAlphaBlend     = 1 << 3
	DispCntAntialias      = 1 << 4
	DispCntEdgeMarking    = 1 << 5
	DispCntFogAlphaOnly   = 1 << 6
	DispCntFogEnable      = 1 << 7
)

// RGB5 is a 15-bit BGR555 color as stored in the toon, edge and clear
// registers.
type RGB5 uint16

func (c RGB5) R() uint8 { return uint8(c & 0x1F) }
func (c RGB5) G() uint8 { return uint8((c >> 5) & 0x1F) }
func (c RGB5) B() uint8 { return uint8((c >> 10) & 0x1F) }

// RenderState is the snapshot of the 3D engine registers latched at the
// start of a frame.
type RenderState struct {
	DispCnt uint32

	ToonTable [32]uint16
	EdgeTable [8]uint16

	FogColor   uint32
	FogDensity [34]uint8
	FogOffset  uint32
	FogShift   uint32

	ClearAttr1 uint32
	ClearAttr2 uint32
}

func (s *RenderState) AlphaBlend() bool   { return s.DispCnt&DispCntAlphaBlend != 0 }
func (s *RenderState) EdgeMarking() bool  { return s.DispCnt&DispCntEdgeMarking != 0 }
func (s *RenderState) FogAlphaOnly() bool { return s.DispCnt&DispCntFogAlphaOnly != 0 }
func (s *RenderState) FogEnable() bool    { return s.DispCnt&DispCntFogEnable != 0 }

// NeedsFinalPass reports whether the fog/edge composite runs this frame.
func (s *RenderState) NeedsFinalPass() bool {
	return s.DispCnt&(DispCntFogEnable|DispCntEdgeMarking) != 0
}

func (s *RenderState) ClearColor() RGB5  { return RGB5(s.ClearAttr1 & 0x7FFF) }
func (s *RenderState) ClearFog() bool    { return s.ClearAttr1&(1<<15) != 0 }
func (s *RenderState) ClearAlpha() uint8 { return uint8((s.ClearAttr1 >> 16) & 0x1F) }
func (s *RenderState) ClearPolygonID() uint8 {
	return uint8((s.ClearAttr1 >> 24) & 0x3F)
}

// ClearDepth expands the 15-bit clear depth to the 24-bit depth buffer
// range.
func (s *RenderState) ClearDepth() uint32 {
	return (s.ClearAttr2&0x7FFF)*0x200 + 0x1FF
}

// FogColorChannels returns the 5-bit R, G, B and A channels of the fog
// color register.
func (s *RenderState) FogColorChannels() (r, g, b, a uint8) {
	c := s.FogColor
	return uint8(c & 0x1F), uint8((c >> 5) & 0x1F), uint8((c >> 10) & 0x1F), uint8((c >> 16) & 0x1F)
}
