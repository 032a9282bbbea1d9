// renderer/vertex.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

// Vertices are passed to the device as VertexWords uint32s each:
//
//	0: X | Y<<16           screen position (16-bit unsigned each)
//	1: Z | W<<16           Z reduced to 16 bits, W
//	2: R | G<<8 | B<<16 | A<<24   8-bit color, 5-bit polygon alpha
//	3: S | T<<16           12.4 fixed-point texture coordinates
//	4: attribute word      POLYGON_ATTR bits 4-7, 11, 14-15, 24-28;
//	                       bit 8 front-facing, bit 9 W-buffered,
//	                       bits 16-20 Z shift
//	5: TEXIMAGE_PARAM
//	6: PLTT_BASE
const VertexWords = 7

const (
	VertexAttrMask    = 0x1F00C8F0
	VertexAttrFacing  = 1 << 8
	VertexAttrWBuffer = 1 << 9
	vertexZShiftBit   = 16
)

type Vertex struct {
	X, Y       uint16
	Z, W       uint16
	R, G, B, A uint8
	S, T       int16
	Attr       uint32
	TexParam   uint32
	TexPalette uint32
}

// ZShift returns the amount the vertex's Z was shifted right to fit in
// 16 bits.
func (v Vertex) ZShift() uint32 {
	return (v.Attr >> vertexZShiftBit) & 0x1F
}

// Depth returns the vertex's 24-bit depth buffer value.
func (v Vertex) Depth() uint32 {
	if v.Attr&VertexAttrWBuffer != 0 {
		return uint32(v.W) << 8
	}
	return min(uint32(v.Z)<<v.ZShift(), 0xFFFFFF)
}

func (v Vertex) PolygonID() uint8 {
	return uint8((v.Attr >> 24) & 0x3F)
}

// MakeVertexAttr assembles the attribute word from the raw POLYGON_ATTR
// value, the polygon's flags and the vertex's Z shift.
func MakeVertexAttr(polyAttr uint32, facing, wbuffer bool, zshift uint32) uint32 {
	a := polyAttr & VertexAttrMask
	if facing {
		a |= VertexAttrFacing
	}
	if wbuffer {
		a |= VertexAttrWBuffer
	}
	return a | zshift<<vertexZShiftBit
}

// Pack appends the vertex's words to buf.
func (v Vertex) Pack(buf []uint32) []uint32 {
	return append(buf,
		uint32(v.X)|uint32(v.Y)<<16,
		uint32(v.Z)|uint32(v.W)<<16,
		uint32(v.R)|uint32(v.G)<<8|uint32(v.B)<<16|uint32(v.A)<<24,
		uint32(uint16(v.S))|uint32(uint16(v.T))<<16,
		v.Attr,
		v.TexParam,
		v.TexPalette)
}

// UnpackVertex decodes the VertexWords words at the start of w.
func UnpackVertex(w []uint32) Vertex {
	_ = w[VertexWords-1]
	return Vertex{
		X:          uint16(w[0]),
		Y:          uint16(w[0] >> 16),
		Z:          uint16(w[1]),
		W:          uint16(w[1] >> 16),
		R:          uint8(w[2]),
		G:          uint8(w[2] >> 8),
		B:          uint8(w[2] >> 16),
		A:          uint8(w[2] >> 24),
		S:          int16(w[3]),
		T:          int16(w[3] >> 16),
		Attr:       w[4],
		TexParam:   w[5],
		TexPalette: w[6],
	}
}
