// renderer/state.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	gomath "math"
)

type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLEqual
	CompareGreater
	CompareNotEqual
	CompareGEqual
	CompareAlways
)

func (f CompareFunc) String() string {
	return [...]string{"never", "less", "equal", "lequal", "greater", "notequal", "gequal", "always"}[f&7]
}

// Test reports whether a passes the comparison against b. For depth
// tests a is the incoming value and b the stored one; for stencil tests a
// is the masked reference and b the masked stored value.
func (f CompareFunc) Test(a, b uint32) bool {
	switch f {
	case CompareNever:
		return false
	case CompareLess:
		return a < b
	case CompareEqual:
		return a == b
	case CompareLEqual:
		return a <= b
	case CompareGreater:
		return a > b
	case CompareNotEqual:
		return a != b
	case CompareGEqual:
		return a >= b
	default:
		return true
	}
}

type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncr
	StencilDecr
	StencilInvert
)

func (op StencilOp) String() string {
	return [...]string{"keep", "zero", "replace", "incr", "decr", "invert", "?", "?"}[op&7]
}

// Apply returns the stencil value after applying op to cur. The write
// mask is applied separately.
func (op StencilOp) Apply(cur, ref uint8) uint8 {
	switch op {
	case StencilZero:
		return 0
	case StencilReplace:
		return ref
	case StencilIncr:
		if cur == 0xFF {
			return cur
		}
		return cur + 1
	case StencilDecr:
		if cur == 0 {
			return 0
		}
		return cur - 1
	case StencilInvert:
		return ^cur
	default:
		return cur
	}
}

type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
	BlendDstAlpha
	BlendOneMinusDstAlpha
	BlendConstantColor
	BlendOneMinusConstantColor
)

func (f BlendFactor) String() string {
	return [...]string{"zero", "one", "src_alpha", "one_minus_src_alpha", "dst_alpha",
		"one_minus_dst_alpha", "constant_color", "one_minus_constant_color"}[f&7]
}

type BlendEquation uint8

const (
	BlendAdd BlendEquation = iota
	BlendMax
)

type BlendState struct {
	Enabled                            bool
	SrcRGB, DstRGB, SrcAlpha, DstAlpha BlendFactor
	EquationRGB, EquationAlpha         BlendEquation
	Constant                           [4]float32
}

type DepthState struct {
	Func  CompareFunc
	Write bool
}

type StencilState struct {
	Func                  CompareFunc
	Ref, ReadMask         uint8
	WriteMask             uint8
	Fail, DepthFail, Pass StencilOp
}

// ColorMask selects the channels of an attachment that a draw may write.
type ColorMask uint8

const (
	MaskR ColorMask = 1 << iota
	MaskG
	MaskB
	MaskA

	MaskNone ColorMask = 0
	MaskAll            = MaskR | MaskG | MaskB | MaskA
)

func (m ColorMask) String() string {
	s := []byte("----")
	for i, c := range "RGBA" {
		if m&(1<<i) != 0 {
			s[i] = byte(c)
		}
	}
	return string(s)
}

// Pipeline is the complete fixed-function state for a draw; nothing is
// inherited from earlier draws.
type Pipeline struct {
	Blend     BlendState
	Depth     DepthState
	Stencil   StencilState
	ColorMask ColorMask
	AttrMask  ColorMask
}

func (p Pipeline) String() string {
	return fmt.Sprintf("blend=%v depth=%s/%v stencil=%s ref=%#x read=%#x write=%#x ops=%s,%s,%s color=%s attr=%s",
		p.Blend.Enabled, p.Depth.Func, p.Depth.Write, p.Stencil.Func, p.Stencil.Ref, p.Stencil.ReadMask,
		p.Stencil.WriteMask, p.Stencil.Fail, p.Stencil.DepthFail, p.Stencil.Pass, p.ColorMask, p.AttrMask)
}

// pipelineWords is the number of uint32s a Pipeline occupies in a
// CommandBuffer.
const pipelineWords = 8

func (p Pipeline) encode(buf []uint32) []uint32 {
	b := p.Blend
	var w0 uint32
	if b.Enabled {
		w0 |= 1
	}
	if p.Depth.Write {
		w0 |= 2
	}
	w0 |= uint32(p.ColorMask&0xF) << 4
	w0 |= uint32(p.AttrMask&0xF) << 8
	w0 |= uint32(p.Depth.Func&0xF) << 12
	w0 |= uint32(p.Stencil.Func&0xF) << 16
	w0 |= uint32(b.EquationRGB&0xF) << 20
	w0 |= uint32(b.EquationAlpha&0xF) << 24

	s := p.Stencil
	return append(buf, w0,
		uint32(b.SrcRGB)|uint32(b.DstRGB)<<8|uint32(b.SrcAlpha)<<16|uint32(b.DstAlpha)<<24,
		gomath.Float32bits(b.Constant[0]), gomath.Float32bits(b.Constant[1]),
		gomath.Float32bits(b.Constant[2]), gomath.Float32bits(b.Constant[3]),
		uint32(s.Ref)|uint32(s.ReadMask)<<8|uint32(s.WriteMask)<<16,
		uint32(s.Fail)|uint32(s.DepthFail)<<8|uint32(s.Pass)<<16)
}

func decodePipeline(w []uint32) Pipeline {
	var p Pipeline
	w0 := w[0]
	p.Blend.Enabled = w0&1 != 0
	p.Depth.Write = w0&2 != 0
	p.ColorMask = ColorMask((w0 >> 4) & 0xF)
	p.AttrMask = ColorMask((w0 >> 8) & 0xF)
	p.Depth.Func = CompareFunc((w0 >> 12) & 0xF)
	p.Stencil.Func = CompareFunc((w0 >> 16) & 0xF)
	p.Blend.EquationRGB = BlendEquation((w0 >> 20) & 0xF)
	p.Blend.EquationAlpha = BlendEquation((w0 >> 24) & 0xF)

	p.Blend.SrcRGB = BlendFactor(w[1])
	p.Blend.DstRGB = BlendFactor(w[1] >> 8)
	p.Blend.SrcAlpha = BlendFactor(w[1] >> 16)
	p.Blend.DstAlpha = BlendFactor(w[1] >> 24)
	for i := range 4 {
		p.Blend.Constant[i] = gomath.Float32frombits(w[2+i])
	}

	p.Stencil.Ref = uint8(w[6])
	p.Stencil.ReadMask = uint8(w[6] >> 8)
	p.Stencil.WriteMask = uint8(w[6] >> 16)
	p.Stencil.Fail = StencilOp(w[7])
	p.Stencil.DepthFail = StencilOp(w[7] >> 8)
	p.Stencil.Pass = StencilOp(w[7] >> 16)
	return p
}
