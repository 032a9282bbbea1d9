// renderer/shaderconfig.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"encoding/binary"
	gomath "math"
)

// ShaderConfig is the per-frame uniform block shared by the render and
// final programs (uConfig, binding 0).
type ShaderConfig struct {
	ScreenSize [2]float32
	DispCnt    uint32
	ToonColors [32][4]float32
	EdgeColors [8][4]float32
	FogColor   [4]float32
	FogDensity [34]float32
	FogOffset  uint32
	FogShift   uint32
}

// std140 offsets of the uConfig members.
const (
	offsetScreenSize = 0
	offsetDispCnt    = 8
	offsetToonColors = 16
	offsetEdgeColors = offsetToonColors + 32*16
	offsetFogColor   = offsetEdgeColors + 8*16
	offsetFogDensity = offsetFogColor + 16
	offsetFogOffset  = offsetFogDensity + 34*16
	offsetFogShift   = offsetFogOffset + 4

	// Block size rounded up to the std140 base alignment of 16.
	ShaderConfigSize = (offsetFogShift + 4 + 15) &^ 15
)

// Encode writes the std140 representation of the configuration to buf,
// which must be at least ShaderConfigSize bytes long, and returns the
// encoded bytes.
func (c *ShaderConfig) Encode(buf []byte) []byte {
	buf = buf[:ShaderConfigSize]
	clear(buf)

	le := binary.LittleEndian
	putf := func(off int, f float32) { le.PutUint32(buf[off:], gomath.Float32bits(f)) }
	putv4 := func(off int, v [4]float32) {
		for i, f := range v {
			putf(off+4*i, f)
		}
	}

	putf(offsetScreenSize, c.ScreenSize[0])
	putf(offsetScreenSize+4, c.ScreenSize[1])
	le.PutUint32(buf[offsetDispCnt:], c.DispCnt)
	for i, v := range c.ToonColors {
		putv4(offsetToonColors+16*i, v)
	}
	for i, v := range c.EdgeColors {
		putv4(offsetEdgeColors+16*i, v)
	}
	putv4(offsetFogColor, c.FogColor)
	// float arrays have a 16-byte stride in std140
	for i, d := range c.FogDensity {
		putf(offsetFogDensity+16*i, d)
	}
	le.PutUint32(buf[offsetFogOffset:], c.FogOffset)
	le.PutUint32(buf[offsetFogShift:], c.FogShift)

	return buf
}

// FogDensityAt returns the fog density for a 24-bit depth value: the
// density table entries are 0x400>>FogShift depth units apart starting
// at FogOffset, with linear interpolation between them.
func (c *ShaderConfig) FogDensityAt(depth uint32) float32 {
	z := depth >> 9
	offset := c.FogOffset & 0x7FFF
	if z <= offset {
		return c.FogDensity[0]
	}
	step := uint32(0x400) >> (c.FogShift & 0xF)
	if step == 0 {
		step = 1
	}
	pos := z - offset
	idx := pos / step
	if idx >= 32 {
		return c.FogDensity[32]
	}
	frac := float32(pos%step) / float32(step)
	return c.FogDensity[idx]*(1-frac) + c.FogDensity[idx+1]*frac
}
