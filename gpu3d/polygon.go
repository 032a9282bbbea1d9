// gpu3d/polygon.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gpu3d

import (
	"errors"
	"fmt"
)

var ErrInvalidPolygon = errors.New("invalid polygon")

const (
	MinPolygonVertices = 3
	MaxPolygonVertices = 10
)

// Vertex is a finished, screen-space vertex as produced by the geometry
// engine. It is never modified once the frame has been handed off.
type Vertex struct {
	// Screen position in pixels.
	FinalPosition [2]int32
	// Screen position with 4 bits of subpixel precision; used when
	// rendering at more than native resolution.
	HiresPosition [2]int32
	// 9-bit per-channel lit vertex color.
	FinalColor [3]uint16
	// 12.4 fixed-point texture coordinates.
	TexCoords [2]int16
}

// Polygon is a clipped polygon with between 3 and 10 vertices. Vertices
// may be shared with neighboring polygons of the same strip.
type Polygon struct {
	Vertices []*Vertex
	FinalZ   []uint32
	FinalW   []uint32

	// Raw POLYGON_ATTR register value.
	Attr       uint32
	TexParam   uint32
	TexPalette uint32

	FacingView   bool
	WBuffer      bool
	Translucent  bool
	IsShadowMask bool
	IsShadow     bool
	Degenerate   bool
}

type PolygonMode uint8

const (
	PolygonModeModulate PolygonMode = iota
	PolygonModeDecal
	PolygonModeToonHighlight
	PolygonModeShadow
)

func (m PolygonMode) String() string {
	switch m {
	case PolygonModeModulate:
		return "modulate"
	case PolygonModeDecal:
		return "decal"
	case PolygonModeToonHighlight:
		return "toon/highlight"
	case PolygonModeShadow:
		return "shadow"
	default:
		return fmt.Sprintf("PolygonMode(%d)", m)
	}
}

// PolygonAttr is the decoded form of the POLYGON_ATTR bitfield.
type PolygonAttr struct {
	LightMask    uint8 // bits 0-3
	Mode         PolygonMode
	RenderBack   bool
	RenderFront  bool
	DepthWrite   bool // bit 11: translucent polygons update depth
	FarPlaneClip bool
	OneDot       bool
	DepthEqual   bool // bit 14
	Fog          bool // bit 15
	Alpha        uint8
	PolygonID    uint8
}

func DecodePolygonAttr(attr uint32) PolygonAttr {
	return PolygonAttr{
		LightMask:    uint8(attr & 0xF),
		Mode:         PolygonMode((attr >> 4) & 0x3),
		RenderBack:   attr&(1<<6) != 0,
		RenderFront:  attr&(1<<7) != 0,
		DepthWrite:   attr&(1<<11) != 0,
		FarPlaneClip: attr&(1<<12) != 0,
		OneDot:       attr&(1<<13) != 0,
		DepthEqual:   attr&(1<<14) != 0,
		Fog:          attr&(1<<15) != 0,
		Alpha:        uint8((attr >> 16) & 0x1F),
		PolygonID:    uint8((attr >> 24) & 0x3F),
	}
}

func (p *Polygon) Attributes() PolygonAttr {
	return DecodePolygonAttr(p.Attr)
}

func (p *Polygon) PolygonID() uint8 {
	return uint8((p.Attr >> 24) & 0x3F)
}

// Validate checks the structural invariants the renderer depends on.
func (p *Polygon) Validate() error {
	n := len(p.Vertices)
	if n < MinPolygonVertices || n > MaxPolygonVertices {
		return fmt.Errorf("%d vertices: %w", n, ErrInvalidPolygon)
	}
	if len(p.FinalZ) != n || len(p.FinalW) != n {
		return fmt.Errorf("%d vertices but %d Z and %d W values: %w", n, len(p.FinalZ), len(p.FinalW),
			ErrInvalidPolygon)
	}
	for i, v := range p.Vertices {
		if v == nil {
			return fmt.Errorf("vertex %d is nil: %w", i, ErrInvalidPolygon)
		}
	}
	return nil
}
