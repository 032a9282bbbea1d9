// gl3d/key.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"fmt"

	"github.com/ndsemu/gl3d/gpu3d"
)

type Category uint8

const (
	CategoryOpaque Category = iota
	CategoryTranslucent
	CategoryShadow
	CategoryShadowMask
)

func (c Category) String() string {
	switch c {
	case CategoryOpaque:
		return "opaque"
	case CategoryTranslucent:
		return "translucent"
	case CategoryShadow:
		return "shadow"
	case CategoryShadowMask:
		return "shadow mask"
	default:
		return fmt.Sprintf("Category(%d)", c)
	}
}

// RenderKey groups polygons that can be drawn with a single draw call.
// Two polygons batch together iff their keys are equal and they are
// adjacent in submission order.
type RenderKey struct {
	DepthEqual bool
	Category   Category
	DepthWrite bool
	Fog        bool
	ZeroAlpha  bool
	PolygonID  uint8
}

func (k RenderKey) String() string {
	return fmt.Sprintf("%s id=%d deq=%v dwrite=%v fog=%v zalpha=%v", k.Category, k.PolygonID,
		k.DepthEqual, k.DepthWrite, k.Fog, k.ZeroAlpha)
}

// ClassifyPolygon computes the polygon's render key. Shadow masks only
// carry their depth-compare mode; translucent polygons additionally key
// on depth write and fog, since those change the pipeline they are drawn
// with.
func ClassifyPolygon(p *gpu3d.Polygon) RenderKey {
	a := p.Attributes()
	k := RenderKey{DepthEqual: a.DepthEqual}

	switch {
	case p.IsShadowMask:
		k.Category = CategoryShadowMask
	case p.Translucent:
		if p.IsShadow {
			k.Category = CategoryShadow
		} else {
			k.Category = CategoryTranslucent
		}
		k.DepthWrite = a.DepthWrite
		k.Fog = a.Fog
		k.PolygonID = a.PolygonID
	default:
		k.Category = CategoryOpaque
		k.ZeroAlpha = a.Alpha == 0
		k.PolygonID = a.PolygonID
	}
	return k
}

// batchLength returns the number of polygons starting at i whose keys
// equal polys[i]'s.
func batchLength(polys []rendererPolygon, i int) int {
	n := 1
	for i+n < len(polys) && polys[i+n].key == polys[i].key {
		n++
	}
	return n
}

// opaqueSplit returns the index of the first translucent polygon, or -1
// if there are none. The upstream stage submits all opaque polygons
// first.
func opaqueSplit(polys []rendererPolygon) int {
	for i, rp := range polys {
		if rp.poly.Translucent {
			return i
		}
	}
	return -1
}
