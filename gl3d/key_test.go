// gl3d/key_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"testing"

	"github.com/ndsemu/gl3d/gpu3d"
)

func TestClassifyPolygon(t *testing.T) {
	opaque := triangle(polyAttr(31, 7) | 1<<14)
	if k := ClassifyPolygon(opaque); k != (RenderKey{DepthEqual: true, Category: CategoryOpaque, PolygonID: 7}) {
		t.Errorf("opaque: got %s", k)
	}

	// Depth write and fog only distinguish translucent polygons.
	if ClassifyPolygon(triangle(polyAttr(31, 7)|1<<11|1<<15)) != ClassifyPolygon(triangle(polyAttr(31, 7))) {
		t.Errorf("depth write and fog should not change an opaque polygon's key")
	}
	if k := ClassifyPolygon(triangle(polyAttr(0, 7))); !k.ZeroAlpha || k.Category != CategoryOpaque {
		t.Errorf("wireframe: got %s", k)
	}

	trans := triangle(polyAttr(12, 9) | 1<<11 | 1<<15)
	if k := ClassifyPolygon(trans); k != (RenderKey{Category: CategoryTranslucent, DepthWrite: true, Fog: true,
		PolygonID: 9}) {
		t.Errorf("translucent: got %s", k)
	}

	shadow := triangle(polyAttr(12, 9))
	shadow.IsShadow = true
	if k := ClassifyPolygon(shadow); k.Category != CategoryShadow || k.PolygonID != 9 {
		t.Errorf("shadow: got %s", k)
	}

	mask := triangle(polyAttr(12, 9) | 1<<15)
	mask.IsShadowMask = true
	if k := ClassifyPolygon(mask); k != (RenderKey{Category: CategoryShadowMask}) {
		t.Errorf("shadow mask: got %s", k)
	}
}

func TestBatchLength(t *testing.T) {
	keys := []RenderKey{
		{PolygonID: 1}, {PolygonID: 1}, {PolygonID: 2}, {PolygonID: 1},
		{Category: CategoryTranslucent, PolygonID: 1}, {Category: CategoryTranslucent, PolygonID: 1},
	}
	polys := make([]rendererPolygon, len(keys))
	for i, k := range keys {
		polys[i].key = k
	}

	var runs []int
	for i := 0; i < len(polys); {
		n := batchLength(polys, i)
		runs = append(runs, n)
		i += n
	}
	expected := []int{2, 1, 1, 2}
	if len(runs) != len(expected) {
		t.Fatalf("expected runs %v, got %v", expected, runs)
	}
	for i := range runs {
		if runs[i] != expected[i] {
			t.Errorf("expected runs %v, got %v", expected, runs)
			break
		}
	}
}

func TestOpaqueSplit(t *testing.T) {
	mk := func(trans ...bool) []rendererPolygon {
		var polys []rendererPolygon
		for _, tr := range trans {
			polys = append(polys, rendererPolygon{poly: &gpu3d.Polygon{Translucent: tr}})
		}
		return polys
	}
	for _, tc := range []struct {
		polys    []rendererPolygon
		expected int
	}{
		{nil, -1},
		{mk(false, false), -1},
		{mk(false, false, true, true), 2},
		{mk(true), 0},
	} {
		if s := opaqueSplit(tc.polys); s != tc.expected {
			t.Errorf("expected split %d, got %d", tc.expected, s)
		}
	}
}
