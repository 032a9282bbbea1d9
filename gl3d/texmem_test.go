// gl3d/texmem_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"bytes"
	"testing"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"
)

func patternVRAM() *gpu3d.VRAM {
	v := gpu3d.NewVRAM()
	for b := range v.Banks {
		for i := range v.Banks[b] {
			v.Banks[b][i] = byte(i*7 + b*31)
		}
	}
	return v
}

func TestSlotSources(t *testing.T) {
	v := patternVRAM()
	v.Texture[1] = 1<<gpu3d.BankC | 1<<gpu3d.BankB
	v.TexPal[2] = 1 << gpu3d.BankE
	v.TexPal[4] = 1<<gpu3d.BankF | 1<<gpu3d.BankG

	if _, _, ok := TextureSlotSource(v, 0); ok {
		t.Errorf("unmapped texture slot should have no source")
	}
	if data, bank, ok := TextureSlotSource(v, 1); !ok || bank != gpu3d.BankB || !bytes.Equal(data, v.Banks[gpu3d.BankB]) {
		t.Errorf("expected bank B for texture slot 1, got %s", bank)
	}

	data, bank, ok := PaletteSlotSource(v, 2)
	if !ok || bank != gpu3d.BankE || !bytes.Equal(data, v.Banks[gpu3d.BankE][2*paletteSlotLen:3*paletteSlotLen]) {
		t.Errorf("expected the third quarter of bank E for palette slot 2")
	}
	if _, bank, ok := PaletteSlotSource(v, 4); !ok || bank != gpu3d.BankF {
		t.Errorf("expected bank F for palette slot 4, got %s", bank)
	}
	if _, _, ok := PaletteSlotSource(v, 5); ok {
		t.Errorf("unmapped palette slot should have no source")
	}
}

func TestSlotSourcesShortBanks(t *testing.T) {
	v := &gpu3d.VRAM{}
	v.Banks[gpu3d.BankE] = make([]byte, paletteSlotLen)
	v.Texture[0] = 1 << gpu3d.BankA
	v.TexPal[0] = 1 << gpu3d.BankE
	v.TexPal[1] = 1 << gpu3d.BankE
	v.TexPal[2] = 1 << gpu3d.BankG

	if _, _, ok := TextureSlotSource(v, 0); ok {
		t.Errorf("texture slot mapped to an empty bank should have no source")
	}
	if data, _, ok := PaletteSlotSource(v, 0); !ok || len(data) != paletteSlotLen {
		t.Errorf("expected the first quarter of a one-slot bank E to be usable")
	}
	if _, _, ok := PaletteSlotSource(v, 1); ok {
		t.Errorf("palette slot past the end of bank E should have no source")
	}
	if _, _, ok := PaletteSlotSource(v, 2); ok {
		t.Errorf("palette slot mapped to an empty bank should have no source")
	}
}

func TestTextureMemoryBridge(t *testing.T) {
	dev := renderer.NewSoftwareRenderer(nil)
	b, err := NewTextureMemoryBridge(dev, true)
	if err != nil {
		t.Fatal(err)
	}

	if n := b.Update(nil); n != 0 {
		t.Errorf("expected no uploads without VRAM, got %d", n)
	}

	v := patternVRAM()
	v.Texture[1] = 1 << gpu3d.BankA
	v.TexPal[2] = 1 << gpu3d.BankE
	if n := b.Update(v); n != 2 {
		t.Errorf("expected 2 uploads, got %d", n)
	}

	tex, pal := b.Textures()
	texData, palData := dev.TextureData(tex), dev.TextureData(pal)
	const texSlot = TexMemWidth * texSlotRows
	if !bytes.Equal(texData[texSlot:2*texSlot], v.Banks[gpu3d.BankA]) {
		t.Errorf("texture slot 1 does not hold bank A")
	}
	if bytes.ContainsFunc(texData[:texSlot], func(r rune) bool { return r != 0 }) {
		t.Errorf("unmapped texture slot 0 should be untouched")
	}
	if !bytes.Equal(palData[2*paletteSlotLen:3*paletteSlotLen], v.Banks[gpu3d.BankE][2*paletteSlotLen:3*paletteSlotLen]) {
		t.Errorf("palette slot 2 does not hold the third quarter of bank E")
	}

	if n := b.Update(v); n != 0 {
		t.Errorf("expected unchanged slots to be skipped, got %d uploads", n)
	}
	v.Banks[gpu3d.BankA][1000]++
	if n := b.Update(v); n != 1 {
		t.Errorf("expected only the modified slot to upload, got %d", n)
	}
	if texData = dev.TextureData(tex); texData[texSlot+1000] != v.Banks[gpu3d.BankA][1000] {
		t.Errorf("modified byte was not uploaded")
	}

	// Remapping a different bank with identical contents still uploads.
	v.Banks[gpu3d.BankB] = bytes.Clone(v.Banks[gpu3d.BankA])
	v.Texture[1] = 1 << gpu3d.BankB
	if n := b.Update(v); n != 1 {
		t.Errorf("expected the remapped slot to upload, got %d", n)
	}

	always, err := NewTextureMemoryBridge(dev, false)
	if err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if n := always.Update(v); n != 2 {
			t.Errorf("expected every mapped slot to upload, got %d", n)
		}
	}
}
