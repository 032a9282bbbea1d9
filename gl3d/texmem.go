// gl3d/texmem.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"fmt"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/renderer"

	"github.com/cespare/xxhash/v2"
)

// Texture image memory is mirrored into a 1024x512 single-byte image,
// one 128 KiB slot per 128 rows; palette memory into a 1024x48 16-bit
// image, one 16 KiB slot per 8 rows.
const (
	TexMemWidth    = 1024
	TexMemHeight   = gpu3d.NumTextureSlots * texSlotRows
	texSlotRows    = 128
	PalMemWidth    = 1024
	PalMemHeight   = gpu3d.NumPaletteSlots * palSlotRows
	palSlotRows    = 8
	paletteSlotLen = PalMemWidth * palSlotRows * 2
	textureSlotLen = TexMemWidth * texSlotRows
)

// TextureSlotSource returns the bank memory mapped to texture slot i, if
// any. The lowest mapped bank of A-D wins. A mapped bank that is too
// short to fill the slot is treated as unmapped.
func TextureSlotSource(v *gpu3d.VRAM, i int) ([]byte, gpu3d.Bank, bool) {
	mask := v.Texture[i]
	for b := gpu3d.BankA; b <= gpu3d.BankD; b++ {
		if mask&(1<<b) != 0 {
			if len(v.Banks[b]) < textureSlotLen {
				return nil, 0, false
			}
			return v.Banks[b][:textureSlotLen], b, true
		}
	}
	return nil, 0, false
}

// PaletteSlotSource returns the 16 KiB of bank memory mapped to palette
// slot i, if any. Bank E is 64 KiB, so the slot number selects the
// quarter of it that is used.
func PaletteSlotSource(v *gpu3d.VRAM, i int) ([]byte, gpu3d.Bank, bool) {
	mask := v.TexPal[i]
	switch {
	case mask&(1<<gpu3d.BankE) != 0:
		return paletteSlice(v, gpu3d.BankE, (i&3)*paletteSlotLen)
	case mask&(1<<gpu3d.BankF) != 0:
		return paletteSlice(v, gpu3d.BankF, 0)
	case mask&(1<<gpu3d.BankG) != 0:
		return paletteSlice(v, gpu3d.BankG, 0)
	default:
		return nil, 0, false
	}
}

func paletteSlice(v *gpu3d.VRAM, b gpu3d.Bank, off int) ([]byte, gpu3d.Bank, bool) {
	if len(v.Banks[b]) < off+paletteSlotLen {
		return nil, 0, false
	}
	return v.Banks[b][off : off+paletteSlotLen], b, true
}

type slotHash struct {
	sum   uint64
	valid bool
}

// TextureMemoryBridge uploads the mapped VRAM banks into the device's
// texture and palette images each frame. Unmapped slots keep whatever
// they held before.
type TextureMemoryBridge struct {
	dev           renderer.Device
	tex, pal      renderer.TextureID
	skipUnchanged bool

	texHashes [gpu3d.NumTextureSlots]slotHash
	palHashes [gpu3d.NumPaletteSlots]slotHash
}

func NewTextureMemoryBridge(dev renderer.Device, skipUnchanged bool) (*TextureMemoryBridge, error) {
	b := &TextureMemoryBridge{dev: dev, skipUnchanged: skipUnchanged}

	var err error
	b.tex, err = dev.CreateTexture(renderer.TextureDesc{Name: "texture memory", Format: renderer.TextureR8UI,
		Width: TexMemWidth, Height: TexMemHeight})
	if err != nil {
		return nil, fmt.Errorf("texture memory: %w", err)
	}
	b.pal, err = dev.CreateTexture(renderer.TextureDesc{Name: "palette memory", Format: renderer.TextureRGB5A1,
		Width: PalMemWidth, Height: PalMemHeight})
	if err != nil {
		return nil, fmt.Errorf("palette memory: %w", err)
	}
	return b, nil
}

func (b *TextureMemoryBridge) Textures() (tex, pal renderer.TextureID) {
	return b.tex, b.pal
}

// changed reports whether data from bank differs from what was last
// uploaded into the slot tracked by h, and records it as uploaded.
func (b *TextureMemoryBridge) changed(h *slotHash, bank gpu3d.Bank, data []byte) bool {
	if !b.skipUnchanged {
		return true
	}
	d := xxhash.New()
	d.Write([]byte{byte(bank)})
	d.Write(data)
	sum := d.Sum64()
	if h.valid && h.sum == sum {
		return false
	}
	*h = slotHash{sum: sum, valid: true}
	return true
}

// Update copies the mapped slots of v to the device and returns the
// number of slots uploaded.
func (b *TextureMemoryBridge) Update(v *gpu3d.VRAM) int {
	if v == nil {
		return 0
	}

	n := 0
	for i := range gpu3d.NumTextureSlots {
		data, bank, ok := TextureSlotSource(v, i)
		if !ok || !b.changed(&b.texHashes[i], bank, data) {
			continue
		}
		b.dev.UpdateTexture(b.tex, 0, i*texSlotRows, TexMemWidth, texSlotRows, data)
		n++
	}
	for i := range gpu3d.NumPaletteSlots {
		data, bank, ok := PaletteSlotSource(v, i)
		if !ok || !b.changed(&b.palHashes[i], bank, data) {
			continue
		}
		b.dev.UpdateTexture(b.pal, 0, i*palSlotRows, PalMemWidth, palSlotRows, data)
		n++
	}
	return n
}
