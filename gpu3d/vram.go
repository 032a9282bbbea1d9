// gpu3d/vram.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gpu3d

import (
	"errors"
	"fmt"

	"github.com/ndsemu/gl3d/util"
)

var ErrInvalidVRAM = errors.New("invalid VRAM")

type Bank int

const (
	BankA Bank = iota
	BankB
	BankC
	BankD
	BankE
	BankF
	BankG
	NumBanks
)

func (b Bank) String() string {
	if b >= BankA && b < NumBanks {
		return string(rune('A' + int(b)))
	}
	return fmt.Sprintf("Bank(%d)", int(b))
}

var bankSizes = [NumBanks]int{
	BankA: 128 * 1024,
	BankB: 128 * 1024,
	BankC: 128 * 1024,
	BankD: 128 * 1024,
	BankE: 64 * 1024,
	BankF: 16 * 1024,
	BankG: 16 * 1024,
}

func (b Bank) Size() int { return bankSizes[b] }

const (
	NumTextureSlots = 4
	NumPaletteSlots = 6
)

// VRAM holds the raw contents of the banks the 3D engine can read from
// along with the current mapping of banks to texture image and texture
// palette slots. Each mapping entry is a bitmask with bit n set when bank
// n is mapped there.
type VRAM struct {
	Banks [NumBanks][]byte

	Texture [NumTextureSlots]uint32
	TexPal  [NumPaletteSlots]uint32
}

// NewVRAM returns a VRAM with zeroed banks and nothing mapped.
func NewVRAM() *VRAM {
	v := &VRAM{}
	for b := range v.Banks {
		v.Banks[b] = make([]byte, bankSizes[b])
	}
	return v
}

// Validate checks that every bank has its hardware size.
func (v *VRAM) Validate() error {
	var e util.ErrorLogger
	v.CheckErrors(&e)
	return e.Err()
}

// CheckErrors logs every bank whose size is wrong to e.
func (v *VRAM) CheckErrors(e *util.ErrorLogger) {
	e.Push("VRAM")
	defer e.Pop()

	for b, data := range v.Banks {
		if len(data) != bankSizes[b] {
			e.Push("bank " + Bank(b).String())
			e.Error(fmt.Errorf("%d bytes, expected %d: %w", len(data), bankSizes[b], ErrInvalidVRAM))
			e.Pop()
		}
	}
}
