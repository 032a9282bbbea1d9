// gpu3d/frame.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gpu3d

import (
	"fmt"

	"github.com/ndsemu/gl3d/util"

	"github.com/brunoga/deep"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 192
)

// Frame is everything the renderer consumes for one frame: the ordered
// polygon list (opaque polygons first, then translucent ones, otherwise
// in submission order), the latched register state, and VRAM.
type Frame struct {
	Polygons []*Polygon
	State    RenderState
	VRAM     *VRAM
}

// Validate checks every polygon and the VRAM banks. The returned error
// describes all of the problems found and matches ErrInvalidPolygon or
// ErrInvalidVRAM accordingly.
func (f *Frame) Validate() error {
	var e util.ErrorLogger
	e.Push("frame")
	f.CheckErrors(&e)
	e.Pop()
	return e.Err()
}

// CheckErrors logs every malformed polygon and VRAM bank to e.
func (f *Frame) CheckErrors(e *util.ErrorLogger) {
	for i, p := range f.Polygons {
		e.Push(fmt.Sprintf("polygon %d", i))
		if p == nil {
			e.Error(fmt.Errorf("nil: %w", ErrInvalidPolygon))
		} else if err := p.Validate(); err != nil {
			e.Error(err)
		}
		e.Pop()
	}
	if f.VRAM != nil {
		f.VRAM.CheckErrors(e)
	}
}

// Clone returns a deep copy of the frame; the upstream stage may reuse
// its storage as soon as Clone returns.
func (f *Frame) Clone() (*Frame, error) {
	return deep.Copy(f)
}

// WBuffered reports the depth mode of the frame, which is taken from its
// first polygon.
func (f *Frame) WBuffered() bool {
	return len(f.Polygons) > 0 && f.Polygons[0].WBuffer
}
