// gpu3d/dump.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gpu3d

import (
	"errors"
	"fmt"
	"io"

	"github.com/ndsemu/gl3d/util"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame dumps are a zstd-compressed stream of msgpack values: a header
// followed by one record per frame. Vertices shared between polygons are
// written once and referenced by index. VRAM banks are delta-encoded
// against the previous frame in the stream.

const (
	dumpMagic   = "gl3d-frames"
	dumpVersion = 1

	DumpFileExtension = ".frame.msgpack.zst"
)

var ErrBadDump = errors.New("not a gl3d frame dump")

type dumpHeader struct {
	Magic   string
	Version int
}

type dumpPolygon struct {
	Vertices   []uint16
	FinalZ     []uint32
	FinalW     []uint32
	Attr       uint32
	TexParam   uint32
	TexPalette uint32
	Flags      uint8
}

const (
	dumpFacingView = 1 << iota
	dumpWBuffer
	dumpTranslucent
	dumpShadowMask
	dumpShadow
	dumpDegenerate
)

type dumpFrame struct {
	Vertices []Vertex
	Polygons []dumpPolygon
	State    RenderState

	HaveVRAM bool
	Texture  [NumTextureSlots]uint32
	TexPal   [NumPaletteSlots]uint32
	Banks    [NumBanks][]byte
}

type DumpWriter struct {
	zw        *zstd.Encoder
	enc       *msgpack.Encoder
	prevBanks [NumBanks][]byte
}

func NewDumpWriter(w io.Writer) (*DumpWriter, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, err
	}
	d := &DumpWriter{zw: zw, enc: msgpack.NewEncoder(zw)}
	if err := d.enc.Encode(dumpHeader{Magic: dumpMagic, Version: dumpVersion}); err != nil {
		zw.Close()
		return nil, err
	}
	return d, nil
}

func (d *DumpWriter) WriteFrame(f *Frame) error {
	var df dumpFrame
	df.State = f.State

	vertexIndex := make(map[*Vertex]uint16)
	for _, p := range f.Polygons {
		dp := dumpPolygon{
			FinalZ:     p.FinalZ,
			FinalW:     p.FinalW,
			Attr:       p.Attr,
			TexParam:   p.TexParam,
			TexPalette: p.TexPalette,
			Flags:      polygonFlags(p),
		}
		for _, v := range p.Vertices {
			idx, ok := vertexIndex[v]
			if !ok {
				if len(df.Vertices) > 0xFFFF {
					return fmt.Errorf("frame has more than %d vertices", 0xFFFF)
				}
				idx = uint16(len(df.Vertices))
				vertexIndex[v] = idx
				df.Vertices = append(df.Vertices, *v)
			}
			dp.Vertices = append(dp.Vertices, idx)
		}
		df.Polygons = append(df.Polygons, dp)
	}

	if f.VRAM != nil {
		df.HaveVRAM = true
		df.Texture = f.VRAM.Texture
		df.TexPal = f.VRAM.TexPal
		for b, data := range f.VRAM.Banks {
			df.Banks[b] = util.DeltaEncodeBytes(d.prevBanks[b], data)
			d.prevBanks[b] = append(d.prevBanks[b][:0], data...)
		}
	}

	return d.enc.Encode(&df)
}

// Close flushes the compressed stream; it does not close the underlying
// writer.
func (d *DumpWriter) Close() error {
	return d.zw.Close()
}

type DumpReader struct {
	zr        *zstd.Decoder
	dec       *msgpack.Decoder
	prevBanks [NumBanks][]byte
}

func NewDumpReader(r io.Reader) (*DumpReader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	d := &DumpReader{zr: zr, dec: msgpack.NewDecoder(zr)}

	var hdr dumpHeader
	if err := d.dec.Decode(&hdr); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadDump, err)
	}
	if hdr.Magic != dumpMagic || hdr.Version != dumpVersion {
		zr.Close()
		return nil, fmt.Errorf("%w: magic %q version %d", ErrBadDump, hdr.Magic, hdr.Version)
	}
	return d, nil
}

// ReadFrame returns the next frame in the stream, or io.EOF once all
// frames have been read.
func (d *DumpReader) ReadFrame() (*Frame, error) {
	var df dumpFrame
	if err := d.dec.Decode(&df); err != nil {
		return nil, err
	}

	f := &Frame{State: df.State}
	vertices := make([]*Vertex, len(df.Vertices))
	for i := range df.Vertices {
		vertices[i] = &df.Vertices[i]
	}
	for i, dp := range df.Polygons {
		p := &Polygon{
			FinalZ:     dp.FinalZ,
			FinalW:     dp.FinalW,
			Attr:       dp.Attr,
			TexParam:   dp.TexParam,
			TexPalette: dp.TexPalette,
		}
		setPolygonFlags(p, dp.Flags)
		for _, idx := range dp.Vertices {
			if int(idx) >= len(vertices) {
				return nil, fmt.Errorf("polygon %d: vertex index %d out of range: %w", i, idx, ErrBadDump)
			}
			p.Vertices = append(p.Vertices, vertices[idx])
		}
		f.Polygons = append(f.Polygons, p)
	}

	if df.HaveVRAM {
		f.VRAM = &VRAM{Texture: df.Texture, TexPal: df.TexPal}
		for b, delta := range df.Banks {
			f.VRAM.Banks[b] = util.DeltaDecodeBytes(d.prevBanks[b], delta)
			d.prevBanks[b] = append(d.prevBanks[b][:0], f.VRAM.Banks[b]...)
		}
	}

	return f, nil
}

func (d *DumpReader) Close() {
	d.zr.Close()
}

func polygonFlags(p *Polygon) uint8 {
	var fl uint8
	set := func(b bool, bit uint8) {
		if b {
			fl |= bit
		}
	}
	set(p.FacingView, dumpFacingView)
	set(p.WBuffer, dumpWBuffer)
	set(p.Translucent, dumpTranslucent)
	set(p.IsShadowMask, dumpShadowMask)
	set(p.IsShadow, dumpShadow)
	set(p.Degenerate, dumpDegenerate)
	return fl
}

func setPolygonFlags(p *Polygon, fl uint8) {
	p.FacingView = fl&dumpFacingView != 0
	p.WBuffer = fl&dumpWBuffer != 0
	p.Translucent = fl&dumpTranslucent != 0
	p.IsShadowMask = fl&dumpShadowMask != 0
	p.IsShadow = fl&dumpShadow != 0
	p.Degenerate = fl&dumpDegenerate != 0
}
