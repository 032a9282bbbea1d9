// cmd/gl3dreplay/main_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ndsemu/gl3d/gl3d"
	"github.com/ndsemu/gl3d/gpu3d"
)

func writeDump(t *testing.T, path string, frames ...*gpu3d.Frame) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	dw, err := gpu3d.NewDumpWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, fr := range frames {
		if err := dw.WriteFrame(fr); err != nil {
			t.Fatal(err)
		}
	}
	if err := dw.Close(); err != nil {
		t.Fatal(err)
	}
}

func clearFrame(r, g, b uint32) *gpu3d.Frame {
	return &gpu3d.Frame{State: gpu3d.RenderState{
		ClearAttr1: r | g<<5 | b<<10 | 31<<16,
		ClearAttr2: 0x7FFF,
	}}
}

func TestFindDumps(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, fn := range []string{filepath.Join(dir, "a"+gpu3d.DumpFileExtension),
		filepath.Join(sub, "b"+gpu3d.DumpFileExtension), filepath.Join(sub, "notes.txt")} {
		if err := os.WriteFile(fn, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	files, err := findDumps([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("expected 2 dumps, got %v", files)
	}

	if _, err := findDumps([]string{sub + "/none"}); err == nil {
		t.Errorf("expected an error for a missing path")
	}
	if _, err := findDumps([]string{t.TempDir()}); err == nil {
		t.Errorf("expected an error when no dumps are found")
	}
}

func TestReplaySoftware(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "clear"+gpu3d.DumpFileExtension)
	writeDump(t, dump, clearFrame(31, 0, 0), clearFrame(0, 31, 0))

	rp := &replayer{cfg: gl3d.DefaultConfig(), outDir: t.TempDir(), commandDir: t.TempDir()}
	if err := rp.replaySoftware([]string{dump}); err != nil {
		t.Fatal(err)
	}
	if rp.frames != 2 || rp.stats.DrawCalls() != 2 {
		t.Errorf("expected 2 frames with one draw each, got %d frames: %s", rp.frames, rp.stats.String())
	}

	for i, expected := range [][3]uint32{{255, 0, 0}, {0, 255, 0}} {
		fn := filepath.Join(rp.outDir, []string{"clear-0000.png", "clear-0001.png"}[i])
		f, err := os.Open(fn)
		if err != nil {
			t.Fatal(err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		r, g, b, a := img.At(10, 10).RGBA()
		if r>>8 != expected[0] || g>>8 != expected[1] || b>>8 != expected[2] || a>>8 != 255 {
			t.Errorf("frame %d: expected %v, got %d %d %d %d", i, expected, r>>8, g>>8, b>>8, a>>8)
		}
	}

	if fi, err := os.Stat(filepath.Join(rp.commandDir, "clear.commands.txt")); err != nil || fi.Size() == 0 {
		t.Errorf("expected a command listing, got %v", err)
	}
}
