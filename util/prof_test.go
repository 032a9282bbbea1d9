// util/prof_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProfiler(t *testing.T) {
	p, err := StartProfiling("", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("expected no error without profiles, got %v", err)
	}

	dir := t.TempDir()
	cpu, mem := filepath.Join(dir, "cpu.prof"), filepath.Join(dir, "mem.prof")
	if p, err = StartProfiling(cpu, mem); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
	for _, fn := range []string{cpu, mem} {
		if fi, err := os.Stat(fn); err != nil || fi.Size() == 0 {
			t.Errorf("%s: expected a non-empty profile", fn)
		}
	}

	if _, err := StartProfiling(filepath.Join(dir, "missing", "cpu.prof"), ""); err == nil {
		t.Errorf("expected an error for an uncreatable profile")
	}
}
