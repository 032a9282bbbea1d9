// gl3d/config_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config: %v", err)
	}

	for _, tc := range []struct {
		modify  func(*Config)
		message string
	}{
		{func(c *Config) { c.ScaleFactor = 0 }, "config / scale_factor: must be >= 1"},
		{func(c *Config) { c.ScaleFactor = 17 }, "config / scale_factor: must be <= 16"},
		{func(c *Config) { c.MaxPolygons = 0 }, "config / max_polygons: must be >= 1"},
		{func(c *Config) { c.MaxPolygons = 30000 }, "config / max_polygons: must be <= 21845"},
		{func(c *Config) { c.MaxVertices = 2 }, "config / max_vertices: must be >= 3"},
		{func(c *Config) { c.MaxVertices = 1 << 17 }, "config / max_vertices: must be <= 65536"},
	} {
		c := DefaultConfig()
		tc.modify(&c)
		err := c.Validate()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", tc.message, err)
		} else if !strings.Contains(err.Error(), tc.message) {
			t.Errorf("expected %q in %q", tc.message, err.Error())
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	fn := filepath.Join(dir, "gl3d.yaml")
	if err := os.WriteFile(fn, []byte("scale_factor: 4\nantialias: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(fn)
	if err != nil {
		t.Fatal(err)
	}
	d := DefaultConfig()
	if c.ScaleFactor != 4 || !c.Antialias || c.MaxPolygons != d.MaxPolygons || c.SkipUnchangedBanks != d.SkipUnchangedBanks {
		t.Errorf("unexpected config %+v", c)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("max_vertices: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
