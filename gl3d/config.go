// gl3d/config.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"errors"
	"fmt"
	"os"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/util"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	MaxScaleFactor = 16
	// Vertex indices are 16 bits.
	MaxVertexCapacity = 1 << 16
)

type Config struct {
	// Internal resolution as a multiple of 256x192.
	ScaleFactor int `yaml:"scale_factor"`
	// Render at twice the resolution and downsample.
	Antialias bool `yaml:"antialias"`

	MaxPolygons int `yaml:"max_polygons"`
	MaxVertices int `yaml:"max_vertices"`

	// Skip re-uploading texture and palette slots whose contents have not
	// changed since the previous frame.
	SkipUnchangedBanks bool `yaml:"skip_unchanged_banks"`
}

func DefaultConfig() Config {
	return Config{
		ScaleFactor:        1,
		MaxPolygons:        2048,
		MaxVertices:        10240,
		SkipUnchangedBanks: true,
	}
}

// LoadConfig reads a YAML configuration file; settings it does not
// mention keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var e util.ErrorLogger
	e.Push("config")
	defer e.Pop()

	check := func(name string, v, low, high int) {
		e.Push(name)
		if v < low {
			e.ErrorString("must be >= %d", low)
		} else if v > high {
			e.ErrorString("must be <= %d", high)
		}
		e.Pop()
	}
	check("scale_factor", c.ScaleFactor, 1, MaxScaleFactor)
	check("max_polygons", c.MaxPolygons, 1, MaxVertexCapacity/gpu3d.MinPolygonVertices)
	check("max_vertices", c.MaxVertices, gpu3d.MinPolygonVertices, MaxVertexCapacity)

	if e.HaveErrors() {
		return fmt.Errorf("%w:\n%s", ErrInvalidConfig, e.String())
	}
	return nil
}
