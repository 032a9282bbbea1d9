// gl3d/gl3d.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package gl3d renders the console's 3D frames on a programmable GPU,
// emulating the fixed-function rasterizer's depth modes, translucency
// rules, shadow volumes, fog and edge marking with ordinary depth,
// stencil and blend state.
package gl3d

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/renderer"
	"github.com/ndsemu/gl3d/util"
)

// Renderer owns all of the state needed to render frames on a device:
// programs, targets, texture memory and the per-frame buffers. It must
// only be used from one goroutine.
type Renderer struct {
	lg  *log.Logger
	dev renderer.Device
	cfg Config

	shaders    *ShaderVariantCache
	fb         *FramebufferManager
	texmem     *TextureMemoryBridge
	batches    batchBuilder
	compositor FrameCompositor

	shaderConfig renderer.ShaderConfig
	commandDump  io.Writer
	frames       int
}

// New builds all programs and allocates the render targets. Any failure
// leaves the renderer unusable.
func New(dev renderer.Device, cfg Config, lg *log.Logger) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Renderer{
		lg:      lg,
		dev:     dev,
		cfg:     cfg,
		batches: makeBatchBuilder(cfg),
	}

	var err error
	if r.shaders, err = NewShaderVariantCache(dev, lg); err != nil {
		lg.Errorf("%v", err)
		return nil, fmt.Errorf("gl3d: %w", err)
	}
	r.compositor = FrameCompositor{shaders: r.shaders}

	if r.fb, err = NewFramebufferManager(dev, lg); err != nil {
		lg.Errorf("%v", err)
		return nil, fmt.Errorf("gl3d: %w", err)
	}
	if err = r.fb.SetDisplaySettings(cfg.ScaleFactor, cfg.Antialias); err != nil {
		lg.Errorf("%v", err)
		return nil, fmt.Errorf("gl3d: %w", err)
	}

	if r.texmem, err = NewTextureMemoryBridge(dev, cfg.SkipUnchangedBanks); err != nil {
		lg.Errorf("%v", err)
		return nil, fmt.Errorf("gl3d: %w", err)
	}

	lg.Info("Created 3D renderer", slog.Int("scale", cfg.ScaleFactor), slog.Bool("antialias", cfg.Antialias),
		slog.Int("max_polygons", cfg.MaxPolygons), slog.Int("max_vertices", cfg.MaxVertices))
	return r, nil
}

// SetDisplaySettings changes the internal resolution and antialiasing.
func (r *Renderer) SetDisplaySettings(scale int, antialias bool) error {
	c := r.cfg
	c.ScaleFactor, c.Antialias = scale, antialias
	if err := c.Validate(); err != nil {
		return err
	}
	if err := r.fb.SetDisplaySettings(scale, antialias); err != nil {
		return err
	}
	r.cfg = c
	return nil
}

// SetCommandDump makes RenderFrame write a listing of each frame's
// commands to w; nil disables it.
func (r *Renderer) SetCommandDump(w io.Writer) {
	r.commandDump = w
}

// RenderFrame renders f into the back target and then makes it the
// front one. If the frame exceeds the configured capacities, nothing is
// drawn and an error wrapping util.ErrCapacityExceeded is returned;
// malformed polygons or VRAM banks likewise abort the frame with an
// error wrapping gpu3d.ErrInvalidPolygon or gpu3d.ErrInvalidVRAM.
func (r *Renderer) RenderFrame(f *gpu3d.Frame) (renderer.RendererStats, error) {
	cb := renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(cb)

	if err := r.recordFrame(f, cb); err != nil {
		r.lg.Errorf("frame %d: %v", r.frames, err)
		return renderer.RendererStats{}, err
	}
	if r.commandDump != nil {
		cb.Dump(r.commandDump)
	}

	stats := r.dev.RenderCommandBuffer(cb)
	r.fb.Swap()

	r.lg.Debug("Rendered frame", slog.Int("frame", r.frames), slog.Int("polygons", len(f.Polygons)),
		slog.Any("stats", stats))
	r.frames++
	return stats, nil
}

// recordFrame uploads the frame's geometry, textures and shader
// configuration and records its passes into cb.
func (r *Renderer) recordFrame(f *gpu3d.Frame, cb *renderer.CommandBuffer) error {
	if err := f.Validate(); err != nil {
		return err
	}

	polys, err := r.batches.Build(f.Polygons, r.fb.RenderScale())
	if err != nil {
		return err
	}

	target, w, h := r.fb.RenderTarget()

	r.texmem.Update(f.VRAM)
	r.updateShaderConfig(&f.State, w, h)
	r.dev.UploadShaderConfig(&r.shaderConfig)
	r.dev.UploadGeometry(r.batches.Vertices(), r.batches.Indices())

	cb.BindTarget(target)
	cb.Viewport(0, 0, w, h)
	cb.BindTextures(r.texmem.Textures())

	r.compositor.Compose(cb, &framePlan{
		state:        &f.State,
		target:       target,
		flags:        util.Select(f.WBuffered(), renderer.FlagWBuffer, 0),
		havePolygons: len(f.Polygons) > 0,
		polys:        polys,
		split:        opaqueSplit(polys),
	})
	r.fb.Resolve(cb)
	return nil
}

func rgb5ToFloat(c uint16) [4]float32 {
	v := gpu3d.RGB5(c)
	return [4]float32{float32(v.R()) / 31, float32(v.G()) / 31, float32(v.B()) / 31, 0}
}

func (r *Renderer) updateShaderConfig(st *gpu3d.RenderState, w, h int) {
	c := &r.shaderConfig
	c.ScreenSize = [2]float32{float32(w), float32(h)}
	c.DispCnt = st.DispCnt
	for i, t := range st.ToonTable {
		c.ToonColors[i] = rgb5ToFloat(t)
	}
	for i, e := range st.EdgeTable {
		c.EdgeColors[i] = rgb5ToFloat(e)
	}
	fr, fg, fb, fa := st.FogColorChannels()
	c.FogColor = [4]float32{float32(fr) / 31, float32(fg) / 31, float32(fb) / 31, float32(fa) / 31}
	for i, d := range st.FogDensity {
		c.FogDensity[i] = float32(d) / 127
	}
	c.FogOffset = st.FogOffset
	c.FogShift = st.FogShift
}

// PrepareCaptureFrame starts capturing the front target for GetLine.
func (r *Renderer) PrepareCaptureFrame() {
	r.fb.PrepareCaptureFrame()
}

// GetLine returns one 256-pixel scanline of the last capture in the
// native pixel format.
func (r *Renderer) GetLine(line int) []uint32 {
	return r.fb.GetLine(line)
}

// AccelTexture returns the device handle of the front color image for
// presentation code that samples it directly.
func (r *Renderer) AccelTexture() uint32 {
	return r.fb.AccelTexture()
}

// FrontBuffer returns the target holding the most recent frame.
func (r *Renderer) FrontBuffer() renderer.TargetID {
	return r.fb.FrontBuffer()
}

func (r *Renderer) Dispose() {
	r.dev.Dispose()
}
