// gl3d/framebuffer.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"fmt"
	"log/slog"

	"github.com/ndsemu/gl3d/gpu3d"
	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/renderer"
)

const sceneAttachments = renderer.AttachColor | renderer.AttachAttr | renderer.AttachDepthStencil

// FramebufferManager owns the render targets: two scene targets that
// alternate as front and back, the antialiasing intermediate and the
// native-resolution capture target.
type FramebufferManager struct {
	dev renderer.Device
	lg  *log.Logger

	scale     int
	antialias bool

	targets [2]renderer.TargetID
	front   int
	aa      renderer.TargetID
	capture renderer.TargetID

	// Capture readback state.
	readbackPending bool
	pixels          []uint32
}

func NewFramebufferManager(dev renderer.Device, lg *log.Logger) (*FramebufferManager, error) {
	fm := &FramebufferManager{
		dev:    dev,
		lg:     lg,
		scale:  1,
		pixels: make([]uint32, gpu3d.ScreenWidth*gpu3d.ScreenHeight),
	}

	var err error
	for i := range fm.targets {
		fm.targets[i], err = dev.CreateTarget(renderer.TargetDesc{Name: fmt.Sprintf("scene %d", i),
			Width: gpu3d.ScreenWidth, Height: gpu3d.ScreenHeight, Attachments: sceneAttachments})
		if err != nil {
			return nil, err
		}
	}
	// Only sized up when antialiasing is enabled.
	if fm.aa, err = dev.CreateTarget(renderer.TargetDesc{Name: "antialias", Width: 1, Height: 1,
		Attachments: sceneAttachments}); err != nil {
		return nil, err
	}
	if fm.capture, err = dev.CreateTarget(renderer.TargetDesc{Name: "capture", Width: gpu3d.ScreenWidth,
		Height: gpu3d.ScreenHeight, Attachments: renderer.AttachColor}); err != nil {
		return nil, err
	}
	return fm, nil
}

// SetDisplaySettings reallocates the targets for the given internal
// resolution scale and antialiasing setting. Their contents are lost.
func (fm *FramebufferManager) SetDisplaySettings(scale int, antialias bool) error {
	fm.scale, fm.antialias = scale, antialias
	w, h := fm.Size()

	for _, id := range fm.targets {
		if err := fm.dev.ResizeTarget(id, w, h); err != nil {
			return err
		}
	}
	aw, ah := 1, 1
	if antialias {
		aw, ah = 2*w, 2*h
	}
	if err := fm.dev.ResizeTarget(fm.aa, aw, ah); err != nil {
		return err
	}

	fm.lg.Info("Display settings changed", slog.Int("scale", scale), slog.Bool("antialias", antialias),
		slog.Int("width", w), slog.Int("height", h))
	return nil
}

// Size returns the resolution of the front and back targets.
func (fm *FramebufferManager) Size() (int, int) {
	return gpu3d.ScreenWidth * fm.scale, gpu3d.ScreenHeight * fm.scale
}

// RenderScale is the factor from native coordinates to the resolution
// frames are rendered at.
func (fm *FramebufferManager) RenderScale() int {
	if fm.antialias {
		return 2 * fm.scale
	}
	return fm.scale
}

// RenderTarget returns the target a frame is drawn into and its size.
func (fm *FramebufferManager) RenderTarget() (renderer.TargetID, int, int) {
	w, h := fm.Size()
	if fm.antialias {
		return fm.aa, 2 * w, 2 * h
	}
	return fm.BackBuffer(), w, h
}

// Resolve records the downsample of the antialiasing intermediate into
// the back target, if antialiasing is enabled.
func (fm *FramebufferManager) Resolve(cb *renderer.CommandBuffer) {
	if fm.antialias {
		cb.Blit(fm.aa, fm.BackBuffer(), renderer.FilterLinear)
	}
}

func (fm *FramebufferManager) BackBuffer() renderer.TargetID  { return fm.targets[fm.front^1] }
func (fm *FramebufferManager) FrontBuffer() renderer.TargetID { return fm.targets[fm.front] }

// Swap makes the just-rendered back target the front one.
func (fm *FramebufferManager) Swap() {
	fm.front ^= 1
}

// AccelTexture returns the device handle of the front color image.
func (fm *FramebufferManager) AccelTexture() uint32 {
	return fm.dev.TextureHandle(fm.FrontBuffer())
}

// PrepareCaptureFrame downsamples the front target into the capture
// target and starts reading it back. The pixels are not available until
// the next GetLine.
func (fm *FramebufferManager) PrepareCaptureFrame() {
	cb := renderer.GetCommandBuffer()
	defer renderer.ReturnCommandBuffer(cb)

	cb.Blit(fm.FrontBuffer(), fm.capture, renderer.FilterNearest)
	fm.dev.RenderCommandBuffer(cb)
	fm.dev.BeginReadback(fm.capture)
	fm.readbackPending = true
}

// ConvertPixelPair converts two BGRA8888 pixels, packed little-endian
// into one word, to the native 6-bit color and 5-bit alpha layout.
func ConvertPixelPair(p uint64) uint64 {
	rgb := p & 0x00FCFCFC00FCFCFC
	a := p & 0xF8000000F8000000
	return (rgb >> 2) | (a >> 3)
}

// GetLine returns the given scanline of the last captured frame. The
// first call after a capture waits for the readback to finish and
// converts the whole frame; later calls return the cached result.
func (fm *FramebufferManager) GetLine(line int) []uint32 {
	if line < 0 || line >= gpu3d.ScreenHeight {
		return nil
	}

	if fm.readbackPending {
		fm.dev.FinishReadback(fm.pixels)
		for i := 0; i < len(fm.pixels); i += 2 {
			p := ConvertPixelPair(uint64(fm.pixels[i]) | uint64(fm.pixels[i+1])<<32)
			fm.pixels[i], fm.pixels[i+1] = uint32(p), uint32(p>>32)
		}
		fm.readbackPending = false
	}

	return fm.pixels[line*gpu3d.ScreenWidth : (line+1)*gpu3d.ScreenWidth]
}
