// cmd/gl3dreplay/glfw.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"fmt"

	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/renderer"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// newGLDevice creates a hidden window to get an OpenGL 3.3 core context
// and returns a device that renders with it, along with a function that
// releases both.
func newGLDevice(lg *log.Logger) (renderer.Device, func(), error) {
	lg.Info("Starting GLFW initialization")
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize glfw: %w", err)
	}
	lg.Infof("GLFW: %s", glfw.GetVersionString())

	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	// Frames are only rendered offscreen.
	glfw.WindowHint(glfw.Visible, glfw.False)

	window, err := glfw.CreateWindow(64, 64, "gl3dreplay", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.MakeContextCurrent()

	dev, err := renderer.NewOpenGL3Renderer(lg)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, nil, err
	}

	return dev, func() {
		dev.Dispose()
		window.Destroy()
		glfw.Terminate()
	}, nil
}
