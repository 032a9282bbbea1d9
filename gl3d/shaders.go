// gl3d/shaders.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package gl3d

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/renderer"
)

//go:embed shaders/*.glsl
var shaderFS embed.FS

const glslVersion = "#version 330 core\n"

func shaderSource(name string) string {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		// The set of embedded files is fixed at build time.
		panic(err)
	}
	return string(b)
}

// assembleShader concatenates the version line, a #define for each of
// defines, and the given embedded sources.
func assembleShader(defines []string, sources ...string) string {
	var sb strings.Builder
	sb.WriteString(glslVersion)
	for _, d := range defines {
		sb.WriteString("#define " + d + "\n")
	}
	for _, s := range sources {
		sb.WriteString(shaderSource(s))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderDefines(flags renderer.RenderFlags) []string {
	var d []string
	if flags&renderer.FlagWBuffer != 0 {
		d = append(d, "WBUFFER")
	}
	if flags&renderer.FlagTrans != 0 {
		d = append(d, "TRANSLUCENT")
	}
	if flags&renderer.FlagShadowMask != 0 {
		d = append(d, "SHADOW_MASK")
	}
	return d
}

func clearProgramDesc() renderer.ProgramDesc {
	return renderer.ProgramDesc{
		Name:           "clear",
		Kind:           renderer.ProgramClear,
		VertexSource:   assembleShader(nil, "fullscreen.vs.glsl"),
		FragmentSource: assembleShader(nil, "clear.fs.glsl"),
	}
}

func renderProgramDesc(flags renderer.RenderFlags) renderer.ProgramDesc {
	d := renderDefines(flags)
	return renderer.ProgramDesc{
		Name:           "render " + flags.String(),
		Kind:           renderer.ProgramRender,
		Flags:          flags,
		VertexSource:   assembleShader(d, "header.glsl", "render.vs.glsl"),
		FragmentSource: assembleShader(d, "header.glsl", "render_common.fs.glsl", "render.fs.glsl"),
	}
}

func finalProgramDesc() renderer.ProgramDesc {
	return renderer.ProgramDesc{
		Name:           "final",
		Kind:           renderer.ProgramFinal,
		VertexSource:   assembleShader(nil, "fullscreen.vs.glsl"),
		FragmentSource: assembleShader(nil, "header.glsl", "final.fs.glsl"),
	}
}

// ShaderVariantCache holds the programs used to render a frame. All of
// them are built up front; lookups never compile.
type ShaderVariantCache struct {
	clear  renderer.ProgramID
	render [renderer.NumRenderFlagCombinations]renderer.ProgramID
	final  renderer.ProgramID
}

func NewShaderVariantCache(dev renderer.Device, lg *log.Logger) (*ShaderVariantCache, error) {
	c := &ShaderVariantCache{}

	var err error
	if c.clear, err = dev.CompileProgram(clearProgramDesc()); err != nil {
		return nil, fmt.Errorf("clear program: %w", err)
	}
	for f := range renderer.RenderFlags(renderer.NumRenderFlagCombinations) {
		if !f.Valid() {
			continue
		}
		if c.render[f], err = dev.CompileProgram(renderProgramDesc(f)); err != nil {
			return nil, fmt.Errorf("render program %s: %w", f, err)
		}
	}
	if c.final, err = dev.CompileProgram(finalProgramDesc()); err != nil {
		return nil, fmt.Errorf("final program: %w", err)
	}

	lg.Info("Built shader programs")
	return c, nil
}

func (c *ShaderVariantCache) Clear() renderer.ProgramID { return c.clear }
func (c *ShaderVariantCache) Final() renderer.ProgramID { return c.final }

// Render returns the render program for the given flags. Translucent and
// shadow-mask are mutually exclusive; asking for both is a programming
// error.
func (c *ShaderVariantCache) Render(flags renderer.RenderFlags) renderer.ProgramID {
	if !flags.Valid() {
		panic(fmt.Sprintf("invalid render flags %#x", uint8(flags)))
	}
	return c.render[flags]
}
