// renderer/ogl3.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package renderer

import (
	"fmt"
	"log/slog"
	"strings"
	"unsafe"

	"github.com/ndsemu/gl3d/log"
	"github.com/ndsemu/gl3d/util"

	"github.com/go-gl/gl/v3.3-core/gl"
)

// OpenGL3Renderer executes command buffers on the current OpenGL 3.3 core
// profile context. All methods must be called from the thread that owns
// the context.
type OpenGL3Renderer struct {
	lg *log.Logger

	programs map[ProgramID]*glProgram
	textures map[TextureID]*glTexture
	targets  map[TargetID]*glTarget

	vao, vbo, ebo      uint32
	vboBytes, eboBytes int

	quadVAO, quadVBO uint32

	ubo     uint32
	uboData []byte

	pbo                  uint32
	pboBytes             int
	readbackW, readbackH int
	readbackPending      bool

	// Cached device state.
	pipeline     Pipeline
	havePipeline bool
	curProgram   uint32
	memTextures  [2]TextureID
	unitTextures [2]uint32
}

type glProgram struct {
	id       uint32
	desc     ProgramDesc
	clearLoc [4]int32
}

type glTexture struct {
	id   uint32
	desc TextureDesc
}

type glTarget struct {
	desc                      TargetDesc
	fbo                       uint32
	color, attr, depthStencil uint32
}

// NewOpenGL3Renderer initializes the OpenGL bindings and allocates the
// device's buffers. A 3.3 core context must be current.
func NewOpenGL3Renderer(l *log.Logger) (*OpenGL3Renderer, error) {
	l.Info("Starting OpenGL3Renderer initialization")
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	l.Infof("OpenGL vendor %s renderer %s version %s", gl.GoStr(gl.GetString(gl.VENDOR)),
		gl.GoStr(gl.GetString(gl.RENDERER)), gl.GoStr(gl.GetString(gl.VERSION)))

	r := &OpenGL3Renderer{
		lg:       l,
		programs: make(map[ProgramID]*glProgram),
		textures: make(map[TextureID]*glTexture),
		targets:  make(map[TargetID]*glTarget),
		uboData:  make([]byte, ShaderConfigSize),
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.STENCIL_TEST)
	gl.Disable(gl.SCISSOR_TEST)
	gl.DepthRange(0, 1)
	// The attribute attachment is never blended.
	gl.Disablei(gl.BLEND, 1)

	quad := []float32{
		-1, -1, 1, 1, -1, 1,
		-1, -1, 1, -1, 1, 1,
	}
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, 4*len(quad), gl.Ptr(quad), gl.STATIC_DRAW)
	gl.GenVertexArrays(1, &r.quadVAO)
	gl.BindVertexArray(r.quadVAO)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 0, gl.PtrOffset(0))

	gl.GenBuffers(1, &r.vbo)
	gl.GenBuffers(1, &r.ebo)
	gl.GenVertexArrays(1, &r.vao)
	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	const stride = VertexWords * 4
	gl.EnableVertexAttribArray(0) // position
	gl.VertexAttribIPointer(0, 4, gl.UNSIGNED_SHORT, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1) // color
	gl.VertexAttribIPointer(1, 4, gl.UNSIGNED_BYTE, stride, gl.PtrOffset(2*4))
	gl.EnableVertexAttribArray(2) // texcoords
	gl.VertexAttribIPointer(2, 2, gl.SHORT, stride, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(3) // attributes, texparam, texpal
	gl.VertexAttribIPointer(3, 3, gl.UNSIGNED_INT, stride, gl.PtrOffset(4*4))
	gl.BindVertexArray(0)

	gl.GenBuffers(1, &r.ubo)
	gl.BindBuffer(gl.UNIFORM_BUFFER, r.ubo)
	gl.BufferData(gl.UNIFORM_BUFFER, ShaderConfigSize, nil, gl.DYNAMIC_DRAW)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, 0, r.ubo)

	gl.GenBuffers(1, &r.pbo)

	if err := glError("initialization"); err != nil {
		return nil, err
	}

	l.Info("Finished OpenGL3Renderer initialization")
	return r, nil
}

func glError(what string) error {
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("%s: OpenGL error %#x", what, e)
	}
	return nil
}

func (r *OpenGL3Renderer) Dispose() {
	for id, p := range r.programs {
		gl.DeleteProgram(p.id)
		delete(r.programs, id)
	}
	for id, t := range r.textures {
		gl.DeleteTextures(1, &t.id)
		delete(r.textures, id)
	}
	for id, t := range r.targets {
		gl.DeleteFramebuffers(1, &t.fbo)
		for _, tex := range []uint32{t.color, t.attr, t.depthStencil} {
			if tex != 0 {
				gl.DeleteTextures(1, &tex)
			}
		}
		delete(r.targets, id)
	}
	gl.DeleteVertexArrays(1, &r.vao)
	gl.DeleteVertexArrays(1, &r.quadVAO)
	for _, b := range []uint32{r.vbo, r.ebo, r.quadVBO, r.ubo, r.pbo} {
		gl.DeleteBuffers(1, &b)
	}
}

///////////////////////////////////////////////////////////////////////////
// Programs

func compileShader(name string, kind uint32, src string) (uint32, error) {
	sh := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(sh, 1, csrc, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetShaderInfoLog(sh, n, nil, gl.Str(msg))
		gl.DeleteShader(sh)
		return 0, fmt.Errorf("%s: compile failed: %s", name, strings.TrimRight(msg, "\x00"))
	}
	return sh, nil
}

func (r *OpenGL3Renderer) CompileProgram(desc ProgramDesc) (ProgramID, error) {
	vs, err := compileShader(desc.Name+" VS", gl.VERTEX_SHADER, desc.VertexSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(desc.Name+" FS", gl.FRAGMENT_SHADER, desc.FragmentSource)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)

	gl.BindAttribLocation(prog, 0, gl.Str("vPosition\x00"))
	if desc.Kind == ProgramRender {
		gl.BindAttribLocation(prog, 1, gl.Str("vColor\x00"))
		gl.BindAttribLocation(prog, 2, gl.Str("vTexcoord\x00"))
		gl.BindAttribLocation(prog, 3, gl.Str("vPolygonAttr\x00"))
	}
	gl.BindFragDataLocation(prog, 0, gl.Str("oColor\x00"))
	if desc.Kind != ProgramFinal {
		gl.BindFragDataLocation(prog, 1, gl.Str("oAttr\x00"))
	}

	gl.LinkProgram(prog)
	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var n int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &n)
		msg := strings.Repeat("\x00", int(n+1))
		gl.GetProgramInfoLog(prog, n, nil, gl.Str(msg))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("%s: link failed: %s", desc.Name, strings.TrimRight(msg, "\x00"))
	}

	p := &glProgram{id: prog, desc: desc}
	gl.UseProgram(prog)
	switch desc.Kind {
	case ProgramClear:
		for i, name := range []string{"uColor", "uDepth", "uOpaquePolyID", "uFogFlag"} {
			p.clearLoc[i] = gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
		}
	case ProgramRender:
		gl.UniformBlockBinding(prog, gl.GetUniformBlockIndex(prog, gl.Str("uConfig\x00")), 0)
		gl.Uniform1i(gl.GetUniformLocation(prog, gl.Str("TexMem\x00")), 0)
		gl.Uniform1i(gl.GetUniformLocation(prog, gl.Str("TexPalMem\x00")), 1)
	case ProgramFinal:
		gl.UniformBlockBinding(prog, gl.GetUniformBlockIndex(prog, gl.Str("uConfig\x00")), 0)
		gl.Uniform1i(gl.GetUniformLocation(prog, gl.Str("DepthBuffer\x00")), 0)
		gl.Uniform1i(gl.GetUniformLocation(prog, gl.Str("AttrBuffer\x00")), 1)
	}
	gl.UseProgram(0)
	r.curProgram = 0

	if err := glError(desc.Name); err != nil {
		gl.DeleteProgram(prog)
		return 0, err
	}

	r.programs[ProgramID(prog)] = p
	r.lg.Infof("Built program %s (id %d)", desc.Name, prog)
	return ProgramID(prog), nil
}

///////////////////////////////////////////////////////////////////////////
// Textures and targets

func setupDefaultTexParams(tex uint32) {
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
}

func textureFormat(f TextureFormat) (internal int32, format, xtype uint32) {
	if f == TextureRGB5A1 {
		return gl.RGB5_A1, gl.RGBA, gl.UNSIGNED_SHORT_1_5_5_5_REV
	}
	return gl.R8UI, gl.RED_INTEGER, gl.UNSIGNED_BYTE
}

func (r *OpenGL3Renderer) CreateTexture(desc TextureDesc) (TextureID, error) {
	var id uint32
	gl.GenTextures(1, &id)
	setupDefaultTexParams(id)
	internal, format, xtype := textureFormat(desc.Format)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0, format, xtype, nil)
	r.unitTextures = [2]uint32{}

	if err := glError(desc.Name); err != nil {
		gl.DeleteTextures(1, &id)
		return 0, err
	}
	r.textures[TextureID(id)] = &glTexture{id: id, desc: desc}
	r.lg.Infof("Created %s texture %d: %dx%d", desc.Name, id, desc.Width, desc.Height)
	return TextureID(id), nil
}

func (r *OpenGL3Renderer) UpdateTexture(id TextureID, x, y, w, h int, data []byte) {
	t, ok := r.textures[id]
	if !ok {
		r.lg.Errorf("%d: unknown texture", id)
		return
	}
	if n := w * h * t.desc.Format.BytesPerTexel(); len(data) < n {
		r.lg.Errorf("%s: %d bytes provided for %dx%d update", t.desc.Name, len(data), w, h)
		return
	}

	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	r.unitTextures[0] = t.id
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	_, format, xtype := textureFormat(t.desc.Format)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), int32(w), int32(h), format, xtype, gl.Ptr(data))
}

func (r *OpenGL3Renderer) CreateTarget(desc TargetDesc) (TargetID, error) {
	t := &glTarget{desc: desc}
	gl.GenFramebuffers(1, &t.fbo)

	gen := func(a Attachment) uint32 {
		if desc.Attachments&a == 0 {
			return 0
		}
		var tex uint32
		gl.GenTextures(1, &tex)
		setupDefaultTexParams(tex)
		return tex
	}
	t.color = gen(AttachColor)
	t.attr = gen(AttachAttr)
	t.depthStencil = gen(AttachDepthStencil)
	r.unitTextures = [2]uint32{}

	if err := r.allocateTarget(t); err != nil {
		return 0, err
	}

	id := TargetID(t.fbo)
	r.targets[id] = t
	r.lg.Infof("Created target %s (fbo %d): %dx%d", desc.Name, t.fbo, desc.Width, desc.Height)
	return id, nil
}

func (r *OpenGL3Renderer) ResizeTarget(id TargetID, w, h int) error {
	t, ok := r.targets[id]
	if !ok {
		return fmt.Errorf("%d: unknown target", id)
	}
	t.desc.Width, t.desc.Height = w, h
	r.unitTextures = [2]uint32{}
	return r.allocateTarget(t)
}

func (r *OpenGL3Renderer) allocateTarget(t *glTarget) error {
	w, h := int32(t.desc.Width), int32(t.desc.Height)

	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	var bufs []uint32
	if t.color != 0 {
		gl.BindTexture(gl.TEXTURE_2D, t.color)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, w, h, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.FramebufferTexture(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, t.color, 0)
		bufs = append(bufs, gl.COLOR_ATTACHMENT0)
	}
	if t.attr != 0 {
		gl.BindTexture(gl.TEXTURE_2D, t.attr)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, w, h, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		gl.FramebufferTexture(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT1, t.attr, 0)
		bufs = append(bufs, gl.COLOR_ATTACHMENT1)
	}
	if t.depthStencil != 0 {
		gl.BindTexture(gl.TEXTURE_2D, t.depthStencil)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH24_STENCIL8, w, h, 0, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8, nil)
		gl.FramebufferTexture(gl.FRAMEBUFFER, gl.DEPTH_STENCIL_ATTACHMENT, t.depthStencil, 0)
	}
	if len(bufs) > 0 {
		gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("%s: framebuffer incomplete (status %#x)", t.desc.Name, status)
	}
	return glError(t.desc.Name)
}

func (r *OpenGL3Renderer) TextureHandle(id TargetID) uint32 {
	if t, ok := r.targets[id]; ok {
		return t.color
	}
	return 0
}

///////////////////////////////////////////////////////////////////////////
// Per-frame uploads

func (r *OpenGL3Renderer) UploadGeometry(vertices []uint32, indices []uint16) {
	gl.BindVertexArray(r.vao)

	if n := 4 * len(vertices); n > 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
		if n > r.vboBytes {
			gl.BufferData(gl.ARRAY_BUFFER, n, gl.Ptr(vertices), gl.DYNAMIC_DRAW)
			r.vboBytes = n
		} else {
			gl.BufferSubData(gl.ARRAY_BUFFER, 0, n, gl.Ptr(vertices))
		}
	}
	if n := 2 * len(indices); n > 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
		if n > r.eboBytes {
			gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, n, gl.Ptr(indices), gl.DYNAMIC_DRAW)
			r.eboBytes = n
		} else {
			gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, n, gl.Ptr(indices))
		}
	}

	gl.BindVertexArray(0)
}

func (r *OpenGL3Renderer) UploadShaderConfig(cfg *ShaderConfig) {
	data := cfg.Encode(r.uboData)
	gl.BindBuffer(gl.UNIFORM_BUFFER, r.ubo)
	gl.BufferSubData(gl.UNIFORM_BUFFER, 0, len(data), gl.Ptr(data))
}

///////////////////////////////////////////////////////////////////////////
// Command execution

var glCompareFuncs = [...]uint32{
	CompareNever:    gl.NEVER,
	CompareLess:     gl.LESS,
	CompareEqual:    gl.EQUAL,
	CompareLEqual:   gl.LEQUAL,
	CompareGreater:  gl.GREATER,
	CompareNotEqual: gl.NOTEQUAL,
	CompareGEqual:   gl.GEQUAL,
	CompareAlways:   gl.ALWAYS,
}

var glStencilOps = [...]uint32{
	StencilKeep:    gl.KEEP,
	StencilZero:    gl.ZERO,
	StencilReplace: gl.REPLACE,
	StencilIncr:    gl.INCR,
	StencilDecr:    gl.DECR,
	StencilInvert:  gl.INVERT,
}

var glBlendFactors = [...]uint32{
	BlendZero:                  gl.ZERO,
	BlendOne:                   gl.ONE,
	BlendSrcAlpha:              gl.SRC_ALPHA,
	BlendOneMinusSrcAlpha:      gl.ONE_MINUS_SRC_ALPHA,
	BlendDstAlpha:              gl.DST_ALPHA,
	BlendOneMinusDstAlpha:      gl.ONE_MINUS_DST_ALPHA,
	BlendConstantColor:         gl.CONSTANT_COLOR,
	BlendOneMinusConstantColor: gl.ONE_MINUS_CONSTANT_COLOR,
}

var glBlendEquations = [...]uint32{
	BlendAdd: gl.FUNC_ADD,
	BlendMax: gl.MAX,
}

func (r *OpenGL3Renderer) applyPipeline(p Pipeline) {
	if r.havePipeline && p == r.pipeline {
		return
	}
	r.pipeline, r.havePipeline = p, true

	b := p.Blend
	if b.Enabled {
		gl.Enablei(gl.BLEND, 0)
	} else {
		gl.Disablei(gl.BLEND, 0)
	}
	gl.BlendFuncSeparate(glBlendFactors[b.SrcRGB], glBlendFactors[b.DstRGB],
		glBlendFactors[b.SrcAlpha], glBlendFactors[b.DstAlpha])
	gl.BlendEquationSeparate(glBlendEquations[b.EquationRGB], glBlendEquations[b.EquationAlpha])
	gl.BlendColor(b.Constant[0], b.Constant[1], b.Constant[2], b.Constant[3])

	gl.DepthFunc(glCompareFuncs[p.Depth.Func])
	gl.DepthMask(p.Depth.Write)

	s := p.Stencil
	gl.StencilFunc(glCompareFuncs[s.Func], int32(s.Ref), uint32(s.ReadMask))
	gl.StencilOp(glStencilOps[s.Fail], glStencilOps[s.DepthFail], glStencilOps[s.Pass])
	gl.StencilMask(uint32(s.WriteMask))

	cm, am := p.ColorMask, p.AttrMask
	gl.ColorMaski(0, cm&MaskR != 0, cm&MaskG != 0, cm&MaskB != 0, cm&MaskA != 0)
	gl.ColorMaski(1, am&MaskR != 0, am&MaskG != 0, am&MaskB != 0, am&MaskA != 0)
}

func (r *OpenGL3Renderer) bindUnit(unit int, tex uint32) {
	if r.unitTextures[unit] == tex {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, tex)
	r.unitTextures[unit] = tex
}

func (r *OpenGL3Renderer) useProgram(id uint32) {
	if r.curProgram != id {
		gl.UseProgram(id)
		r.curProgram = id
	}
}

func (r *OpenGL3Renderer) RenderCommandBuffer(cb *CommandBuffer) RendererStats {
	var stats RendererStats
	stats.nBuffers++
	stats.bufferBytes += 4 * len(cb.Buf)
	if n := cb.Truncated(); n > 0 {
		r.lg.Errorf("%d non-32-bit values were added to the command buffer", n)
	}

	var current *glTarget

	for i := 0; i < len(cb.Buf); {
		var cmd Command
		cmd, i = cb.decode(i)
		stats.account(&cmd)

		switch cmd.Op {
		case RendererBindTarget:
			t, ok := r.targets[cmd.Target]
			if !ok {
				r.lg.Errorf("%d: unknown target", cmd.Target)
				continue
			}
			gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
			current = t

		case RendererViewport:
			gl.Viewport(int32(cmd.X), int32(cmd.Y), int32(cmd.Width), int32(cmd.Height))

		case RendererBindTextures:
			r.memTextures = cmd.Textures

		case RendererClearStencil:
			gl.StencilMask(uint32(cmd.StencilMask))
			gl.ClearStencil(int32(cmd.StencilValue))
			gl.Clear(gl.STENCIL_BUFFER_BIT)
			r.pipeline.Stencil.WriteMask = cmd.StencilMask

		case RendererDraw:
			r.draw(&cmd.Draw)

		case RendererBlit:
			r.blit(cmd.Blit, current)

		default:
			r.lg.Error("unhandled command", slog.Int("op", cmd.Op))
		}
	}

	return stats
}

func (r *OpenGL3Renderer) draw(d *DrawCommand) {
	p, ok := r.programs[d.Program]
	if !ok {
		r.lg.Errorf("%d: unknown program", d.Program)
		return
	}

	r.applyPipeline(d.Pipeline)
	r.useProgram(p.id)

	switch p.desc.Kind {
	case ProgramClear:
		c := d.Clear
		gl.Uniform4ui(p.clearLoc[0], c.Color[0], c.Color[1], c.Color[2], c.Color[3])
		gl.Uniform1ui(p.clearLoc[1], c.Depth)
		gl.Uniform1ui(p.clearLoc[2], c.PolygonID)
		gl.Uniform1ui(p.clearLoc[3], c.Fog)

	case ProgramRender:
		for unit, id := range r.memTextures {
			if t, ok := r.textures[id]; ok {
				r.bindUnit(unit, t.id)
			}
		}

	case ProgramFinal:
		if t, ok := r.targets[d.Sample]; ok {
			r.bindUnit(0, t.depthStencil)
			r.bindUnit(1, t.attr)
		}
	}

	switch d.Primitive {
	case PrimitiveTriangles, PrimitiveLines:
		mode := util.Select[uint32](d.Primitive == PrimitiveLines, gl.LINES, gl.TRIANGLES)
		gl.BindVertexArray(r.vao)
		gl.DrawElements(mode, int32(d.Count), gl.UNSIGNED_SHORT, gl.PtrOffset(2*d.First))

	case PrimitiveFullscreen:
		gl.BindVertexArray(r.quadVAO)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
	}
}

func (r *OpenGL3Renderer) blit(b BlitCommand, current *glTarget) {
	src, ok1 := r.targets[b.Src]
	dst, ok2 := r.targets[b.Dst]
	if !ok1 || !ok2 {
		r.lg.Errorf("blit %d -> %d: unknown target", b.Src, b.Dst)
		return
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, src.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, dst.fbo)
	gl.DrawBuffer(gl.COLOR_ATTACHMENT0)

	filter := util.Select[uint32](b.Filter == FilterLinear, gl.LINEAR, gl.NEAREST)
	gl.BlitFramebuffer(0, 0, int32(src.desc.Width), int32(src.desc.Height),
		0, 0, int32(dst.desc.Width), int32(dst.desc.Height), gl.COLOR_BUFFER_BIT, filter)

	if dst.attr != 0 {
		bufs := []uint32{gl.COLOR_ATTACHMENT0, gl.COLOR_ATTACHMENT1}
		gl.DrawBuffers(2, &bufs[0])
	}
	if current != nil {
		gl.BindFramebuffer(gl.FRAMEBUFFER, current.fbo)
	} else {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}
}

///////////////////////////////////////////////////////////////////////////
// Readback

func (r *OpenGL3Renderer) BeginReadback(id TargetID) {
	t, ok := r.targets[id]
	if !ok {
		r.lg.Errorf("%d: unknown target", id)
		return
	}
	w, h := t.desc.Width, t.desc.Height

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, t.fbo)
	gl.ReadBuffer(gl.COLOR_ATTACHMENT0)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, r.pbo)
	if n := 4 * w * h; n != r.pboBytes {
		gl.BufferData(gl.PIXEL_PACK_BUFFER, n, nil, gl.DYNAMIC_READ)
		r.pboBytes = n
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.BGRA, gl.UNSIGNED_BYTE, gl.PtrOffset(0))
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)

	r.readbackW, r.readbackH = w, h
	r.readbackPending = true
}

func (r *OpenGL3Renderer) FinishReadback(dst []uint32) {
	if !r.readbackPending {
		return
	}
	r.readbackPending = false

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, r.pbo)
	if ptr := gl.MapBuffer(gl.PIXEL_PACK_BUFFER, gl.READ_ONLY); ptr != nil {
		copy(dst, unsafe.Slice((*uint32)(ptr), r.readbackW*r.readbackH))
	} else {
		r.lg.Errorf("unable to map pixel buffer: %v", glError("readback"))
	}
	gl.UnmapBuffer(gl.PIXEL_PACK_BUFFER)
	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
}

func (r *OpenGL3Renderer) ReadAttachment(id TargetID, a Attachment) []uint32 {
	t, ok := r.targets[id]
	if !ok {
		r.lg.Errorf("%d: unknown target", id)
		return nil
	}
	w, h := int32(t.desc.Width), int32(t.desc.Height)
	pix := make([]uint32, w*h)

	gl.BindBuffer(gl.PIXEL_PACK_BUFFER, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, t.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 4)
	switch a {
	case AttachColor, AttachAttr:
		gl.ReadBuffer(util.Select[uint32](a == AttachColor, gl.COLOR_ATTACHMENT0, gl.COLOR_ATTACHMENT1))
		gl.ReadPixels(0, 0, w, h, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	case AttachDepthStencil, AttachStencil:
		gl.ReadPixels(0, 0, w, h, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8, gl.Ptr(pix))
		for i, v := range pix {
			pix[i] = util.Select(a == AttachStencil, v&0xFF, v>>8)
		}
	}
	return pix
}
