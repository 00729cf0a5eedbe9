package renderer

import (
	"fmt"
	"sync"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// interactiveGLRenderer progressively refines the frame inside an opengl
// window, blitting the accumulated output after every render pass.
type interactiveGLRenderer struct {
	*defaultRenderer
	sync.Mutex

	window *glfw.Window
	texFbo uint32

	// Stop accumulating once this many samples per pixel are reached;
	// 0 keeps refining until the window closes.
	targetSamples int
}

// Create a new interactive opengl renderer. Render passes keep running
// until the window is closed or the sample target is reached.
func NewInteractive(opts Options) (Renderer, error) {
	target := opts.SamplesPerPixel

	// Interactive mode renders one sample per pixel per pass so the
	// window stays responsive while the frame converges.
	opts.SamplesPerPixel = 1

	base, err := NewDefault(opts)
	if err != nil {
		return nil, err
	}

	r := &interactiveGLRenderer{
		defaultRenderer: base.(*defaultRenderer),
		targetSamples:   target,
	}
	if err = r.initGL(opts); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

func (r *interactiveGLRenderer) Close() {
	if r.window != nil {
		r.window.Destroy()
		r.window = nil
		glfw.Terminate()
	}
	r.defaultRenderer.Close()
}

func (r *interactiveGLRenderer) initGL(opts Options) error {
	var err error
	if err = glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %s", err.Error())
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	r.window, err = glfw.CreateWindow(opts.FrameW, opts.FrameH, "helios", nil, nil)
	if err != nil {
		return fmt.Errorf("could not create opengl window: %s", err.Error())
	}
	r.window.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err = gl.Init(); err != nil {
		return fmt.Errorf("could not init opengl: %s", err.Error())
	}

	// Setup texture for image data
	var fbTexture uint32
	gl.GenTextures(1, &fbTexture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, fbTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(opts.FrameW), int32(opts.FrameH), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	// Attach texture to FBO
	gl.GenFramebuffers(1, &r.texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fbTexture, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	r.window.SetKeyCallback(r.onKeyEvent)

	return nil
}

func (r *interactiveGLRenderer) Render() error {
	for !r.window.ShouldClose() {
		glfw.PollEvents()

		r.Lock()

		// Render the next sample batch unless the frame has converged
		if needMoreSamples(r.accumulatedSamples, r.targetSamples) {
			if err := r.defaultRenderer.Render(); err != nil {
				r.Unlock()
				return err
			}

			frame := r.defaultRenderer.Frame()
			gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(r.opts.FrameW), int32(r.opts.FrameH), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
		}

		// Blit the last resolved frame and swap every iteration; the vsynced
		// swap paces the loop once the frame has converged
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
		gl.BlitFramebuffer(0, 0, int32(r.opts.FrameW), int32(r.opts.FrameH), 0, int32(r.opts.FrameH), int32(r.opts.FrameW), 0, gl.COLOR_BUFFER_BIT, gl.LINEAR)
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

		r.window.SwapBuffers()
		r.Unlock()
	}
	return nil
}

// Report whether another sample batch should be rendered. A zero target
// keeps refining until the window closes.
func needMoreSamples(accumulated, target int) bool {
	return target == 0 || accumulated < target
}

func (r *interactiveGLRenderer) onKeyEvent(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}

	switch key {
	case glfw.KeyEscape, glfw.KeyQ:
		r.window.SetShouldClose(true)
	}
}
