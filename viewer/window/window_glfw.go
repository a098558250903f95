package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/input"
)

// scrollZoomFactor converts a scroll wheel tick into a zoom gesture distance.
const scrollZoomFactor = 0.1

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *viewerWindow
	window  *glfw.Window
	running bool
}

// newPlatformWindow creates the GLFW window, registers the input callbacks
// that feed the pending event batch, and stores it as the internal window.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *viewerWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %v", err)
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %v", err)
	}

	gw := &glfwWindow{
		parent:  w,
		window:  win,
		running: true,
	}
	w.internalWindow = gw

	win.SetCloseCallback(func(_ *glfw.Window) {
		w.enqueue(input.QuitEvent{})
	})

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			w.enqueue(input.KeyDownEvent{Code: uint32(key)})
		case glfw.Release:
			w.enqueue(input.KeyUpEvent{Code: uint32(key)})
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		x, y := win.GetCursorPos()
		w.enqueue(input.ZoomEvent{
			DDist:    float32(yoff) * scrollZoomFactor,
			Position: common.Point2I{X: int32(x), Y: int32(y)},
		})
	})

	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		x, y := win.GetCursorPos()
		position := common.Point2I{X: int32(x), Y: int32(y)}
		switch action {
		case glfw.Press:
			w.mu.Lock()
			w.mouseDown = true
			w.mu.Unlock()
			w.enqueue(input.MouseDownEvent{Position: position})
		case glfw.Release:
			w.mu.Lock()
			w.mouseDown = false
			w.mu.Unlock()
		}
	})

	win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		position := common.Point2I{X: int32(xpos), Y: int32(ypos)}
		w.mu.Lock()
		dragged := w.mouseDown
		w.mu.Unlock()
		if dragged {
			w.enqueue(input.MouseDraggedEvent{Position: position})
		} else {
			w.enqueue(input.MouseMovedEvent{Position: position})
		}
	})

	// Dragging an SVG file onto the window opens it.
	win.SetDropCallback(func(_ *glfw.Window, names []string) {
		if len(names) > 0 {
			w.enqueue(input.OpenSceneEvent{Path: names[0]})
		}
	})

	// Logical size callback keeps logical dimensions current; framebuffer
	// size callback keeps the backing scale factor current and reports the
	// resize to the event batch.
	win.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		w.mu.Lock()
		w.width = width
		w.height = height
		w.mu.Unlock()
	})
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, fbWidth, fbHeight int) {
		w.mu.Lock()
		if w.width > 0 {
			w.backingScaleFactor = float32(fbWidth) / float32(w.width)
		}
		size := w.sizeLocked()
		w.mu.Unlock()
		w.enqueue(input.ResizedEvent{Size: size})
	})

	width, height := win.GetSize()
	fbWidth, _ := win.GetFramebufferSize()
	w.width = width
	w.height = height
	if width > 0 {
		w.backingScaleFactor = float32(fbWidth) / float32(width)
	}

	return nil
}

// platformGetSurfaceDescriptor creates a platform-appropriate
// wgpu.SurfaceDescriptor from the GLFW window via the wgpuglfw bridge.
func platformGetSurfaceDescriptor(w *viewerWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	gw := w.internalWindow.(*glfwWindow)
	return wgpuglfw.GetSurfaceDescriptor(gw.window)
}

// platformIsRunningCheck returns whether the GLFW window is still active.
func platformIsRunningCheck(w *viewerWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && !gw.window.ShouldClose()
}

// platformCloseWindow destroys the GLFW window and terminates the GLFW
// library.
func platformCloseWindow(w *viewerWindow) error {
	if w.internalWindow == nil {
		return fmt.Errorf("window is not initialized")
	}
	gw := w.internalWindow.(*glfwWindow)
	if !gw.running {
		return nil
	}
	gw.running = false
	gw.window.SetShouldClose(true)
	gw.window.Destroy()
	glfw.Terminate()
	return nil
}

// idleWaitTimeout bounds, in seconds, how long the loop blocks when no redraw
// is pending, so periodic work (frame timings, profiler output) still runs.
const idleWaitTimeout = 0.1

// platformProcessMessages pumps GLFW events: a blocking wait while the viewer
// is idle, a non-blocking poll while it is animating.
func platformProcessMessages(w *viewerWindow) bool {
	w.mu.Lock()
	wait := w.idleWait
	w.mu.Unlock()
	if wait {
		glfw.WaitEventsTimeout(idleWaitTimeout)
	} else {
		glfw.PollEvents()
	}
	return platformIsRunningCheck(w)
}

// platformWake interrupts a blocking event wait, so user events pushed from
// background goroutines are seen promptly.
func platformWake() {
	glfw.PostEmptyEvent()
}
