// Package window provides platform windowing for the viewer: it batches raw
// input into per-frame event slices, exposes the WebGPU surface descriptor,
// and carves the drawable area into mono or stereo viewports.
package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/input"
)

// View selects which part of the drawable area a render pass targets.
type View int

const (
	// ViewFull is the whole drawable area (mono rendering).
	ViewFull View = iota

	// ViewLeftEye is the left half of the drawable area.
	ViewLeftEye

	// ViewRightEye is the right half of the drawable area.
	ViewRightEye
)

// Window provides platform windowing and batched input event handling.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetIdleWait controls whether the message loop may block briefly waiting
	// for input between updates. Callers enable it after a frame that changed
	// nothing, so a static scene does not redraw at full speed; any incoming
	// or pushed event wakes the loop.
	//
	// Parameters:
	//   - wait: true to wait for events, false to poll and redraw immediately
	SetIdleWait(wait bool)

	// Events drains and returns the input events gathered since the last
	// call, in arrival order.
	//
	// Returns:
	//   - []input.Event: the drained batch (may be empty)
	Events() []input.Event

	// CreateUserEventID allocates a fresh tag for application-pushed events.
	//
	// Returns:
	//   - uint32: the new event ID
	CreateUserEventID() uint32

	// PushUserEvent enqueues a tagged user event. Safe to call from any
	// goroutine; this is how background timers wake the event loop.
	//
	// Parameters:
	//   - id: the event tag from CreateUserEventID
	//   - data: event payload
	PushUserEvent(id, data uint32)

	// Size returns the current logical window size and pixel scale.
	//
	// Returns:
	//   - common.WindowSize: the size
	Size() common.WindowSize

	// Viewport returns the drawable region for the given view in device
	// pixels. Stereo views split the drawable area into left and right
	// halves.
	//
	// Parameters:
	//   - view: which view to measure
	//
	// Returns:
	//   - common.RectI: the viewport
	Viewport(view View) common.RectI

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for
	// creating a WebGPU surface on this window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform descriptor, or nil if the
	//     window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop. Blocks until the window
	// is closed. Calls the update callback each iteration.
	ProcessMessages()
}

// viewerWindow is the implementation of the Window interface. Holds window
// configuration, GLFW state, and the pending event batch.
type viewerWindow struct {
	mu *sync.Mutex

	// title is the window title displayed in the title bar.
	title string

	// width and height are the current logical client area size.
	width  int
	height int

	// backingScaleFactor converts logical coordinates to device pixels.
	backingScaleFactor float32

	// pending is the event batch drained by Events.
	pending []input.Event

	// nextUserEventID is the next tag handed out by CreateUserEventID.
	nextUserEventID uint32

	// mouseDown tracks whether the primary button is held, to tell drags
	// from plain movement.
	mouseDown bool

	// idleWait lets the message loop block for input when the last frame
	// needed no redraw.
	idleWait bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()
}

var _ Window = &viewerWindow{}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window
func NewWindow(options ...WindowBuilderOption) Window {
	w := &viewerWindow{
		mu:                 &sync.Mutex{},
		title:              "Quillview",
		width:              1067,
		height:             800,
		backingScaleFactor: 1,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *viewerWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *viewerWindow) SetIdleWait(wait bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.idleWait = wait
}

func (w *viewerWindow) Events() []input.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := w.pending
	w.pending = nil
	return events
}

func (w *viewerWindow) CreateUserEventID() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextUserEventID
	w.nextUserEventID++
	return id
}

func (w *viewerWindow) PushUserEvent(id, data uint32) {
	w.enqueue(input.UserEvent{ID: id, Data: data})
	platformWake()
}

// enqueue appends one event to the pending batch. Safe for any goroutine.
func (w *viewerWindow) enqueue(event input.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, event)
}

func (w *viewerWindow) Size() common.WindowSize {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sizeLocked()
}

func (w *viewerWindow) sizeLocked() common.WindowSize {
	return common.WindowSize{
		LogicalSize:        common.Point2I{X: int32(w.width), Y: int32(w.height)},
		BackingScaleFactor: w.backingScaleFactor,
	}
}

func (w *viewerWindow) Viewport(view View) common.RectI {
	size := w.Size().DeviceSize()
	switch view {
	case ViewLeftEye:
		return common.NewRectI(common.Point2I{}, common.Point2I{X: size.X / 2, Y: size.Y})
	case ViewRightEye:
		return common.NewRectI(
			common.Point2I{X: size.X / 2},
			common.Point2I{X: size.X / 2, Y: size.Y},
		)
	default:
		return common.NewRectI(common.Point2I{}, size)
	}
}

func (w *viewerWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *viewerWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *viewerWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *viewerWindow) ProcessMessages() {
	for w.IsRunning() {
		if succ := platformProcessMessages(w); !succ {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}
