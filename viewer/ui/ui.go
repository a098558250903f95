// Package ui defines the contract between the frame pipeline and the external
// debug/status widget toolkit: the filtered input events the widget consumes,
// the discrete actions it can request, and the visibility cycle. A headless
// default widget is provided; a real toolkit plugs in behind the Widget
// interface.
package ui

import (
	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
)

// Visibility selects how much of the debug UI is drawn.
type Visibility int

const (
	// VisibilityNone hides the UI entirely.
	VisibilityNone Visibility = iota

	// VisibilityStats shows only the statistics overlay.
	VisibilityStats

	// VisibilityAll shows the full UI.
	VisibilityAll
)

// Next cycles None → Stats → All → None.
func (v Visibility) Next() Visibility {
	switch v {
	case VisibilityNone:
		return VisibilityStats
	case VisibilityStats:
		return VisibilityAll
	default:
		return VisibilityNone
	}
}

// MousePosition is a device-scaled absolute mouse position plus the delta
// from the previous known position.
type MousePosition struct {
	Absolute common.Point2I
	Relative common.Point2I
}

// Event is the UI-relevant subset of input events forwarded to the widget:
// mouse down and mouse drag only.
type Event interface {
	isUIEvent()
}

// MouseDownEvent reports a primary button press.
type MouseDownEvent struct {
	Position MousePosition
}

// MouseDraggedEvent reports mouse movement with the primary button held.
type MouseDraggedEvent struct {
	Position MousePosition
}

func (MouseDownEvent) isUIEvent()    {}
func (MouseDraggedEvent) isUIEvent() {}

// Action is one discrete effect request returned by the widget after
// processing a frame's events.
type Action interface {
	isUIAction()
}

// NoAction is returned when the widget has nothing to request.
type NoAction struct{}

// ModelChangedAction forces a scene rebuild with no camera change.
type ModelChangedAction struct{}

// TakeScreenshotAction queues a deferred framebuffer capture.
type TakeScreenshotAction struct {
	Path string
}

// ZoomInAction requests one zoom-in step about the window center.
type ZoomInAction struct{}

// ZoomOutAction requests one zoom-out step about the window center.
type ZoomOutAction struct{}

// RotateAction requests an absolute 2D rotation.
type RotateAction struct {
	Theta float32
}

func (NoAction) isUIAction()             {}
func (ModelChangedAction) isUIAction()   {}
func (TakeScreenshotAction) isUIAction() {}
func (ZoomInAction) isUIAction()         {}
func (ZoomOutAction) isUIAction()        {}
func (RotateAction) isUIAction()         {}

// Widget is the external UI component the pipeline talks to once per frame.
type Widget interface {
	// Update hands the widget this frame's queued events and the current
	// transient message, and receives one action back. Events the widget
	// consumes are removed from the returned slice; unconsumed events flow
	// back to the pipeline for default handling.
	//
	// Parameters:
	//   - events: the frame's UI events, in order
	//   - message: the current transient status message ("" when none)
	//
	// Returns:
	//   - []Event: the events the widget did not consume
	//   - Action: the widget's single requested action (NoAction when idle)
	Update(events []Event, message string) ([]Event, Action)

	// Mode returns the camera mode the user has selected in the UI. The
	// pipeline compares this against the live camera each frame and rebuilds
	// the camera when they diverge.
	Mode() camera.Mode

	// SetMode records a camera mode selection.
	SetMode(mode camera.Mode)

	// BackgroundColor returns the selected background color.
	BackgroundColor() common.Color

	// StemDarkeningEnabled reports whether the stem darkening text effect is
	// on; it feeds the dilation render option.
	StemDarkeningEnabled() bool

	// SubpixelAAEnabled reports whether subpixel antialiasing is on.
	SubpixelAAEnabled() bool

	// GammaCorrectionEnabled reports whether gamma correction is on; only
	// meaningful for monochrome scenes.
	GammaCorrectionEnabled() bool

	// SetShowTextEffects toggles whether the text effect controls are shown;
	// driven by whether the loaded scene is monochrome.
	SetShowTextEffects(show bool)
}

// widget is the headless default Widget: it stores state, consumes nothing,
// and replays at most one queued action per update.
type widget struct {
	mode            camera.Mode
	backgroundColor common.Color
	stemDarkening   bool
	subpixelAA      bool
	gammaCorrection bool
	showTextEffects bool

	pendingAction Action
}

var _ Widget = &widget{}

// NewWidget creates the headless default widget.
//
// Parameters:
//   - options: functional options to configure the widget
//
// Returns:
//   - Widget: the newly created widget
func NewWidget(options ...WidgetOption) Widget {
	w := &widget{
		mode:            camera.Mode2D,
		backgroundColor: common.LightBackground,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// WidgetOption is a functional option for configuring the default widget.
type WidgetOption func(*widget)

// WithMode sets the initial camera mode selection.
func WithMode(mode camera.Mode) WidgetOption {
	return func(w *widget) {
		w.mode = mode
	}
}

// WithBackgroundColor sets the background color selection.
func WithBackgroundColor(c common.Color) WidgetOption {
	return func(w *widget) {
		w.backgroundColor = c
	}
}

// QueueAction arranges for the given action to be returned by the next
// Update call. Primarily used by tests and scripted drivers.
func QueueAction(w Widget, action Action) {
	if hw, ok := w.(*widget); ok {
		hw.pendingAction = action
	}
}

func (w *widget) Update(events []Event, message string) ([]Event, Action) {
	action := w.pendingAction
	w.pendingAction = nil
	if action == nil {
		action = NoAction{}
	}
	return events, action
}

func (w *widget) Mode() camera.Mode {
	return w.mode
}

func (w *widget) SetMode(mode camera.Mode) {
	w.mode = mode
}

func (w *widget) BackgroundColor() common.Color {
	return w.backgroundColor
}

func (w *widget) StemDarkeningEnabled() bool {
	return w.stemDarkening
}

func (w *widget) SubpixelAAEnabled() bool {
	return w.subpixelAA
}

func (w *widget) GammaCorrectionEnabled() bool {
	return w.gammaCorrection
}

func (w *widget) SetShowTextEffects(show bool) {
	w.showTextEffects = show
}
