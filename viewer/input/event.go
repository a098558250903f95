// Package input turns batched raw window events into camera and session state
// mutations, folding each operation's "needs rebuild" result into a single
// per-frame dirty flag.
package input

import (
	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
)

// Event is one raw input event drained from the window backend. Events in a
// batch apply strictly in order.
type Event interface {
	isEvent()
}

// QuitEvent requests application exit (window close button, etc.).
type QuitEvent struct{}

// ResizedEvent reports a new window size.
type ResizedEvent struct {
	Size common.WindowSize
}

// KeyDownEvent reports a key press.
type KeyDownEvent struct {
	Code uint32
}

// KeyUpEvent reports a key release.
type KeyUpEvent struct {
	Code uint32
}

// MouseDownEvent reports a primary button press at a logical position.
type MouseDownEvent struct {
	Position common.Point2I
}

// MouseMovedEvent reports mouse movement with no button held.
type MouseMovedEvent struct {
	Position common.Point2I
}

// MouseDraggedEvent reports mouse movement with the primary button held.
type MouseDraggedEvent struct {
	Position common.Point2I
}

// ZoomEvent reports a pinch or scroll zoom gesture.
type ZoomEvent struct {
	// DDist is the signed gesture distance; positive zooms in.
	DDist float32

	// Position is the gesture's pivot in logical coordinates.
	Position common.Point2I
}

// LookEvent reports a head-tracking view delta.
type LookEvent struct {
	Pitch float32
	Yaw   float32
}

// SetEyeTransformsEvent replaces the stereo eye transforms from a tracker.
type SetEyeTransformsEvent struct {
	Eyes []camera.Ocular
}

// OpenSceneEvent requests loading a new scene file.
type OpenSceneEvent struct {
	Path string
}

// UserEvent is a tagged application event, e.g. a message expiry wake-up
// pushed from the notice board's timer goroutine.
type UserEvent struct {
	ID   uint32
	Data uint32
}

func (QuitEvent) isEvent()             {}
func (ResizedEvent) isEvent()          {}
func (KeyDownEvent) isEvent()          {}
func (KeyUpEvent) isEvent()            {}
func (MouseDownEvent) isEvent()        {}
func (MouseMovedEvent) isEvent()       {}
func (MouseDraggedEvent) isEvent()     {}
func (ZoomEvent) isEvent()             {}
func (LookEvent) isEvent()             {}
func (SetEyeTransformsEvent) isEvent() {}
func (OpenSceneEvent) isEvent()        {}
func (UserEvent) isEvent()             {}
