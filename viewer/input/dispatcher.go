package input

import (
	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/ui"
)

// Session is the mutable per-session state the dispatcher operates on: the
// live camera variant plus the small set of flags shared with the pipeline.
type Session struct {
	// Camera is the active camera variant. Replaced wholesale on mode switch
	// or scene reload; the dispatcher only mutates the live variant's state.
	Camera camera.Camera

	// WindowSize is the current logical window size and pixel scale.
	WindowSize common.WindowSize

	// ViewBox is the loaded scene's natural view box, used to normalize 3D
	// movement speed.
	ViewBox common.Rect

	// ShouldExit is set when the user requests quit.
	ShouldExit bool

	// MouselookEnabled routes mouse movement into 3D view rotation.
	MouselookEnabled bool

	// Visibility is the debug UI visibility cycle position.
	Visibility ui.Visibility

	// LastMousePosition is the previous device-scaled mouse position, for
	// relative deltas.
	LastMousePosition common.Point2I

	// ExpireEventID tags user events carrying message expiry wake-ups.
	ExpireEventID uint32
}

// Dispatcher consumes a batch of raw events, mutating the session and camera
// in event order, and produces the UI-relevant subset for the widget.
//
// Cross-component effects (viewport retarget, scene reload, message expiry)
// go through callback hooks wired by the pipeline, so the dispatcher itself
// depends on nothing heavier than the session.
type Dispatcher struct {
	session *Session

	// OnViewportChange retargets the scene proxy's view box and the
	// renderer's framebuffer size after a resize.
	OnViewportChange func(size common.WindowSize)

	// OnOpenScene loads a new scene, recomputes metadata, and rebuilds the
	// camera. Returns whether a rebuild is needed.
	OnOpenScene func(path string) bool

	// OnExpireNotice validates an expiry wake-up's epoch against the notice
	// board. Returns whether the message was actually cleared.
	OnExpireNotice func(epoch uint32) bool
}

// NewDispatcher creates a dispatcher over the given session. Hooks default to
// no-ops so a bare dispatcher is usable in tests.
//
// Parameters:
//   - session: the session state to mutate
//
// Returns:
//   - *Dispatcher: the newly created dispatcher
func NewDispatcher(session *Session) *Dispatcher {
	return &Dispatcher{
		session:          session,
		OnViewportChange: func(common.WindowSize) {},
		OnOpenScene:      func(string) bool { return false },
		OnExpireNotice:   func(uint32) bool { return false },
	}
}

// Session returns the session the dispatcher mutates.
func (d *Dispatcher) Session() *Session {
	return d.session
}

// Dispatch applies a batch of events in order and returns the UI-relevant
// subset (mouse down and drag only) plus the folded dirty flag: whether any
// operation mutated state that requires a scene rebuild.
//
// Parameters:
//   - events: the frame's raw events, in arrival order
//
// Returns:
//   - []ui.Event: the UI events gathered from the batch, in order
//   - bool: true if the frame must rebuild the scene
func (d *Dispatcher) Dispatch(events []Event) ([]ui.Event, bool) {
	s := d.session
	var uiEvents []ui.Event
	dirty := false

	for _, event := range events {
		switch e := event.(type) {
		case QuitEvent:
			s.ShouldExit = true
			dirty = true

		case ResizedEvent:
			s.WindowSize = e.Size
			d.OnViewportChange(e.Size)
			dirty = true

		case MouseDownEvent:
			position := d.processMousePosition(e.Position)
			uiEvents = append(uiEvents, ui.MouseDownEvent{Position: position})

		case MouseMovedEvent:
			if !s.MouselookEnabled {
				continue
			}
			position := d.processMousePosition(e.Position)
			if space, ok := s.Camera.(*camera.Space); ok {
				dirty = space.ApplyMouselook(position.Relative.ToVec2()) || dirty
			}

		case MouseDraggedEvent:
			position := d.processMousePosition(e.Position)
			uiEvents = append(uiEvents, ui.MouseDraggedEvent{Position: position})
			// Drag always marks the frame dirty, even in modes where it has
			// no visible effect.
			dirty = true

		case ZoomEvent:
			if flat, ok := s.Camera.(*camera.Flat); ok {
				pivot := e.Position.ToVec2().Scale(s.WindowSize.BackingScaleFactor)
				dirty = flat.PanZoom(e.DDist, pivot) || dirty
			}

		case LookEvent:
			if space, ok := s.Camera.(*camera.Space); ok {
				dirty = space.Look(e.Pitch, e.Yaw) || dirty
			}

		case SetEyeTransformsEvent:
			if space, ok := s.Camera.(*camera.Space); ok {
				dirty = space.SetEyes(e.Eyes) || dirty
			}

		case KeyDownEvent:
			dirty = d.handleKeyDown(e.Code) || dirty

		case KeyUpEvent:
			dirty = d.handleKeyUp(e.Code) || dirty

		case OpenSceneEvent:
			dirty = d.OnOpenScene(e.Path) || dirty

		case UserEvent:
			if e.ID != s.ExpireEventID {
				continue
			}
			// A stale epoch is a silent no-op.
			dirty = d.OnExpireNotice(e.Data) || dirty

		default:
			// Unrecognized events are dropped.
		}
	}

	return uiEvents, dirty
}

func (d *Dispatcher) handleKeyDown(code uint32) bool {
	s := d.session
	switch code {
	case common.KeyEsc:
		s.ShouldExit = true
		return true
	case common.KeyTab:
		s.Visibility = s.Visibility.Next()
		return true
	case common.KeyW, common.KeyS, common.KeyA, common.KeyD:
		space, ok := s.Camera.(*camera.Space)
		if !ok {
			return false
		}
		switch code {
		case common.KeyW:
			return space.SetVelocityAxis(camera.AxisZ, -1, s.ViewBox)
		case common.KeyS:
			return space.SetVelocityAxis(camera.AxisZ, 1, s.ViewBox)
		case common.KeyA:
			return space.SetVelocityAxis(camera.AxisX, -1, s.ViewBox)
		default:
			return space.SetVelocityAxis(camera.AxisX, 1, s.ViewBox)
		}
	}
	return false
}

func (d *Dispatcher) handleKeyUp(code uint32) bool {
	space, ok := d.session.Camera.(*camera.Space)
	if !ok {
		return false
	}
	switch code {
	case common.KeyW, common.KeyS:
		return space.ClearVelocityAxis(camera.AxisZ)
	case common.KeyA, common.KeyD:
		return space.ClearVelocityAxis(camera.AxisX)
	}
	return false
}

// processMousePosition converts a logical mouse position to device pixels and
// computes the delta from the last known position.
func (d *Dispatcher) processMousePosition(position common.Point2I) ui.MousePosition {
	s := d.session
	scale := int32(s.WindowSize.BackingScaleFactor)
	absolute := common.Point2I{X: position.X * scale, Y: position.Y * scale}
	relative := absolute.Sub(s.LastMousePosition)
	s.LastMousePosition = absolute
	return ui.MousePosition{Absolute: absolute, Relative: relative}
}
