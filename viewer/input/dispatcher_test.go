package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/ui"
)

func testViewBox() common.Rect {
	return common.NewRect(common.Vec2{}, common.Vec2{X: 100, Y: 100})
}

func testSession(mode camera.Mode) *Session {
	viewBox := testViewBox()
	windowSize := common.WindowSize{
		LogicalSize:        common.Point2I{X: 200, Y: 200},
		BackingScaleFactor: 1,
	}
	return &Session{
		Camera:        camera.New(mode, viewBox, windowSize.DeviceSize()),
		WindowSize:    windowSize,
		ViewBox:       viewBox,
		Visibility:    ui.VisibilityAll,
		ExpireEventID: 7,
	}
}

func TestDispatchQuitSetsShouldExit(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))

	_, dirty := d.Dispatch([]Event{QuitEvent{}})

	assert.True(t, d.Session().ShouldExit)
	assert.True(t, dirty)
}

func TestDispatchEscapeSetsShouldExit(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))

	_, dirty := d.Dispatch([]Event{KeyDownEvent{Code: common.KeyEsc}})

	assert.True(t, d.Session().ShouldExit)
	assert.True(t, dirty)
}

func TestDispatchResizeUpdatesSessionAndFiresHook(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))
	var hookSize common.WindowSize
	d.OnViewportChange = func(size common.WindowSize) {
		hookSize = size
	}

	newSize := common.WindowSize{
		LogicalSize:        common.Point2I{X: 640, Y: 480},
		BackingScaleFactor: 2,
	}
	_, dirty := d.Dispatch([]Event{ResizedEvent{Size: newSize}})

	assert.True(t, dirty)
	assert.Equal(t, newSize, d.Session().WindowSize)
	assert.Equal(t, newSize, hookSize)
}

func TestDispatchTabCyclesVisibility(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))
	d.Session().Visibility = ui.VisibilityNone

	tab := []Event{KeyDownEvent{Code: common.KeyTab}}

	d.Dispatch(tab)
	assert.Equal(t, ui.VisibilityStats, d.Session().Visibility)
	d.Dispatch(tab)
	assert.Equal(t, ui.VisibilityAll, d.Session().Visibility)
	d.Dispatch(tab)
	assert.Equal(t, ui.VisibilityNone, d.Session().Visibility)
}

func TestDispatchMovementKeysSetAndClearVelocity(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode3D))
	space := d.Session().Camera.(*camera.Space)

	_, dirty := d.Dispatch([]Event{KeyDownEvent{Code: common.KeyW}})
	assert.True(t, dirty)
	assert.Less(t, space.Modelview.Velocity[2], float32(0))

	_, dirty = d.Dispatch([]Event{KeyUpEvent{Code: common.KeyW}})
	assert.True(t, dirty)
	assert.Zero(t, space.Modelview.Velocity[2])
}

func TestDispatchMovementKeysIgnoredIn2D(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))

	_, dirty := d.Dispatch([]Event{
		KeyDownEvent{Code: common.KeyW},
		KeyUpEvent{Code: common.KeyW},
	})

	assert.False(t, dirty)
}

func TestDispatchZoomMarksFlatDirty(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))
	flat := d.Session().Camera.(*camera.Flat)
	before := flat.Transform

	_, dirty := d.Dispatch([]Event{ZoomEvent{
		DDist:    0.05,
		Position: common.Point2I{X: 100, Y: 100},
	}})

	assert.True(t, dirty)
	assert.NotEqual(t, before, flat.Transform)
}

func TestDispatchZoomIgnoredIn3D(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode3D))

	_, dirty := d.Dispatch([]Event{ZoomEvent{DDist: 0.05}})

	assert.False(t, dirty)
}

func TestDispatchDragAlwaysDirtyAndForwarded(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))

	uiEvents, dirty := d.Dispatch([]Event{
		MouseDownEvent{Position: common.Point2I{X: 10, Y: 10}},
		MouseDraggedEvent{Position: common.Point2I{X: 15, Y: 12}},
	})

	assert.True(t, dirty)
	require.Len(t, uiEvents, 2)
	assert.IsType(t, ui.MouseDownEvent{}, uiEvents[0])

	drag, ok := uiEvents[1].(ui.MouseDraggedEvent)
	require.True(t, ok)
	assert.Equal(t, common.Point2I{X: 15, Y: 12}, drag.Position.Absolute)
	assert.Equal(t, common.Point2I{X: 5, Y: 2}, drag.Position.Relative)
}

func TestDispatchMouseMoveRequiresMouselook(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode3D))

	_, dirty := d.Dispatch([]Event{MouseMovedEvent{Position: common.Point2I{X: 30, Y: 40}}})
	assert.False(t, dirty)

	d.Session().MouselookEnabled = true
	d.Dispatch([]Event{MouseMovedEvent{Position: common.Point2I{X: 30, Y: 40}}})
	_, dirty = d.Dispatch([]Event{MouseMovedEvent{Position: common.Point2I{X: 60, Y: 45}}})
	assert.True(t, dirty)
}

func TestDispatchScalesMousePositionByBackingFactor(t *testing.T) {
	session := testSession(camera.Mode2D)
	session.WindowSize.BackingScaleFactor = 2
	d := NewDispatcher(session)

	uiEvents, _ := d.Dispatch([]Event{MouseDownEvent{Position: common.Point2I{X: 10, Y: 20}}})

	require.Len(t, uiEvents, 1)
	down := uiEvents[0].(ui.MouseDownEvent)
	assert.Equal(t, common.Point2I{X: 20, Y: 40}, down.Position.Absolute)
}

func TestDispatchOpenSceneHookFoldsDirty(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))
	var openedPath string
	d.OnOpenScene = func(path string) bool {
		openedPath = path
		return true
	}

	_, dirty := d.Dispatch([]Event{OpenSceneEvent{Path: "tiger.svg"}})

	assert.True(t, dirty)
	assert.Equal(t, "tiger.svg", openedPath)
}

func TestDispatchUserEventRoutesMatchingIDOnly(t *testing.T) {
	d := NewDispatcher(testSession(camera.Mode2D))
	var epochs []uint32
	d.OnExpireNotice = func(epoch uint32) bool {
		epochs = append(epochs, epoch)
		return epoch == 2
	}

	_, dirty := d.Dispatch([]Event{
		UserEvent{ID: 99, Data: 1},
		UserEvent{ID: 7, Data: 1},
	})
	assert.False(t, dirty)
	assert.Equal(t, []uint32{1}, epochs)

	_, dirty = d.Dispatch([]Event{UserEvent{ID: 7, Data: 2}})
	assert.True(t, dirty)
}

func TestDispatchSetEyeTransforms(t *testing.T) {
	d := NewDispatcher(testSession(camera.ModeVR))
	space := d.Session().Camera.(*camera.Space)
	eyes := []camera.Ocular{space.Eyes[0]}

	_, dirty := d.Dispatch([]Event{SetEyeTransformsEvent{Eyes: eyes}})

	assert.True(t, dirty)
	assert.Len(t, space.Eyes, 1)
}
