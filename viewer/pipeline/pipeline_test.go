package pipeline

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/device"
	"github.com/quillview/quillview/viewer/input"
	"github.com/quillview/quillview/viewer/notice"
	"github.com/quillview/quillview/viewer/scenes"
	"github.com/quillview/quillview/viewer/stats"
	"github.com/quillview/quillview/viewer/ui"
	"github.com/quillview/quillview/viewer/window"
)

// fakeWindow is a headless Window for pipeline tests.
type fakeWindow struct {
	size common.WindowSize
}

func (w *fakeWindow) SetUpdateCallback(func()) {}

func (w *fakeWindow) SetIdleWait(bool) {}

func (w *fakeWindow) Events() []input.Event { return nil }

func (w *fakeWindow) CreateUserEventID() uint32 { return 7 }

func (w *fakeWindow) PushUserEvent(id, data uint32) {}

func (w *fakeWindow) Size() common.WindowSize { return w.size }

func (w *fakeWindow) IsRunning() bool { return true }

func (w *fakeWindow) Close() error { return nil }

func (w *fakeWindow) ProcessMessages() {}

func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return nil
}

func (w *fakeWindow) Viewport(view window.View) common.RectI {
	size := w.size.DeviceSize()
	switch view {
	case window.ViewLeftEye:
		return common.NewRectI(common.Point2I{}, common.Point2I{X: size.X / 2, Y: size.Y})
	case window.ViewRightEye:
		return common.NewRectI(
			common.Point2I{X: size.X / 2},
			common.Point2I{X: size.X / 2, Y: size.Y},
		)
	default:
		return common.NewRectI(common.Point2I{}, size)
	}
}

// fakeFramebuffer satisfies the sealed Framebuffer contract by embedding it;
// the marker method is never called on fakes.
type fakeFramebuffer struct {
	device.Framebuffer
	size common.Point2I
}

// fakeDevice records the calls the pipeline makes against the Device contract.
type fakeDevice struct {
	mode          device.RenderMode
	depthEnabled  bool
	clears        []*common.ColorF
	viewports     []common.RectI
	begins        []camera.RenderTransform
	commands      []scenes.Command
	groundPlanes  int
	reprojections int
	presents      int
	readbacks     int
	framebuffers  int

	pendingStats   stats.RenderStats
	readPixelErr   error
	framebufferErr error
	timings        []time.Duration
}

func (d *fakeDevice) SetMainFramebufferSize(common.Point2I) {}

func (d *fakeDevice) SetRenderMode(mode device.RenderMode) { d.mode = mode }

func (d *fakeDevice) EnableDepth() { d.depthEnabled = true }

func (d *fakeDevice) DisableDepth() { d.depthEnabled = false }

func (d *fakeDevice) ReplaceDestFramebuffer(device.Framebuffer) device.Framebuffer {
	return nil
}

func (d *fakeDevice) CreateSceneFramebuffer(size common.Point2I) (device.Framebuffer, error) {
	if d.framebufferErr != nil {
		return nil, d.framebufferErr
	}
	d.framebuffers++
	return &fakeFramebuffer{size: size}, nil
}

func (d *fakeDevice) FramebufferSize(framebuffer device.Framebuffer) common.Point2I {
	if fb, ok := framebuffer.(*fakeFramebuffer); ok {
		return fb.size
	}
	return common.Point2I{}
}

func (d *fakeDevice) SetViewport(viewport common.RectI) {
	d.viewports = append(d.viewports, viewport)
}

func (d *fakeDevice) Clear(color *common.ColorF) {
	d.clears = append(d.clears, color)
}

func (d *fakeDevice) BeginScene(transform camera.RenderTransform) error {
	d.begins = append(d.begins, transform)
	return nil
}

func (d *fakeDevice) RenderCommand(command scenes.Command) {
	d.commands = append(d.commands, command)
}

func (d *fakeDevice) EndScene() {}

func (d *fakeDevice) DrawGroundPlane(common.Mat4, common.Rect) {
	d.groundPlanes++
}

func (d *fakeDevice) ReprojectTexture(device.Framebuffer, common.Mat4, common.Mat4) {
	d.reprojections++
}

func (d *fakeDevice) Present() {
	d.presents++
}

func (d *fakeDevice) ReadPixels(viewport common.RectI) (*image.RGBA, error) {
	d.readbacks++
	if d.readPixelErr != nil {
		return nil, d.readPixelErr
	}
	return image.NewRGBA(image.Rect(0, 0, int(viewport.Size.X), int(viewport.Size.Y))), nil
}

func (d *fakeDevice) Stats() stats.RenderStats {
	return d.pendingStats
}

func (d *fakeDevice) ResetStats() {
	d.pendingStats = stats.RenderStats{}
}

func (d *fakeDevice) ShiftTimerQuery() (time.Duration, bool) {
	if len(d.timings) == 0 {
		return 0, false
	}
	t := d.timings[0]
	d.timings = d.timings[1:]
	return t, true
}

var (
	_ window.Window = &fakeWindow{}
	_ device.Device = &fakeDevice{}
)

type testHarness struct {
	pipeline *Pipeline
	win      *fakeWindow
	dev      *fakeDevice
	widget   ui.Widget
	board    *notice.Board
	session  *input.Session
}

func newHarness(mode camera.Mode) *testHarness {
	return newHarnessWith(mode, ui.NewWidget(ui.WithMode(mode)))
}

func newHarnessWith(mode camera.Mode, widget ui.Widget) *testHarness {
	viewBox := common.NewRect(common.Vec2{}, common.Vec2{X: 100, Y: 100})
	scene := scenes.NewScene(viewBox, []scenes.Path{
		{
			Contours: [][]common.Vec2{{
				{X: 10, Y: 10}, {X: 90, Y: 10}, {X: 90, Y: 90}, {X: 10, Y: 90},
			}},
			Fill: common.Color{A: 255},
		},
	})
	metadata := scenes.ExtractMetadata(scene)

	win := &fakeWindow{size: common.WindowSize{
		LogicalSize:        common.Point2I{X: 200, Y: 200},
		BackingScaleFactor: 1,
	}}
	dev := &fakeDevice{}
	proxy := scenes.NewProxy(scene, scenes.WithJobs(2))
	board := notice.NewBoard(7, func(uint32, uint32) {}, notice.WithExpiryDelay(time.Hour))

	session := &input.Session{
		Camera:        camera.New(mode, viewBox, win.size.DeviceSize()),
		WindowSize:    win.size,
		ViewBox:       viewBox,
		Visibility:    ui.VisibilityAll,
		ExpireEventID: 7,
	}
	dispatcher := input.NewDispatcher(session)

	return &testHarness{
		pipeline: New(win, dev, proxy, widget, dispatcher, board, metadata),
		win:      win,
		dev:      dev,
		widget:   widget,
		board:    board,
		session:  session,
	}
}

// runFrame drives one full mono frame with the given events.
func runFrame(t *testing.T, h *testHarness, events []input.Event) {
	t.Helper()
	sceneCount, err := h.pipeline.PrepareFrame(events)
	require.NoError(t, err)
	require.NoError(t, h.pipeline.BuildFrame())
	require.NoError(t, h.pipeline.DrawScene())
	if sceneCount > 1 {
		for eye := range sceneCount {
			require.NoError(t, h.pipeline.CompositeScene(eye))
		}
	}
	require.NoError(t, h.pipeline.FinishFrame())
}

func TestFrameCycleMono(t *testing.T) {
	h := newHarness(camera.Mode2D)

	sceneCount, err := h.pipeline.PrepareFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sceneCount)
	require.NoError(t, h.pipeline.BuildFrame())
	require.NoError(t, h.pipeline.DrawScene())
	require.NoError(t, h.pipeline.FinishFrame())

	assert.Equal(t, 1, h.dev.presents)
	assert.Equal(t, uint64(1), h.pipeline.FrameCounter())

	// One batch reached the device; the finish marker stays in the pipeline.
	require.Len(t, h.dev.commands, 1)
	assert.IsType(t, scenes.DrawBatchCommand{}, h.dev.commands[0])

	// 2D scenes draw without depth or a ground plane.
	assert.False(t, h.dev.depthEnabled)
	assert.Zero(t, h.dev.groundPlanes)

	require.Len(t, h.dev.clears, 1)
	require.NotNil(t, h.dev.clears[0])
	assert.Equal(t, h.widget.BackgroundColor().ToF32(), *h.dev.clears[0])
}

func TestPrepareRejectsMidFrame(t *testing.T) {
	h := newHarness(camera.Mode2D)

	_, err := h.pipeline.PrepareFrame(nil)
	require.NoError(t, err)

	_, err = h.pipeline.PrepareFrame(nil)
	assert.Error(t, err)
}

func TestPhasesRejectOutOfOrderCalls(t *testing.T) {
	h := newHarness(camera.Mode2D)

	assert.Error(t, h.pipeline.BuildFrame())
	assert.Error(t, h.pipeline.DrawScene())
	assert.Error(t, h.pipeline.FinishFrame())
	assert.Error(t, h.pipeline.CompositeScene(0))
}

func TestVRFrameCompositesBothEyes(t *testing.T) {
	h := newHarness(camera.ModeVR)

	sceneCount, err := h.pipeline.PrepareFrame(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sceneCount)

	require.NoError(t, h.pipeline.BuildFrame())
	require.NoError(t, h.pipeline.DrawScene())
	require.NoError(t, h.pipeline.CompositeScene(0))
	require.NoError(t, h.pipeline.CompositeScene(1))
	require.NoError(t, h.pipeline.FinishFrame())

	assert.Equal(t, 2, h.dev.reprojections)
	assert.Contains(t, h.dev.viewports, h.win.Viewport(window.ViewLeftEye))
	assert.Contains(t, h.dev.viewports, h.win.Viewport(window.ViewRightEye))

	// The VR scene pass clears the side framebuffer to transparent.
	require.NotEmpty(t, h.dev.clears)
	assert.Nil(t, h.dev.clears[0])
}

func TestCompositeRequiresStereoCamera(t *testing.T) {
	h := newHarness(camera.Mode2D)

	_, err := h.pipeline.PrepareFrame(nil)
	require.NoError(t, err)
	require.NoError(t, h.pipeline.BuildFrame())
	require.NoError(t, h.pipeline.DrawScene())

	assert.Error(t, h.pipeline.CompositeScene(0))
}

func Test3DSceneDrawsGroundPlane(t *testing.T) {
	h := newHarness(camera.Mode3D)
	runFrame(t, h, nil)

	assert.True(t, h.dev.depthEnabled)
	assert.Equal(t, 1, h.dev.groundPlanes)
}

func TestMonochromeSceneSelectsMonochromeMode(t *testing.T) {
	h := newHarness(camera.Mode2D)
	runFrame(t, h, nil)

	mode, ok := h.dev.mode.(device.MonochromeMode)
	require.True(t, ok)
	assert.Equal(t, common.Color{A: 255}.ToF32(), mode.FGColor)
}

func TestModelChangedActionMarksDirty(t *testing.T) {
	h := newHarness(camera.Mode2D)
	ui.QueueAction(h.widget, ui.ModelChangedAction{})
	runFrame(t, h, nil)

	assert.True(t, h.pipeline.Dirty())
}

func TestZoomActionMovesFlatCamera(t *testing.T) {
	h := newHarness(camera.Mode2D)
	before := h.session.Camera.(*camera.Flat).Transform

	ui.QueueAction(h.widget, ui.ZoomInAction{})
	runFrame(t, h, nil)

	assert.True(t, h.pipeline.Dirty())
	assert.NotEqual(t, before, h.session.Camera.(*camera.Flat).Transform)
}

func TestScreenshotIsDeferredOneFrame(t *testing.T) {
	h := newHarness(camera.Mode2D)
	path := filepath.Join(t.TempDir(), "shot.png")

	ui.QueueAction(h.widget, ui.TakeScreenshotAction{Path: path})
	runFrame(t, h, nil)

	// The action only queues the capture; nothing is read back yet.
	assert.Zero(t, h.dev.readbacks)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	runFrame(t, h, nil)

	assert.Equal(t, 1, h.dev.readbacks)
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Contains(t, h.board.Message(), "Saved screenshot to")
}

func TestScreenshotReadbackFailureIsRecoverable(t *testing.T) {
	h := newHarness(camera.Mode2D)
	h.dev.readPixelErr = errors.New("device lost")

	ui.QueueAction(h.widget, ui.TakeScreenshotAction{Path: filepath.Join(t.TempDir(), "shot.png")})
	runFrame(t, h, nil)
	runFrame(t, h, nil)

	assert.Contains(t, h.board.Message(), "Failed to take screenshot")

	// The pending capture is cleared; a third frame does not retry.
	runFrame(t, h, nil)
	assert.Equal(t, 1, h.dev.readbacks)
}

func TestModeSwitchRebuildsCamera(t *testing.T) {
	h := newHarness(camera.Mode2D)
	h.session.MouselookEnabled = true

	h.widget.SetMode(camera.Mode3D)
	runFrame(t, h, nil)

	assert.Equal(t, camera.Mode3D, h.session.Camera.Mode())
	assert.False(t, h.session.MouselookEnabled)
	assert.True(t, h.pipeline.Dirty())
}

func TestMouseDownTogglesMouselookIn3D(t *testing.T) {
	h := newHarness(camera.Mode3D)

	runFrame(t, h, []input.Event{input.MouseDownEvent{Position: common.Point2I{X: 50, Y: 50}}})
	assert.True(t, h.session.MouselookEnabled)

	runFrame(t, h, []input.Event{input.MouseDownEvent{Position: common.Point2I{X: 50, Y: 50}}})
	assert.False(t, h.session.MouselookEnabled)
}

func TestDragPans2DCamera(t *testing.T) {
	h := newHarness(camera.Mode2D)
	before := h.session.Camera.(*camera.Flat).Transform

	runFrame(t, h, []input.Event{
		input.MouseDownEvent{Position: common.Point2I{X: 50, Y: 50}},
		input.MouseDraggedEvent{Position: common.Point2I{X: 60, Y: 55}},
	})

	after := h.session.Camera.(*camera.Flat).Transform
	assert.InDelta(t, before.Tx+10, after.Tx, 1e-4)
	assert.InDelta(t, before.Ty+5, after.Ty, 1e-4)
	assert.True(t, h.pipeline.Dirty())
}

func TestOpenSceneFailureKeepsPreviousScene(t *testing.T) {
	h := newHarness(camera.Mode2D)
	metadataBefore := h.pipeline.Metadata()

	runFrame(t, h, []input.Event{input.OpenSceneEvent{Path: "/nonexistent/scene.svg"}})

	assert.Contains(t, h.board.Message(), "Failed to open")
	assert.Equal(t, metadataBefore, h.pipeline.Metadata())
}

// recordingWidget wraps the headless widget and records text-effect toggles.
type recordingWidget struct {
	ui.Widget
	textEffects []bool
}

func (w *recordingWidget) SetShowTextEffects(show bool) {
	w.textEffects = append(w.textEffects, show)
	w.Widget.SetShowTextEffects(show)
}

func writeScene(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestOpenSceneRefreshesTextEffectControls(t *testing.T) {
	widget := &recordingWidget{Widget: ui.NewWidget(ui.WithMode(camera.Mode2D))}
	h := newHarnessWith(camera.Mode2D, widget)

	dir := t.TempDir()
	multicolor := writeScene(t, dir, "multicolor.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
  <rect x="10" y="10" width="30" height="30" fill="#ff0000"/>
  <rect x="50" y="50" width="20" height="20" fill="#0000ff"/>
</svg>`)
	mono := writeScene(t, dir, "mono.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
  <rect x="10" y="10" width="30" height="30" fill="#000000"/>
  <rect x="50" y="50" width="20" height="20" fill="#000000"/>
</svg>`)

	runFrame(t, h, []input.Event{input.OpenSceneEvent{Path: multicolor}})
	require.NotEmpty(t, widget.textEffects)
	assert.False(t, widget.textEffects[len(widget.textEffects)-1])

	runFrame(t, h, []input.Event{input.OpenSceneEvent{Path: mono}})
	assert.True(t, widget.textEffects[len(widget.textEffects)-1])
}

func TestEyeFramebufferAllocationFailureIsSurfaced(t *testing.T) {
	h := newHarness(camera.ModeVR)
	h.dev.framebufferErr = errors.New("out of device memory")

	runFrame(t, h, nil)

	assert.Contains(t, h.board.Message(), "Failed to allocate eye framebuffer")
	assert.Zero(t, h.dev.framebuffers)
}

func TestEyeFramebufferReusedUntilViewportChanges(t *testing.T) {
	h := newHarness(camera.ModeVR)

	runFrame(t, h, nil)
	runFrame(t, h, nil)
	assert.Equal(t, 1, h.dev.framebuffers)

	// A resize changes the eye viewport, forcing a reallocation.
	h.win.size.LogicalSize = common.Point2I{X: 300, Y: 200}
	runFrame(t, h, nil)
	assert.Equal(t, 2, h.dev.framebuffers)
}

func TestSamplerReceivesFrameTimings(t *testing.T) {
	h := newHarness(camera.Mode2D)
	h.dev.timings = []time.Duration{3 * time.Millisecond}
	h.dev.pendingStats = stats.RenderStats{PathCount: 1}

	runFrame(t, h, nil)

	assert.Equal(t, 3*time.Millisecond, h.pipeline.Sampler().MeanGPUTime())
	assert.Equal(t, 1, h.pipeline.Sampler().MeanStats().PathCount)
}
