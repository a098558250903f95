// Package pipeline drives one frame of the viewer through its phases:
// Prepare → Build → Draw → (Composite per eye, VR only) → Finish. The
// pipeline owns the per-frame dirty fold, the deferred screenshot, and the
// deferred camera-mode switch; all phases run on the window thread.
package pipeline

import (
	"fmt"
	"image/png"
	"os"

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

// Phase is the pipeline's position in the frame cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrepared
	PhaseBuilt
	PhaseDrawn
	PhaseComposited
	PhaseFinished
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhasePrepared:
		return "Prepared"
	case PhaseBuilt:
		return "Built"
	case PhaseDrawn:
		return "Drawn"
	case PhaseComposited:
		return "Composited"
	case PhaseFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Pipeline coordinates the camera, dispatcher, scene proxy, device, and UI
// widget for one frame at a time. One frame must reach Idle before the next
// Prepare begins.
type Pipeline struct {
	win        window.Window
	dev        device.Device
	proxy      scenes.Proxy
	widget     ui.Widget
	dispatcher *input.Dispatcher
	board      *notice.Board
	sampler    *stats.Sampler

	metadata scenes.Metadata
	phase    Phase

	frame  Frame
	stream *scenes.CommandStream
	dirty  bool

	// Side framebuffer the VR scene pass renders into before per-eye
	// compositing; reallocated when the eye viewport changes.
	sideFramebuffer device.Framebuffer

	// pendingScreenshotPath is captured at the start of the next Finish.
	pendingScreenshotPath string

	frameCounter uint64
}

// New creates a pipeline over its collaborators and wires the dispatcher's
// cross-component hooks.
//
// Parameters:
//   - win: the window backend
//   - dev: the rendering device
//   - proxy: the scene proxy
//   - widget: the UI widget
//   - dispatcher: the event dispatcher
//   - board: the transient message board
//   - metadata: the loaded scene's metadata
//
// Returns:
//   - *Pipeline: the newly created pipeline
func New(
	win window.Window,
	dev device.Device,
	proxy scenes.Proxy,
	widget ui.Widget,
	dispatcher *input.Dispatcher,
	board *notice.Board,
	metadata scenes.Metadata,
) *Pipeline {
	p := &Pipeline{
		win:        win,
		dev:        dev,
		proxy:      proxy,
		widget:     widget,
		dispatcher: dispatcher,
		board:      board,
		sampler:    stats.NewSampler(),
		metadata:   metadata,
		phase:      PhaseIdle,
	}

	dispatcher.OnViewportChange = p.handleViewportChange
	dispatcher.OnOpenScene = p.handleOpenScene
	dispatcher.OnExpireNotice = board.Expire

	return p
}

// Metadata returns the current scene metadata.
func (p *Pipeline) Metadata() scenes.Metadata {
	return p.metadata
}

// Sampler returns the rolling statistics feed for the debug overlay.
func (p *Pipeline) Sampler() *stats.Sampler {
	return p.sampler
}

// FrameCounter returns the number of finished frames.
func (p *Pipeline) FrameCounter() uint64 {
	return p.frameCounter
}

// Dirty reports whether the last finished frame mutated state that requires a
// rebuild.
func (p *Pipeline) Dirty() bool {
	return p.dirty
}

// PrepareFrame opens a frame: dispatches the event batch, binds and clears
// the target framebuffer, and reports how many logical sub-scenes the frame
// renders (1 normal, 2 for stereo VR).
//
// Parameters:
//   - events: the frame's raw input events
//
// Returns:
//   - int: the sub-scene count
//   - error: non-nil if the pipeline is mid-frame
func (p *Pipeline) PrepareFrame(events []input.Event) (int, error) {
	if p.phase != PhaseIdle {
		return 0, fmt.Errorf("prepare called in phase %s", p.phase)
	}

	p.dirty = false
	uiEvents, dirty := p.dispatcher.Dispatch(events)
	p.dirty = dirty
	p.frame = Frame{UIEvents: uiEvents}

	sceneCount := 1
	if p.session().Camera.Mode() == camera.ModeVR {
		sceneCount = 2
		p.bindSideFramebuffer()
		p.dev.Clear(nil)
	} else {
		p.dev.ReplaceDestFramebuffer(nil)
		p.dev.SetViewport(common.RectI{})
		background := p.widget.BackgroundColor().ToF32()
		p.dev.Clear(&background)
	}

	p.phase = PhasePrepared
	return sceneCount, nil
}

// bindSideFramebuffer points the device at the VR scene texture, reallocating
// it if the eye viewport changed size. Allocation failure is recoverable: the
// frame renders into the window surface and the failure is shown as a
// transient message.
func (p *Pipeline) bindSideFramebuffer() {
	size := p.win.Viewport(window.ViewLeftEye).Size
	if p.sideFramebuffer == nil || p.dev.FramebufferSize(p.sideFramebuffer) != size {
		fb, err := p.dev.CreateSceneFramebuffer(size)
		if err != nil {
			p.board.Post(fmt.Sprintf("Failed to allocate eye framebuffer: %v", err))
		} else {
			p.sideFramebuffer = fb
		}
	}
	p.dev.ReplaceDestFramebuffer(p.sideFramebuffer)
	p.dev.SetViewport(common.RectI{})
}

// BuildFrame derives the frame's render transform from the camera
// (integrating 3D velocity first), resolves the effect parameters, and asks
// the proxy for the frame's command stream.
//
// Returns:
//   - error: non-nil if called out of order
func (p *Pipeline) BuildFrame() error {
	if p.phase != PhasePrepared {
		return fmt.Errorf("build called in phase %s", p.phase)
	}

	s := p.session()
	if space, ok := s.Camera.(*camera.Space); ok {
		p.dirty = space.IntegrateVelocity() || p.dirty
	}

	var dilation common.Vec2
	if p.widget.StemDarkeningEnabled() {
		fontSize := float32(device.ApproxFontSize) * s.WindowSize.BackingScaleFactor
		dilation = device.StemDarkeningDilation(fontSize)
	}

	p.frame.Transform = s.Camera.RenderTransform()
	options := scenes.RenderOptions{
		Transform:  p.frame.Transform,
		Dilation:   dilation,
		SubpixelAA: p.widget.SubpixelAAEnabled(),
	}
	p.stream = p.proxy.BuildWithStream(options.Prepare(p.metadata.Bounds))

	p.phase = PhaseBuilt
	return nil
}

// DrawScene selects the render mode, draws the environment where it applies,
// and consumes the frame's command stream into the device.
//
// Returns:
//   - error: non-nil if called out of order
func (p *Pipeline) DrawScene() error {
	if p.phase != PhaseBuilt {
		return fmt.Errorf("draw called in phase %s", p.phase)
	}

	p.dev.SetRenderMode(p.renderMode())

	mode := p.session().Camera.Mode()
	if mode == camera.Mode2D {
		p.dev.DisableDepth()
	} else {
		p.dev.EnableDepth()
	}

	if err := p.dev.BeginScene(p.frame.Transform); err != nil {
		return err
	}

	// The environment pass is skipped in VR (each eye redraws it during
	// compositing) and over a transparent background.
	if mode == camera.Mode3D && p.widget.BackgroundColor().A > 0 {
		if perspective, ok := p.frame.Transform.(camera.Perspective); ok {
			p.dev.DrawGroundPlane(perspective.Matrix, p.metadata.ViewBox)
		}
	}

	for {
		command, ok := p.stream.Next()
		if !ok {
			break
		}
		if finish, ok := command.(scenes.FinishCommand); ok {
			p.frame.BuildTime = finish.BuildTime
			continue
		}
		p.dev.RenderCommand(command)
	}
	p.stream = nil

	p.dev.EndScene()
	p.frame.SceneStats = p.frame.SceneStats.Add(p.dev.Stats())
	p.dev.ResetStats()

	p.phase = PhaseDrawn
	return nil
}

// CompositeScene reprojects the rendered VR scene texture into one eye's half
// of the window, redrawing the environment for that eye first. This is a
// texture warp, not a re-render of scene geometry.
//
// Parameters:
//   - eye: the eye index
//
// Returns:
//   - error: non-nil if called out of order or the camera is not stereo
func (p *Pipeline) CompositeScene(eye int) error {
	if p.phase != PhaseDrawn && p.phase != PhaseComposited {
		return fmt.Errorf("composite called in phase %s", p.phase)
	}
	space, ok := p.session().Camera.(*camera.Space)
	if !ok || eye >= len(space.Eyes) {
		return fmt.Errorf("composite requires a stereo camera with eye %d", eye)
	}

	p.dev.ReplaceDestFramebuffer(nil)
	if p.phase == PhaseDrawn {
		p.dev.SetViewport(common.RectI{})
		background := p.widget.BackgroundColor().ToF32()
		p.dev.Clear(&background)
	}

	view := window.ViewLeftEye
	if eye == 1 {
		view = window.ViewRightEye
	}
	p.dev.SetViewport(p.win.Viewport(view))

	modelview := space.Modelview.Transform()
	eyeMatrix := space.Eyes[eye].Matrix(modelview)

	if p.widget.BackgroundColor().A > 0 {
		if err := p.dev.BeginScene(camera.Perspective{Matrix: eyeMatrix}); err != nil {
			return err
		}
		p.dev.DrawGroundPlane(eyeMatrix, p.metadata.ViewBox)
		p.dev.EndScene()
	}

	// The quad scale maps the unit reprojection quad onto the view box, so
	// both matrices see the same scene plane.
	quadScale := p.quadScale()
	src := space.SceneTransform.Matrix(modelview).Mul(quadScale)
	dst := eyeMatrix.Mul(quadScale)
	p.dev.ReprojectTexture(p.sideFramebuffer, src, dst)

	p.frame.SceneStats = p.frame.SceneStats.Add(p.dev.Stats())
	p.dev.ResetStats()

	p.phase = PhaseComposited
	return nil
}

// quadScale maps the [-1,1] reprojection quad onto the scene's view box.
func (p *Pipeline) quadScale() common.Mat4 {
	center := p.metadata.ViewBox.Center()
	size := p.metadata.ViewBox.Size
	return common.NewTranslation(center.X, center.Y, 0).
		Mul(common.NewScaling(size.X/2, size.Y/2, 1))
}

// FinishFrame closes the frame: captures any deferred screenshot, feeds the
// overlay statistics, applies the UI's resulting action and any pending
// camera-mode switch, then presents.
//
// Returns:
//   - error: non-nil if called out of order
func (p *Pipeline) FinishFrame() error {
	if p.phase != PhaseDrawn && p.phase != PhaseComposited {
		return fmt.Errorf("finish called in phase %s", p.phase)
	}

	if gpuTime, ok := p.dev.ShiftTimerQuery(); ok {
		p.frame.RenderTimes = append(p.frame.RenderTimes, gpuTime)
	}

	if p.pendingScreenshotPath != "" {
		p.takeScreenshot(p.pendingScreenshotPath)
		p.pendingScreenshotPath = ""
	}

	if p.frame.SceneStats != (stats.RenderStats{}) || len(p.frame.RenderTimes) > 0 {
		p.sampler.Push(p.frame.SceneStats, p.frame.BuildTime, p.frame.TotalRenderTime())
	}

	unconsumed, action := p.widget.Update(p.frame.UIEvents, p.board.Message())
	p.applyAction(action)
	p.applyUnconsumedEvents(unconsumed)
	p.applyModeSwitch()

	p.dev.Present()
	p.frameCounter++
	p.phase = PhaseIdle
	return nil
}

func (p *Pipeline) session() *input.Session {
	return p.dispatcher.Session()
}

// renderMode picks monochrome shading when the scene supports it, unlocking
// the text effects.
func (p *Pipeline) renderMode() device.RenderMode {
	if p.metadata.MonochromeColor == nil {
		return device.MulticolorMode{}
	}
	return device.MonochromeMode{
		FGColor:         p.metadata.MonochromeColor.ToF32(),
		BGColor:         p.widget.BackgroundColor().ToF32(),
		GammaCorrection: p.widget.GammaCorrectionEnabled(),
		Defringing:      p.widget.SubpixelAAEnabled(),
	}
}

func (p *Pipeline) applyAction(action ui.Action) {
	s := p.session()
	center := s.WindowSize.Center()

	switch a := action.(type) {
	case ui.TakeScreenshotAction:
		p.pendingScreenshotPath = a.Path

	case ui.ZoomInAction:
		if flat, ok := s.Camera.(*camera.Flat); ok {
			p.dirty = flat.ZoomStep(true, center) || p.dirty
		}

	case ui.ZoomOutAction:
		if flat, ok := s.Camera.(*camera.Flat); ok {
			p.dirty = flat.ZoomStep(false, center) || p.dirty
		}

	case ui.RotateAction:
		if flat, ok := s.Camera.(*camera.Flat); ok {
			p.dirty = flat.RotateTo(a.Theta, center) || p.dirty
		}

	case ui.ModelChangedAction:
		p.dirty = true
	}
}

// applyUnconsumedEvents gives UI events the widget did not consume their
// camera meaning: mouse down toggles mouselook in 3D, drag pans in 2D.
func (p *Pipeline) applyUnconsumedEvents(events []ui.Event) {
	s := p.session()
	for _, event := range events {
		switch e := event.(type) {
		case ui.MouseDownEvent:
			if _, ok := s.Camera.(*camera.Space); ok {
				s.MouselookEnabled = !s.MouselookEnabled
			}
		case ui.MouseDraggedEvent:
			if flat, ok := s.Camera.(*camera.Flat); ok {
				p.dirty = flat.Drag(e.Position.Relative.ToVec2()) || p.dirty
			}
		}
	}
}

// applyModeSwitch rebuilds the camera when the UI selected a different mode.
// A VR request that cannot produce a stereo camera falls back to the previous
// mode rather than leaving the camera inconsistent.
func (p *Pipeline) applyModeSwitch() {
	s := p.session()
	current := s.Camera.Mode()
	requested := p.widget.Mode()
	if requested == current {
		return
	}

	viewport := p.win.Viewport(window.ViewFull).Size
	rebuilt := camera.New(requested, p.metadata.ViewBox, viewport)
	if requested == camera.ModeVR && rebuilt.Mode() != camera.ModeVR {
		p.widget.SetMode(current)
		return
	}

	s.Camera = rebuilt
	s.MouselookEnabled = false
	p.dirty = true
}

// takeScreenshot reads back the framebuffer and writes it as PNG. Failure is
// recoverable: it is reported as a transient message and the pending capture
// is cleared either way.
func (p *Pipeline) takeScreenshot(path string) {
	img, err := p.dev.ReadPixels(p.win.Viewport(window.ViewFull))
	if err != nil {
		p.board.Post(fmt.Sprintf("Failed to take screenshot: %v", err))
		return
	}

	file, err := os.Create(path)
	if err != nil {
		p.board.Post(fmt.Sprintf("Failed to save screenshot: %v", err))
		return
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		p.board.Post(fmt.Sprintf("Failed to save screenshot: %v", err))
		return
	}
	p.board.Post(fmt.Sprintf("Saved screenshot to %s.", path))
}

// handleViewportChange reconfigures the device and retargets the scene after
// a resize.
func (p *Pipeline) handleViewportChange(size common.WindowSize) {
	deviceSize := size.DeviceSize()
	p.dev.SetMainFramebufferSize(deviceSize)
	p.proxy.SetViewBox(common.NewRect(common.Vec2{}, deviceSize.ToVec2()))
}

// handleOpenScene loads a new scene. Load failure is recoverable: the
// previous scene is retained and the error shown as a transient message.
func (p *Pipeline) handleOpenScene(path string) bool {
	scene, warning, err := scenes.Load(path)
	if err != nil {
		p.board.Post(fmt.Sprintf("Failed to open %s: %v", path, err))
		return false
	}

	s := p.session()
	viewport := p.win.Viewport(window.ViewFull).Size

	p.metadata = scenes.ExtractMetadata(scene)
	scenes.RetargetViewBox(scene, viewport)
	p.proxy.ReplaceScene(scene)

	s.ViewBox = p.metadata.ViewBox
	s.Camera = camera.New(s.Camera.Mode(), p.metadata.ViewBox, viewport)
	s.MouselookEnabled = false
	p.widget.SetShowTextEffects(p.metadata.MonochromeColor != nil)

	if warning != "" {
		p.board.Post(warning)
	}
	return true
}
