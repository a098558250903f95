// Package viewer assembles the interactive SVG viewer: it loads the initial
// scene, builds the camera, dispatcher, device, and pipeline, and runs the
// frame loop on the window thread.
package viewer

import (
	"fmt"
	"log"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/device"
	"github.com/quillview/quillview/viewer/input"
	"github.com/quillview/quillview/viewer/notice"
	"github.com/quillview/quillview/viewer/pipeline"
	"github.com/quillview/quillview/viewer/scenes"
	"github.com/quillview/quillview/viewer/stats"
	"github.com/quillview/quillview/viewer/ui"
	"github.com/quillview/quillview/viewer/window"
)

// viewer implements the Viewer interface. Owns the window, device, pipeline,
// and session state for one viewing session.
type viewer struct {
	win      window.Window
	dev      device.Device
	pipeline *pipeline.Pipeline
	session  *input.Session
	board    *notice.Board
	widget   ui.Widget

	profiler         *stats.Profiler
	profilingEnabled bool

	scenePath  string
	mode       camera.Mode
	background common.Color
	visibility ui.Visibility
	jobs       int
}

// Viewer is the interactive vector-graphics viewer.
type Viewer interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// EnableProfiler enables FPS and memory logging.
	EnableProfiler()

	// Run starts the frame loop (blocks until the window closes).
	Run()
}

// NewViewer creates a viewer, loads the initial scene, and wires the frame
// pipeline.
//
// Parameters:
//   - options: functional options for viewer configuration
//
// Returns:
//   - Viewer: the newly created viewer
//   - error: non-nil if the initial scene or the GPU device is unavailable
func NewViewer(options ...ViewerBuilderOption) (Viewer, error) {
	v := &viewer{
		profiler:   stats.NewProfiler(),
		mode:       camera.Mode2D,
		background: common.LightBackground,
		visibility: ui.VisibilityAll,
	}
	for _, opt := range options {
		opt(v)
	}

	if v.scenePath == "" {
		return nil, fmt.Errorf("no scene file given")
	}

	// The initial load is the one failure that stays fatal: without any
	// scene there is nothing to fall back to.
	scene, warning, err := scenes.Load(v.scenePath)
	if err != nil {
		return nil, err
	}

	v.win = window.NewWindow(window.WithTitle("Quillview — " + v.scenePath))
	viewport := v.win.Viewport(window.ViewFull).Size

	metadata := scenes.ExtractMetadata(scene)
	scenes.RetargetViewBox(scene, viewport)

	dev, err := device.NewDevice(v.win.SurfaceDescriptor(), v.win.Size().DeviceSize())
	if err != nil {
		return nil, err
	}
	v.dev = dev

	proxy := scenes.NewProxy(scene, scenes.WithJobs(v.jobs))

	expireEventID := v.win.CreateUserEventID()
	v.board = notice.NewBoard(expireEventID, v.win.PushUserEvent)

	v.widget = ui.NewWidget(
		ui.WithMode(v.mode),
		ui.WithBackgroundColor(v.background),
	)
	v.widget.SetShowTextEffects(metadata.MonochromeColor != nil)

	v.session = &input.Session{
		Camera:        camera.New(v.mode, metadata.ViewBox, viewport),
		WindowSize:    v.win.Size(),
		ViewBox:       metadata.ViewBox,
		Visibility:    v.visibility,
		ExpireEventID: expireEventID,
	}
	dispatcher := input.NewDispatcher(v.session)

	v.pipeline = pipeline.New(v.win, dev, proxy, v.widget, dispatcher, v.board, metadata)

	if warning != "" {
		v.board.Post(warning)
	}

	return v, nil
}

func (v *viewer) Window() window.Window {
	return v.win
}

func (v *viewer) EnableProfiler() {
	v.profilingEnabled = true
}

// Run drives the pipeline phase sequence once per message loop iteration.
// All phases run on the window thread; the only background work is the scene
// proxy's build pool and the message board's expiry timers.
func (v *viewer) Run() {
	v.win.SetUpdateCallback(v.renderFrame)
	v.win.ProcessMessages()
	_ = v.win.Close()
}

func (v *viewer) renderFrame() {
	events := v.win.Events()

	sceneCount, err := v.pipeline.PrepareFrame(events)
	if err != nil {
		log.Printf("frame prepare failed: %v", err)
		return
	}
	if v.session.ShouldExit {
		_ = v.win.Close()
		return
	}

	if err := v.pipeline.BuildFrame(); err != nil {
		log.Printf("frame build failed: %v", err)
		return
	}
	if err := v.pipeline.DrawScene(); err != nil {
		log.Printf("frame draw failed: %v", err)
		return
	}
	if sceneCount > 1 {
		for eye := range sceneCount {
			if err := v.pipeline.CompositeScene(eye); err != nil {
				log.Printf("frame composite failed: %v", err)
				return
			}
		}
	}
	if err := v.pipeline.FinishFrame(); err != nil {
		log.Printf("frame finish failed: %v", err)
		return
	}

	// A clean frame lets the message loop wait for input instead of
	// redrawing immediately; animation keeps the dirty flag set.
	v.win.SetIdleWait(!v.pipeline.Dirty())

	if v.profilingEnabled {
		v.profiler.Tick()
	}
}
