package pipeline

import (
	"time"

	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/stats"
	"github.com/quillview/quillview/viewer/ui"
)

// Frame is the record opened at Build and closed at Finish: the transform the
// scene was built under, the UI events gathered in Prepare, and the
// statistics accumulated while drawing.
type Frame struct {
	// Transform is the camera transform the scene was built with.
	Transform camera.RenderTransform

	// UIEvents is the UI-relevant event subset from this frame's batch.
	UIEvents []ui.Event

	// SceneStats aggregates the render counters of every submission this
	// frame made (one for mono, one per eye pass in VR).
	SceneStats stats.RenderStats

	// BuildTime is the scene build duration reported by the command stream's
	// terminal finish command.
	BuildTime time.Duration

	// RenderTimes collects the measured render durations for this frame's
	// submissions.
	RenderTimes []time.Duration
}

// TotalRenderTime sums the frame's measured render durations.
func (f *Frame) TotalRenderTime() time.Duration {
	var total time.Duration
	for _, t := range f.RenderTimes {
		total += t
	}
	return total
}
