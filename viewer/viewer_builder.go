package viewer

import (
	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/ui"
)

// ViewerBuilderOption is a functional option for configuring a viewer.
// Use the With* functions to create options.
type ViewerBuilderOption func(v *viewer)

// WithScenePath sets the SVG file to open.
//
// Parameters:
//   - path: filesystem path of the scene
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithScenePath(path string) ViewerBuilderOption {
	return func(v *viewer) {
		v.scenePath = path
	}
}

// WithMode sets the initial camera mode.
//
// Parameters:
//   - mode: the camera mode
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithMode(mode camera.Mode) ViewerBuilderOption {
	return func(v *viewer) {
		v.mode = mode
	}
}

// WithBackgroundColor sets the background color.
//
// Parameters:
//   - color: the background color
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithBackgroundColor(color common.Color) ViewerBuilderOption {
	return func(v *viewer) {
		v.background = color
	}
}

// WithJobs sets the scene build worker count. Values <= 0 keep the default.
//
// Parameters:
//   - jobs: worker count
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithJobs(jobs int) ViewerBuilderOption {
	return func(v *viewer) {
		v.jobs = jobs
	}
}

// WithVisibility sets the initial debug UI visibility.
//
// Parameters:
//   - visibility: the initial visibility cycle position
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithVisibility(visibility ui.Visibility) ViewerBuilderOption {
	return func(v *viewer) {
		v.visibility = visibility
	}
}

// WithProfiling enables FPS and memory logging from construction.
//
// Returns:
//   - ViewerBuilderOption: option function to apply
func WithProfiling() ViewerBuilderOption {
	return func(v *viewer) {
		v.profilingEnabled = true
	}
}
