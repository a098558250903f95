package scenes

import (
	"time"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
)

// RenderOptions parameterize one scene build.
type RenderOptions struct {
	// Transform is the camera transform for this frame.
	Transform camera.RenderTransform

	// Dilation expands outlines, used by the stem darkening text effect.
	Dilation common.Vec2

	// SubpixelAA enables subpixel antialiasing in the backend.
	SubpixelAA bool
}

// Prepare resolves the options against the scene's content bounds.
//
// Parameters:
//   - bounds: the scene content bounds from Metadata
//
// Returns:
//   - BuiltOptions: the fully resolved build request
func (o RenderOptions) Prepare(bounds common.Rect) BuiltOptions {
	return BuiltOptions{RenderOptions: o, Bounds: bounds}
}

// BuiltOptions is a RenderOptions resolved against scene bounds, ready to
// hand to the proxy.
type BuiltOptions struct {
	RenderOptions
	Bounds common.Rect
}

// Command is one drawing instruction in a frame's render command stream.
type Command interface {
	isCommand()
}

// DrawBatchCommand carries one tessellated geometry batch: interleaved x,y
// vertex positions in scene coordinates, triangle indices, and a flat color.
type DrawBatchCommand struct {
	Vertices []float32
	Indices  []uint32
	Color    common.ColorF
}

// FinishCommand terminates a stream and reports how long the build took.
type FinishCommand struct {
	BuildTime time.Duration
}

func (DrawBatchCommand) isCommand() {}
func (FinishCommand) isCommand()   {}

// CommandStream is the lazy, ordered, single-use sequence of render commands
// produced by one scene build. Commands become available as background
// workers finish; Next blocks until the next command is ready. The stream is
// finite and not restartable: once Next reports done, a new build is needed.
type CommandStream struct {
	ch <-chan Command
}

// Next pulls the next command in order.
//
// Returns:
//   - Command: the next command (nil when the stream is exhausted)
//   - bool: false when the stream is exhausted
func (s *CommandStream) Next() (Command, bool) {
	cmd, ok := <-s.ch
	return cmd, ok
}
