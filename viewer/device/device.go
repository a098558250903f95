// Package device renders scene command streams on a WebGPU backend. It owns
// the surface, the offscreen scene framebuffers used for stereo compositing,
// and the small set of auxiliary passes (ground plane, reprojection) the
// viewer needs around the scene itself.
package device

import (
	"image"
	"time"

	"github.com/quillview/quillview/common"
	"github.com/quillview/quillview/viewer/camera"
	"github.com/quillview/quillview/viewer/scenes"
	"github.com/quillview/quillview/viewer/stats"
)

// Stem darkening parameters for the text emboldening effect.
var (
	StemDarkeningFactors   = [2]float32{0.0121, 0.0121 * 1.25}
	MaxStemDarkeningAmount = [2]float32{0.3, 0.3}
)

// ApproxFontSize is the nominal font size, in points, assumed when computing
// the stem darkening dilation for a whole scene.
const ApproxFontSize = 16.0

// StemDarkeningDilation returns the outline dilation for the stem darkening
// effect at the given font size in device pixels.
//
// Parameters:
//   - fontSize: font size in device pixels
//
// Returns:
//   - common.Vec2: the dilation to apply to outlines
func StemDarkeningDilation(fontSize float32) common.Vec2 {
	return common.Vec2{
		X: min(StemDarkeningFactors[0]*fontSize, MaxStemDarkeningAmount[0]),
		Y: min(StemDarkeningFactors[1]*fontSize, MaxStemDarkeningAmount[1]),
	}.Scale(0.5)
}

// RenderMode selects how scene fills are shaded.
type RenderMode interface {
	isRenderMode()
}

// MulticolorMode renders each path with its own fill color. Text effects are
// unavailable in this mode.
type MulticolorMode struct{}

// MonochromeMode renders every path in a single foreground color over a known
// background, unlocking the gamma correction and defringing text effects.
type MonochromeMode struct {
	FGColor         common.ColorF
	BGColor         common.ColorF
	GammaCorrection bool
	Defringing      bool
}

func (MulticolorMode) isRenderMode() {}
func (MonochromeMode) isRenderMode() {}

// Framebuffer is an opaque handle to a render target. The zero handle (nil)
// denotes the window surface.
type Framebuffer interface {
	isFramebuffer()
}

// Device is the rendering backend contract. One frame looks like:
//
//	BeginScene → RenderCommand* → EndScene → [ReprojectTexture per eye] → Present
//
// Implementations are not safe for concurrent use; the viewer drives the
// device from the window thread only.
type Device interface {
	// SetMainFramebufferSize reconfigures the surface after a resize.
	//
	// Parameters:
	//   - size: the new surface size in device pixels
	SetMainFramebufferSize(size common.Point2I)

	// SetRenderMode selects the shading mode for subsequent scenes.
	//
	// Parameters:
	//   - mode: the mode to use
	SetRenderMode(mode RenderMode)

	// EnableDepth turns on depth testing for subsequent scene draws, used by
	// the 3D environment pass.
	EnableDepth()

	// DisableDepth turns depth testing back off.
	DisableDepth()

	// ReplaceDestFramebuffer swaps the destination render target and returns
	// the previous one. Pass nil to target the window surface.
	//
	// Parameters:
	//   - framebuffer: the new destination (nil for the surface)
	//
	// Returns:
	//   - Framebuffer: the previous destination
	ReplaceDestFramebuffer(framebuffer Framebuffer) Framebuffer

	// CreateSceneFramebuffer allocates an offscreen color target of the given
	// size, used as the per-eye scene target in stereo rendering.
	//
	// Parameters:
	//   - size: the framebuffer size in device pixels
	//
	// Returns:
	//   - Framebuffer: the new framebuffer
	//   - error: non-nil if the texture could not be created
	CreateSceneFramebuffer(size common.Point2I) (Framebuffer, error)

	// FramebufferSize reports a framebuffer's size in device pixels.
	//
	// Parameters:
	//   - framebuffer: the framebuffer to measure (nil for the surface)
	//
	// Returns:
	//   - common.Point2I: the size
	FramebufferSize(framebuffer Framebuffer) common.Point2I

	// SetViewport restricts subsequent passes to a region of the destination,
	// used to composite each stereo eye into its half of the window. An empty
	// rect restores the full destination.
	//
	// Parameters:
	//   - viewport: the region in device pixels
	SetViewport(viewport common.RectI)

	// Clear fills the current destination with a color, or with the
	// transparent color when color is nil.
	//
	// Parameters:
	//   - color: the clear color, or nil for transparent
	Clear(color *common.ColorF)

	// BeginScene opens a frame: acquires the destination target and starts
	// recording scene draws under the given camera transform.
	//
	// Parameters:
	//   - transform: the camera transform scene geometry is drawn under
	//
	// Returns:
	//   - error: non-nil if the surface texture could not be acquired
	BeginScene(transform camera.RenderTransform) error

	// RenderCommand executes one command from the scene's command stream.
	//
	// Parameters:
	//   - command: the command to execute
	RenderCommand(command scenes.Command)

	// EndScene closes the frame and submits the recorded work.
	EndScene()

	// DrawGroundPlane draws the 3D environment's ground rect and gridlines
	// beneath the scene.
	//
	// Parameters:
	//   - transform: the perspective transform for this eye
	//   - viewBox: the scene view box, which the plane extends around
	DrawGroundPlane(transform common.Mat4, viewBox common.Rect)

	// ReprojectTexture composites a rendered eye texture to the destination,
	// warping it from the transform it was rendered with to the current one.
	//
	// Parameters:
	//   - framebuffer: the eye's scene framebuffer
	//   - src: the perspective transform the texture was rendered with
	//   - dst: the current perspective transform
	ReprojectTexture(framebuffer Framebuffer, src, dst common.Mat4)

	// Present flips the surface.
	Present()

	// ReadPixels copies back the destination's pixels, used for screenshots.
	//
	// Parameters:
	//   - viewport: the region to read in device pixels
	//
	// Returns:
	//   - *image.RGBA: the pixels, top row first
	//   - error: non-nil if the readback failed
	ReadPixels(viewport common.RectI) (*image.RGBA, error)

	// Stats returns the counters accumulated since the last ResetStats.
	Stats() stats.RenderStats

	// ResetStats zeroes the accumulated counters.
	ResetStats()

	// ShiftTimerQuery pops the oldest completed frame timing, if one is
	// available.
	//
	// Returns:
	//   - time.Duration: the measured frame GPU time
	//   - bool: false if no timing is available yet
	ShiftTimerQuery() (time.Duration, bool)
}
