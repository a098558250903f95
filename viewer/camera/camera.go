// Package camera owns all viewing transform state for the viewer.
//
// The camera is a tagged union over two variants: Flat (2D pan/zoom/rotate)
// and Space (free-flying 3D perspective). Stereo VR is not a third variant —
// it is a Space camera carrying more than one eye transform. Exactly one
// variant is live at any time; switching modes always rebuilds the variant
// from the scene view box and the current viewport, never from stale numbers.
package camera

import (
	"math"

	"github.com/quillview/quillview/common"
)

// Mode identifies the active camera variant.
type Mode int

const (
	// Mode2D is the flat pan/zoom/rotate camera.
	Mode2D Mode = iota

	// Mode3D is the free-flying perspective camera with a single eye.
	Mode3D

	// ModeVR is the perspective camera with per-eye transforms for stereo
	// reprojection.
	ModeVR
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	case ModeVR:
		return "vr"
	default:
		return "unknown"
	}
}

const (
	// scaleSpeed2D is how much the scene is scaled per unit of pinch/scroll
	// gesture distance.
	scaleSpeed2D = 6.0

	// zoomAmount2D is the scale delta applied per zoom button click.
	zoomAmount2D = 0.1

	// mouselookRotationSpeed converts mouse pixel deltas to radians.
	mouselookRotationSpeed = 0.007

	// flySpeed is the per-frame 3D movement distance before view-box
	// normalization.
	flySpeed = 0.02

	nearClip = 0.025
	farClip  = 100.0

	// defaultEyeOffset is the half inter-eye distance, in eye space, used to
	// synthesize stereo eyes until a head tracker provides real ones.
	defaultEyeOffset = 0.0325
)

// Camera is the tagged union over the viewer's camera variants. The two
// implementations are *Flat and *Space; callers type-switch to reach
// mode-specific operations.
type Camera interface {
	// Mode reports which variant is live.
	//
	// Returns:
	//   - Mode: Mode2D for *Flat; Mode3D or ModeVR for *Space
	Mode() Mode

	// RenderTransform derives the transform handed to the scene builder for
	// this frame. It is recomputed on every call, never cached across camera
	// mutations.
	//
	// Returns:
	//   - RenderTransform: Transform2D for *Flat, Perspective for *Space
	RenderTransform() RenderTransform
}

// RenderTransform is the sum of per-frame transform kinds the scene builder
// accepts.
type RenderTransform interface {
	isRenderTransform()
}

// Transform2D wraps a 2D affine scene-to-device transform.
type Transform2D struct {
	Matrix common.Matrix2D
}

// Perspective wraps a full projection·model-to-eye·modelview matrix.
type Perspective struct {
	Matrix common.Mat4
}

func (Transform2D) isRenderTransform() {}
func (Perspective) isRenderTransform() {}

// ScaleFactorForViewBox returns the normalization factor that makes camera
// movement speed independent of the scene's coordinate scale.
func ScaleFactorForViewBox(viewBox common.Rect) float32 {
	return 1.0 / viewBox.Size.Min()
}

// New builds a fresh camera for the given mode, deriving all transform state
// from the scene view box and the viewport size.
//
// Parameters:
//   - mode: the requested camera mode
//   - viewBox: the scene's natural view box
//   - viewport: the target viewport size in device pixels
//
// Returns:
//   - Camera: a *Flat for Mode2D, a *Space otherwise
func New(mode Mode, viewBox common.Rect, viewport common.Point2I) Camera {
	if mode == Mode2D {
		return NewFlat(viewBox, viewport)
	}
	return NewSpace(mode, viewBox, viewport)
}

// Flat is the 2D camera variant: a single affine transform applied to scene
// coordinates.
type Flat struct {
	Transform common.Matrix2D
}

var _ Camera = &Flat{}

// NewFlat builds a 2D camera that uniformly fits the view box into the
// viewport, centered, with no rotation.
func NewFlat(viewBox common.Rect, viewport common.Point2I) *Flat {
	scale := float32(min(viewport.X, viewport.Y)) * ScaleFactorForViewBox(viewBox)
	origin := viewport.ToVec2().Scale(0.5).Sub(viewBox.Size.Scale(scale * 0.5))
	transform := common.IdentityMatrix2D().
		PostTranslate(viewBox.Origin.Neg()).
		PostScale(common.Splat(scale)).
		PostTranslate(origin)
	return &Flat{Transform: transform}
}

func (f *Flat) Mode() Mode {
	return Mode2D
}

func (f *Flat) RenderTransform() RenderTransform {
	return Transform2D{Matrix: f.Transform}
}

// PanZoom scales the scene about a pivot point in response to a pinch or
// scroll gesture. The composition order is translate(-pivot), scale,
// translate(+pivot) so the pivot is the fixed point of the scale.
//
// Parameters:
//   - dDist: signed gesture distance; positive zooms in
//   - pivot: the fixed point of the scale, in device pixels
//
// Returns:
//   - bool: true, the transform always changes enough to need a rebuild
func (f *Flat) PanZoom(dDist float32, pivot common.Vec2) bool {
	scale := 1.0 + dDist*scaleSpeed2D
	f.Transform = f.Transform.
		PostTranslate(pivot.Neg()).
		PostScale(common.Splat(scale)).
		PostTranslate(pivot)
	return true
}

// ZoomStep applies one zoom button click about the given center, using the
// same pivot composition as PanZoom with a fixed scale delta.
//
// Parameters:
//   - zoomIn: true to zoom in, false to zoom out
//   - center: the pivot, normally the window center in device pixels
//
// Returns:
//   - bool: true, the transform changed
func (f *Flat) ZoomStep(zoomIn bool, center common.Vec2) bool {
	scale := float32(1.0 - zoomAmount2D)
	if zoomIn {
		scale = 1.0 + zoomAmount2D
	}
	f.Transform = f.Transform.
		PostTranslate(center.Neg()).
		PostScale(common.Splat(scale)).
		PostTranslate(center)
	return true
}

// RotateTo replaces only the rotation component of the transform, rotating
// about the given center by the difference between theta and the current
// rotation. Absolute target angles are therefore idempotent.
//
// Parameters:
//   - theta: the absolute target rotation in radians
//   - center: the pivot, normally the window center in device pixels
//
// Returns:
//   - bool: true, the transform changed
func (f *Flat) RotateTo(theta float32, center common.Vec2) bool {
	f.Transform = f.Transform.
		PostTranslate(center.Neg()).
		PostRotate(theta - f.Transform.Rotation()).
		PostTranslate(center)
	return true
}

// Drag translates the scene by a mouse drag delta in device pixels.
func (f *Flat) Drag(delta common.Vec2) bool {
	f.Transform = f.Transform.PostTranslate(delta)
	return true
}

// Ocular is one fixed (projection, model-to-eye) pair describing a viewpoint.
// The mono camera has exactly one; a stereo camera has one per eye.
type Ocular struct {
	Perspective    common.Mat4
	ModelviewToEye common.Mat4
}

// Matrix composes the ocular pair with a modelview transform into the final
// eye matrix.
func (o Ocular) Matrix(modelview common.Mat4) common.Mat4 {
	return o.Perspective.Mul(o.ModelviewToEye).Mul(modelview)
}

// Axis selects one movement axis of the 3D camera's velocity.
type Axis int

const (
	// AxisX is the strafe axis.
	AxisX Axis = iota

	// AxisZ is the forward/back axis.
	AxisZ
)

// Modelview is the mutable part of the 3D camera: yaw, pitch, position, and
// an integrable velocity, all independent of the fixed projection.
type Modelview struct {
	Yaw      float32
	Pitch    float32
	Position [3]float32
	Velocity [3]float32

	// scale normalizes scene coordinates into eye space; derived from the
	// view box at construction.
	scale float32
}

// Transform composes the modelview state into a single matrix: rotation by
// pitch and yaw, uniform scale into eye space, translation to the camera
// position, and a Y flip so the scene's y-down coordinates render upright.
func (m *Modelview) Transform() common.Mat4 {
	t := common.NewRotationX(m.Pitch).Mul(common.NewRotationY(m.Yaw))
	t = t.Mul(common.NewUniformScaling(2.0 * m.scale))
	t = t.Mul(common.NewTranslation(-m.Position[0], -m.Position[1], -m.Position[2]))
	return t.Mul(common.NewScaling(1.0, -1.0, 1.0))
}

// Space is the 3D camera variant. VR behavior activates when Eyes holds more
// than one transform; Eyes always holds at least one.
type Space struct {
	// SceneTransform is the fixed projection and model-to-eye pair used to
	// render the mono scene pass.
	SceneTransform Ocular

	// Modelview is the mutable yaw/pitch/position/velocity state.
	Modelview Modelview

	// Eyes is the ordered list of per-eye transforms; len(Eyes) >= 1.
	Eyes []Ocular
}

var _ Camera = &Space{}

// NewSpace builds a 3D camera looking at the view box center from in front of
// the scene plane. For ModeVR two synthetic eyes are created, offset by the
// default inter-eye distance, until head tracking supplies real transforms.
func NewSpace(mode Mode, viewBox common.Rect, viewport common.Point2I) *Space {
	scale := ScaleFactorForViewBox(viewBox)
	aspect := float32(viewport.X) / float32(viewport.Y)
	projection := common.NewPerspective(math.Pi/4, aspect, nearClip, farClip)

	sceneTransform := Ocular{
		Perspective:    projection,
		ModelviewToEye: common.IdentityMat4(),
	}

	eyes := []Ocular{sceneTransform}
	if mode == ModeVR {
		eyes = []Ocular{
			{Perspective: projection, ModelviewToEye: common.NewTranslation(-defaultEyeOffset, 0, 0)},
			{Perspective: projection, ModelviewToEye: common.NewTranslation(defaultEyeOffset, 0, 0)},
		}
	}

	return &Space{
		SceneTransform: sceneTransform,
		Modelview: Modelview{
			Position: [3]float32{
				0.5 * viewBox.MaxX(),
				-0.5 * viewBox.MaxY(),
				1.5 / scale,
			},
			scale: scale,
		},
		Eyes: eyes,
	}
}

func (s *Space) Mode() Mode {
	if len(s.Eyes) > 1 {
		return ModeVR
	}
	return Mode3D
}

func (s *Space) RenderTransform() RenderTransform {
	return Perspective{Matrix: s.SceneTransform.Matrix(s.Modelview.Transform())}
}

// ApplyMouselook adds a mouse pixel delta to yaw and pitch.
//
// Parameters:
//   - delta: mouse movement in device pixels
//
// Returns:
//   - bool: true, the view changed
func (s *Space) ApplyMouselook(delta common.Vec2) bool {
	s.Modelview.Yaw += delta.X * mouselookRotationSpeed
	s.Modelview.Pitch += delta.Y * mouselookRotationSpeed
	return true
}

// Look adds absolute pitch/yaw deltas, e.g. from a head tracker.
func (s *Space) Look(pitch, yaw float32) bool {
	s.Modelview.Pitch += pitch
	s.Modelview.Yaw += yaw
	return true
}

// SetVelocityAxis sets one velocity component to the fly speed with the given
// sign, normalized by the view-box scale factor so movement speed is
// independent of scene scale. Two opposing keys held at once leave the axis
// at whichever was set last; there is no held-key reference counting.
//
// Parameters:
//   - axis: which axis to drive
//   - sign: +1 or -1
//   - viewBox: the current scene view box, for speed normalization
//
// Returns:
//   - bool: true, velocity changed
func (s *Space) SetVelocityAxis(axis Axis, sign float32, viewBox common.Rect) bool {
	v := sign * flySpeed / ScaleFactorForViewBox(viewBox)
	switch axis {
	case AxisX:
		s.Modelview.Velocity[0] = v
	case AxisZ:
		s.Modelview.Velocity[2] = v
	}
	return true
}

// ClearVelocityAxis zeroes one velocity component; releasing either of two
// opposing keys stops that axis.
func (s *Space) ClearVelocityAxis(axis Axis) bool {
	switch axis {
	case AxisX:
		s.Modelview.Velocity[0] = 0
	case AxisZ:
		s.Modelview.Velocity[2] = 0
	}
	return true
}

// IntegrateVelocity advances the position by the current velocity.
//
// Returns:
//   - bool: true if the position changed, meaning the frame needs a rebuild
func (s *Space) IntegrateVelocity() bool {
	v := s.Modelview.Velocity
	if v[0] == 0 && v[1] == 0 && v[2] == 0 {
		return false
	}
	s.Modelview.Position[0] += v[0]
	s.Modelview.Position[1] += v[1]
	s.Modelview.Position[2] += v[2]
	return true
}

// SetEyes replaces the per-eye transforms, e.g. from VR head tracking. An
// empty list is rejected so the camera never drops below one eye.
//
// Parameters:
//   - eyes: the new ordered eye transforms
//
// Returns:
//   - bool: true if the eyes were replaced
func (s *Space) SetEyes(eyes []Ocular) bool {
	if len(eyes) == 0 {
		return false
	}
	s.Eyes = eyes
	return true
}
