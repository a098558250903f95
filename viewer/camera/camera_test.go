package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/quillview/common"
)

func assertMatrixNear(t *testing.T, want, got common.Matrix2D) {
	t.Helper()
	assert.InDelta(t, want.M11, got.M11, 1e-4)
	assert.InDelta(t, want.M12, got.M12, 1e-4)
	assert.InDelta(t, want.M21, got.M21, 1e-4)
	assert.InDelta(t, want.M22, got.M22, 1e-4)
	assert.InDelta(t, want.Tx, got.Tx, 1e-3)
	assert.InDelta(t, want.Ty, got.Ty, 1e-3)
}

func squareViewBox() common.Rect {
	return common.NewRect(common.Vec2{}, common.Vec2{X: 100, Y: 100})
}

func TestNewFlatFitsViewBox(t *testing.T) {
	// View box (0,0)-(100,100) into a 200x200 viewport is a uniform 2x fit
	// with no rotation and no offset.
	flat := NewFlat(squareViewBox(), common.Point2I{X: 200, Y: 200})

	origin := flat.Transform.Apply(common.Vec2{})
	corner := flat.Transform.Apply(common.Vec2{X: 100, Y: 100})

	assert.InDelta(t, 0, origin.X, 1e-4)
	assert.InDelta(t, 0, origin.Y, 1e-4)
	assert.InDelta(t, 200, corner.X, 1e-3)
	assert.InDelta(t, 200, corner.Y, 1e-3)
	assert.InDelta(t, 0, flat.Transform.Rotation(), 1e-5)
}

func TestNewFlatCentersWideViewport(t *testing.T) {
	flat := NewFlat(squareViewBox(), common.Point2I{X: 400, Y: 200})

	// Scale is bound by the short viewport side; the fit is centered.
	origin := flat.Transform.Apply(common.Vec2{})
	corner := flat.Transform.Apply(common.Vec2{X: 100, Y: 100})
	assert.InDelta(t, 100, origin.X, 1e-3)
	assert.InDelta(t, 0, origin.Y, 1e-4)
	assert.InDelta(t, 300, corner.X, 1e-3)
	assert.InDelta(t, 200, corner.Y, 1e-3)
}

func TestPanZoomInverseRestoresTransform(t *testing.T) {
	pivots := []common.Vec2{{}, {X: 50, Y: 50}, {X: 123, Y: -7}}
	deltas := []float32{0.02, -0.01, 0.1}

	for _, pivot := range pivots {
		for _, d := range deltas {
			flat := NewFlat(squareViewBox(), common.Point2I{X: 200, Y: 200})
			before := flat.Transform

			flat.PanZoom(d, pivot)
			// The inverse gesture distance undoes scale = 1 + d*speed.
			inverse := -d / (1 + d*scaleSpeed2D)
			flat.PanZoom(inverse, pivot)

			assertMatrixNear(t, before, flat.Transform)
		}
	}
}

func TestRotateToIsIdempotent(t *testing.T) {
	center := common.Vec2{X: 100, Y: 100}

	once := NewFlat(squareViewBox(), common.Point2I{X: 200, Y: 200})
	once.RotateTo(0.5, center)

	twice := NewFlat(squareViewBox(), common.Point2I{X: 200, Y: 200})
	twice.RotateTo(0.5, center)
	twice.RotateTo(0.5, center)

	assertMatrixNear(t, once.Transform, twice.Transform)
}

func TestZoomStepScalesAboutCenter(t *testing.T) {
	center := common.Vec2{X: 100, Y: 100}
	flat := NewFlat(squareViewBox(), common.Point2I{X: 200, Y: 200})
	flat.ZoomStep(true, center)
	assert.InDelta(t, 2*(1+zoomAmount2D), flat.Transform.M11, 1e-4)
}

func TestVelocityReleaseStopsAxis(t *testing.T) {
	space := NewSpace(Mode3D, squareViewBox(), common.Point2I{X: 200, Y: 200})

	space.SetVelocityAxis(AxisZ, -1, squareViewBox())
	require.NotZero(t, space.Modelview.Velocity[2])

	space.ClearVelocityAxis(AxisZ)
	assert.Zero(t, space.Modelview.Velocity[2])
	assert.False(t, space.IntegrateVelocity())
}

func TestVelocityLastKeyWins(t *testing.T) {
	space := NewSpace(Mode3D, squareViewBox(), common.Point2I{X: 200, Y: 200})

	space.SetVelocityAxis(AxisZ, -1, squareViewBox())
	space.SetVelocityAxis(AxisZ, 1, squareViewBox())

	assert.Greater(t, space.Modelview.Velocity[2], float32(0))
}

func TestIntegrateVelocityMovesPosition(t *testing.T) {
	space := NewSpace(Mode3D, squareViewBox(), common.Point2I{X: 200, Y: 200})
	before := space.Modelview.Position

	space.SetVelocityAxis(AxisX, 1, squareViewBox())
	require.True(t, space.IntegrateVelocity())

	assert.Greater(t, space.Modelview.Position[0], before[0])
}

func TestModeSwitchDoesNotLeakState(t *testing.T) {
	viewport := common.Point2I{X: 200, Y: 200}

	fresh := New(Mode2D, squareViewBox(), viewport).(*Flat)

	// Pass through 3D, mutate it, then rebuild 2D: the 2D transform must be
	// identical to a fresh camera.
	space := New(Mode3D, squareViewBox(), viewport).(*Space)
	space.ApplyMouselook(common.Vec2{X: 40, Y: 10})
	space.SetVelocityAxis(AxisZ, 1, squareViewBox())
	space.IntegrateVelocity()

	rebuilt := New(Mode2D, squareViewBox(), viewport).(*Flat)
	assertMatrixNear(t, fresh.Transform, rebuilt.Transform)
}

func TestVRSynthesizesTwoEyes(t *testing.T) {
	space := NewSpace(ModeVR, squareViewBox(), common.Point2I{X: 200, Y: 200})

	require.Len(t, space.Eyes, 2)
	assert.Equal(t, ModeVR, space.Mode())

	// With zero yaw/pitch the eye matrices differ only by the fixed
	// model-to-eye offsets, which mirror each other.
	left := space.Eyes[0].ModelviewToEye
	right := space.Eyes[1].ModelviewToEye
	assert.InDelta(t, -right[12], left[12], 1e-6)
	assert.NotZero(t, left[12])
	assert.Equal(t, space.Eyes[0].Perspective, space.Eyes[1].Perspective)
}

func TestMonoSpaceHasOneEye(t *testing.T) {
	space := NewSpace(Mode3D, squareViewBox(), common.Point2I{X: 200, Y: 200})
	require.Len(t, space.Eyes, 1)
	assert.Equal(t, Mode3D, space.Mode())
}

func TestSetEyesRejectsEmpty(t *testing.T) {
	space := NewSpace(ModeVR, squareViewBox(), common.Point2I{X: 200, Y: 200})
	assert.False(t, space.SetEyes(nil))
	assert.Len(t, space.Eyes, 2)
}

func TestSetEyesSwitchesToMono(t *testing.T) {
	space := NewSpace(ModeVR, squareViewBox(), common.Point2I{X: 200, Y: 200})
	require.True(t, space.SetEyes(space.Eyes[:1]))
	assert.Equal(t, Mode3D, space.Mode())
}

func TestScaleFactorForViewBox(t *testing.T) {
	vb := common.NewRect(common.Vec2{}, common.Vec2{X: 200, Y: 50})
	assert.InDelta(t, 1.0/50.0, ScaleFactorForViewBox(vb), 1e-6)
}
