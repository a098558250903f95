package scenes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillview/quillview/common"
)

func writeSceneFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadExtractsFillsAndViewBox(t *testing.T) {
	path := writeSceneFile(t, "boxes.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
  <rect x="10" y="10" width="30" height="30" fill="#ff0000"/>
  <rect x="50" y="50" width="20" height="20" fill="#0000ff"/>
</svg>`)

	scene, warning, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, common.NewRect(common.Vec2{}, common.Vec2{X: 100, Y: 100}), scene.ViewBox())

	paths := scene.Paths()
	require.Len(t, paths, 2)
	assert.Equal(t, common.Color{R: 255, A: 255}, paths[0].Fill)
	assert.Equal(t, common.Color{B: 255, A: 255}, paths[1].Fill)
	for _, p := range paths {
		require.NotEmpty(t, p.Contours)
		assert.GreaterOrEqual(t, len(p.Contours[0]), 4)
	}

	bounds := scene.Bounds()
	assert.InDelta(t, 10, bounds.Origin.X, 0.5)
	assert.InDelta(t, 10, bounds.Origin.Y, 0.5)
	assert.InDelta(t, 70, bounds.MaxX(), 0.5)
	assert.InDelta(t, 70, bounds.MaxY(), 0.5)
}

func TestLoadUnsupportedPaintServerFallsBackToBlack(t *testing.T) {
	path := writeSceneFile(t, "gradient.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 50 50">
  <defs>
    <linearGradient id="g">
      <stop offset="0" stop-color="#ff0000"/>
      <stop offset="1" stop-color="#0000ff"/>
    </linearGradient>
  </defs>
  <rect x="5" y="5" width="40" height="40" fill="url(#g)"/>
</svg>`)

	scene, warning, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	paths := scene.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, common.Color{A: 255}, paths[0].Fill)
}

func TestLoadFlattensCurves(t *testing.T) {
	path := writeSceneFile(t, "circle.svg", `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
  <circle cx="50" cy="50" r="40" fill="#000000"/>
</svg>`)

	scene, _, err := Load(path)
	require.NoError(t, err)
	require.Len(t, scene.Paths(), 1)

	// The circle's arcs arrive as a polyline dense enough to approximate it.
	contours := scene.Paths()[0].Contours
	require.NotEmpty(t, contours)
	assert.Greater(t, len(contours[0]), 8)

	bounds := scene.Bounds()
	assert.InDelta(t, 10, bounds.Origin.X, 1)
	assert.InDelta(t, 90, bounds.MaxX(), 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.svg"))
	assert.Error(t, err)
}
