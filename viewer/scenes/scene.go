// Package scenes holds the loaded vector scene, the metadata summary the
// pipeline reads each frame, and the proxy that builds per-frame render
// command streams on a worker pool.
package scenes

import (
	"github.com/quillview/quillview/common"
)

// Path is one filled contour set of the scene's display list. Curves are
// flattened at load time; the rasterization backend consumes straight edges.
type Path struct {
	// Contours are closed polylines in scene coordinates.
	Contours [][]common.Vec2

	// Fill is the path's flat fill color.
	Fill common.Color
}

// Scene is a parsed vector scene: a view box plus an ordered display list.
// The display list is immutable after load; only the view box is retargeted
// when the scene is bound to a viewport.
type Scene struct {
	viewBox common.Rect
	paths   []Path
}

// NewScene builds a scene from a view box and display list.
func NewScene(viewBox common.Rect, paths []Path) *Scene {
	return &Scene{viewBox: viewBox, paths: paths}
}

// ViewBox returns the scene-space rectangle mapped onto the viewport.
func (s *Scene) ViewBox() common.Rect {
	return s.viewBox
}

// SetViewBox retargets the scene's view box.
func (s *Scene) SetViewBox(viewBox common.Rect) {
	s.viewBox = viewBox
}

// Paths returns the display list.
func (s *Scene) Paths() []Path {
	return s.paths
}

// Bounds returns the tight bounding box of every contour point in the
// display list. An empty scene reports a zero rect.
func (s *Scene) Bounds() common.Rect {
	var lo, hi common.Vec2
	found := false
	for _, path := range s.paths {
		for _, contour := range path.Contours {
			for _, p := range contour {
				if !found {
					lo, hi = p, p
					found = true
					continue
				}
				lo.X = min(lo.X, p.X)
				lo.Y = min(lo.Y, p.Y)
				hi.X = max(hi.X, p.X)
				hi.Y = max(hi.Y, p.Y)
			}
		}
	}
	if !found {
		return common.Rect{}
	}
	return common.NewRect(lo, hi.Sub(lo))
}

// MonochromeColor returns the single fill color shared by every path, if the
// scene has one. Monochrome scenes unlock the text-effect render modes.
//
// Returns:
//   - common.Color: the shared color (zero value when not monochrome)
//   - bool: true if every path uses the same fill
func (s *Scene) MonochromeColor() (common.Color, bool) {
	if len(s.paths) == 0 {
		return common.Color{}, false
	}
	first := s.paths[0].Fill
	for _, path := range s.paths[1:] {
		if path.Fill != first {
			return common.Color{}, false
		}
	}
	return first, true
}

// Metadata is the immutable-after-load summary of a scene the pipeline reads
// each frame: the scene's natural view box, its content bounds, and the
// monochrome color if it has one.
type Metadata struct {
	ViewBox         common.Rect
	Bounds          common.Rect
	MonochromeColor *common.Color
}

// ExtractMetadata summarizes a scene. It does not mutate the scene; callers
// binding the scene to a display should follow up with RetargetViewBox as an
// explicit second step.
//
// Parameters:
//   - scene: the freshly loaded scene
//
// Returns:
//   - Metadata: the extracted summary
func ExtractMetadata(scene *Scene) Metadata {
	md := Metadata{
		ViewBox: scene.ViewBox(),
		Bounds:  scene.Bounds(),
	}
	if color, ok := scene.MonochromeColor(); ok {
		c := color
		md.MonochromeColor = &c
	}
	return md
}

// RetargetViewBox overwrites the scene's view box to span the viewport,
// coupling load-time setup to display setup. Call once per scene load, after
// ExtractMetadata has captured the natural view box.
//
// Parameters:
//   - scene: the scene to retarget
//   - viewport: the target viewport size in device pixels
func RetargetViewBox(scene *Scene, viewport common.Point2I) {
	scene.SetViewBox(common.NewRect(common.Vec2{}, viewport.ToVec2()))
}
