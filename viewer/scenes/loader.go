package scenes

import (
	"fmt"
	"image"
	"image/color"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/fixed"

	"github.com/quillview/quillview/common"
)

// Load parses an SVG file into a Scene. The file is replayed through the SVG
// stack's own draw path into a recording target, so curve flattening, path
// transforms, and fill-opacity resolution all happen upstream; each resulting
// path carries a flat color. Unsupported paint servers (gradients, patterns)
// fall back to black and are reported in the warning. Stroked geometry
// arrives as pre-outlined contours and is kept as ordinary filled paths.
//
// A failed load is recoverable: the caller keeps the current scene and
// surfaces the error as a transient message.
//
// Parameters:
//   - path: filesystem path of the SVG file
//
// Returns:
//   - *Scene: the loaded scene
//   - string: a non-fatal warning, empty when the file loaded cleanly
//   - error: non-nil if the file could not be read or parsed
func Load(path string) (*Scene, string, error) {
	icon, err := oksvg.ReadIcon(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load scene %q: %w", path, err)
	}

	recorder := &recordingScanner{}
	width := max(int(icon.ViewBox.W), 1)
	height := max(int(icon.ViewBox.H), 1)
	icon.Draw(rasterx.NewDasher(width, height, recorder), 1)

	var warning string
	if recorder.unsupported {
		warning = "unsupported paint server; some fills rendered black"
	}

	viewBox := common.NewRect(
		common.Vec2{X: float32(icon.ViewBox.X), Y: float32(icon.ViewBox.Y)},
		common.Vec2{X: float32(icon.ViewBox.W), Y: float32(icon.ViewBox.H)},
	)
	return NewScene(viewBox, recorder.paths), warning, nil
}

// recordingScanner satisfies rasterx.Scanner but captures contours and fill
// colors instead of rasterizing. Segments arriving here are already flattened
// and transformed; each Draw call commits one filled path under the color
// most recently set.
type recordingScanner struct {
	paths    []Path
	contours [][]common.Vec2
	contour  []common.Vec2
	fill     common.Color

	extent      fixed.Rectangle26_6
	hasExtent   bool
	unsupported bool
}

var _ rasterx.Scanner = &recordingScanner{}

func (s *recordingScanner) Start(a fixed.Point26_6) {
	s.closeContour()
	s.contour = append(s.contour, fixedToVec2(a))
	s.extend(a)
}

func (s *recordingScanner) Line(b fixed.Point26_6) {
	s.contour = append(s.contour, fixedToVec2(b))
	s.extend(b)
}

// Draw commits the accumulated contours as one filled path.
func (s *recordingScanner) Draw() {
	s.closeContour()
	if len(s.contours) == 0 {
		return
	}
	s.paths = append(s.paths, Path{Contours: s.contours, Fill: s.fill})
	s.contours = nil
}

// SetColor receives either a flat color or a paint-server color function.
// Only flat colors are representable in the display list; the rest fall back
// to black and raise the load warning.
func (s *recordingScanner) SetColor(clr any) {
	if c, ok := clr.(color.Color); ok {
		r, g, b, a := c.RGBA()
		s.fill = common.Color{
			R: uint8(r >> 8),
			G: uint8(g >> 8),
			B: uint8(b >> 8),
			A: uint8(a >> 8),
		}
		return
	}
	s.fill = common.Color{A: 255}
	s.unsupported = true
}

func (s *recordingScanner) Clear() {
	s.contours = nil
	s.contour = nil
	s.extent = fixed.Rectangle26_6{}
	s.hasExtent = false
}

// GetPathExtent reports the fixed-point bounding box of the segments recorded
// since the last Clear; gradient bounds resolution asks for it.
func (s *recordingScanner) GetPathExtent() fixed.Rectangle26_6 {
	return s.extent
}

func (s *recordingScanner) SetWinding(useNonZeroWinding bool) {}

func (s *recordingScanner) SetBounds(w, h int) {}

func (s *recordingScanner) SetClip(rect image.Rectangle) {}

func (s *recordingScanner) closeContour() {
	if len(s.contour) > 0 {
		s.contours = append(s.contours, s.contour)
		s.contour = nil
	}
}

func (s *recordingScanner) extend(p fixed.Point26_6) {
	if !s.hasExtent {
		s.extent = fixed.Rectangle26_6{Min: p, Max: p}
		s.hasExtent = true
		return
	}
	s.extent.Min.X = min(s.extent.Min.X, p.X)
	s.extent.Min.Y = min(s.extent.Min.Y, p.Y)
	s.extent.Max.X = max(s.extent.Max.X, p.X)
	s.extent.Max.Y = max(s.extent.Max.Y, p.Y)
}

func fixedToVec2(p fixed.Point26_6) common.Vec2 {
	return common.Vec2{
		X: float32(p.X) / 64,
		Y: float32(p.Y) / 64,
	}
}
