// package common contains common types that are used throughout this viewer. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Vec2 is a 2D point or vector in scene or device coordinates.
type Vec2 struct {
	X, Y float32
}

// NewVec2 builds a Vec2 from components.
func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

// Splat returns a Vec2 with both components set to v.
func Splat(v float32) Vec2 {
	return Vec2{X: v, Y: v}
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Neg returns -v.
func (v Vec2) Neg() Vec2 {
	return Vec2{X: -v.X, Y: -v.Y}
}

// Scale returns v scaled uniformly by f.
func (v Vec2) Scale(f float32) Vec2 {
	return Vec2{X: v.X * f, Y: v.Y * f}
}

// Min returns the smaller component of v.
func (v Vec2) Min() float32 {
	if v.X < v.Y {
		return v.X
	}
	return v.Y
}

// Point2I is an integer pixel position or size.
type Point2I struct {
	X, Y int32
}

// NewPoint2I builds a Point2I from components.
func NewPoint2I(x, y int32) Point2I {
	return Point2I{X: x, Y: y}
}

// Sub returns p - o.
func (p Point2I) Sub(o Point2I) Point2I {
	return Point2I{X: p.X - o.X, Y: p.Y - o.Y}
}

// ToVec2 converts p to float coordinates.
func (p Point2I) ToVec2() Vec2 {
	return Vec2{X: float32(p.X), Y: float32(p.Y)}
}

// Rect is an axis-aligned rectangle with float origin and size.
type Rect struct {
	Origin Vec2
	Size   Vec2
}

// NewRect builds a Rect from origin and size vectors.
func NewRect(origin, size Vec2) Rect {
	return Rect{Origin: origin, Size: size}
}

// MaxX returns the right edge of r.
func (r Rect) MaxX() float32 {
	return r.Origin.X + r.Size.X
}

// MaxY returns the bottom edge of r.
func (r Rect) MaxY() float32 {
	return r.Origin.Y + r.Size.Y
}

// Center returns the midpoint of r.
func (r Rect) Center() Vec2 {
	return r.Origin.Add(r.Size.Scale(0.5))
}

// Union returns the smallest rectangle containing r and o.
// An empty rectangle (zero size) is treated as absorbing.
func (r Rect) Union(o Rect) Rect {
	if r.Size.X == 0 && r.Size.Y == 0 {
		return o
	}
	if o.Size.X == 0 && o.Size.Y == 0 {
		return r
	}
	minX := min(r.Origin.X, o.Origin.X)
	minY := min(r.Origin.Y, o.Origin.Y)
	maxX := max(r.MaxX(), o.MaxX())
	maxY := max(r.MaxY(), o.MaxY())
	return Rect{Origin: Vec2{X: minX, Y: minY}, Size: Vec2{X: maxX - minX, Y: maxY - minY}}
}

// RectI is an axis-aligned rectangle in integer device pixels.
type RectI struct {
	Origin Point2I
	Size   Point2I
}

// NewRectI builds a RectI from origin and size.
func NewRectI(origin, size Point2I) RectI {
	return RectI{Origin: origin, Size: size}
}

// ToRect converts r to float coordinates.
func (r RectI) ToRect() Rect {
	return Rect{Origin: r.Origin.ToVec2(), Size: r.Size.ToVec2()}
}

// WindowSize carries the logical window size and the device pixel scale.
// On high-DPI displays the device size differs from the logical size by
// the backing scale factor.
type WindowSize struct {
	// LogicalSize is the window client area in logical (screen) coordinates.
	LogicalSize Point2I

	// BackingScaleFactor converts logical coordinates to device pixels.
	BackingScaleFactor float32
}

// DeviceSize returns the window size in device pixels.
func (w WindowSize) DeviceSize() Point2I {
	return Point2I{
		X: int32(float32(w.LogicalSize.X) * w.BackingScaleFactor),
		Y: int32(float32(w.LogicalSize.Y) * w.BackingScaleFactor),
	}
}

// Center returns the window center in device pixels as float coordinates.
func (w WindowSize) Center() Vec2 {
	return w.DeviceSize().ToVec2().Scale(0.5)
}

// Color is an 8-bit RGBA color.
type Color struct {
	R, G, B, A uint8
}

// ColorF is a normalized float RGBA color, the form the GPU consumes.
type ColorF struct {
	R, G, B, A float32
}

// ToF32 converts c to normalized float components.
func (c Color) ToF32() ColorF {
	return ColorF{
		R: float32(c.R) / 255.0,
		G: float32(c.G) / 255.0,
		B: float32(c.B) / 255.0,
		A: float32(c.A) / 255.0,
	}
}

// Background and environment palette.
var (
	// LightBackground is the default light background color.
	LightBackground = Color{R: 248, G: 248, B: 248, A: 255}

	// DarkBackground is the dark background color.
	DarkBackground = Color{R: 32, G: 32, B: 32, A: 255}

	// TransparentBackground clears to fully transparent black.
	TransparentBackground = Color{}

	// GroundSolidColor fills the 3D environment ground plane.
	GroundSolidColor = Color{R: 80, G: 80, B: 80, A: 255}

	// GroundLineColor draws the ground plane gridlines.
	GroundLineColor = Color{R: 127, G: 127, B: 127, A: 255}
)

// GridlineCount is the number of gridlines drawn across the ground plane.
const GridlineCount = 10
