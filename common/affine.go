package common

import (
	"github.com/chewxy/math32"
)

// Matrix2D is a 2D affine transform mapping scene coordinates to device
// coordinates:
//
//	x' = M11*x + M12*y + Tx
//	y' = M21*x + M22*y + Ty
//
// The viewer only ever composes translation, uniform scale, and rotation,
// so the linear part stays a rotation times a uniform scale.
type Matrix2D struct {
	M11, M12 float32
	M21, M22 float32
	Tx, Ty   float32
}

// IdentityMatrix2D returns the identity transform.
func IdentityMatrix2D() Matrix2D {
	return Matrix2D{M11: 1, M22: 1}
}

// PostTranslate returns t(v) ∘ m: apply m first, then translate by v.
func (m Matrix2D) PostTranslate(v Vec2) Matrix2D {
	m.Tx += v.X
	m.Ty += v.Y
	return m
}

// PostScale returns s(v) ∘ m: apply m first, then scale per-axis by v.
func (m Matrix2D) PostScale(v Vec2) Matrix2D {
	m.M11 *= v.X
	m.M12 *= v.X
	m.Tx *= v.X
	m.M21 *= v.Y
	m.M22 *= v.Y
	m.Ty *= v.Y
	return m
}

// PostRotate returns r(theta) ∘ m: apply m first, then rotate by theta
// about the origin.
func (m Matrix2D) PostRotate(theta float32) Matrix2D {
	c := math32.Cos(theta)
	s := math32.Sin(theta)
	return Matrix2D{
		M11: c*m.M11 - s*m.M21,
		M12: c*m.M12 - s*m.M22,
		M21: s*m.M11 + c*m.M21,
		M22: s*m.M12 + c*m.M22,
		Tx:  c*m.Tx - s*m.Ty,
		Ty:  s*m.Tx + c*m.Ty,
	}
}

// Rotation extracts the rotation angle of the linear part. Valid because the
// linear part is always rotation times uniform scale.
func (m Matrix2D) Rotation() float32 {
	return math32.Atan2(m.M21, m.M11)
}

// Apply transforms the point p.
func (m Matrix2D) Apply(p Vec2) Vec2 {
	return Vec2{
		X: m.M11*p.X + m.M12*p.Y + m.Tx,
		Y: m.M21*p.X + m.M22*p.Y + m.Ty,
	}
}

// Mat4 lifts the affine transform to a 4x4 column-major matrix with Z
// untouched, for uploading as a GPU uniform.
func (m Matrix2D) Mat4() Mat4 {
	out := IdentityMat4()
	out[0] = m.M11
	out[1] = m.M21
	out[4] = m.M12
	out[5] = m.M22
	out[12] = m.Tx
	out[13] = m.Ty
	return out
}
