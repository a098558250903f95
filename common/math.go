package common

import (
	"github.com/chewxy/math32"
)

// Mat4 is a 4x4 matrix stored in column-major order (OpenGL/WebGPU convention).
type Mat4 [16]float32

// IdentityMat4 returns the identity matrix.
func IdentityMat4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m * n.
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	Mul4(out[:], m[:], n[:])
	return out
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order.
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// NewPerspective creates a perspective projection matrix.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - Mat4: the projection matrix
func NewPerspective(fovY, aspect, near, far float32) Mat4 {
	f := 1.0 / math32.Tan(fovY/2.0)
	m := IdentityMat4()
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1.0
	m[14] = (near * far) / (near - far)
	m[15] = 0.0
	return m
}

// NewTranslation creates a translation matrix.
func NewTranslation(x, y, z float32) Mat4 {
	m := IdentityMat4()
	m[12] = x
	m[13] = y
	m[14] = z
	return m
}

// NewScaling creates a per-axis scale matrix.
func NewScaling(x, y, z float32) Mat4 {
	m := IdentityMat4()
	m[0] = x
	m[5] = y
	m[10] = z
	return m
}

// NewUniformScaling creates a uniform scale matrix.
func NewUniformScaling(s float32) Mat4 {
	return NewScaling(s, s, s)
}

// NewRotationX creates a rotation matrix about the X axis.
func NewRotationX(theta float32) Mat4 {
	c := math32.Cos(theta)
	s := math32.Sin(theta)
	m := IdentityMat4()
	m[5] = c
	m[6] = s
	m[9] = -s
	m[10] = c
	return m
}

// NewRotationY creates a rotation matrix about the Y axis.
func NewRotationY(theta float32) Mat4 {
	c := math32.Cos(theta)
	s := math32.Sin(theta)
	m := IdentityMat4()
	m[0] = c
	m[2] = -s
	m[8] = s
	m[10] = c
	return m
}
