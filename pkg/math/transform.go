// Package math provides the transform arithmetic used when flattening a
// scene graph into world-space collision geometry.
package math

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a rigid transform with uniform scale.
// A point p maps to Translation + Rotation·p·Scale.
type Transform struct {
	Rotation    mgl32.Mat3
	Translation mgl32.Vec3
	Velocity    mgl32.Vec3
	Scale       float32
}

// Identity returns a transform that leaves points unchanged.
func Identity() Transform {
	return Transform{
		Rotation: mgl32.Ident3(),
		Scale:    1,
	}
}

// MulAdd returns b + a·c·scale.
func MulAdd(a mgl32.Mat3, b, c mgl32.Vec3, scale float32) mgl32.Vec3 {
	return b.Add(a.Mul3x1(c).Mul(scale))
}

// Compose returns the transform of child expressed in t's parent frame.
// Velocity composes like a position so that animated nodes keep their
// authored offsets.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Rotation:    t.Rotation.Mul3(child.Rotation),
		Translation: MulAdd(t.Rotation, t.Translation, child.Translation, t.Scale),
		Velocity:    MulAdd(t.Rotation, t.Velocity, child.Velocity, t.Scale),
		Scale:       t.Scale * child.Scale,
	}
}

// Apply transforms a point.
func (t Transform) Apply(p mgl32.Vec3) mgl32.Vec3 {
	return MulAdd(t.Rotation, t.Translation, p, t.Scale)
}

// ApproxEqual reports whether two transforms match within eps.
func (t Transform) ApproxEqual(other Transform, eps float32) bool {
	return t.Rotation.ApproxEqualThreshold(other.Rotation, eps) &&
		t.Translation.ApproxEqualThreshold(other.Translation, eps) &&
		t.Velocity.ApproxEqualThreshold(other.Velocity, eps) &&
		mgl32.FloatEqualThreshold(t.Scale, other.Scale, eps)
}

// Mat3FromRowMajor builds a rotation from nine row-major floats, the
// layout used on disk.
func Mat3FromRowMajor(m [9]float32) mgl32.Mat3 {
	return mgl32.Mat3FromRows(
		mgl32.Vec3{m[0], m[1], m[2]},
		mgl32.Vec3{m[3], m[4], m[5]},
		mgl32.Vec3{m[6], m[7], m[8]},
	)
}

// RowMajor flattens a rotation into nine row-major floats.
func RowMajor(m mgl32.Mat3) [9]float32 {
	r0, r1, r2 := m.Row(0), m.Row(1), m.Row(2)
	return [9]float32{
		r0[0], r0[1], r0[2],
		r1[0], r1[1], r1[2],
		r2[0], r2[1], r2[2],
	}
}
