// Package geom provides the vector, quaternion and rotation primitives shared
// by the scene projector and the simulation collaborator.
//
// Coordinate convention: world frame is NED (X=north, Y=east, Z=down) as
// reported by the simulator. Angles are radians unless a name says otherwise.
package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vector3 is a point or direction in world coordinates (metres).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// IsFinite reports whether every component is neither NaN nor ±Inf.
func (v Vector3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Quaternion is a unit rotation quaternion.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IdentityQuaternion returns the no-rotation quaternion.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// IsFinite reports whether every component is neither NaN nor ±Inf.
func (q Quaternion) IsFinite() bool {
	return isFinite(q.W) && isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z)
}

// Pose is a position plus orientation.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// NaNPose is what the simulator reports for an object it cannot find.
func NaNPose() Pose {
	nan := math.NaN()
	return Pose{
		Position:    Vector3{X: nan, Y: nan, Z: nan},
		Orientation: Quaternion{W: nan, X: nan, Y: nan, Z: nan},
	}
}

// IsNaN reports whether any position or orientation component is NaN,
// i.e. the pose belongs to an object that was not detected.
func (p Pose) IsNaN() bool {
	return math.IsNaN(p.Position.X) || math.IsNaN(p.Position.Y) || math.IsNaN(p.Position.Z) ||
		math.IsNaN(p.Orientation.W) || math.IsNaN(p.Orientation.X) ||
		math.IsNaN(p.Orientation.Y) || math.IsNaN(p.Orientation.Z)
}

// Euler holds pitch (about Y), roll (about X) and yaw (about Z) in radians.
type Euler struct {
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// ToEuler converts a quaternion to pitch/roll/yaw.
// The pitch asin argument is clamped to [-1, 1]; floating-point overshoot
// near the poles would otherwise produce NaN.
func ToEuler(q Quaternion) Euler {
	ysqr := q.Y * q.Y

	// roll (x-axis rotation)
	t0 := 2.0 * (q.W*q.X + q.Y*q.Z)
	t1 := 1.0 - 2.0*(q.X*q.X+ysqr)
	roll := math.Atan2(t0, t1)

	// pitch (y-axis rotation)
	t2 := 2.0 * (q.W*q.Y - q.Z*q.X)
	t2 = math.Max(-1.0, math.Min(1.0, t2))
	pitch := math.Asin(t2)

	// yaw (z-axis rotation)
	t3 := 2.0 * (q.W*q.Z + q.X*q.Y)
	t4 := 1.0 - 2.0*(ysqr+q.Z*q.Z)
	yaw := math.Atan2(t3, t4)

	return Euler{Pitch: pitch, Roll: roll, Yaw: yaw}
}

// ToQuaternion is the inverse of ToEuler for |pitch| < π/2.
func ToQuaternion(e Euler) Quaternion {
	cy := math.Cos(e.Yaw * 0.5)
	sy := math.Sin(e.Yaw * 0.5)
	cr := math.Cos(e.Roll * 0.5)
	sr := math.Sin(e.Roll * 0.5)
	cp := math.Cos(e.Pitch * 0.5)
	sp := math.Sin(e.Pitch * 0.5)

	return Quaternion{
		W: cy*cr*cp + sy*sr*sp,
		X: cy*sr*cp - sy*cr*sp,
		Y: cy*cr*sp + sy*sr*cp,
		Z: sy*cr*cp - cy*sr*sp,
	}
}

// RotationMatrix builds Rz(yaw)·Ry(pitch)·Rx(roll): roll is applied first,
// then pitch, then yaw. Projection depends on this exact order.
func RotationMatrix(e Euler) *mat.Dense {
	sy, cy := math.Sincos(e.Yaw)
	sp, cp := math.Sincos(e.Pitch)
	sr, cr := math.Sincos(e.Roll)

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	})
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})
	rz := mat.NewDense(3, 3, []float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	})

	var ryrx, r mat.Dense
	ryrx.Mul(ry, rx)
	r.Mul(rz, &ryrx)
	return &r
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * math.Pi / 180.0 }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * 180.0 / math.Pi }

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
