package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const tol = 1e-9

func TestEulerRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Euler{
		{Pitch: 0, Roll: 0, Yaw: 0},
		{Pitch: 0.3, Roll: -0.2, Yaw: 1.1},
		{Pitch: -1.2, Roll: 2.5, Yaw: -3.0},
		{Pitch: 1.5, Roll: 0.1, Yaw: 0.4},
		{Pitch: -0.7, Roll: -3.1, Yaw: 3.1},
	}
	for _, want := range cases {
		got := ToEuler(ToQuaternion(want))
		if math.Abs(got.Pitch-want.Pitch) > 1e-7 || math.Abs(got.Roll-want.Roll) > 1e-7 || math.Abs(got.Yaw-want.Yaw) > 1e-7 {
			t.Errorf("ToEuler(ToQuaternion(%+v)) = %+v", want, got)
		}
	}
}

func TestToEulerClampsAtPole(t *testing.T) {
	t.Parallel()

	// Slightly denormalised quaternion at pitch = +90° pushes the asin
	// argument above 1.
	s := math.Sqrt(0.5) * 1.0000001
	e := ToEuler(Quaternion{W: s, Y: s})
	require.False(t, math.IsNaN(e.Pitch))
	assert.InDelta(t, math.Pi/2, e.Pitch, 1e-6)
}

func TestRotationMatrixOrder(t *testing.T) {
	t.Parallel()

	// Yaw of 90° maps north onto east.
	r := RotationMatrix(Euler{Yaw: math.Pi / 2})
	v := mat.NewVecDense(3, []float64{1, 0, 0})
	var out mat.VecDense
	out.MulVec(r, v)
	assert.InDelta(t, 0, out.AtVec(0), tol)
	assert.InDelta(t, 1, out.AtVec(1), tol)
	assert.InDelta(t, 0, out.AtVec(2), tol)

	// Roll first, then pitch: x axis is untouched by roll, then pitched down.
	r = RotationMatrix(Euler{Roll: math.Pi / 2, Pitch: math.Pi / 2})
	out.MulVec(r, v)
	assert.InDelta(t, 0, out.AtVec(0), tol)
	assert.InDelta(t, 0, out.AtVec(1), tol)
	assert.InDelta(t, -1, out.AtVec(2), tol)
}

func TestRotationMatrixIsOrthonormal(t *testing.T) {
	t.Parallel()

	r := RotationMatrix(Euler{Pitch: 0.4, Roll: -1.3, Yaw: 2.2})
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	assert.True(t, mat.EqualApprox(&rtr, eye3(), 1e-12))
	assert.InDelta(t, 1.0, mat.Det(r), 1e-12)
}

func TestNaNPose(t *testing.T) {
	t.Parallel()

	if !NaNPose().IsNaN() {
		t.Error("NaNPose().IsNaN() = false")
	}
	if (Pose{Orientation: IdentityQuaternion()}).IsNaN() {
		t.Error("identity pose reported as NaN")
	}

	tests := []struct {
		name string
		v    Vector3
		want bool
	}{
		{"finite", Vector3{X: 1, Y: 2, Z: 3}, true},
		{"nan pose position", NaNPose().Position, false},
		{"infinite x", Vector3{X: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.v.IsFinite(); got != tt.want {
			t.Errorf("%s: IsFinite() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAngleConversion(t *testing.T) {
	assert.InDelta(t, math.Pi, Radians(180), tol)
	assert.InDelta(t, 270, Degrees(Radians(270)), tol)
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
