package projection

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forwardCamera() CameraFrame {
	return CameraFrame{
		Orientation: geom.IdentityQuaternion(),
		Projection:  Perspective(90, 640, 480, 0.1),
		ImageWidth:  640,
		ImageHeight: 480,
	}
}

func TestProjectPoint_CentreAndOffsets(t *testing.T) {
	t.Parallel()
	cam := forwardCamera()

	px, err := ProjectPoint(geom.Vector3{X: 10}, cam)
	require.NoError(t, err)
	assert.InDelta(t, 320, px.Col, 1e-9)
	assert.InDelta(t, 240, px.Row, 1e-9)

	// hfov 90° gives fx = 1, so y/x = 0.2 lands at 60% of the width.
	px, err = ProjectPoint(geom.Vector3{X: 10, Y: 2}, cam)
	require.NoError(t, err)
	assert.InDelta(t, 0.6*640, px.Col, 1e-9)
	assert.InDelta(t, 240, px.Row, 1e-9)
	assert.InDelta(t, -0.2, px.NDCX, 1e-12)

	// Below the optical axis (NED +Z) is lower in the image.
	px, err = ProjectPoint(geom.Vector3{X: 10, Z: 1}, cam)
	require.NoError(t, err)
	assert.Greater(t, px.Row, 240.0)
}

func TestProjectPoint_DownwardCamera(t *testing.T) {
	t.Parallel()

	cam := forwardCamera()
	cam.Position = geom.Vector3{Z: -122}
	cam.Orientation = geom.ToQuaternion(geom.Euler{Pitch: geom.Radians(270)})

	px, err := ProjectPoint(geom.Vector3{}, cam)
	require.NoError(t, err)
	assert.InDelta(t, 320, px.Col, 1e-6)
	assert.InDelta(t, 240, px.Row, 1e-6)

	px, err = ProjectPoint(geom.Vector3{X: 5}, cam)
	require.NoError(t, err)
	assert.InDelta(t, 320, px.Col, 1e-6)
	assert.Less(t, px.Row, 240.0)
}

func TestProjectPoint_OutOfFrame(t *testing.T) {
	t.Parallel()
	cam := forwardCamera()

	tests := []struct {
		name  string
		point geom.Vector3
	}{
		{"at camera position", geom.Vector3{}},
		{"behind camera", geom.Vector3{X: -10}},
		{"beyond right edge", geom.Vector3{X: 1, Y: 5}},
		{"beyond bottom edge", geom.Vector3{X: 1, Z: 5}},
		{"undetected object", geom.NaNPose().Position},
		{"infinite point", geom.Vector3{X: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px, err := ProjectPoint(tt.point, cam)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOutOfFrame), "got %v", err)
			assert.Equal(t, Pixel{}, px)
		})
	}
}

func TestProjectPoint_RequiresPositiveW(t *testing.T) {
	t.Parallel()
	cam := forwardCamera()
	ahead := geom.Vector3{X: 10}
	if _, err := ProjectPoint(ahead, cam); err != nil {
		t.Fatalf("ProjectPoint(ahead) error = %v", err)
	}

	// Flipping the whole matrix keeps NDC unchanged but makes w negative.
	for i := range cam.Projection {
		cam.Projection[i] = -cam.Projection[i]
	}
	if _, err := ProjectPoint(ahead, cam); !errors.Is(err, ErrOutOfFrame) {
		t.Errorf("ProjectPoint(ahead) with negated matrix error = %v, want ErrOutOfFrame", err)
	}
}

func TestProjectPoint_CameraPositionWithNonZeroW(t *testing.T) {
	t.Parallel()

	cam := forwardCamera()
	cam.Position = geom.Vector3{X: 3, Y: -2, Z: 7}
	cam.Projection = Matrix4{
		1, 0, 0, 0.1,
		0, 1, 0, 0.2,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}

	px, err := ProjectPoint(cam.Position, cam)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(px.Col) || math.IsNaN(px.Row))
	assert.InDelta(t, 640*(1-0.1)/2, px.Col, 1e-9)
	assert.InDelta(t, 480*(1+0.2)/2, px.Row, 1e-9)
}

func TestProjectPoint_InvalidImageSize(t *testing.T) {
	t.Parallel()

	cam := forwardCamera()
	cam.ImageWidth = 0
	_, err := ProjectPoint(geom.Vector3{X: 10}, cam)
	assert.ErrorIs(t, err, ErrInvalidImageSize)
}

func TestProjectPoint_NeverReturnsNaN(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		cam := forwardCamera()
		cam.Position = geom.Vector3{X: rng.NormFloat64() * 50, Y: rng.NormFloat64() * 50, Z: rng.NormFloat64() * 50}
		cam.Orientation = geom.ToQuaternion(geom.Euler{
			Pitch: (rng.Float64() - 0.5) * math.Pi,
			Roll:  (rng.Float64() - 0.5) * 2 * math.Pi,
			Yaw:   (rng.Float64() - 0.5) * 2 * math.Pi,
		})
		p := geom.Vector3{X: rng.NormFloat64() * 50, Y: rng.NormFloat64() * 50, Z: rng.NormFloat64() * 50}
		if i%10 == 0 {
			p = cam.Position
		}

		px, err := ProjectPoint(p, cam)
		if err != nil {
			require.ErrorIs(t, err, ErrOutOfFrame)
			continue
		}
		require.False(t, math.IsNaN(px.Col) || math.IsNaN(px.Row))
		require.GreaterOrEqual(t, px.Col, 0.0)
		require.LessOrEqual(t, px.Col, 640.0)
		require.GreaterOrEqual(t, px.Row, 0.0)
		require.LessOrEqual(t, px.Row, 480.0)
	}
}

func TestInFrame(t *testing.T) {
	cam := forwardCamera()
	_, ok := InFrame(geom.Vector3{X: 5}, cam)
	assert.True(t, ok)
	_, ok = InFrame(geom.Vector3{X: -5}, cam)
	assert.False(t, ok)
}

func TestMatrix4IsZero(t *testing.T) {
	assert.True(t, Matrix4{}.IsZero())
	assert.False(t, Perspective(90, 4, 3, 0.1).IsZero())
}
