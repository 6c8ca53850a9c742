package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/sim/simtest"
	"github.com/banshee-data/thermalsim/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func newTestLoop(t *testing.T, opts Options) (*Loop, *simtest.Fake, *timeutil.MockClock) {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	fake := simtest.New()
	fake.Poses["Poacher_1"] = geom.Pose{Position: geom.Vector3{X: 10}, Orientation: geom.IdentityQuaternion()}
	clock := timeutil.NewMockClock(epoch)
	opts.Clock = clock
	return NewLoop(fake, opts), fake, clock
}

func TestLoop_ZeroDurationCapturesNothing(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	assert.Equal(t, StateIdle, l.State())

	require.NoError(t, l.Start("Poacher_1", "0", 0))
	assert.Equal(t, StateCapturing, l.State())

	_, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateStopped, l.State())
	assert.Equal(t, 0, l.Frames())
	assert.Empty(t, fake.Calls())
	assert.Equal(t, ReasonElapsed, l.Summary().Reason)
}

func TestLoop_Lifecycle(t *testing.T) {
	l, _, _ := newTestLoop(t, Options{})

	_, _, err := l.Tick(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, l.Start("Poacher_1", "0", -time.Second), ErrInvalidDuration)

	require.NoError(t, l.Start("Poacher_1", "0", time.Second))
	assert.ErrorIs(t, l.Start("Poacher_1", "0", time.Second), ErrAlreadyStarted)
	assert.NotEmpty(t, l.Summary().RunID)

	l.Cancel()
	_, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, ReasonCancelled, l.Summary().Reason)

	// Stopped is terminal.
	_, _, err = l.Tick(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, l.Start("Poacher_1", "0", time.Second), ErrStopped)
}

func TestLoop_CancelIdle(t *testing.T) {
	l, _, _ := newTestLoop(t, Options{})
	l.Cancel()
	assert.Equal(t, StateStopped, l.State())
	assert.ErrorIs(t, l.Start("Poacher_1", "0", time.Second), ErrStopped)
}

func TestLoop_CapturesAndProjects(t *testing.T) {
	l, fake, clock := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", time.Second))

	frame, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, frame.Index)
	assert.True(t, frame.Visible)
	assert.InDelta(t, 320, frame.Pixel.Col, 1e-9)
	assert.InDelta(t, 240, frame.Pixel.Row, 1e-9)
	assert.Equal(t, l.Summary().RunID, frame.RunID)
	require.Len(t, frame.Images, 1)
	assert.Equal(t, sim.ImageInfrared, frame.Images[0].Kind)

	fake.Poses["Poacher_1"] = geom.Pose{Position: geom.Vector3{X: 10, Y: 2}, Orientation: geom.IdentityQuaternion()}
	clock.Advance(500 * time.Millisecond)
	frame, ok, err = l.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, frame.Index)
	assert.Equal(t, 500*time.Millisecond, frame.Elapsed)
	assert.InDelta(t, 384, frame.Pixel.Col, 1e-9)

	clock.Advance(500 * time.Millisecond)
	_, ok, err = l.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, l.Summary().Frames)
}

func TestLoop_TargetNotVisible(t *testing.T) {
	tests := []struct {
		name string
		pose geom.Pose
	}{
		{"missing target", geom.NaNPose()},
		{"behind camera", geom.Pose{Position: geom.Vector3{X: -10}}},
		{"outside field of view", geom.Pose{Position: geom.Vector3{X: 1, Y: 50}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, fake, _ := newTestLoop(t, Options{})
			fake.Poses["Poacher_1"] = tt.pose
			require.NoError(t, l.Start("Poacher_1", "0", time.Second))

			frame, ok, err := l.Tick(context.Background())
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, frame.Visible)
			assert.Equal(t, 1, l.Frames())
		})
	}
}

func TestLoop_RetriesOnce(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))

	fake.FailNext(simtest.OpCaptureImages, 1)
	_, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, fake.CallsOf(simtest.OpCaptureImages), 2)

	fake.FailNext(simtest.OpCaptureImages, 2)
	_, ok, err = l.Tick(context.Background())
	assert.False(t, ok)

	var cf *CaptureFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, OpCapture, cf.Op)
	assert.Equal(t, 1, cf.Frames)
	assert.ErrorIs(t, err, simtest.ErrInjected)
	assert.Equal(t, StateStopped, l.State())

	s := l.Summary()
	assert.Equal(t, ReasonCaptureFailed, s.Reason)
	assert.Same(t, cf, s.Err)
}

func TestLoop_PoseQueryFailure(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))
	fake.FailNext(simtest.OpGetObjectPose, 2)

	_, _, err := l.Tick(context.Background())
	var cf *CaptureFailure
	require.ErrorAs(t, err, &cf)
	assert.Equal(t, OpPoseQuery, cf.Op)
	assert.Equal(t, 0, cf.Frames)
	assert.Empty(t, fake.CallsOf(simtest.OpCaptureImages))
}

func TestLoop_TimeoutCountsAsFailure(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{CallTimeout: 10 * time.Millisecond})
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))
	fake.Hang(simtest.OpCaptureImages, true)

	_, _, err := l.Tick(context.Background())
	var cf *CaptureFailure
	require.ErrorAs(t, err, &cf)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Len(t, fake.CallsOf(simtest.OpCaptureImages), 2)
}

func TestLoop_CameraInfoFallback(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	fake.OmitProjection = true
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))

	frame, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, frame.Visible)
	assert.Len(t, fake.CallsOf(simtest.OpGetCameraInfo), 1)
	assert.Equal(t, 640, frame.Camera.ImageWidth)
}

func TestLoop_CaptureScene(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{CaptureScene: true})
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))

	frame, _, err := l.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, frame.Images, 2)
	calls := fake.CallsOf(simtest.OpCaptureImages)
	require.Len(t, calls, 1)
	assert.Equal(t, []sim.ImageKind{sim.ImageInfrared, sim.ImageScene}, calls[0].Kinds)
}

func TestLoop_Placement(t *testing.T) {
	placement := DefaultPlacement()
	l, fake, clock := newTestLoop(t, Options{Placement: &placement})
	fake.Poses["Poacher_1"] = geom.Pose{Position: geom.Vector3{X: 5, Y: 7}, Orientation: geom.IdentityQuaternion()}
	require.NoError(t, l.Start("Poacher_1", "0", time.Minute))

	frame, ok, err := l.Tick(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	moves := fake.CallsOf(simtest.OpSetVehiclePose)
	require.Len(t, moves, 1)
	assert.Equal(t, geom.Vector3{X: 5, Y: 7, Z: -122}, moves[0].Pose.Position)
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, clock.Sleeps())

	// Looking straight down at the target puts it in the image centre.
	assert.True(t, frame.Visible)
	assert.InDelta(t, 320, frame.Pixel.Col, 1e-6)
	assert.InDelta(t, 240, frame.Pixel.Row, 1e-6)
	assert.Equal(t, DefaultSettleDelay, frame.Elapsed)
}

func TestLoop_Run(t *testing.T) {
	l, _, clock := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", 3*time.Second))

	var indexes []int
	summary, err := l.Run(context.Background(), time.Second, func(f Frame) {
		indexes = append(indexes, f.Index)
		clock.Advance(time.Second)
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, indexes)
	assert.Equal(t, 3, summary.Frames)
	assert.Equal(t, ReasonElapsed, summary.Reason)
	assert.Equal(t, epoch.Add(3*time.Second), summary.StoppedAt)
	assert.True(t, clock.Tickers()[0].Stopped())
}

func TestLoop_RunCancelled(t *testing.T) {
	l, _, clock := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	summary, err := l.Run(ctx, time.Second, func(f Frame) {
		if f.Index == 1 {
			cancel()
		}
		clock.Advance(time.Second)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Frames)
	assert.Equal(t, ReasonCancelled, summary.Reason)
}

func TestLoop_RunZeroDuration(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", 0))

	summary, err := l.Run(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Frames)
	assert.Empty(t, fake.CallsOf(simtest.OpCaptureImages))
}

func TestLoop_RunRejectsNonPositiveInterval(t *testing.T) {
	l, _, _ := newTestLoop(t, Options{})
	require.NoError(t, l.Start("Poacher_1", "0", time.Second))

	_, err := l.Run(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
	assert.Equal(t, StateCapturing, l.State())
}

func TestLoop_CancelDuringCaptureStopsCleanly(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{})
	fake.Hang(simtest.OpCaptureImages, true)
	require.NoError(t, l.Start("Poacher_1", "0", time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, ok, err := l.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, StateStopped, l.State())
	s := l.Summary()
	assert.Equal(t, ReasonCancelled, s.Reason)
	assert.NoError(t, s.Err)
	assert.Len(t, fake.CallsOf(simtest.OpCaptureImages), 1, "an interrupted call is not retried")
}

func TestLoop_CancelMethodDuringCaptureStopsCleanly(t *testing.T) {
	l, fake, _ := newTestLoop(t, Options{CallTimeout: 20 * time.Millisecond})
	fake.Hang(simtest.OpCaptureImages, true)
	require.NoError(t, l.Start("Poacher_1", "0", time.Hour))

	time.AfterFunc(5*time.Millisecond, l.Cancel)

	summary, err := l.Run(context.Background(), time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, summary.Reason)
	assert.Equal(t, 0, summary.Frames)
}
