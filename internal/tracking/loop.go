// Package tracking runs the capture loop that keeps a target in view: on
// every tick it reads the target pose, captures infrared imagery and
// projects the target into the captured image.
package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/monitoring"
	"github.com/banshee-data/thermalsim/internal/projection"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/timeutil"
)

// State of a loop. Stopped is terminal.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StateStopped   State = "stopped"
)

// StopReason says why a loop stopped.
type StopReason string

const (
	ReasonNone          StopReason = ""
	ReasonElapsed       StopReason = "duration_elapsed"
	ReasonCancelled     StopReason = "cancelled"
	ReasonCaptureFailed StopReason = "capture_failed"
)

// DefaultSettleDelay is the wait after moving the vehicle before capturing.
const DefaultSettleDelay = 100 * time.Millisecond

// Placement positions the vehicle directly above the target before each
// capture. Altitude is the NED z coordinate, so negative is up. Angles are
// radians.
type Placement struct {
	Altitude float64
	Pitch    float64
	Roll     float64
	Yaw      float64
}

// DefaultPlacement looks straight down from 122 m.
func DefaultPlacement() Placement {
	return Placement{Altitude: -122, Pitch: geom.Radians(270)}
}

// Pose returns the vehicle pose above target.
func (p Placement) Pose(target geom.Vector3) geom.Pose {
	return geom.Pose{
		Position:    geom.Vector3{X: target.X, Y: target.Y, Z: p.Altitude},
		Orientation: geom.ToQuaternion(geom.Euler{Pitch: p.Pitch, Roll: p.Roll, Yaw: p.Yaw}),
	}
}

// Options configures a Loop. Zero values are usable.
type Options struct {
	Clock        timeutil.Clock
	CallTimeout  time.Duration // per collaborator call; zero means unbounded
	CaptureScene bool          // also capture a scene image each frame
	Placement    *Placement    // nil leaves the vehicle where it is
	SettleDelay  time.Duration // after placement; zero uses DefaultSettleDelay
}

// Frame is what one successful tick reports.
type Frame struct {
	RunID      string
	Index      int
	Elapsed    time.Duration
	CapturedAt time.Time
	Target     geom.Pose
	Camera     projection.CameraFrame
	Pixel      projection.Pixel
	Visible    bool
	Images     []sim.ImageResponse
}

// Summary describes a loop's run so far.
type Summary struct {
	RunID     string
	Target    string
	Camera    string
	Duration  time.Duration
	State     State
	Frames    int
	StartedAt time.Time
	StoppedAt time.Time
	Reason    StopReason
	Err       error
}

// Loop captures frames of one target from one camera until its duration
// elapses, it is cancelled, or an operation fails twice in a row. A Loop is
// single-use.
type Loop struct {
	scene sim.Collaborator
	clock timeutil.Clock
	opts  Options

	tickMu    sync.Mutex // serializes Tick
	cancelled atomic.Bool

	mu        sync.Mutex
	state     State
	runID     string
	target    string
	camera    string
	duration  time.Duration
	startedAt time.Time
	stoppedAt time.Time
	frames    int
	reason    StopReason
	err       error
}

var logf = monitoring.Tagged("tracking")

// NewLoop returns an idle loop over scene.
func NewLoop(scene sim.Collaborator, opts Options) *Loop {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	return &Loop{
		scene: sim.WithTimeout(scene, opts.CallTimeout),
		clock: opts.Clock,
		opts:  opts,
		state: StateIdle,
	}
}

// Start moves the loop from Idle to Capturing.
func (l *Loop) Start(target, camera string, duration time.Duration) error {
	if duration < 0 {
		return ErrInvalidDuration
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateCapturing:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}
	l.state = StateCapturing
	l.runID = uuid.NewString()
	l.target = target
	l.camera = camera
	l.duration = duration
	l.startedAt = l.clock.Now()
	logf("run %s: tracking %q with camera %q for %v", l.runID, target, camera, duration)
	return nil
}

// Cancel asks the loop to stop. A capturing loop stops at its next tick; an
// idle loop stops immediately.
func (l *Loop) Cancel() {
	l.cancelled.Store(true)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateIdle {
		l.stopLocked(ReasonCancelled, nil)
	}
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Frames returns the number of completed frames.
func (l *Loop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// Summary returns a snapshot of the run.
func (l *Loop) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Summary{
		RunID:     l.runID,
		Target:    l.target,
		Camera:    l.camera,
		Duration:  l.duration,
		State:     l.state,
		Frames:    l.frames,
		StartedAt: l.startedAt,
		StoppedAt: l.stoppedAt,
		Reason:    l.reason,
		Err:       l.err,
	}
}

func (l *Loop) stopLocked(reason StopReason, err error) {
	if l.state == StateStopped {
		return
	}
	l.state = StateStopped
	l.reason = reason
	l.err = err
	l.stoppedAt = l.clock.Now()
	logf("run %s: stopped after %d frames (%s)", l.runID, l.frames, reason)
}

// Tick performs one iteration. The stop check runs first, so a loop whose
// duration has already elapsed stops without capturing; ok is then false and
// err nil. On a second consecutive failure of any operation the loop stops
// and err is a *CaptureFailure.
func (l *Loop) Tick(ctx context.Context) (frame Frame, ok bool, err error) {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	l.mu.Lock()
	switch l.state {
	case StateIdle:
		l.mu.Unlock()
		return Frame{}, false, ErrNotStarted
	case StateStopped:
		l.mu.Unlock()
		return Frame{}, false, ErrStopped
	}
	elapsed := l.clock.Since(l.startedAt)
	switch {
	case l.cancelled.Load() || ctx.Err() != nil:
		l.stopLocked(ReasonCancelled, nil)
	case elapsed >= l.duration:
		l.stopLocked(ReasonElapsed, nil)
	}
	if l.state == StateStopped {
		l.mu.Unlock()
		return Frame{}, false, nil
	}
	runID, target, camera, index := l.runID, l.target, l.camera, l.frames
	l.mu.Unlock()

	frame, op, err := l.capture(ctx, target, camera)
	if err != nil && (ctx.Err() != nil || l.cancelled.Load()) {
		// A call interrupted by the caller is a cancellation, not a failure.
		l.mu.Lock()
		l.stopLocked(ReasonCancelled, nil)
		l.mu.Unlock()
		return Frame{}, false, nil
	}
	if err != nil {
		l.mu.Lock()
		failure := &CaptureFailure{Op: op, Frames: l.frames, Err: err}
		l.stopLocked(ReasonCaptureFailed, failure)
		l.mu.Unlock()
		return Frame{}, false, failure
	}

	frame.RunID = runID
	frame.Index = index
	frame.CapturedAt = l.clock.Now()

	l.mu.Lock()
	frame.Elapsed = frame.CapturedAt.Sub(l.startedAt)
	l.frames++
	l.mu.Unlock()
	return frame, true, nil
}

func (l *Loop) capture(ctx context.Context, target, camera string) (Frame, Op, error) {
	var f Frame

	err := l.retry(ctx, OpPoseQuery, func(ctx context.Context) error {
		pose, err := l.scene.GetObjectPose(ctx, target)
		f.Target = pose
		return err
	})
	if err != nil {
		return f, OpPoseQuery, err
	}
	found := !f.Target.IsNaN()
	if !found {
		logf("target %q not found in scene", target)
	}

	if l.opts.Placement != nil && found {
		vehicle := l.opts.Placement.Pose(f.Target.Position)
		err := l.retry(ctx, OpPlacement, func(ctx context.Context) error {
			return l.scene.SetVehiclePose(ctx, vehicle, true)
		})
		if err != nil {
			return f, OpPlacement, err
		}
		l.clock.Sleep(l.opts.SettleDelay)
	}

	requests := []sim.ImageRequest{{CameraName: camera, Kind: sim.ImageInfrared}}
	if l.opts.CaptureScene {
		requests = append(requests, sim.ImageRequest{CameraName: camera, Kind: sim.ImageScene})
	}
	err = l.retry(ctx, OpCapture, func(ctx context.Context) error {
		images, err := l.scene.CaptureImages(ctx, requests)
		if err == nil && len(images) != len(requests) {
			err = errors.New("capture returned fewer images than requested")
		}
		f.Images = images
		return err
	})
	if err != nil {
		return f, OpCapture, err
	}

	ir := f.Images[0]
	cam, ok := ir.CameraFrame()
	if !ok {
		err := l.retry(ctx, OpCameraInfo, func(ctx context.Context) error {
			info, err := l.scene.GetCameraInfo(ctx, camera)
			cam = projection.CameraFrame{
				Position:    info.Pose.Position,
				Orientation: info.Pose.Orientation,
				Projection:  info.Projection,
				ImageWidth:  ir.Width,
				ImageHeight: ir.Height,
			}
			return err
		})
		if err != nil {
			return f, OpCameraInfo, err
		}
	}
	f.Camera = cam

	if !found {
		return f, "", nil
	}
	px, err := projection.ProjectPoint(f.Target.Position, cam)
	switch {
	case errors.Is(err, projection.ErrOutOfFrame):
	case err != nil:
		return f, OpProject, err
	default:
		f.Pixel = px
		f.Visible = true
	}
	return f, "", nil
}

// retry runs fn and, if it fails while ctx is still live, runs it once more.
func (l *Loop) retry(ctx context.Context, op Op, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	logf("%s failed, retrying once: %v", op, err)
	return fn(ctx)
}

// Run ticks the loop immediately and then on every interval of the loop's
// clock until it stops. onFrame, if non-nil, sees every frame in order. The
// returned error is the CaptureFailure that stopped the loop, if any.
func (l *Loop) Run(ctx context.Context, interval time.Duration, onFrame func(Frame)) (Summary, error) {
	if interval <= 0 {
		return l.Summary(), ErrInvalidInterval
	}
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		frame, ok, err := l.Tick(ctx)
		if err != nil {
			return l.Summary(), err
		}
		if !ok {
			return l.Summary(), nil
		}
		if onFrame != nil {
			onFrame(frame)
		}
		select {
		case <-ctx.Done():
		case <-ticker.C():
		}
	}
}
