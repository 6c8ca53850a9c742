// Package simtest provides a scriptable sim.Collaborator for unit tests.
package simtest

import (
	"context"
	"errors"
	"sync"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/projection"
	"github.com/banshee-data/thermalsim/internal/sim"
)

// ErrInjected is returned by operations scripted to fail.
var ErrInjected = errors.New("injected collaborator failure")

// Op names a collaborator operation for failure scripting.
type Op string

const (
	OpGetObjectPose     Op = "GetObjectPose"
	OpSetObjectPose     Op = "SetObjectPose"
	OpSetVehiclePose    Op = "SetVehiclePose"
	OpSetSegmentationID Op = "SetSegmentationID"
	OpCaptureImages     Op = "CaptureImages"
	OpGetCameraInfo     Op = "GetCameraInfo"
	OpListSceneObjects  Op = "ListSceneObjects"
)

// Call records one collaborator invocation.
type Call struct {
	Op      Op
	Name    string // object name, pattern or camera
	ID      int
	IsRegex bool
	Kinds   []sim.ImageKind
	Pose    geom.Pose
}

// Fake is a sim.Collaborator whose answers and failures are set by the test.
// The zero value is not usable; call New.
type Fake struct {
	mu sync.Mutex

	Poses        map[string]geom.Pose // unknown names yield a NaN pose
	NoMatch      map[string]bool      // patterns that match no object
	PatternErr   map[string]error     // patterns whose assignment fails
	ResetMatches bool                 // result for the wildcard reset
	Camera       sim.CameraInfo
	Width        int
	Height       int
	// OmitProjection leaves the projection matrix off image responses, so
	// callers must fall back to GetCameraInfo.
	OmitProjection bool
	Objects        []string

	calls    []Call
	failures map[Op]int
	hang     map[Op]bool
	ids      map[string]int
}

// New returns a Fake with a forward-looking 640x480 camera at the origin.
func New() *Fake {
	return &Fake{
		Poses:        make(map[string]geom.Pose),
		NoMatch:      make(map[string]bool),
		PatternErr:   make(map[string]error),
		ResetMatches: true,
		Camera: sim.CameraInfo{
			Pose:        geom.Pose{Orientation: geom.IdentityQuaternion()},
			Projection:  projection.Perspective(90, 640, 480, 0.1),
			FieldOfView: 90,
		},
		Width:    640,
		Height:   480,
		failures: make(map[Op]int),
		hang:     make(map[Op]bool),
		ids:      make(map[string]int),
	}
}

// FailNext makes the next n calls of op return ErrInjected.
func (f *Fake) FailNext(op Op, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = n
}

// Hang makes every call of op block until its context is done.
func (f *Fake) Hang(op Op, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[op] = on
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns the recorded calls of one operation.
func (f *Fake) CallsOf(op Op) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// SegmentationID returns the last ID set for pattern.
func (f *Fake) SegmentationID(pattern string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[pattern]
	return id, ok
}

// begin records the call and applies scripted failures. It must be called
// without f.mu held.
func (f *Fake) begin(ctx context.Context, c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hang := f.hang[c.Op]
	fail := f.failures[c.Op] > 0
	if fail {
		f.failures[c.Op]--
	}
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return ErrInjected
	}
	return ctx.Err()
}

func (f *Fake) GetObjectPose(ctx context.Context, name string) (geom.Pose, error) {
	if err := f.begin(ctx, Call{Op: OpGetObjectPose, Name: name}); err != nil {
		return geom.Pose{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Poses[name]; ok {
		return p, nil
	}
	return geom.NaNPose(), nil
}

func (f *Fake) SetObjectPose(ctx context.Context, name string, pose geom.Pose, _ bool) (bool, error) {
	if err := f.begin(ctx, Call{Op: OpSetObjectPose, Name: name, Pose: pose}); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Poses[name]; !ok {
		return false, nil
	}
	f.Poses[name] = pose
	return true, nil
}

func (f *Fake) SetVehiclePose(ctx context.Context, pose geom.Pose, _ bool) error {
	if err := f.begin(ctx, Call{Op: OpSetVehiclePose, Pose: pose}); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Camera.Pose = pose
	return nil
}

func (f *Fake) SetSegmentationID(ctx context.Context, pattern string, id int, isRegex bool) (bool, error) {
	if err := f.begin(ctx, Call{Op: OpSetSegmentationID, Name: pattern, ID: id, IsRegex: isRegex}); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pattern == sim.AnyObjectPattern {
		if f.ResetMatches {
			f.ids[pattern] = id
		}
		return f.ResetMatches, nil
	}
	if err := f.PatternErr[pattern]; err != nil {
		return false, err
	}
	if f.NoMatch[pattern] {
		return false, nil
	}
	f.ids[pattern] = id
	return true, nil
}

func (f *Fake) CaptureImages(ctx context.Context, requests []sim.ImageRequest) ([]sim.ImageResponse, error) {
	kinds := make([]sim.ImageKind, len(requests))
	for i, r := range requests {
		kinds[i] = r.Kind
	}
	if err := f.begin(ctx, Call{Op: OpCaptureImages, Kinds: kinds}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sim.ImageResponse, len(requests))
	for i, r := range requests {
		resp := sim.ImageResponse{
			CameraName: r.CameraName,
			Kind:       r.Kind,
			Width:      f.Width,
			Height:     f.Height,
			CameraPose: f.Camera.Pose,
		}
		if !f.OmitProjection {
			resp.Projection = f.Camera.Projection
		}
		if r.AsFloat {
			resp.Float = make([]float32, f.Width*f.Height)
		} else {
			resp.Uint8 = make([]byte, f.Width*f.Height*4)
		}
		out[i] = resp
	}
	return out, nil
}

func (f *Fake) GetCameraInfo(ctx context.Context, camera string) (sim.CameraInfo, error) {
	if err := f.begin(ctx, Call{Op: OpGetCameraInfo, Name: camera}); err != nil {
		return sim.CameraInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Camera, nil
}

func (f *Fake) ListSceneObjects(ctx context.Context, pattern string) ([]string, error) {
	if err := f.begin(ctx, Call{Op: OpListSceneObjects, Name: pattern}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Objects...), nil
}

var _ sim.Collaborator = (*Fake)(nil)
