// Package synthetic provides an in-memory simulation scene for demos and
// tests. Objects sit at fixed poses or circle a centre point, the vehicle
// carries a single downward or forward camera, and infrared captures splat
// each visible object's segmentation ID into the image.
package synthetic

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/projection"
	"github.com/banshee-data/thermalsim/internal/sim"
	"github.com/banshee-data/thermalsim/internal/timeutil"
)

// Object is one named scene object.
type Object struct {
	Name           string
	Pose           geom.Pose // pose, or orbit centre when OrbitRadius > 0
	SegmentationID int
	Ground         bool    // fills the image background instead of being splatted
	OrbitRadius    float64 // metres
	SpeedMPS       float64
	Phase          float64 // radians
}

// position returns where the object is t seconds after the scene started.
func (o *Object) position(t float64) geom.Vector3 {
	p := o.Pose.Position
	if o.OrbitRadius <= 0 {
		return p
	}
	theta := o.Phase + o.SpeedMPS/o.OrbitRadius*t
	p.X += o.OrbitRadius * math.Cos(theta)
	p.Y += o.OrbitRadius * math.Sin(theta)
	return p
}

// Scene is an in-memory sim.Collaborator.
type Scene struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	startAt time.Time
	objects map[string]*Object
	vehicle geom.Pose
	cameras map[string]bool

	// Configuration
	Width       int
	Height      int
	FieldOfView float64       // horizontal, degrees
	Near        float64       // metres
	SplatRadius int           // pixels
	Latency     time.Duration // added to every call
}

// NewScene returns an empty scene with one camera named "0" on a vehicle at
// the origin.
func NewScene(clock timeutil.Clock) *Scene {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scene{
		clock:       clock,
		startAt:     clock.Now(),
		objects:     make(map[string]*Object),
		vehicle:     geom.Pose{Orientation: geom.IdentityQuaternion()},
		cameras:     map[string]bool{"0": true, "front_center": true, "bottom_center": true},
		Width:       640,
		Height:      480,
		FieldOfView: 90,
		Near:        0.1,
		SplatRadius: 3,
	}
}

// Add places objects in the scene, replacing any with the same name.
func (s *Scene) Add(objs ...Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range objs {
		o := objs[i]
		if o.Pose.Orientation == (geom.Quaternion{}) {
			o.Pose.Orientation = geom.IdentityQuaternion()
		}
		s.objects[o.Name] = &o
	}
}

// Savanna returns a scene populated with the objects of the default
// scene-name map: terrain, foliage, water, animals, a truck and two poachers
// walking circles around the waterhole.
func Savanna(clock timeutil.Clock) *Scene {
	s := NewScene(clock)
	at := func(x, y float64) geom.Pose {
		return geom.Pose{Position: geom.Vector3{X: x, Y: y}}
	}
	s.Add(
		Object{Name: "Base_Terrain", Pose: at(0, 0), Ground: true},
		Object{Name: "InstancedFoliageActor_0", Pose: at(-30, 25)},
		Object{Name: "InstancedFoliageActor_1", Pose: at(35, -20)},
		Object{Name: "Water_Plane_1", Pose: at(0, 0)},
		Object{Name: "elephant_01", Pose: at(15, 10)},
		Object{Name: "zebra_01", Pose: at(-12, -18)},
		Object{Name: "zebra_02", Pose: at(-14, -16)},
		Object{Name: "Rhinoceros_1", Pose: at(25, 25)},
		Object{Name: "Hippo_1", Pose: at(3, -2)},
		Object{Name: "Crocodile_1", Pose: at(-4, 3)},
		Object{Name: "truck_01", Pose: at(-40, -35)},
		Object{Name: "Poacher_1", Pose: at(0, 0), OrbitRadius: 20, SpeedMPS: 1.4},
		Object{Name: "Poacher_2", Pose: at(0, 0), OrbitRadius: 28, SpeedMPS: 1.2, Phase: math.Pi},
	)
	return s
}

// wait applies the configured latency, returning early if ctx ends.
func (s *Scene) wait(ctx context.Context) error {
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return ctx.Err()
}

func (s *Scene) elapsed() float64 {
	return s.clock.Since(s.startAt).Seconds()
}

// matcher compiles a name pattern. Regex patterns must match the whole name.
func matcher(pattern string, isRegex bool) (func(string) bool, error) {
	if !isRegex {
		return func(name string) bool { return name == pattern }, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

func (s *Scene) GetObjectPose(ctx context.Context, name string) (geom.Pose, error) {
	if err := s.wait(ctx); err != nil {
		return geom.Pose{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return geom.NaNPose(), nil
	}
	return geom.Pose{Position: o.position(s.elapsed()), Orientation: o.Pose.Orientation}, nil
}

// SetObjectPose moves an object. A moved object stops orbiting.
func (s *Scene) SetObjectPose(ctx context.Context, name string, pose geom.Pose, _ bool) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return false, nil
	}
	o.Pose = pose
	o.OrbitRadius = 0
	return true, nil
}

func (s *Scene) SetVehiclePose(ctx context.Context, pose geom.Pose, _ bool) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if !pose.Position.IsFinite() || !pose.Orientation.IsFinite() {
		return fmt.Errorf("vehicle pose must be finite: %+v", pose)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicle = pose
	return nil
}

func (s *Scene) SetSegmentationID(ctx context.Context, pattern string, id int, isRegex bool) (bool, error) {
	if err := s.wait(ctx); err != nil {
		return false, err
	}
	if id < 0 || id > 255 {
		return false, fmt.Errorf("segmentation id %d out of range [0,255]", id)
	}
	match, err := matcher(pattern, isRegex)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for name, o := range s.objects {
		if match(name) {
			o.SegmentationID = id
			found = true
		}
	}
	return found, nil
}

// SegmentationID returns the current ID of the named object.
func (s *Scene) SegmentationID(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[name]
	if !ok {
		return 0, false
	}
	return o.SegmentationID, true
}

func (s *Scene) ListSceneObjects(ctx context.Context, pattern string) ([]string, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	match, err := matcher(pattern, true)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.objects {
		if match(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Scene) cameraLocked() sim.CameraInfo {
	return sim.CameraInfo{
		Pose:        s.vehicle,
		Projection:  projection.Perspective(s.FieldOfView, s.Width, s.Height, s.Near),
		FieldOfView: s.FieldOfView,
	}
}

func (s *Scene) GetCameraInfo(ctx context.Context, camera string) (sim.CameraInfo, error) {
	if err := s.wait(ctx); err != nil {
		return sim.CameraInfo{}, err
	}
	if !s.cameras[camera] {
		return sim.CameraInfo{}, fmt.Errorf("unknown camera %q", camera)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraLocked(), nil
}

func (s *Scene) CaptureImages(ctx context.Context, requests []sim.ImageRequest) ([]sim.ImageResponse, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	for _, r := range requests {
		if !s.cameras[r.CameraName] {
			return nil, fmt.Errorf("unknown camera %q", r.CameraName)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.cameraLocked()
	frame := projection.CameraFrame{
		Position:    info.Pose.Position,
		Orientation: info.Pose.Orientation,
		Projection:  info.Projection,
		ImageWidth:  s.Width,
		ImageHeight: s.Height,
	}
	gray := s.renderLocked(frame)
	stamp := uint64(s.clock.Now().UnixNano())

	out := make([]sim.ImageResponse, len(requests))
	for i, r := range requests {
		resp := sim.ImageResponse{
			CameraName: r.CameraName,
			Kind:       r.Kind,
			Width:      s.Width,
			Height:     s.Height,
			CameraPose: info.Pose,
			Projection: info.Projection,
			TimeStamp:  stamp,
		}
		var px []byte
		switch r.Kind {
		case sim.ImageInfrared, sim.ImageSegmentation:
			px = gray
		case sim.ImageScene:
			px = scenePixels(gray)
		default:
			px = make([]byte, len(gray))
		}
		if r.AsFloat {
			resp.Float = make([]float32, len(px))
			for j, v := range px {
				resp.Float[j] = float32(v)
			}
		} else {
			resp.Uint8 = make([]byte, 4*len(px))
			for j, v := range px {
				resp.Uint8[4*j] = v
				resp.Uint8[4*j+1] = v
				resp.Uint8[4*j+2] = v
				resp.Uint8[4*j+3] = 255
			}
		}
		out[i] = resp
	}
	return out, nil
}

// renderLocked draws one byte per pixel: ground objects fill the frame and
// every other object in view is a square of its segmentation ID.
func (s *Scene) renderLocked(frame projection.CameraFrame) []byte {
	img := make([]byte, s.Width*s.Height)
	t := s.elapsed()

	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if o := s.objects[name]; o.Ground {
			for i := range img {
				img[i] = byte(o.SegmentationID)
			}
		}
	}
	for _, name := range names {
		o := s.objects[name]
		if o.Ground {
			continue
		}
		px, ok := projection.InFrame(o.position(t), frame)
		if !ok {
			continue
		}
		c, r := int(px.Col), int(px.Row)
		for y := r - s.SplatRadius; y <= r+s.SplatRadius; y++ {
			for x := c - s.SplatRadius; x <= c+s.SplatRadius; x++ {
				if x >= 0 && x < s.Width && y >= 0 && y < s.Height {
					img[y*s.Width+x] = byte(o.SegmentationID)
				}
			}
		}
	}
	return img
}

// scenePixels fakes a visible-light frame from the ID image by compressing
// its contrast.
func scenePixels(gray []byte) []byte {
	out := make([]byte, len(gray))
	for i, v := range gray {
		out[i] = 64 + v/2
	}
	return out
}

var _ sim.Collaborator = (*Scene)(nil)
