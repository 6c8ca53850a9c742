// Package sim defines the contract between the sensor model and the external
// simulation service: object poses, segmentation IDs, image capture and
// camera intrinsics. Transport is the implementation's concern; every call
// takes a context so callers can bound it.
package sim

import (
	"context"
	"fmt"

	"github.com/banshee-data/thermalsim/internal/geom"
	"github.com/banshee-data/thermalsim/internal/projection"
)

// AnyObjectPattern matches every scene object name.
const AnyObjectPattern = `[\w]*`

// ContainsPattern builds a regex matching any scene object whose name
// contains fragment. The fragment is inserted as regex syntax, so a key
// such as "Rock_\d" matches any numbered rock.
func ContainsPattern(fragment string) string {
	return AnyObjectPattern + fragment + AnyObjectPattern
}

// ImageKind selects which image a camera renders.
type ImageKind int

const (
	ImageScene ImageKind = iota
	ImageDepthPlanar
	ImageDepthPerspective
	ImageDepthVis
	ImageDisparityNormalized
	ImageSegmentation
	ImageSurfaceNormals
	ImageInfrared
)

func (k ImageKind) String() string {
	switch k {
	case ImageScene:
		return "scene"
	case ImageDepthPlanar:
		return "depth_planar"
	case ImageDepthPerspective:
		return "depth_perspective"
	case ImageDepthVis:
		return "depth_vis"
	case ImageDisparityNormalized:
		return "disparity_normalized"
	case ImageSegmentation:
		return "segmentation"
	case ImageSurfaceNormals:
		return "surface_normals"
	case ImageInfrared:
		return "infrared"
	default:
		return fmt.Sprintf("ImageKind(%d)", int(k))
	}
}

// ImageRequest asks one camera for one image.
type ImageRequest struct {
	CameraName string
	Kind       ImageKind
	AsFloat    bool
	Compress   bool
}

// ImageResponse is one captured image plus the camera state at the moment of
// capture.
type ImageResponse struct {
	CameraName string
	Kind       ImageKind
	Width      int
	Height     int
	Uint8      []byte    // RGBA rows when the request was not AsFloat
	Float      []float32 // one value per pixel when AsFloat
	CameraPose geom.Pose
	Projection projection.Matrix4
	TimeStamp  uint64
}

// CameraFrame assembles the projection input from the response. ok is
// false when the simulator did not attach a projection matrix.
func (r ImageResponse) CameraFrame() (projection.CameraFrame, bool) {
	if r.Projection.IsZero() {
		return projection.CameraFrame{}, false
	}
	return projection.CameraFrame{
		Position:    r.CameraPose.Position,
		Orientation: r.CameraPose.Orientation,
		Projection:  r.Projection,
		ImageWidth:  r.Width,
		ImageHeight: r.Height,
	}, true
}

// CameraInfo is the current pose, projection and field of view of a camera.
type CameraInfo struct {
	Pose        geom.Pose
	Projection  projection.Matrix4
	FieldOfView float64 // degrees
}

// Collaborator is an already-connected handle to the simulation service.
type Collaborator interface {
	// GetObjectPose returns the pose of the first object matching name, or
	// geom.NaNPose if nothing matches.
	GetObjectPose(ctx context.Context, name string) (geom.Pose, error)

	// SetObjectPose moves an object and reports whether it was found.
	SetObjectPose(ctx context.Context, name string, pose geom.Pose, teleport bool) (bool, error)

	// SetVehiclePose moves the vehicle carrying the cameras.
	SetVehiclePose(ctx context.Context, pose geom.Pose, ignoreCollision bool) error

	// SetSegmentationID sets the ID of every object matching pattern and
	// reports whether at least one object matched.
	SetSegmentationID(ctx context.Context, pattern string, id int, isRegex bool) (bool, error)

	// CaptureImages renders one image per request, in request order. A
	// non-zero Projection on a response must follow the +X forward
	// convention of projection.Perspective, giving w > 0 in front of the
	// camera.
	CaptureImages(ctx context.Context, requests []ImageRequest) ([]ImageResponse, error)

	// GetCameraInfo returns the current state of a camera.
	GetCameraInfo(ctx context.Context, camera string) (CameraInfo, error)

	// ListSceneObjects returns the names of objects matching a regex.
	ListSceneObjects(ctx context.Context, pattern string) ([]string, error)
}
