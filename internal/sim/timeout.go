package sim

import (
	"context"
	"time"

	"github.com/banshee-data/thermalsim/internal/geom"
)

// Bounded wraps a Collaborator so every call runs under its own timeout.
// A deadline hit surfaces as context.DeadlineExceeded from the call, which
// callers treat like any other failed operation.
type Bounded struct {
	Inner   Collaborator
	Timeout time.Duration
}

// WithTimeout returns c bounded by d. A non-positive d returns c unchanged.
func WithTimeout(c Collaborator, d time.Duration) Collaborator {
	if d <= 0 {
		return c
	}
	return &Bounded{Inner: c, Timeout: d}
}

func (b *Bounded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.Timeout)
}

func (b *Bounded) GetObjectPose(ctx context.Context, name string) (geom.Pose, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.GetObjectPose(ctx, name)
}

func (b *Bounded) SetObjectPose(ctx context.Context, name string, pose geom.Pose, teleport bool) (bool, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.SetObjectPose(ctx, name, pose, teleport)
}

func (b *Bounded) SetVehiclePose(ctx context.Context, pose geom.Pose, ignoreCollision bool) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.SetVehiclePose(ctx, pose, ignoreCollision)
}

func (b *Bounded) SetSegmentationID(ctx context.Context, pattern string, id int, isRegex bool) (bool, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.SetSegmentationID(ctx, pattern, id, isRegex)
}

func (b *Bounded) CaptureImages(ctx context.Context, requests []ImageRequest) ([]ImageResponse, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.CaptureImages(ctx, requests)
}

func (b *Bounded) GetCameraInfo(ctx context.Context, camera string) (CameraInfo, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.GetCameraInfo(ctx, camera)
}

func (b *Bounded) ListSceneObjects(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()
	return b.Inner.ListSceneObjects(ctx, pattern)
}
