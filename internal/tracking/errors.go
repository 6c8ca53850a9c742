package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by Tick before Start.
	ErrNotStarted = errors.New("tracking loop not started")
	// ErrStopped is returned by Start or Tick once the loop has stopped.
	ErrStopped = errors.New("tracking loop stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("tracking loop already started")
	// ErrInvalidDuration is returned by Start for a negative duration.
	ErrInvalidDuration = errors.New("duration must not be negative")
	// ErrInvalidInterval is returned by Run for a non-positive tick interval.
	ErrInvalidInterval = errors.New("tick interval must be positive")
)

// Op names the collaborator operation behind a CaptureFailure.
type Op string

const (
	OpPoseQuery  Op = "pose_query"
	OpPlacement  Op = "placement"
	OpCapture    Op = "capture"
	OpCameraInfo Op = "camera_info"
	OpProject    Op = "project"
)

// CaptureFailure stops a loop after an operation failed twice in a row.
// Frames is the number of frames completed before the failure.
type CaptureFailure struct {
	Op     Op
	Frames int
	Err    error
}

func (e *CaptureFailure) Error() string {
	return fmt.Sprintf("tracking %s failed after %d frames: %v", e.Op, e.Frames, e.Err)
}

func (e *CaptureFailure) Unwrap() error { return e.Err }
