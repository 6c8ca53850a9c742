package segmentation

import (
	"errors"
	"fmt"
)

// ResetFailedError reports that the wildcard reset to ID 0 did not succeed.
// Err is nil when the scene answered but matched no objects.
type ResetFailedError struct {
	Err error
}

func (e *ResetFailedError) Error() string {
	if e.Err == nil {
		return "segmentation reset failed: wildcard pattern matched no objects"
	}
	return fmt.Sprintf("segmentation reset failed: %v", e.Err)
}

func (e *ResetFailedError) Unwrap() error { return e.Err }

// IsResetFailed reports whether err is or wraps a ResetFailedError.
func IsResetFailed(err error) bool {
	var rf *ResetFailedError
	return errors.As(err, &rf)
}

// Warning is a non-fatal per-pattern problem recorded in a Report.
type Warning struct {
	Pattern string
	Label   string
	Status  Status
	Err     error // collaborator error for StatusFailed
}

func (w Warning) Error() string {
	switch w.Status {
	case StatusMissingLabel:
		return fmt.Sprintf("pattern %q: label %q has no digital count", w.Pattern, w.Label)
	case StatusNoMatch:
		return fmt.Sprintf("pattern %q: no scene objects matched", w.Pattern)
	case StatusFailed:
		return fmt.Sprintf("pattern %q: set segmentation id: %v", w.Pattern, w.Err)
	default:
		return fmt.Sprintf("pattern %q: %s", w.Pattern, w.Status)
	}
}

func (w Warning) Unwrap() error { return w.Err }
