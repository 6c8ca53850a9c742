package thermal

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned when a batch has no entries; the
	// normalisation maximum is undefined.
	ErrEmptyInput = errors.New("at least one thermal entry is required")

	// ErrDuplicateLabel is returned when two entries in a batch share a label.
	ErrDuplicateLabel = errors.New("duplicate label in thermal batch")

	// ErrInvalidLabel is returned for an empty label.
	ErrInvalidLabel = errors.New("thermal entry label must not be empty")

	// ErrInvalidStep is returned for a non-positive or non-finite sampling step.
	ErrInvalidStep = errors.New("wavelength step must be positive and finite")

	// ErrInvalidResponse is returned when a response curve does not match the
	// wavelength axis or holds negative or non-finite values.
	ErrInvalidResponse = errors.New("invalid sensor response curve")

	// ErrShapeMismatch is returned when batched temperatures and emissivities
	// cannot be broadcast against each other.
	ErrShapeMismatch = errors.New("temperature and emissivity batches must match or be scalar")

	// ErrZeroRadiance is returned when every entry integrates to zero, which
	// happens with an all-zero response or a single-sample band.
	ErrZeroRadiance = errors.New("batch maximum radiance is zero")
)

// DomainError reports a physically invalid input. It is never retried.
type DomainError struct {
	Param  string  // "temperature" or "emissivity"
	Value  float64 // the rejected value
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid %s %g: %s", e.Param, e.Value, e.Reason)
}
