package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/mealkiosk/internal/model"
)

// ErrSyncInProgress is returned when a full sync is requested while another
// one is running.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrDeviceNotSeeded is returned by device operations before the store has
// generated a device UUID.
var ErrDeviceNotSeeded = errors.New("device uuid not seeded")

// ErrNoDiningHall is returned by operations that need the kiosk's dining hall
// when none is configured.
var ErrNoDiningHall = errors.New("dining hall not configured")

// StepError records one failed step of a full sync.
type StepError struct {
	// Op identifies the failed operation.
	Op model.SyncOp

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying failure.
func (e *StepError) Unwrap() error {
	return e.Err
}

// IsStepError reports whether err is a StepError for op.
// Uses errors.As to handle wrapped errors.
func IsStepError(err error, op model.SyncOp) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Op == op
	}
	return false
}
