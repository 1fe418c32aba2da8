package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/sawpanic/contentrun/internal/platform"
)

var (
	// ErrInvalidRequest is matched by every ValidationError
	ErrInvalidRequest = errors.New("invalid schedule request")
	// ErrDraftSupply is matched by every DraftSupplyError
	ErrDraftSupply = errors.New("draft supply failed")
	// ErrPlatformMismatch is returned when a supplier answers for another platform
	ErrPlatformMismatch = errors.New("draft targets a different platform")
)

// ValidationError reports a malformed request; no work has been done
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule request: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// DraftSupplyError wraps a supplier failure. The run that hit it returned
// no entries.
type DraftSupplyError struct {
	Platform platform.ID
	Date     time.Time
	Err      error
}

func (e *DraftSupplyError) Error() string {
	return fmt.Sprintf("draft supply for %s on %s failed: %v", e.Platform, e.Date.Format("2006-01-02"), e.Err)
}

func (e *DraftSupplyError) Unwrap() error {
	return e.Err
}

func (e *DraftSupplyError) Is(target error) bool {
	return target == ErrDraftSupply
}
