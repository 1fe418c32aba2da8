package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sawpanic/contentrun/internal/scheduler"
)

var (
	// ErrNotFound is returned when no entry has the requested ID
	ErrNotFound = errors.New("schedule entry not found")
	// ErrConflict is returned when an entry ID or slot is already taken
	ErrConflict = errors.New("schedule entry conflicts with an existing entry")
)

// TimeRange is a half-open window [From, To)
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects ranges whose end precedes their start
func (tr TimeRange) Validate() error {
	if tr.From.IsZero() || tr.To.IsZero() {
		return fmt.Errorf("time range requires both from and to")
	}
	if tr.To.Before(tr.From) {
		return fmt.Errorf("time range ends (%s) before it starts (%s)",
			tr.To.Format(time.RFC3339), tr.From.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the range
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.From) && t.Before(tr.To)
}

// ScheduleRepo persists schedule entries
type ScheduleRepo interface {
	// InsertBatch stores entries atomically: all of them or none
	InsertBatch(ctx context.Context, entries []scheduler.Entry) error

	// Get retrieves one entry; ErrNotFound when missing
	Get(ctx context.Context, id string) (*scheduler.Entry, error)

	// ListRange retrieves entries scheduled inside tr, earliest first
	ListRange(ctx context.Context, tr TimeRange) ([]scheduler.Entry, error)

	// UpdateStatus moves an entry between draft and scheduled
	UpdateStatus(ctx context.Context, id string, status scheduler.Status) error

	// Delete removes an entry; ErrNotFound when missing
	Delete(ctx context.Context, id string) error

	// Count returns the number of entries scheduled inside tr
	Count(ctx context.Context, tr TimeRange) (int64, error)
}

// Repository aggregates all persistence interfaces
type Repository struct {
	Schedule ScheduleRepo
}

// HealthCheck represents repository health status
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for persistence layer
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
