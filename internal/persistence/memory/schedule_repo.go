package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/scheduler"
)

// ScheduleRepo keeps entries in process memory. It is used when Postgres
// is disabled and in tests.
type ScheduleRepo struct {
	mu      sync.RWMutex
	entries map[string]scheduler.Entry
	slots   map[int64]string // scheduled_at (unix seconds) -> entry ID
}

// NewScheduleRepo creates an empty repository
func NewScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{
		entries: make(map[string]scheduler.Entry),
		slots:   make(map[int64]string),
	}
}

var _ persistence.ScheduleRepo = (*ScheduleRepo)(nil)

func (r *ScheduleRepo) InsertBatch(ctx context.Context, entries []scheduler.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check the whole batch before writing so a conflict leaves no trace.
	ids := make(map[string]struct{}, len(entries))
	slots := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("schedule entry has no ID")
		}
		if !e.Status.Valid() {
			return fmt.Errorf("schedule entry %s has invalid status %q", e.ID, e.Status)
		}
		slot := e.ScheduledAt.Unix()
		if _, ok := r.entries[e.ID]; ok {
			return fmt.Errorf("entry %s: %w", e.ID, persistence.ErrConflict)
		}
		if _, ok := ids[e.ID]; ok {
			return fmt.Errorf("entry %s repeated in batch: %w", e.ID, persistence.ErrConflict)
		}
		if _, ok := r.slots[slot]; ok {
			return fmt.Errorf("slot %s: %w", e.ScheduledAt.Format(time.RFC3339), persistence.ErrConflict)
		}
		if _, ok := slots[slot]; ok {
			return fmt.Errorf("slot %s repeated in batch: %w", e.ScheduledAt.Format(time.RFC3339), persistence.ErrConflict)
		}
		ids[e.ID] = struct{}{}
		slots[slot] = struct{}{}
	}

	for _, e := range entries {
		r.entries[e.ID] = e
		r.slots[e.ScheduledAt.Unix()] = e.ID
	}
	return nil
}

func (r *ScheduleRepo) Get(ctx context.Context, id string) (*scheduler.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &e, nil
}

func (r *ScheduleRepo) ListRange(ctx context.Context, tr persistence.TimeRange) ([]scheduler.Entry, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]scheduler.Entry, 0)
	for _, e := range r.entries {
		if tr.Contains(e.ScheduledAt) {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out, nil
}

func (r *ScheduleRepo) UpdateStatus(ctx context.Context, id string, status scheduler.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return persistence.ErrNotFound
	}
	e.Status = status
	r.entries[id] = e
	return nil
}

func (r *ScheduleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(r.entries, id)
	delete(r.slots, e.ScheduledAt.Unix())
	return nil
}

func (r *ScheduleRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	entries, err := r.ListRange(ctx, tr)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}
