package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

// Schema creates the schedule table. The unique index on scheduled_at keeps
// one entry per slot across processes.
const Schema = `
CREATE TABLE IF NOT EXISTS schedule_entries (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	platform     TEXT NOT NULL,
	scheduled_at TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL CHECK (status IN ('draft', 'scheduled')),
	content      TEXT NOT NULL DEFAULT '',
	score        JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS schedule_entries_slot_idx ON schedule_entries (scheduled_at);
CREATE INDEX IF NOT EXISTS schedule_entries_platform_idx ON schedule_entries (platform, scheduled_at);`

const uniqueViolation = "23505"

// entryRow is the table representation of scheduler.Entry
type entryRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Platform    string    `db:"platform"`
	ScheduledAt time.Time `db:"scheduled_at"`
	Status      string    `db:"status"`
	Content     string    `db:"content"`
	Score       []byte    `db:"score"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row entryRow) entry() (scheduler.Entry, error) {
	var report scoring.Report
	if len(row.Score) > 0 {
		if err := json.Unmarshal(row.Score, &report); err != nil {
			return scheduler.Entry{}, fmt.Errorf("failed to unmarshal score for entry %s: %w", row.ID, err)
		}
	}
	return scheduler.Entry{
		ID:          row.ID,
		Title:       row.Title,
		Platform:    platform.ID(row.Platform),
		ScheduledAt: row.ScheduledAt,
		Status:      scheduler.Status(row.Status),
		Content:     row.Content,
		Score:       report,
	}, nil
}

// scheduleRepo implements persistence.ScheduleRepo for PostgreSQL
type scheduleRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScheduleRepo creates a new PostgreSQL schedule repository
func NewScheduleRepo(db *sqlx.DB, timeout time.Duration) persistence.ScheduleRepo {
	return &scheduleRepo{
		db:      db,
		timeout: timeout,
	}
}

// Migrate applies Schema
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schedule schema: %w", err)
	}
	return nil
}

// InsertBatch stores entries in one transaction
func (r *scheduleRepo) InsertBatch(ctx context.Context, entries []scheduler.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(entries)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_entries (id, title, platform, scheduled_at, status, content, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if !e.Status.Valid() {
			return fmt.Errorf("schedule entry %s has invalid status %q", e.ID, e.Status)
		}
		score, err := json.Marshal(e.Score)
		if err != nil {
			return fmt.Errorf("failed to marshal score for entry %s: %w", e.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			e.ID, e.Title, string(e.Platform), e.ScheduledAt.UTC(), string(e.Status), e.Content, score)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("entry %s: %w", e.ID, persistence.ErrConflict)
			}
			return fmt.Errorf("failed to insert schedule entry in batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule batch: %w", err)
	}
	return nil
}

// Get retrieves one entry by ID
func (r *scheduleRepo) Get(ctx context.Context, id string) (*scheduler.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row entryRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, title, platform, scheduled_at, status, content, score, created_at
		FROM schedule_entries
		WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}

	entry, err := row.entry()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListRange retrieves entries scheduled in [From, To), earliest first
func (r *scheduleRepo) ListRange(ctx context.Context, tr persistence.TimeRange) ([]scheduler.Entry, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []entryRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, title, platform, scheduled_at, status, content, score, created_at
		FROM schedule_entries
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`, tr.From.UTC(), tr.To.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule range: %w", err)
	}

	entries := make([]scheduler.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// UpdateStatus changes the status of one entry
func (r *scheduleRepo) UpdateStatus(ctx context.Context, id string, status scheduler.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `UPDATE schedule_entries SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule entry status: %w", err)
	}
	return expectOneRow(res)
}

// Delete removes one entry
func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule entry: %w", err)
	}
	return expectOneRow(res)
}

// Count returns the number of entries in [From, To)
func (r *scheduleRepo) Count(ctx context.Context, tr persistence.TimeRange) (int64, error) {
	if err := tr.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM schedule_entries
		WHERE scheduled_at >= $1 AND scheduled_at < $2`, tr.From.UTC(), tr.To.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count schedule entries: %w", err)
	}
	return count, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
