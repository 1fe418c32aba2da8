package scheduler

import (
	"context"
	"time"

	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scoring"
)

// Status of a schedule entry
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusScheduled
}

// Entry is one publication slot. Once returned, the caller owns it.
type Entry struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Platform    platform.ID    `json:"platform" yaml:"platform"`
	ScheduledAt time.Time      `json:"scheduled_at" yaml:"scheduled_at"`
	Status      Status         `json:"status" yaml:"status"`
	Content     string         `json:"content,omitempty" yaml:"content,omitempty"`
	Score       scoring.Report `json:"score" yaml:"-"`
}

// Window is the set of platforms eligible on one candidate day
type Window struct {
	Date              time.Time          `json:"date"`
	Weekday           time.Weekday       `json:"weekday"`
	EligiblePlatforms []platform.Profile `json:"eligible_platforms"`
}

// Request describes one schedule generation run
type Request struct {
	// Existing entries occupy their (date, hour) slots; they are never modified.
	Existing []Entry
	// HorizonDays is the number of days, starting at Now, to fill.
	HorizonDays int
	// Now is the start of the horizon; its location defines calendar days.
	Now time.Time
	// Platforms optionally restricts candidates to these IDs. Empty means all.
	Platforms []platform.ID
}

// DraftSupplier produces candidate content for a platform. Implementations
// may be slow; they receive the generation context and should honour it.
type DraftSupplier interface {
	SupplyDraft(ctx context.Context, profile platform.Profile) (scoring.Draft, error)
}

// SupplierFunc adapts a function to DraftSupplier
type SupplierFunc func(ctx context.Context, profile platform.Profile) (scoring.Draft, error)

func (f SupplierFunc) SupplyDraft(ctx context.Context, profile platform.Profile) (scoring.Draft, error) {
	return f(ctx, profile)
}

// Config bounds generation requests
type Config struct {
	DefaultHorizonDays int `yaml:"default_horizon_days"`
	MaxHorizonDays     int `yaml:"max_horizon_days"`
	TitleMaxLength     int `yaml:"title_max_length"`
}

// DefaultConfig returns production limits
func DefaultConfig() Config {
	return Config{
		DefaultHorizonDays: 14,
		MaxHorizonDays:     366,
		TitleMaxLength:     60,
	}
}
