package handlers

import (
	"time"

	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/supply"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports service and repository health
type HealthResponse struct {
	Status      string                  `json:"status"` // ok | degraded
	Version     string                  `json:"version,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
	Platforms   int                     `json:"platforms"`
	Database    persistence.HealthCheck `json:"database"`
	FeedClients int                     `json:"feed_clients"`
	Supplier    *supply.Status          `json:"supplier,omitempty"`
}

// PlatformsResponse lists the registered platform profiles in catalog order
type PlatformsResponse struct {
	Count     int                `json:"count"`
	Platforms []platform.Profile `json:"platforms"`
}

type ScoreRequest struct {
	Text     string      `json:"text"`
	Platform platform.ID `json:"platform"`
}

type FormatRequest struct {
	Text     string      `json:"text"`
	Platform platform.ID `json:"platform"`
}

type FormatResponse struct {
	Platform platform.ID `json:"platform"`
	Text     string      `json:"text"`
}

// ScheduleRequest asks for new entries over the next HorizonDays. Zero
// horizon means the configured default.
type ScheduleRequest struct {
	HorizonDays int           `json:"horizon_days"`
	Seed        *uint64       `json:"seed,omitempty"`
	Platforms   []platform.ID `json:"platforms,omitempty"`
}

// ScheduleResponse carries entries together with the window they cover
type ScheduleResponse struct {
	From    time.Time         `json:"from"`
	To      time.Time         `json:"to"`
	Count   int               `json:"count"`
	Entries []scheduler.Entry `json:"entries"`
}

type StatusRequest struct {
	Status scheduler.Status `json:"status"`
}

// Feed event types
const (
	EventScheduleCommitted = "schedule.committed"
	EventEntryUpdated      = "schedule.entry_updated"
	EventEntryDeleted      = "schedule.entry_deleted"
)

// ScheduleEvent is one message on the schedule feed
type ScheduleEvent struct {
	Type      string            `json:"type"`
	Count     int               `json:"count"`
	Entries   []scheduler.Entry `json:"entries,omitempty"`
	EntryID   string            `json:"entry_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
