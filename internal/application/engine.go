package application

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/clock"
	"github.com/sawpanic/contentrun/internal/format"
	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

// Engine is the entry point adapters use: it binds the scorer, formatter
// and scheduler to one platform registry and one clock.
type Engine struct {
	registry  *platform.Registry
	scorer    *scoring.Scorer
	formatter *format.Formatter
	scheduler *scheduler.Scheduler
	clock     clock.Clock
	metrics   *metrics.Registry
	config    scheduler.Config
	// schedOpts rebuild the scheduler for seeded requests
	schedOpts []scheduler.Option
}

type engineOptions struct {
	clock     clock.Clock
	metrics   *metrics.Registry
	config    scheduler.Config
	scheduler []scheduler.Option
}

// Option configures an Engine
type Option func(*engineOptions)

// WithClock sets the time source used for schedule generation
func WithClock(c clock.Clock) Option {
	return func(o *engineOptions) { o.clock = c }
}

// WithMetrics records step timings and content metrics
func WithMetrics(m *metrics.Registry) Option {
	return func(o *engineOptions) { o.metrics = m }
}

// WithSchedulerConfig sets the schedule request limits
func WithSchedulerConfig(cfg scheduler.Config) Option {
	return func(o *engineOptions) { o.config = cfg }
}

// WithSchedulerOptions passes options through to the default scheduler
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *engineOptions) { o.scheduler = append(o.scheduler, opts...) }
}

// NewEngine wires the engine around registry
func NewEngine(registry *platform.Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("platform registry is required")
	}
	o := engineOptions{
		clock:  clock.System{},
		config: scheduler.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		registry:  registry,
		scorer:    scoring.NewScorer(registry),
		formatter: format.NewFormatter(registry),
		clock:     o.clock,
		metrics:   o.metrics,
		config:    o.config,
	}
	e.schedOpts = append([]scheduler.Option{scheduler.WithConfig(o.config)}, o.scheduler...)
	e.scheduler = scheduler.New(registry, e.scorer, e.formatter, e.schedOpts...)
	return e, nil
}

// Registry returns the platform registry the engine is bound to
func (e *Engine) Registry() *platform.Registry {
	return e.registry
}

// Now returns the engine clock's current time
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// SchedulerConfig returns the schedule request limits
func (e *Engine) SchedulerConfig() scheduler.Config {
	return e.scheduler.Config()
}

// Score evaluates a draft; unregistered platforms get the fallback report
func (e *Engine) Score(draft scoring.Draft) scoring.Report {
	timer := e.startStep(metrics.StepScore)
	report := e.scorer.Score(draft)
	if e.metrics != nil {
		e.metrics.ObserveScore(string(draft.Platform), report.Overall)
	}
	timer.stop(metrics.ResultSuccess)
	return report
}

// Format rewrites text for the platform
func (e *Engine) Format(text string, id platform.ID) (string, error) {
	timer := e.startStep(metrics.StepFormat)
	out, err := e.formatter.Format(text, id)
	if err != nil {
		timer.stop(metrics.ResultError)
		return "", err
	}
	if e.metrics != nil {
		e.metrics.ObserveFormat(string(id))
	}
	timer.stop(metrics.ResultSuccess)
	return out, nil
}

// GenerateSchedule fills horizonDays from now with new entries that avoid
// the slots taken by existing
func (e *Engine) GenerateSchedule(ctx context.Context, existing []scheduler.Entry, horizonDays int, supplier scheduler.DraftSupplier) ([]scheduler.Entry, error) {
	return e.Plan(ctx, PlanRequest{Existing: existing, HorizonDays: horizonDays}, supplier)
}

// PlanRequest is a schedule generation with optional platform filter and
// fixed seed
type PlanRequest struct {
	Existing    []scheduler.Entry
	HorizonDays int
	Platforms   []platform.ID
	// Seed, when set, makes the platform and hour draws reproducible.
	Seed *uint64
}

// Plan generates a schedule for req
func (e *Engine) Plan(ctx context.Context, req PlanRequest, supplier scheduler.DraftSupplier) ([]scheduler.Entry, error) {
	timer := e.startStep(metrics.StepSchedule)

	s := e.scheduler
	if req.Seed != nil {
		opts := append(slices.Clone(e.schedOpts), scheduler.WithSeed(*req.Seed))
		s = scheduler.New(e.registry, e.scorer, e.formatter, opts...)
	}

	entries, err := s.Generate(ctx, scheduler.Request{
		Existing:    req.Existing,
		HorizonDays: req.HorizonDays,
		Now:         e.clock.Now(),
		Platforms:   req.Platforms,
	}, supplier)
	if err != nil {
		timer.stop(metrics.ResultError)
		return nil, err
	}

	if e.metrics != nil {
		for _, entry := range entries {
			e.metrics.ObserveEntry(string(entry.Platform))
		}
	}
	timer.stop(metrics.ResultSuccess)

	log.Debug().
		Int("horizon_days", req.HorizonDays).
		Int("entries", len(entries)).
		Msg("Schedule planned")
	return entries, nil
}

// Windows previews the eligible platforms per day from now
func (e *Engine) Windows(horizonDays int, platforms []platform.ID) ([]scheduler.Window, error) {
	return e.scheduler.Windows(scheduler.Request{
		HorizonDays: horizonDays,
		Now:         e.clock.Now(),
		Platforms:   platforms,
	})
}

type stepTimer struct {
	timer *metrics.StepTimer
}

func (e *Engine) startStep(step string) stepTimer {
	if e.metrics == nil {
		return stepTimer{}
	}
	return stepTimer{timer: e.metrics.StartStepTimer(step)}
}

func (t stepTimer) stop(result string) {
	if t.timer != nil {
		t.timer.Stop(result)
	}
}
