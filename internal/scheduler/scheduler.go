package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/format"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scoring"
)

const slotLayout = "2006-01-02T15"

// Scheduler fills a horizon of days with one entry per day, choosing the
// platform and hour at random among the slots still free.
type Scheduler struct {
	registry  *platform.Registry
	scorer    *scoring.Scorer
	formatter *format.Formatter
	config    Config

	mu    sync.Mutex
	rng   *rand.Rand
	newID func() string
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithRand injects the random source used for platform and hour draws
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSeed draws from a PCG source seeded with seed
func WithSeed(seed uint64) Option {
	return WithRand(NewRand(seed))
}

// WithIDGenerator replaces the uuid entry ID generator
func WithIDGenerator(gen func() string) Option {
	return func(s *Scheduler) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithConfig overrides the request limits
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.config = cfg
	}
}

// NewRand returns the PRNG used for a given seed
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// New creates a scheduler. Without WithRand the draws are seeded from the
// wall clock.
func New(registry *platform.Registry, scorer *scoring.Scorer, formatter *format.Formatter, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:  registry,
		scorer:    scorer,
		formatter: formatter,
		config:    DefaultConfig(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = NewRand(uint64(time.Now().UnixNano()))
	}
	if s.config.MaxHorizonDays <= 0 {
		s.config.MaxHorizonDays = DefaultConfig().MaxHorizonDays
	}
	if s.config.TitleMaxLength <= 0 {
		s.config.TitleMaxLength = DefaultConfig().TitleMaxLength
	}
	return s
}

// Config returns the limits in effect
func (s *Scheduler) Config() Config {
	return s.config
}

// Generate produces at most one entry per day of the horizon. It is all or
// nothing: on any error no entries are returned.
func (s *Scheduler) Generate(ctx context.Context, req Request, supplier DraftSupplier) ([]Entry, error) {
	if err := s.validate(req, supplier); err != nil {
		return nil, err
	}
	candidates, err := s.candidates(req.Platforms)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	loc := req.Now.Location()
	end := req.Now.AddDate(0, 0, req.HorizonDays)
	occupied := occupiedSlots(req.Existing, loc)

	entries := make([]Entry, 0, req.HorizonDays)
	for d := 0; d < req.HorizonDays; d++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("schedule generation cancelled: %w", err)
		}

		day := req.Now.AddDate(0, 0, d)
		options := freeSlots(day, candidates, req.Now, end, occupied)
		if len(options) == 0 {
			continue
		}

		profile, at := s.draw(day, options)
		draft, err := supplier.SupplyDraft(ctx, profile)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("schedule generation cancelled: %w", ctxErr)
			}
			return nil, &DraftSupplyError{Platform: profile.ID, Date: at, Err: err}
		}
		if draft.Platform != "" && draft.Platform != profile.ID {
			return nil, &DraftSupplyError{
				Platform: profile.ID,
				Date:     at,
				Err:      fmt.Errorf("%w: got %s", ErrPlatformMismatch, draft.Platform),
			}
		}

		entries = append(entries, s.compose(draft, profile, at))
		occupied[slotKey(at, loc)] = struct{}{}
	}

	log.Debug().
		Int("horizon_days", req.HorizonDays).
		Int("existing", len(req.Existing)).
		Int("entries", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Schedule generated")

	return entries, nil
}

// Windows lists, for each day of the horizon, the platforms whose good
// weekdays include that day. Occupancy is not considered.
func (s *Scheduler) Windows(req Request) ([]Window, error) {
	if req.HorizonDays < 1 || req.HorizonDays > s.config.MaxHorizonDays {
		return nil, &ValidationError{Field: "horizon_days", Reason: fmt.Sprintf("must be between 1 and %d", s.config.MaxHorizonDays)}
	}
	candidates, err := s.candidates(req.Platforms)
	if err != nil {
		return nil, err
	}

	windows := make([]Window, 0, req.HorizonDays)
	for d := 0; d < req.HorizonDays; d++ {
		day := req.Now.AddDate(0, 0, d)
		w := Window{
			Date:    time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()),
			Weekday: day.Weekday(),
		}
		for _, p := range candidates {
			if p.PostsOn(day.Weekday()) {
				w.EligiblePlatforms = append(w.EligiblePlatforms, p)
			}
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (s *Scheduler) validate(req Request, supplier DraftSupplier) error {
	if supplier == nil {
		return &ValidationError{Field: "supplier", Reason: "is required"}
	}
	if req.HorizonDays < 1 || req.HorizonDays > s.config.MaxHorizonDays {
		return &ValidationError{Field: "horizon_days", Reason: fmt.Sprintf("must be between 1 and %d", s.config.MaxHorizonDays)}
	}
	if req.Now.IsZero() {
		return &ValidationError{Field: "now", Reason: "is required"}
	}
	return nil
}

// candidates resolves the platform filter, keeping registry order
func (s *Scheduler) candidates(filter []platform.ID) ([]platform.Profile, error) {
	if len(filter) == 0 {
		return s.registry.All(), nil
	}
	wanted := make(map[platform.ID]struct{}, len(filter))
	for _, id := range filter {
		if _, err := s.registry.Lookup(id); err != nil {
			return nil, err
		}
		wanted[id] = struct{}{}
	}
	var out []platform.Profile
	for _, p := range s.registry.All() {
		if _, ok := wanted[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// slotOption is a platform with the good hours still free on one day
type slotOption struct {
	profile platform.Profile
	hours   []int
}

func freeSlots(day time.Time, candidates []platform.Profile, now, end time.Time, occupied map[string]struct{}) []slotOption {
	var options []slotOption
	for _, p := range candidates {
		if !p.PostsOn(day.Weekday()) {
			continue
		}
		var hours []int
		for _, h := range p.GoodHours {
			at := atHour(day, h)
			// hours inside a DST gap normalise to another wall-clock hour
			if at.Hour() != h || at.Day() != day.Day() {
				continue
			}
			if at.Before(now) || !at.Before(end) {
				continue
			}
			if _, taken := occupied[slotKey(at, day.Location())]; taken {
				continue
			}
			hours = append(hours, h)
		}
		if len(hours) > 0 {
			options = append(options, slotOption{profile: p, hours: hours})
		}
	}
	return options
}

// draw picks a platform uniformly, then one of its free hours uniformly
func (s *Scheduler) draw(day time.Time, options []slotOption) (platform.Profile, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opt := options[s.rng.IntN(len(options))]
	hour := opt.hours[s.rng.IntN(len(opt.hours))]
	return opt.profile, atHour(day, hour)
}

func (s *Scheduler) compose(draft scoring.Draft, profile platform.Profile, at time.Time) Entry {
	content := s.formatter.FormatProfile(draft.Text, profile)
	title := Title(draft.Text, s.config.TitleMaxLength)
	if title == "" {
		title = profile.Name + " post"
	}
	return Entry{
		ID:          s.newID(),
		Title:       title,
		Platform:    profile.ID,
		ScheduledAt: at,
		Status:      StatusScheduled,
		Content:     content,
		Score:       s.scorer.ScoreProfile(content, profile),
	}
}

func occupiedSlots(existing []Entry, loc *time.Location) map[string]struct{} {
	occupied := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		occupied[slotKey(e.ScheduledAt, loc)] = struct{}{}
	}
	return occupied
}

func slotKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(slotLayout)
}

func atHour(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

// Title derives an entry title from the first non-empty line of text with
// leading markdown markers removed, cut to limit runes
func Title(text string, limit int) string {
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#>-* "))
		line = strings.ReplaceAll(line, "**", "")
		if line == "" {
			continue
		}
		return platform.Truncate(line, limit)
	}
	return ""
}
