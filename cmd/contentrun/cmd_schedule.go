package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/contentrun/internal/application"
	"github.com/sawpanic/contentrun/internal/infrastructure/db"
	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/scheduler"
)

type scheduleFlags struct {
	days      int
	seed      uint64
	platforms []string
	dryRun    bool
	persist   bool
	asJSON    bool
}

func newScheduleCmd(a *app) *cobra.Command {
	var f scheduleFlags

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Plan a posting calendar",
		Long: `Plans one post per day over the horizon, on a platform that posts that
weekday, at one of its good hours. Drafts come from the configured supplier
and are formatted and scored before they are returned.

With --persist the plan avoids slots already stored in the configured
repository and is written to it in one transaction.`,
		Example: `  contentrun schedule --days 7 --seed 42
  contentrun schedule --platform microblog --platform long-form-publisher --json
  contentrun schedule --days 14 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSchedule(cmd, f)
		},
	}

	fs := cmd.Flags()
	fs.IntVarP(&f.days, "days", "d", 0, "Horizon in days (0 = scheduler.default_horizon_days)")
	fs.Uint64Var(&f.seed, "seed", 0, "Seed for reproducible platform and hour choices")
	fs.StringSliceVarP(&f.platforms, "platform", "p", nil, "Restrict to these platform IDs (repeatable)")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Only show which platforms are eligible each day")
	fs.BoolVar(&f.persist, "persist", false, "Store the plan in the configured repository")
	fs.BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "persist")
	return cmd
}

func (a *app) runSchedule(cmd *cobra.Command, f scheduleFlags) error {
	engine, err := a.newEngine(nil)
	if err != nil {
		return err
	}
	days := f.days
	if days == 0 {
		days = engine.SchedulerConfig().DefaultHorizonDays
	}
	ids := parsePlatformIDs(f.platforms)
	out := cmd.OutOrStdout()

	if f.dryRun {
		windows, err := engine.Windows(days, ids)
		if err != nil {
			return err
		}
		if f.asJSON {
			return writeJSON(out, windows)
		}
		newRenderer(out).windows(windows)
		return nil
	}

	supplier, err := a.newSupplier(nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := application.PlanRequest{HorizonDays: days, Platforms: ids}
	if cmd.Flags().Changed("seed") {
		seed := f.seed
		req.Seed = &seed
	}

	var entries []scheduler.Entry
	if f.persist {
		entries, err = a.planPersisted(ctx, engine, req, supplier)
	} else {
		entries, err = engine.Plan(ctx, req, supplier)
	}
	if err != nil {
		return err
	}

	if f.asJSON {
		if entries == nil {
			entries = []scheduler.Entry{}
		}
		return writeJSON(out, entries)
	}
	newRenderer(out).entries(entries)
	return nil
}

// planPersisted plans around the stored entries and commits the new batch
func (a *app) planPersisted(ctx context.Context, engine *application.Engine, req application.PlanRequest, supplier scheduler.DraftSupplier) ([]scheduler.Entry, error) {
	manager, err := db.NewManager(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	defer manager.Close()
	repo := manager.Repository().Schedule

	now := engine.Now()
	existing, err := repo.ListRange(ctx, persistence.TimeRange{
		From: now.Truncate(time.Hour),
		To:   now.AddDate(0, 0, req.HorizonDays),
	})
	if err != nil {
		return nil, fmt.Errorf("load existing entries: %w", err)
	}
	req.Existing = existing

	entries, err := engine.Plan(ctx, req, supplier)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		if err := repo.InsertBatch(ctx, entries); err != nil {
			return nil, fmt.Errorf("store schedule: %w", err)
		}
	}

	log.Info().
		Int("existing", len(existing)).
		Int("stored", len(entries)).
		Bool("postgres", manager.IsEnabled()).
		Msg("Schedule persisted")
	return entries, nil
}
