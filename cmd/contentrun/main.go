package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/contentrun/internal/config"
	"github.com/sawpanic/contentrun/internal/platform"
)

const (
	appName = "ContentRun"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the global flags and everything loaded from them
type app struct {
	configPath    string
	platformsPath string
	logLevel      string

	cfg      *config.Config
	registry *platform.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "contentrun",
		Short:   "Score, format and schedule content for several publishing platforms",
		Version: version,
		Long: appName + ` evaluates drafts against per-platform rules, rewrites them to fit
each platform's conventions and plans a posting calendar.

Run 'contentrun serve' for the HTTP API and schedule feed; the other
subcommands work offline against the same engine.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to the YAML config file (defaults apply when empty)")
	flags.StringVar(&a.platformsPath, "platforms", "", "Platform catalog YAML (overrides platforms_file)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides log_level)")

	rootCmd.AddCommand(
		newScoreCmd(a),
		newFormatCmd(a),
		newScheduleCmd(a),
		newPlatformsCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// load reads configuration, sets up logging and builds the platform registry
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
	}
	if a.platformsPath != "" {
		abs, err := filepath.Abs(a.platformsPath)
		if err != nil {
			return fmt.Errorf("resolve --platforms: %w", err)
		}
		cfg.PlatformsFile = abs
	}

	setupLogging(cmd.ErrOrStderr(), cfg.Level())

	registry, err := cfg.LoadPlatforms()
	if err != nil {
		return fmt.Errorf("load platforms: %w", err)
	}
	a.cfg = cfg
	a.registry = registry

	log.Debug().
		Str("config", a.configPath).
		Str("platforms", cfg.PlatformsPath()).
		Int("platform_count", registry.Len()).
		Msg("Configuration loaded")
	return nil
}

// setupLogging writes human-readable logs to terminals and JSON otherwise
func setupLogging(w io.Writer, level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}
