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

	"github.com/sawpanic/contentrun/internal/cache"
	"github.com/sawpanic/contentrun/internal/infrastructure/db"
	httpapi "github.com/sawpanic/contentrun/internal/interfaces/http"
	"github.com/sawpanic/contentrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/contentrun/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and schedule feed",
		Long: `Serves /health, /metrics, /platforms, /score, /format, /schedule and the
/ws/schedule websocket feed until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				if port < 1 || port > 65535 {
					return fmt.Errorf("invalid port: %d", port)
				}
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	m := metrics.New(nil)

	manager, err := db.NewManager(a.cfg.Database)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error().Err(err).Msg("Database close error")
		}
	}()

	engine, err := a.newEngine(m)
	if err != nil {
		return err
	}
	supplier, err := a.newSupplier(m)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(a.cfg.Server, handlers.Deps{
		Engine:   engine,
		Repo:     manager.Repository().Schedule,
		Health:   manager.Health(),
		Scores:   cache.NewScoreCache(cache.New(a.cfg.Cache), a.cfg.Cache.TTL, m),
		Supplier: supplier,
		Version:  version,
	}, m)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := server.GetAddress()
		log.Info().
			Str("health", addr+"/health").
			Str("metrics", addr+"/metrics").
			Str("schedule", addr+"/schedule").
			Str("feed", addr+"/ws/schedule").
			Str("supplier", a.cfg.Supplier.Mode).
			Bool("postgres", manager.IsEnabled()).
			Msg("Endpoints available")

		serverErr <- server.Start()
	}()

	quit, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-quit.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
