package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/tracker/internal/config"
	"github.com/aristath/tracker/internal/events"
	"github.com/aristath/tracker/internal/gateway"
	"github.com/aristath/tracker/internal/orchestrator"
	"github.com/aristath/tracker/internal/persistence"
	"github.com/aristath/tracker/internal/tracker"
)

func main() {
	initConfig := flag.Bool("init-config", false, "write the default config to .trackerd/config.json and exit")
	dbPath := flag.String("db", "", "database path (overrides config)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if *initConfig {
		path := ".trackerd/config.json"
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.TrackerConfig) error {
	store, err := persistence.NewSQLiteStore(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	statuses := make([]tracker.Status, 0, len(cfg.Seed.Statuses))
	for _, st := range cfg.Seed.Statuses {
		statuses = append(statuses, tracker.Status{Name: st.Name, Number: st.Number})
	}
	roles := []string{tracker.RoleManager, tracker.RoleDeveloper, tracker.RoleTester}
	if err := store.Seed(ctx, statuses, cfg.Seed.TaskTypes, cfg.Seed.Priorities, roles); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	bus := events.NewEventBus()
	defer bus.Close()

	service := orchestrator.NewService(store, bus)
	server := gateway.NewServer(service, store, bus, cfg.Server.Host, cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
