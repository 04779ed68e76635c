// Package main runs the household inventory server: JSON API, WebSocket
// events and the daily sweeps.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/homeinv/backend/cmd/server/handlers"
	"github.com/kimhsiao/homeinv/backend/internal/config"
	"github.com/kimhsiao/homeinv/backend/internal/db"
	"github.com/kimhsiao/homeinv/backend/internal/logging"
	"github.com/kimhsiao/homeinv/backend/internal/notify"
	"github.com/kimhsiao/homeinv/backend/internal/scheduler"
	"github.com/kimhsiao/homeinv/backend/internal/services"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to YAML config file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("homeinv %s\n", Version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "homeinv: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	out, closeLog, err := logOutput(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	logging.SetGlobal(logging.New(out, logging.ParseLevel(cfg.Log.Level)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	return app.serve(ctx)
}

// logOutput opens the configured log file, or stdout when none is set.
func logOutput(cfg config.LogConfig) (io.Writer, func(), error) {
	if cfg.File == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

type app struct {
	cfg       *config.Config
	database  *db.DB
	hub       *notify.Hub
	scheduler *scheduler.Scheduler
	server    *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, err
	}

	repo := db.NewRepository(database)
	trees := services.NewTreeService(repo)
	reminders := services.NewReminderService(repo)
	lendings := services.NewLendingService(repo, reminders)
	items := services.NewItemService(repo, trees, reminders)

	hub := notify.NewHub(cfg.Server.AllowedOrigins)
	sched := scheduler.New(lendings, reminders, hub, &scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	})

	router := handlers.NewRouter(handlers.Deps{
		Trees:     trees,
		Items:     items,
		Lendings:  lendings,
		Reminders: reminders,
		Scheduler: sched,
		Store:     repo,
		Events:    hub,
	})

	return &app{
		cfg:       cfg,
		database:  database,
		hub:       hub,
		scheduler: sched,
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// serve runs until ctx is cancelled or the listener fails, then shuts the
// server down gracefully.
func (a *app) serve(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		a.scheduler.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", map[string]interface{}{
			"version": Version,
			"addr":    a.cfg.Server.Addr,
			"driver":  a.cfg.Database.Driver,
		})
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

func (a *app) close() {
	a.scheduler.Stop()
	a.hub.Close()
	if err := a.database.Close(); err != nil {
		logging.Error("failed to close database", err)
	}
}
