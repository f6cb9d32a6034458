package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codexnumeris/codexnumeris/internal/adapter/driven/database"
	httphandler "github.com/codexnumeris/codexnumeris/internal/adapter/driving/http"
	webhandler "github.com/codexnumeris/codexnumeris/internal/adapter/driving/web"
	"github.com/codexnumeris/codexnumeris/internal/application"
)

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open database and run migrations.
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	store := database.NewProjectRepo(db)

	// 3. Optional background collection.
	if cfg.CollectSchedule != "" {
		schedule, err := application.ParseSchedule(cfg.CollectSchedule)
		if err != nil {
			return err
		}
		svc := application.NewCollectService(newGitHubClient(), store, cfg.Organizations, cfg.Queries)
		sched := application.NewScheduler(svc, schedule)
		stopScheduler := startScheduler(ctx, sched)
		// Runs before closeDatabase so no collection outlives the pools.
		defer stopScheduler()
		slog.Info("collection scheduler started", "schedule", cfg.CollectSchedule)
	}

	// 4. Register API and web routes.
	logger := slog.Default()
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, httphandler.NewHandler(store, logger))

	webHandler, err := webhandler.NewHandler(store, logger)
	if err != nil {
		return err
	}
	webhandler.RegisterRoutes(mux, webHandler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.ApplyMiddleware(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 5. Wait for shutdown signal or server failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// startScheduler runs the scheduler and the SIGHUP listener in the background.
// The returned function cancels both and blocks until they have returned.
func startScheduler(ctx context.Context, sched *application.Scheduler) func() {
	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		runOnHangup(ctx, sched)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// runOnHangup triggers an immediate collection on every SIGHUP.
func runOnHangup(ctx context.Context, sched *application.Scheduler) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			slog.Info("collection requested by SIGHUP")
			if _, err := sched.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("requested collection failed", "error", err)
			}
		}
	}
}
