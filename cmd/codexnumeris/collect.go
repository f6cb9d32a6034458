package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codexnumeris/codexnumeris/internal/adapter/driven/database"
	"github.com/codexnumeris/codexnumeris/internal/application"
)

func runCollect(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	slog.Info("collection starting",
		"organizations", len(cfg.Organizations),
		"queries", len(cfg.Queries),
		"rate_limit", cfg.RateLimit,
		"authenticated", cfg.HasGitHubToken(),
	)

	store := database.NewProjectRepo(db)
	svc := application.NewCollectService(newGitHubClient(), store, cfg.Organizations, cfg.Queries)
	summary, err := svc.Run(ctx)
	if err != nil {
		return fmt.Errorf("collection interrupted: %w", err)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d new projects (%d already stored, %d pages, %d fetch errors), %d in catalog\n",
		summary.Inserted, summary.Existing, summary.Pages, summary.FetchErrors, total)
	return nil
}
