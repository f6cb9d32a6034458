package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/codexnumeris/codexnumeris/internal/adapter/driven/database"
	githubadapter "github.com/codexnumeris/codexnumeris/internal/adapter/driven/github"
	"github.com/codexnumeris/codexnumeris/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

var (
	rootCmd = &cobra.Command{
		Use:               "codexnumeris",
		Short:             "Catalog of Harvard open-source projects on GitHub",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Run one collection over all organizations and search queries",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the landing page and JSON API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Database migrations",
	}
	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}
	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Revert all applied migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}

	// Flags
	envFile     string
	databaseURL string
	listenAddr  string

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment; missing files are ignored")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Database URL (sqlite://path or postgres://...). Falls back to DATABASE_URL")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "Address to listen on (host:port). Falls back to CODEX_LISTEN_ADDR")

	migrateCmd.AddCommand(upCmd, downCmd)
	rootCmd.AddCommand(collectCmd, serveCmd, migrateCmd)
}

// loadConfig reads the dotenv file and environment, applies flag overrides
// and installs the default logger.
func loadConfig(_ *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}
	if databaseURL != "" {
		loaded.DatabaseURL = databaseURL
	}
	if listenAddr != "" {
		loaded.ListenAddr = listenAddr
	}
	cfg = loaded

	slog.SetDefault(cfg.NewLogger(os.Stderr))
	return nil
}

// openDatabase opens the configured database and applies pending migrations.
func openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "dialect", string(db.Dialect))

	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("migrations complete")

	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

func newGitHubClient() *githubadapter.Client {
	return githubadapter.NewClient(cfg.GitHubToken,
		githubadapter.WithTimeout(cfg.HTTPTimeout),
		githubadapter.WithMaxRetries(cfg.MaxRetries),
		githubadapter.WithLimiter(githubadapter.NewLimiter(cfg.RateLimit)),
	)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := database.RunMigrations(db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if err := database.RollbackMigrations(db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations reverted")
	return nil
}
