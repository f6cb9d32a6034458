// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DefaultOrganizations are the GitHub organizations swept when CODEX_ORGS is unset.
var DefaultOrganizations = []string{
	"harvard",
	"harvard-lil",
	"huit",
	"cga-harvard",
	"harvard-library",
	"hms-dbmi",
	"harvardnlp",
	"IQSS",
	"berkmancenter",
	"cid-harvard",
	"mahmoodlab",
	"Harvard-Ophthalmology-AI-Lab",
	"sorgerlab",
	"harvard-acc",
	"churchlab",
	"broadinstitute",
}

// DefaultQueries are the repository search queries run when CODEX_QUERIES is unset.
var DefaultQueries = []string{
	"harvard.edu in:readme pushed:>2024-01-01 stars:>10",
	"harvard bioinformatics stars:>10",
	"harvard deep learning neural network stars:>10",
	"cs50 harvard stars:>10",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DatabaseURL     string
	GitHubToken     string
	ListenAddr      string
	HTTPTimeout     time.Duration
	RateLimit       float64
	MaxRetries      int
	Organizations   []string
	Queries         []string
	LogLevel        slog.Level
	CollectSchedule string
}

// HasGitHubToken reports whether requests will be authenticated.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a validated Config.
// Every variable is optional: DATABASE_URL (sqlite://collectors/projects.db),
// GITHUB_TOKEN (unauthenticated), CODEX_LISTEN_ADDR (127.0.0.1:8080),
// CODEX_HTTP_TIMEOUT (30s), CODEX_RATE_LIMIT (1 req/s, 0 disables),
// CODEX_MAX_RETRIES (3), CODEX_ORGS and CODEX_QUERIES (built-in lists),
// CODEX_LOG_LEVEL (info), CODEX_COLLECT_SCHEDULE (empty, disabled).
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:   "sqlite://collectors/projects.db",
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		ListenAddr:    "127.0.0.1:8080",
		HTTPTimeout:   30 * time.Second,
		RateLimit:     1,
		MaxRetries:    3,
		Organizations: append([]string(nil), DefaultOrganizations...),
		Queries:       append([]string(nil), DefaultQueries...),
		LogLevel:      slog.LevelInfo,
	}

	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		cfg.DatabaseURL = v
	}

	if v, ok := os.LookupEnv("CODEX_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("CODEX_HTTP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CODEX_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("CODEX_HTTP_TIMEOUT must be positive, got %q", v)
		}
		cfg.HTTPTimeout = d
	}

	if v, ok := os.LookupEnv("CODEX_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("CODEX_RATE_LIMIT has invalid number %q: %w", v, err)
		}
		if f < 0 {
			return nil, fmt.Errorf("CODEX_RATE_LIMIT must not be negative, got %q", v)
		}
		cfg.RateLimit = f
	}

	if v, ok := os.LookupEnv("CODEX_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("CODEX_MAX_RETRIES has invalid integer %q: %w", v, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("CODEX_MAX_RETRIES must not be negative, got %d", n)
		}
		cfg.MaxRetries = n
	}

	if v, ok := os.LookupEnv("CODEX_ORGS"); ok {
		if orgs := splitList(v, ","); len(orgs) > 0 {
			cfg.Organizations = orgs
		}
	}

	if v, ok := os.LookupEnv("CODEX_QUERIES"); ok {
		if queries := splitList(v, ";"); len(queries) > 0 {
			cfg.Queries = queries
		}
	}

	if v, ok := os.LookupEnv("CODEX_LOG_LEVEL"); ok && v != "" {
		level, err := ParseLogLevel(v)
		if err != nil {
			return nil, fmt.Errorf("CODEX_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	if v, ok := os.LookupEnv("CODEX_COLLECT_SCHEDULE"); ok && strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		schedule, err := cron.ParseStandard(v)
		if err != nil {
			return nil, fmt.Errorf("CODEX_COLLECT_SCHEDULE has invalid cron expression %q: %w", v, err)
		}
		if schedule.Next(time.Now()).IsZero() {
			return nil, fmt.Errorf("CODEX_COLLECT_SCHEDULE %q never fires", v)
		}
		cfg.CollectSchedule = v
	}

	return cfg, nil
}

// ParseLogLevel maps debug, info, warn (or warning) and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func splitList(v, sep string) []string {
	var out []string
	for _, item := range strings.Split(v, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
