// Package config reads the deployment environment for the pipeline
// commands: the account pool, pacing limits, API credentials and state
// locations. A .env file in the working directory is honored when
// present; real environment variables win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeGROOVE-dev/dossier/pkg/accounts"
	"github.com/codeGROOVE-dev/dossier/pkg/dossier"
	"github.com/codeGROOVE-dev/dossier/pkg/github"
	"github.com/codeGROOVE-dev/dossier/pkg/ledger"
	"github.com/codeGROOVE-dev/dossier/pkg/session"
)

// Config carries everything the commands need to assemble a pipeline.
//
//nolint:govet // fieldalignment: grouped by concern for readability
type Config struct {
	// Accounts is the scraping pool with TOTP seeds already attached.
	Accounts []accounts.Account

	// Account pacing, enforced by the usage ledger.
	MaxPerDay        int
	Cooldown         time.Duration
	BreakerThreshold int
	SessionExpiry    time.Duration

	// Request bounds.
	SourceTimeout  time.Duration
	OverallTimeout time.Duration
	Headless       bool

	// API path.
	GitHubToken string
	MaxRepos    int

	// AI extraction; an empty key means heuristic-only.
	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	MaxDocBytes int64

	// StateDir holds the ledger and session databases.
	StateDir string
}

// LedgerPath is the sqlite database recording account usage.
func (c *Config) LedgerPath() string { return filepath.Join(c.StateDir, "ledger.db") }

// SessionPath is the sqlite database holding login cookies.
func (c *Config) SessionPath() string { return filepath.Join(c.StateDir, "sessions.db") }

// Load reads the environment, applying defaults and validating every
// value. Errors name the offending variable. The state directory is
// created when missing.
func Load(logger *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	cfg := &Config{
		MaxPerDay:        ledger.DefaultMaxPerDay,
		Cooldown:         ledger.DefaultCooldown,
		BreakerThreshold: ledger.DefaultBreakerThreshold,
		SessionExpiry:    session.DefaultExpiry,
		SourceTimeout:    dossier.DefaultSourceTimeout,
		OverallTimeout:   dossier.DefaultOverallTimeout,
		Headless:         true,
		MaxRepos:         github.DefaultMaxRepos,
		MaxDocBytes:      dossier.DefaultMaxDocumentBytes,
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		AIAPIKey:         os.Getenv("DOSSIER_AI_API_KEY"),
		AIBaseURL:        os.Getenv("DOSSIER_AI_BASE_URL"),
		AIModel:          os.Getenv("DOSSIER_AI_MODEL"),
	}

	if raw := os.Getenv("DOSSIER_ACCOUNTS"); raw != "" {
		pool, err := accounts.ParsePool(raw)
		if err != nil {
			return nil, fmt.Errorf("DOSSIER_ACCOUNTS: %w", err)
		}
		for i := range pool {
			pool[i].TOTPSeed = os.Getenv("DOSSIER_TOTP_" + sanitizeEmail(pool[i].Email))
		}
		cfg.Accounts = pool
	}

	var err error
	if cfg.MaxPerDay, err = intVar("DOSSIER_MAX_PER_DAY", cfg.MaxPerDay); err != nil {
		return nil, err
	}
	if cfg.Cooldown, err = durationVar("DOSSIER_COOLDOWN", cfg.Cooldown); err != nil {
		return nil, err
	}
	if cfg.BreakerThreshold, err = intVar("DOSSIER_BREAKER_THRESHOLD", cfg.BreakerThreshold); err != nil {
		return nil, err
	}
	if cfg.SessionExpiry, err = durationVar("DOSSIER_SESSION_EXPIRY", cfg.SessionExpiry); err != nil {
		return nil, err
	}
	if cfg.SourceTimeout, err = durationVar("DOSSIER_SOURCE_TIMEOUT", cfg.SourceTimeout); err != nil {
		return nil, err
	}
	if cfg.OverallTimeout, err = durationVar("DOSSIER_TIMEOUT", cfg.OverallTimeout); err != nil {
		return nil, err
	}
	if cfg.Headless, err = boolVar("DOSSIER_HEADLESS", cfg.Headless); err != nil {
		return nil, err
	}
	if cfg.MaxRepos, err = intVar("DOSSIER_MAX_REPOS", cfg.MaxRepos); err != nil {
		return nil, err
	}
	if cfg.MaxDocBytes, err = int64Var("DOSSIER_MAX_DOC_BYTES", cfg.MaxDocBytes); err != nil {
		return nil, err
	}

	cfg.StateDir = os.Getenv("DOSSIER_STATE_DIR")
	if cfg.StateDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("DOSSIER_STATE_DIR unset and no user cache dir: %w", err)
		}
		cfg.StateDir = filepath.Join(base, "dossier")
	}
	// 0700: the directory holds login cookies.
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return nil, fmt.Errorf("DOSSIER_STATE_DIR: %w", err)
	}

	logger.Debug("configuration loaded",
		"accounts", len(cfg.Accounts),
		"state_dir", cfg.StateDir,
		"headless", cfg.Headless,
		"ai", cfg.AIAPIKey != "")
	return cfg, nil
}

// sanitizeEmail maps an address onto the seed variable charset: @ becomes
// _at_ and dots become underscores, case preserved. jane@example.com reads
// its seed from DOSSIER_TOTP_jane_at_example_com.
func sanitizeEmail(email string) string {
	email = strings.ReplaceAll(email, "@", "_at_")
	return strings.ReplaceAll(email, ".", "_")
}

func intVar(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", name, n)
	}
	return n, nil
}

func int64Var(name string, def int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", name, n)
	}
	return n, nil
}

func durationVar(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", name, d)
	}
	return d, nil
}

func boolVar(name string, def bool) (bool, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}
