package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clearEnv blanks every variable Load reads so host state does not leak
// into assertions. t.Setenv restores the originals afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DOSSIER_ACCOUNTS", "DOSSIER_MAX_PER_DAY", "DOSSIER_COOLDOWN",
		"DOSSIER_BREAKER_THRESHOLD", "DOSSIER_SESSION_EXPIRY",
		"DOSSIER_SOURCE_TIMEOUT", "DOSSIER_TIMEOUT", "DOSSIER_HEADLESS",
		"GITHUB_TOKEN", "DOSSIER_MAX_REPOS", "DOSSIER_AI_API_KEY",
		"DOSSIER_AI_BASE_URL", "DOSSIER_AI_MODEL", "DOSSIER_MAX_DOC_BYTES",
		"DOSSIER_STATE_DIR",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOSSIER_STATE_DIR", t.TempDir())

	cfg, err := Load(discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPerDay != 10 || cfg.BreakerThreshold != 3 || cfg.MaxRepos != 10 {
		t.Errorf("integer defaults = %d/%d/%d, want 10/3/10",
			cfg.MaxPerDay, cfg.BreakerThreshold, cfg.MaxRepos)
	}
	if cfg.Cooldown != 6*time.Hour || cfg.SessionExpiry != 720*time.Hour {
		t.Errorf("durations = %s/%s, want 6h/720h", cfg.Cooldown, cfg.SessionExpiry)
	}
	if cfg.SourceTimeout != 2*time.Minute || cfg.OverallTimeout != 3*time.Minute {
		t.Errorf("timeouts = %s/%s, want 2m/3m", cfg.SourceTimeout, cfg.OverallTimeout)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true by default")
	}
	if cfg.MaxDocBytes != 16<<20 {
		t.Errorf("MaxDocBytes = %d, want %d", cfg.MaxDocBytes, 16<<20)
	}
	if len(cfg.Accounts) != 0 {
		t.Errorf("Accounts = %v, want none", cfg.Accounts)
	}
	if cfg.GitHubToken != "" || cfg.AIAPIKey != "" {
		t.Errorf("credentials = %q/%q, want empty", cfg.GitHubToken, cfg.AIAPIKey)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOSSIER_STATE_DIR", t.TempDir())
	t.Setenv("DOSSIER_MAX_PER_DAY", "3")
	t.Setenv("DOSSIER_COOLDOWN", "30m")
	t.Setenv("DOSSIER_HEADLESS", "false")
	t.Setenv("DOSSIER_MAX_DOC_BYTES", "1048576")
	t.Setenv("DOSSIER_TIMEOUT", "90s")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("DOSSIER_AI_API_KEY", "sk-test")

	cfg, err := Load(discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxPerDay != 3 {
		t.Errorf("MaxPerDay = %d, want 3", cfg.MaxPerDay)
	}
	if cfg.Cooldown != 30*time.Minute {
		t.Errorf("Cooldown = %s, want 30m", cfg.Cooldown)
	}
	if cfg.Headless {
		t.Error("Headless = true, want false")
	}
	if cfg.MaxDocBytes != 1<<20 {
		t.Errorf("MaxDocBytes = %d, want %d", cfg.MaxDocBytes, 1<<20)
	}
	if cfg.OverallTimeout != 90*time.Second {
		t.Errorf("OverallTimeout = %s, want 90s", cfg.OverallTimeout)
	}
	if cfg.GitHubToken != "ghp_test" || cfg.AIAPIKey != "sk-test" {
		t.Errorf("credentials = %q/%q", cfg.GitHubToken, cfg.AIAPIKey)
	}
}

func TestLoadAccountsWithSeeds(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOSSIER_STATE_DIR", t.TempDir())
	t.Setenv("DOSSIER_ACCOUNTS", "jane@example.com:hunter:2, bob@example.com:pw")
	t.Setenv("DOSSIER_TOTP_jane_at_example_com", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")

	cfg, err := Load(discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Accounts) != 2 {
		t.Fatalf("Accounts = %d entries, want 2", len(cfg.Accounts))
	}
	first := cfg.Accounts[0]
	if first.Email != "jane@example.com" || first.Password != "hunter:2" {
		t.Errorf("first account = %s/%s", first.Email, first.Password)
	}
	if first.TOTPSeed != "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ" {
		t.Errorf("first seed = %q, want the configured value", first.TOTPSeed)
	}
	if cfg.Accounts[1].TOTPSeed != "" {
		t.Errorf("second seed = %q, want empty", cfg.Accounts[1].TOTPSeed)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		envName string
		value   string
	}{
		{"non-numeric int", "DOSSIER_MAX_PER_DAY", "ten"},
		{"zero int", "DOSSIER_MAX_PER_DAY", "0"},
		{"negative int", "DOSSIER_BREAKER_THRESHOLD", "-1"},
		{"spelled-out duration", "DOSSIER_COOLDOWN", "6 hours"},
		{"negative duration", "DOSSIER_SOURCE_TIMEOUT", "-2m"},
		{"non-bool", "DOSSIER_HEADLESS", "yep"},
		{"non-numeric bytes", "DOSSIER_MAX_DOC_BYTES", "sixteen"},
		{"malformed accounts", "DOSSIER_ACCOUNTS", "no-password-here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DOSSIER_STATE_DIR", t.TempDir())
			t.Setenv(tt.envName, tt.value)

			_, err := Load(discardLogger())
			if err == nil {
				t.Fatalf("Load accepted %s=%q", tt.envName, tt.value)
			}
			if !strings.Contains(err.Error(), tt.envName) {
				t.Errorf("Load error = %v, want it to name %s", err, tt.envName)
			}
		})
	}
}

func TestLoadCreatesStateDir(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "state")
	t.Setenv("DOSSIER_STATE_DIR", dir)

	cfg, err := Load(discardLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	info, err := os.Stat(cfg.StateDir)
	if err != nil || !info.IsDir() {
		t.Fatalf("state dir %s not created: %v", cfg.StateDir, err)
	}
	if cfg.LedgerPath() != filepath.Join(dir, "ledger.db") {
		t.Errorf("LedgerPath = %q", cfg.LedgerPath())
	}
	if cfg.SessionPath() != filepath.Join(dir, "sessions.db") {
		t.Errorf("SessionPath = %q", cfg.SessionPath())
	}
}

func TestSanitizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane@example.com", "jane_at_example_com"},
		{"j.d@ex.co.uk", "j_d_at_ex_co_uk"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		if got := sanitizeEmail(tt.in); got != tt.want {
			t.Errorf("sanitizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
