package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testStore opens a store in a temp directory whose clock reads *now, so
// tests can advance time by reassigning the variable.
func testStore(t *testing.T, now *time.Time, opts ...Option) *Store {
	t.Helper()
	opts = append(opts,
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return *now }),
	)
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func sampleCookies() []Cookie {
	return []Cookie{
		{
			Name:     "li_at",
			Value:    "AQEDARsmfBcE8jAAAAGN",
			Domain:   ".linkedin.com",
			Path:     "/",
			Expires:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			HTTPOnly: true,
			Secure:   true,
		},
		{
			Name:   "JSESSIONID",
			Value:  `"ajax:5521"`,
			Domain: ".www.linkedin.com",
			Path:   "/",
		},
	}
}

func TestLoadMissingSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)

	state, err := s.Load(context.Background(), "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil for an account with no session", state)
	}
}

func TestSaveThenLoad(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)
	ctx := context.Background()

	if err := s.Save(ctx, "a@example.com", sampleCookies()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	state, err := s.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state == nil {
		t.Fatal("Load() = nil, want the saved session")
	}
	if state.Email != "a@example.com" {
		t.Errorf("Load().Email = %q, want %q", state.Email, "a@example.com")
	}
	if !state.CreatedAt.Equal(now) {
		t.Errorf("Load().CreatedAt = %v, want %v", state.CreatedAt, now)
	}
	if diff := cmp.Diff(sampleCookies(), state.Cookies); diff != "" {
		t.Errorf("Load() cookies mismatch (-want +got):\n%s", diff)
	}
}

func TestExpiredSessionReadsAsAbsent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now, WithExpiry(time.Hour))
	ctx := context.Background()

	if err := s.Save(ctx, "a@example.com", sampleCookies()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	now = now.Add(2 * time.Hour)
	state, err := s.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil once the session aged past the expiry", state)
	}
}

func TestSaveOverwritesPreviousSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)
	ctx := context.Background()

	if err := s.Save(ctx, "a@example.com", sampleCookies()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	now = now.Add(time.Hour)
	replacement := []Cookie{{Name: "li_at", Value: "fresh", Domain: ".linkedin.com", Path: "/"}}
	if err := s.Save(ctx, "a@example.com", replacement); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	state, err := s.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state == nil {
		t.Fatal("Load() = nil, want the replacement session")
	}
	if !state.CreatedAt.Equal(now) {
		t.Errorf("Load().CreatedAt = %v, want the second save time %v", state.CreatedAt, now)
	}
	if diff := cmp.Diff(replacement, state.Cookies); diff != "" {
		t.Errorf("Load() cookies mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)
	ctx := context.Background()

	if err := s.Save(ctx, "a@example.com", sampleCookies()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, "a@example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	state, err := s.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil after Delete", state)
	}

	if err := s.Delete(ctx, "never-saved@example.com"); err != nil {
		t.Errorf("Delete() of a missing session error = %v, want nil", err)
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)
	ctx := context.Background()

	if err := s.Save(ctx, "", sampleCookies()); err == nil {
		t.Error("Save() with empty email error = nil, want error")
	}
	if err := s.Save(ctx, "a@example.com", nil); err == nil {
		t.Error("Save() with no cookies error = nil, want error")
	}
}

func TestUndecodableRowReadsAsAbsent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := testStore(t, &now)
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (email, cookies, created_at) VALUES (?, ?, ?)`,
		"a@example.com", "not json", now.Unix()); err != nil {
		t.Fatalf("seeding corrupt row: %v", err)
	}

	state, err := s.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state != nil {
		t.Errorf("Load() = %+v, want nil for a row that does not decode", state)
	}
}

func TestSessionSurvivesReopen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	s, err := New(ctx, path, WithLogger(discardLogger()), WithClock(clock))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s.Save(ctx, "a@example.com", sampleCookies()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(ctx, path, WithLogger(discardLogger()), WithClock(clock))
	if err != nil {
		t.Fatalf("New() on reopen error = %v", err)
	}

	state, err := reopened.Load(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state == nil {
		t.Fatal("Load() = nil after reopen, want the saved session")
	}
	if diff := cmp.Diff(sampleCookies(), state.Cookies); diff != "" {
		t.Errorf("Load() cookies mismatch (-want +got):\n%s", diff)
	}

	if err := reopened.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
