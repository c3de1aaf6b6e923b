// Package session persists logged-in browser sessions per account so a
// scrape can skip the login flow entirely. Sessions are serialized cookie
// sets in SQLite with a freshness horizon; anything older reads as absent,
// since an expired session and no session demand the same recovery.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// DefaultExpiry is how long a stored session is trusted before it reads as
// absent. LinkedIn sessions routinely outlive 30 days, but beyond that the
// odds of a silent server-side invalidation outweigh the saved login.
const DefaultExpiry = 720 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	email      TEXT PRIMARY KEY,
	cookies    TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// Cookie is one browser cookie in a stored session. It carries only the
// attributes needed to reconstruct the cookie in a fresh browser context.
type Cookie struct {
	Expires  time.Time `json:"expires,omitzero"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	HTTPOnly bool      `json:"http_only"`
	Secure   bool      `json:"secure"`
}

// State is a stored session for one account.
type State struct {
	CreatedAt time.Time
	Email     string
	Cookies   []Cookie
}

type config struct {
	logger *slog.Logger
	now    func() time.Time
	expiry time.Duration
}

// Option configures a Store.
type Option func(*config)

// WithLogger sets the logger for store operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithClock overrides the time source, which controls expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithExpiry sets how old a session may be before Load treats it as absent.
func WithExpiry(d time.Duration) Option {
	return func(c *config) { c.expiry = d }
}

// Store persists sessions keyed by account email. Writes are last-writer-
// wins upserts, so concurrent savers cannot corrupt a row, only replace it.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
	expiry time.Duration
}

// New opens (creating if needed) the session database at path.
func New(ctx context.Context, path string, opts ...Option) (*Store, error) {
	cfg := config{
		logger: slog.Default(),
		now:    time.Now,
		expiry: DefaultExpiry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("session: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: create schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: cfg.logger,
		now:    cfg.now,
		expiry: cfg.expiry,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored session for the account, or (nil, nil) when there
// is none or the stored one is older than the expiry. Callers treat nil as
// "log in fresh".
func (s *Store) Load(ctx context.Context, email string) (*State, error) {
	var (
		raw       string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cookies, created_at FROM sessions WHERE email = ?`, email).
		Scan(&raw, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("session: load %s: %w", email, err)
	}

	created := time.Unix(createdAt, 0).UTC()
	if s.now().Sub(created) > s.expiry {
		s.logger.DebugContext(ctx, "stored session expired",
			"account", email, "created_at", created)
		return nil, nil
	}

	var cookies []Cookie
	if err := json.Unmarshal([]byte(raw), &cookies); err != nil {
		// A row we cannot decode is as useless as no row. Surface it in
		// the log and fall through to a fresh login.
		s.logger.WarnContext(ctx, "stored session is undecodable, ignoring",
			"account", email, "error", err)
		return nil, nil
	}

	return &State{
		CreatedAt: created,
		Email:     email,
		Cookies:   cookies,
	}, nil
}

// Save stores the session for the account, replacing any previous one. The
// row is committed before Save returns.
func (s *Store) Save(ctx context.Context, email string, cookies []Cookie) error {
	if email == "" {
		return errors.New("session: empty account email")
	}
	if len(cookies) == 0 {
		return errors.New("session: no cookies to save")
	}

	raw, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("session: encode cookies for %s: %w", email, err)
	}
	now := s.now()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (email, cookies, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			cookies = excluded.cookies,
			created_at = excluded.created_at`,
		email, string(raw), now.Unix()); err != nil {
		return fmt.Errorf("session: save %s: %w", email, err)
	}

	s.logger.DebugContext(ctx, "session saved",
		"account", email, "cookies", len(cookies))
	return nil
}

// Delete removes the stored session for the account. Deleting a session
// that does not exist is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE email = ?`, email); err != nil {
		return fmt.Errorf("session: delete %s: %w", email, err)
	}
	return nil
}
