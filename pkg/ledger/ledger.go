// Package ledger tracks per-account scrape usage in SQLite. Accounts are
// throttled by a daily cap and a cooldown between uses, and a run of
// consecutive failures trips a circuit breaker that stays tripped until an
// operator reset. Every mutation is committed before RecordAttempt returns,
// so a crash mid-run cannot silently reuse quota.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // sqlite driver
)

// Defaults match typical burner-account tolerances: ten profile loads per
// UTC day, six hours between loads, and three consecutive failures before
// the account is presumed flagged.
const (
	DefaultMaxPerDay        = 10
	DefaultCooldown         = 6 * time.Hour
	DefaultBreakerThreshold = 3
)

const schema = `
CREATE TABLE IF NOT EXISTS account_usage (
	email         TEXT PRIMARY KEY,
	day           TEXT NOT NULL DEFAULT '',
	scrapes_today INTEGER NOT NULL DEFAULT 0,
	total_scrapes INTEGER NOT NULL DEFAULT 0,
	failures      INTEGER NOT NULL DEFAULT 0,
	blocked       INTEGER NOT NULL DEFAULT 0,
	last_used     INTEGER NOT NULL DEFAULT 0
)`

// Usage is a point-in-time snapshot of one account's ledger row. Day and
// ScrapesToday are normalized to the current UTC day, so yesterday's row
// reads as zero scrapes today. A zero LastUsed means the account has never
// been used.
type Usage struct {
	Email        string
	Day          string
	LastUsed     time.Time
	ScrapesToday int
	TotalScrapes int
	Failures     int
	Blocked      bool
}

type config struct {
	logger    *slog.Logger
	now       func() time.Time
	cooldown  time.Duration
	maxPerDay int
	breaker   int
}

// Option configures a Ledger.
type Option func(*config)

// WithLogger sets the logger for ledger operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithClock overrides the time source, which controls day rollover and
// cooldown arithmetic in tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithMaxPerDay sets how many scrapes an account may perform per UTC day.
func WithMaxPerDay(n int) Option {
	return func(c *config) { c.maxPerDay = n }
}

// WithCooldown sets the minimum spacing between two uses of the same
// account. Zero disables the cooldown.
func WithCooldown(d time.Duration) Option {
	return func(c *config) { c.cooldown = d }
}

// WithBreakerThreshold sets how many consecutive failures trip the
// circuit breaker.
func WithBreakerThreshold(n int) Option {
	return func(c *config) { c.breaker = n }
}

// Ledger is the shared usage book for the account pool. It is safe for
// concurrent use; mutations to the same account are serialized.
type Ledger struct {
	db        *sql.DB
	logger    *slog.Logger
	now       func() time.Time
	locks     sync.Map // map[string]*sync.Mutex - per-account locks
	cooldown  time.Duration
	maxPerDay int
	breaker   int
}

// New opens (creating if needed) the ledger database at path.
func New(ctx context.Context, path string, opts ...Option) (*Ledger, error) {
	cfg := config{
		logger:    slog.Default(),
		now:       time.Now,
		cooldown:  DefaultCooldown,
		maxPerDay: DefaultMaxPerDay,
		breaker:   DefaultBreakerThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open database: %w", err)
	}
	// sqlite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY instead of retrying around it.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: ping database: %w", err)
	}
	// FULL fsyncs every commit; attempt counts must survive a crash.
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=FULL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}

	return &Ledger{
		db:        db,
		logger:    cfg.logger,
		now:       cfg.now,
		cooldown:  cfg.cooldown,
		maxPerDay: cfg.maxPerDay,
		breaker:   cfg.breaker,
	}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// CanUse reports whether the account may scrape right now: breaker not
// tripped, daily cap not reached, and the cooldown since its last use
// elapsed.
func (l *Ledger) CanUse(ctx context.Context, email string) (bool, error) {
	u, err := l.usage(ctx, email, l.now())
	if err != nil {
		return false, err
	}
	switch {
	case u.Blocked:
		return false, nil
	case u.ScrapesToday >= l.maxPerDay:
		return false, nil
	case !u.LastUsed.IsZero() && l.now().Before(u.LastUsed.Add(l.cooldown)):
		return false, nil
	default:
		return true, nil
	}
}

// RecordAttempt books one scrape against the account. It always bumps the
// usage counters and the cooldown window; success resets the failure
// streak, failure extends it and trips the breaker at the threshold. The
// row is committed before RecordAttempt returns.
func (l *Ledger) RecordAttempt(ctx context.Context, email string, success bool) error {
	if email == "" {
		return errors.New("ledger: empty account email")
	}
	mu := l.lock(email)
	mu.Lock()
	defer mu.Unlock()

	now := l.now()
	u, err := l.usage(ctx, email, now)
	if err != nil {
		return err
	}
	u.ScrapesToday++
	u.TotalScrapes++
	u.LastUsed = now
	if success {
		u.Failures = 0
	} else {
		u.Failures++
		if u.Failures >= l.breaker && !u.Blocked {
			u.Blocked = true
			l.logger.WarnContext(ctx, "account circuit breaker tripped",
				"account", email, "consecutive_failures", u.Failures)
		}
	}

	if _, err := l.db.ExecContext(ctx, `
		INSERT INTO account_usage (email, day, scrapes_today, total_scrapes, failures, blocked, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			day = excluded.day,
			scrapes_today = excluded.scrapes_today,
			total_scrapes = excluded.total_scrapes,
			failures = excluded.failures,
			blocked = excluded.blocked,
			last_used = excluded.last_used`,
		email, u.Day, u.ScrapesToday, u.TotalScrapes, u.Failures, u.Blocked, u.LastUsed.Unix()); err != nil {
		return fmt.Errorf("ledger: record attempt for %s: %w", email, err)
	}

	l.logger.DebugContext(ctx, "recorded scrape attempt",
		"account", email, "success", success,
		"scrapes_today", u.ScrapesToday, "consecutive_failures", u.Failures)
	return nil
}

// NextEligibleTime reports when the account may scrape again. It returns
// the current time if the account is eligible now, and the zero time if
// the breaker is tripped, since only Reset clears that.
func (l *Ledger) NextEligibleTime(ctx context.Context, email string) (time.Time, error) {
	now := l.now()
	u, err := l.usage(ctx, email, now)
	if err != nil {
		return time.Time{}, err
	}
	if u.Blocked {
		return time.Time{}, nil
	}
	at := now
	if !u.LastUsed.IsZero() {
		if end := u.LastUsed.Add(l.cooldown); end.After(at) {
			at = end
		}
	}
	if u.ScrapesToday >= l.maxPerDay {
		if midnight := nextUTCDay(now); midnight.After(at) {
			at = midnight
		}
	}
	return at, nil
}

// Usage returns the account's current snapshot. Accounts the ledger has
// never seen return a clean slate rather than an error, since the pool is
// configured elsewhere and rows are created lazily on first use.
func (l *Ledger) Usage(ctx context.Context, email string) (Usage, error) {
	return l.usage(ctx, email, l.now())
}

// Reset clears the account's breaker, failure streak, daily count, and
// cooldown so an operator can return it to rotation. Lifetime totals are
// kept.
func (l *Ledger) Reset(ctx context.Context, email string) error {
	mu := l.lock(email)
	mu.Lock()
	defer mu.Unlock()

	if _, err := l.db.ExecContext(ctx, `
		UPDATE account_usage
		SET scrapes_today = 0, failures = 0, blocked = 0, last_used = 0
		WHERE email = ?`, email); err != nil {
		return fmt.Errorf("ledger: reset %s: %w", email, err)
	}
	l.logger.InfoContext(ctx, "account usage reset", "account", email)
	return nil
}

func (l *Ledger) usage(ctx context.Context, email string, now time.Time) (Usage, error) {
	u := Usage{Email: email}
	var lastUsed int64
	err := l.db.QueryRowContext(ctx, `
		SELECT day, scrapes_today, total_scrapes, failures, blocked, last_used
		FROM account_usage WHERE email = ?`, email).
		Scan(&u.Day, &u.ScrapesToday, &u.TotalScrapes, &u.Failures, &u.Blocked, &lastUsed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Never used; falls through to the rollover normalization below.
	case err != nil:
		return Usage{}, fmt.Errorf("ledger: load %s: %w", email, err)
	}
	if lastUsed > 0 {
		u.LastUsed = time.Unix(lastUsed, 0).UTC()
	}
	if today := utcDay(now); u.Day != today {
		u.Day = today
		u.ScrapesToday = 0
	}
	return u, nil
}

// lock returns the mutex serializing mutations for one account.
func (l *Ledger) lock(email string) *sync.Mutex {
	muI, _ := l.locks.LoadOrStore(email, &sync.Mutex{})
	if mu, ok := muI.(*sync.Mutex); ok {
		return mu
	}
	return &sync.Mutex{}
}

func utcDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func nextUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
