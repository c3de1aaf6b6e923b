// Package accounts manages the scraping account pool: parsing the
// configured credentials and rotating across whichever accounts the usage
// ledger still permits, least recently used first.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/ledger"
	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// Account is one set of scraping credentials. TOTPSeed is the base32
// two-factor seed, empty when the account has none configured.
type Account struct {
	Email    string
	Password string
	TOTPSeed string
}

// ParsePool parses a comma-separated "email:password" list. Only the first
// colon in each entry splits the fields, so passwords may contain colons.
func ParsePool(raw string) ([]Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var pool []Account
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, password, ok := strings.Cut(entry, ":")
		email = strings.TrimSpace(email)
		password = strings.TrimSpace(password)
		if !ok || email == "" || password == "" {
			return nil, fmt.Errorf("accounts: entry %q is not email:password", entry)
		}
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("accounts: %q is not an email address", email)
		}
		if seen[email] {
			return nil, fmt.Errorf("accounts: duplicate account %s", email)
		}
		seen[email] = true
		pool = append(pool, Account{Email: email, Password: password})
	}
	return pool, nil
}

// Ledger is the usage view the rotator consults. *ledger.Ledger implements
// it; tests substitute a fake.
type Ledger interface {
	CanUse(ctx context.Context, email string) (bool, error)
	Usage(ctx context.Context, email string) (ledger.Usage, error)
	NextEligibleTime(ctx context.Context, email string) (time.Time, error)
}

// Option configures a Rotator.
type Option func(*Rotator)

// WithLogger sets the logger for rotation decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rotator) { r.logger = logger }
}

// Rotator hands out eligible accounts, spreading load by picking the least
// recently used. Acquisition is a point-in-time decision, not a lease: the
// ledger's own bookkeeping on completion is what stops double-booking.
type Rotator struct {
	ledger Ledger
	logger *slog.Logger
	pool   []Account
}

// NewRotator builds a rotator over the pool.
func NewRotator(pool []Account, ledger Ledger, opts ...Option) (*Rotator, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("accounts: empty pool: %w", portfolio.ErrNoEligibleAccount)
	}
	r := &Rotator{
		ledger: ledger,
		logger: slog.Default(),
		pool:   pool,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Acquire returns the least recently used account the ledger permits right
// now. Accounts that have never been used sort first. When nothing is
// eligible it fails with ErrNoEligibleAccount, annotated with the soonest
// time any account frees up.
func (r *Rotator) Acquire(ctx context.Context) (Account, error) {
	var (
		best   Account
		bestAt time.Time
		found  bool
	)
	for _, acct := range r.pool {
		ok, err := r.ledger.CanUse(ctx, acct.Email)
		if err != nil {
			return Account{}, fmt.Errorf("accounts: eligibility of %s: %w", acct.Email, err)
		}
		if !ok {
			continue
		}
		u, err := r.ledger.Usage(ctx, acct.Email)
		if err != nil {
			return Account{}, fmt.Errorf("accounts: usage of %s: %w", acct.Email, err)
		}
		if !found || u.LastUsed.Before(bestAt) {
			best, bestAt, found = acct, u.LastUsed, true
		}
	}
	if !found {
		return Account{}, r.noneEligible(ctx)
	}
	r.logger.DebugContext(ctx, "acquired account",
		"account", best.Email, "last_used", bestAt)
	return best, nil
}

// noneEligible explains the empty result: either every account's breaker is
// tripped, or the caller can retry once the soonest cooldown or quota
// window passes.
func (r *Rotator) noneEligible(ctx context.Context) error {
	var soonest time.Time
	for _, acct := range r.pool {
		at, err := r.ledger.NextEligibleTime(ctx, acct.Email)
		if err != nil || at.IsZero() {
			continue
		}
		if soonest.IsZero() || at.Before(soonest) {
			soonest = at
		}
	}
	if soonest.IsZero() {
		return fmt.Errorf("all %d accounts blocked: %w", len(r.pool), portfolio.ErrNoEligibleAccount)
	}
	return fmt.Errorf("next account eligible at %s: %w",
		soonest.UTC().Format(time.RFC3339), portfolio.ErrNoEligibleAccount)
}
