// Command accounts inspects the scraping account pool: how much of each
// account's daily budget is spent, when it frees up, and whether its
// circuit breaker has tripped.
//
// Usage:
//
//	accounts                           # print the usage table
//	accounts -reset jane@example.com   # return a tripped account to rotation
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/config"
	"github.com/codeGROOVE-dev/dossier/pkg/ledger"
)

func main() {
	reset := flag.String("reset", "", "clear the breaker and counters for this account email")
	debug := flag.Bool("debug", false, "enable debug logging")
	stateDir := flag.String("state-dir", "", "override the ledger directory")
	flag.Parse()

	// Setup logger; warnings only so the table stays readable.
	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.Load(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *stateDir != "" {
		cfg.StateDir = *stateDir
	}

	ctx := context.Background()
	usage, err := ledger.New(ctx, cfg.LedgerPath(),
		ledger.WithLogger(logger),
		ledger.WithMaxPerDay(cfg.MaxPerDay),
		ledger.WithCooldown(cfg.Cooldown),
		ledger.WithBreakerThreshold(cfg.BreakerThreshold),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := usage.Close(); err != nil {
			logger.Warn("failed to close ledger", "error", err)
		}
	}()

	if *reset != "" {
		if err := usage.Reset(ctx, *reset); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:gocritic // exitAfterDefer is acceptable in main
			os.Exit(1)
		}
		fmt.Printf("reset %s\n", *reset)
		return
	}

	if len(cfg.Accounts) == 0 {
		fmt.Fprintln(os.Stderr, "No accounts configured. Set DOSSIER_ACCOUNTS (email:password,email:password).")
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tUSED TODAY\tLAST USED\tCOOLDOWN UNTIL\tFAILURES\tELIGIBLE")
	for _, account := range cfg.Accounts {
		u, err := usage.Usage(ctx, account.Email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		eligible, err := usage.CanUse(ctx, account.Email)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		lastUsed := "never"
		cooldownUntil := "-"
		if !u.LastUsed.IsZero() {
			lastUsed = u.LastUsed.Format(time.RFC3339)
			if until := u.LastUsed.Add(cfg.Cooldown); until.After(time.Now()) {
				cooldownUntil = until.Format(time.RFC3339)
			}
		}
		state := "yes"
		switch {
		case u.Blocked:
			state = "breaker tripped"
		case !eligible:
			state = "no"
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%d\t%s\n",
			u.Email, u.ScrapesToday, cfg.MaxPerDay, lastUsed, cooldownUntil, u.Failures, state)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		os.Exit(1)
	}
}
