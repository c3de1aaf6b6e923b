// Command dossier assembles one merged professional profile from up to
// three sources: an uploaded resume, a LinkedIn profile scraped through a
// real browser, and the GitHub REST API.
//
// Usage:
//
//	dossier -doc resume.pdf
//	dossier -social https://www.linkedin.com/in/janedoe  # requires DOSSIER_ACCOUNTS
//	dossier -doc resume.pdf -github janedoe -social https://linkedin.com/in/janedoe
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/accounts"
	"github.com/codeGROOVE-dev/dossier/pkg/auth"
	"github.com/codeGROOVE-dev/dossier/pkg/config"
	"github.com/codeGROOVE-dev/dossier/pkg/dossier"
	"github.com/codeGROOVE-dev/dossier/pkg/extract"
	"github.com/codeGROOVE-dev/dossier/pkg/github"
	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/ledger"
	"github.com/codeGROOVE-dev/dossier/pkg/linkedin"
	"github.com/codeGROOVE-dev/dossier/pkg/session"
)

func main() {
	social := flag.String("social", "", "LinkedIn profile URL to scrape")
	githubUser := flag.String("github", "", "GitHub username or profile URL")
	docPath := flag.String("doc", "", "resume file to extract (.pdf or .docx)")
	timeout := flag.Duration("timeout", 0, "overall deadline (0 uses DOSSIER_TIMEOUT)")
	debug := flag.Bool("debug", false, "enable debug logging")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching for API calls")
	cacheTTL := flag.Duration("cache-ttl", 24*time.Hour, "API cache time-to-live")
	noBrowserCookies := flag.Bool("no-browser-cookies", false, "do not seed login sessions from browser cookie stores")
	headful := flag.Bool("headful", false, "run the scraping browser visibly")
	stateDir := flag.String("state-dir", "", "override the ledger/session directory")
	flag.Parse()

	if *social == "" && *githubUser == "" && *docPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: dossier [options]")
		fmt.Fprintln(os.Stderr, "\nAt least one of -social, -github or -doc is required.")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nEnvironment:")
		fmt.Fprintln(os.Stderr, "  DOSSIER_ACCOUNTS    email:password pool for the social path")
		fmt.Fprintln(os.Stderr, "  DOSSIER_TOTP_*      per-account two-factor seeds")
		fmt.Fprintln(os.Stderr, "  GITHUB_TOKEN        raises API rate limits")
		fmt.Fprintln(os.Stderr, "  DOSSIER_AI_API_KEY  enables AI field extraction for resumes")
		os.Exit(1)
	}

	// Setup logger
	logLevel := slog.LevelInfo
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
		if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "Error: state dir: %v\n", err)
			os.Exit(1)
		}
	}
	if *timeout > 0 {
		cfg.OverallTimeout = *timeout
	}
	if *headful {
		cfg.Headless = false
	}

	ctx := context.Background()

	opts := []dossier.Option{
		dossier.WithLogger(logger),
		dossier.WithSourceTimeout(cfg.SourceTimeout),
		dossier.WithOverallTimeout(cfg.OverallTimeout),
		dossier.WithMaxDocumentBytes(cfg.MaxDocBytes),
	}

	// Document path: text decode plus the extraction chain. The AI
	// strategy runs first when a key is configured, the heuristic pass
	// otherwise.
	if *docPath != "" {
		chainOpts := []extract.Option{extract.WithLogger(logger)}
		if cfg.AIAPIKey != "" {
			chainOpts = append(chainOpts, extract.WithAPIKey(cfg.AIAPIKey))
			if cfg.AIBaseURL != "" {
				chainOpts = append(chainOpts, extract.WithBaseURL(cfg.AIBaseURL))
			}
			if cfg.AIModel != "" {
				chainOpts = append(chainOpts, extract.WithModel(cfg.AIModel))
			}
		}
		opts = append(opts, dossier.WithDocumentSource(&dossier.DocumentChain{
			Chain: extract.NewChain(chainOpts...),
		}))
	}

	// API path.
	if *githubUser != "" {
		cache := httpcache.NewNull()
		if !*noCache {
			c, err := httpcache.New(*cacheTTL)
			if err != nil {
				logger.Warn("failed to initialize cache, continuing without cache", "error", err)
			} else {
				cache = c
			}
		}
		client, err := github.New(ctx,
			github.WithLogger(logger),
			github.WithHTTPCache(cache),
			github.WithToken(cfg.GitHubToken),
			github.WithMaxRepos(cfg.MaxRepos),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, dossier.WithAPISource(&dossier.GitHubSource{Client: client}))
	}

	// Social path: needs the account pool plus the two state stores. An
	// empty pool leaves the source unconfigured and the request reports
	// it in Sources instead of failing outright.
	if *social != "" && len(cfg.Accounts) == 0 {
		logger.Warn("DOSSIER_ACCOUNTS is empty, social source disabled")
	}
	if *social != "" && len(cfg.Accounts) > 0 {
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

		sessions, err := session.New(ctx, cfg.SessionPath(),
			session.WithLogger(logger),
			session.WithExpiry(cfg.SessionExpiry),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:gocritic // exitAfterDefer is acceptable in main
			os.Exit(1)
		}
		defer func() {
			if err := sessions.Close(); err != nil {
				logger.Warn("failed to close session store", "error", err)
			}
		}()

		rotator, err := accounts.NewRotator(cfg.Accounts, usage, accounts.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		scraperOpts := []linkedin.Option{linkedin.WithLogger(logger)}
		if !cfg.Headless {
			scraperOpts = append(scraperOpts, linkedin.WithHeadful())
		}
		if !*noBrowserCookies {
			scraperOpts = append(scraperOpts, linkedin.WithCookieSeed(auth.NewBrowserSource(logger)))
		}
		scraper, err := linkedin.New(rotator, sessions, usage, scraperOpts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, dossier.WithSocialSource(&dossier.LinkedInSource{Scraper: scraper}))
	}

	req := dossier.Request{SocialURL: *social}
	if *githubUser != "" {
		req.APIUser = *githubUser
		if github.Match(*githubUser) {
			req.APIUser = github.ExtractUsername(*githubUser)
		}
	}
	if *docPath != "" {
		data, err := os.ReadFile(*docPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		req.Document = &dossier.Document{Name: filepath.Base(*docPath), Data: data}
	}

	rec, err := dossier.New(opts...).Run(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
