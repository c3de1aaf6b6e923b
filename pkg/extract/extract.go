// Package extract turns unstructured resume text into typed partial records.
//
// Two independent strategies share one interface: an AI-assisted extractor
// that demands a fixed JSON schema from a chat-completions service and fails
// closed on malformed output, and a heuristic extractor built on line and
// keyword patterns. A Chain runs them in order as complete fallbacks — the
// strategies are never merged field-by-field; merging across sources is the
// reconciliation engine's job.
package extract

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// Strategy extracts a partial record from plain text. An error means the
// strategy produced nothing trustworthy and the next one should run.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, text string) (*portfolio.PartialRecord, error)
}

// Option configures extraction strategies and chains.
type Option func(*config)

type config struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithAPIKey supplies credentials for the AI strategy. Without a key the
// chain is heuristic-only.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithBaseURL overrides the chat-completions endpoint base.
func WithBaseURL(u string) Option {
	return func(c *config) { c.baseURL = u }
}

// WithModel selects the generation model.
func WithModel(m string) Option {
	return func(c *config) { c.model = m }
}

// WithHTTPClient overrides the HTTP client used by the AI strategy.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

func newConfig(opts []Option) *config {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return cfg
}

// Chain tries strategies in order and returns the first usable result.
type Chain struct {
	logger     *slog.Logger
	strategies []Strategy
}

// NewChain builds the configured fallback chain: AI first when an API key is
// present, the heuristic extractor always last.
func NewChain(opts ...Option) *Chain {
	cfg := newConfig(opts)

	var strategies []Strategy
	if cfg.apiKey != "" {
		strategies = append(strategies, newAI(cfg))
	}
	strategies = append(strategies, newHeuristic(cfg))

	return &Chain{logger: cfg.logger, strategies: strategies}
}

// Extract never fails past this boundary: a strategy error degrades to the
// next strategy, and an all-strategies failure degrades to an empty record
// with the reason logged, so one missing field never aborts the pipeline.
func (c *Chain) Extract(ctx context.Context, text string) *portfolio.PartialRecord {
	for _, s := range c.strategies {
		rec, err := s.Extract(ctx, text)
		if err != nil {
			c.logger.WarnContext(ctx, "extraction strategy failed, falling back",
				"strategy", s.Name(), "error", err)
			continue
		}
		c.logger.DebugContext(ctx, "extraction strategy succeeded",
			"strategy", s.Name(), "skills", len(rec.Skills), "experience", len(rec.Experience))
		return rec
	}
	return &portfolio.PartialRecord{Source: portfolio.SourceDocument}
}
