// Package dossier assembles one professional profile from up to three
// acquisition paths run concurrently: an uploaded resume, a scraped
// social profile, and a code-hosting REST API.
//
// The pipeline degrades instead of failing: each source is individually
// time-boxed, a source failure is absorbed and reported through
// Record.Sources, and reconciliation runs over whatever survived. A
// request errors outright only when it named no source, its document
// failed validation, the caller's context was cancelled, or every
// requested source failed.
package dossier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/document"
	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
	"github.com/codeGROOVE-dev/dossier/pkg/reconcile"
)

// Default bounds, overridable per pipeline.
const (
	DefaultSourceTimeout    = 2 * time.Minute
	DefaultOverallTimeout   = 3 * time.Minute
	DefaultMaxDocumentBytes = 16 << 20
)

// Request names the inputs for one acquisition run. Every field is
// optional, but at least one must be set.
type Request struct {
	// SocialURL is the profile URL for the browser path.
	SocialURL string
	// APIUser is the username for the REST path.
	APIUser string
	// Document is an uploaded resume for the extraction path.
	Document *Document
}

// Document is an uploaded resume held in memory. Name selects the
// decoder by extension.
type Document struct {
	Name string
	Data []byte
}

// SocialSource fetches a partial record from a social profile URL.
type SocialSource interface {
	Fetch(ctx context.Context, profileURL string) (*portfolio.PartialRecord, error)
}

// APISource fetches a partial record for an API username.
type APISource interface {
	Fetch(ctx context.Context, username string) (*portfolio.PartialRecord, error)
}

// DocumentSource extracts a partial record from an uploaded file.
type DocumentSource interface {
	Extract(ctx context.Context, filename string, data []byte) (*portfolio.PartialRecord, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithSocialSource sets the browser-backed profile source.
func WithSocialSource(s SocialSource) Option {
	return func(p *Pipeline) { p.social = s }
}

// WithAPISource sets the REST API source.
func WithAPISource(a APISource) Option {
	return func(p *Pipeline) { p.api = a }
}

// WithDocumentSource sets the resume extraction source.
func WithDocumentSource(d DocumentSource) Option {
	return func(p *Pipeline) { p.document = d }
}

// WithReconciler replaces the default merge engine.
func WithReconciler(e *reconcile.Engine) Option {
	return func(p *Pipeline) { p.engine = e }
}

// WithSourceTimeout bounds each individual source.
func WithSourceTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.sourceTimeout = d
		}
	}
}

// WithOverallTimeout bounds the whole request. Sources still pending at
// the ceiling are reported as timed out and the merge proceeds without
// them.
func WithOverallTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.ceiling = d
		}
	}
}

// WithMaxDocumentBytes caps the accepted upload size.
func WithMaxDocumentBytes(n int64) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxDocBytes = n
		}
	}
}

// Pipeline fans one request out to the configured sources and
// reconciles the partial records they return.
type Pipeline struct {
	logger        *slog.Logger
	social        SocialSource
	api           APISource
	document      DocumentSource
	engine        *reconcile.Engine
	sourceTimeout time.Duration
	ceiling       time.Duration
	maxDocBytes   int64
}

// New builds a Pipeline. Construction never fails; a source left
// unconfigured fails only the requests that ask for it.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:        slog.Default(),
		sourceTimeout: DefaultSourceTimeout,
		ceiling:       DefaultOverallTimeout,
		maxDocBytes:   DefaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = reconcile.New(reconcile.WithLogger(p.logger))
	}
	return p
}

// result carries one source's outcome back to the collecting loop.
type result struct {
	rec *portfolio.PartialRecord
	err error
	src portfolio.Source
}

// sourceOrder fixes document > social > api everywhere the three paths
// are merged or reported.
var sourceOrder = [...]portfolio.Source{
	portfolio.SourceDocument,
	portfolio.SourceSocial,
	portfolio.SourceAPI,
}

// Run acquires from every requested source concurrently and merges the
// partial records that arrive before the overall ceiling.
func (p *Pipeline) Run(ctx context.Context, req Request) (*portfolio.Record, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Buffered to the maximum fan-out so a source finishing after the
	// ceiling or a cancellation never blocks on a departed collector.
	results := make(chan result, len(sourceOrder))
	pending := make(map[portfolio.Source]bool)
	requested := make(map[portfolio.Source]bool)
	failures := make(map[portfolio.Source]error)

	if req.Document != nil {
		requested[portfolio.SourceDocument] = true
		if p.document == nil {
			failures[portfolio.SourceDocument] = notConfigured(portfolio.SourceDocument)
		} else {
			pending[portfolio.SourceDocument] = true
			p.start(ctx, portfolio.SourceDocument, false, results, func(cctx context.Context) (*portfolio.PartialRecord, error) {
				return p.document.Extract(cctx, req.Document.Name, req.Document.Data)
			})
		}
	}
	if req.SocialURL != "" {
		requested[portfolio.SourceSocial] = true
		if p.social == nil {
			failures[portfolio.SourceSocial] = notConfigured(portfolio.SourceSocial)
		} else {
			pending[portfolio.SourceSocial] = true
			p.start(ctx, portfolio.SourceSocial, true, results, func(cctx context.Context) (*portfolio.PartialRecord, error) {
				return p.social.Fetch(cctx, req.SocialURL)
			})
		}
	}
	if req.APIUser != "" {
		requested[portfolio.SourceAPI] = true
		if p.api == nil {
			failures[portfolio.SourceAPI] = notConfigured(portfolio.SourceAPI)
		} else {
			pending[portfolio.SourceAPI] = true
			p.start(ctx, portfolio.SourceAPI, true, results, func(cctx context.Context) (*portfolio.PartialRecord, error) {
				return p.api.Fetch(cctx, req.APIUser)
			})
		}
	}

	partials := make(map[portfolio.Source]*portfolio.PartialRecord)
	ceiling := time.NewTimer(p.ceiling)
	defer ceiling.Stop()

	for len(pending) > 0 {
		select {
		case res := <-results:
			delete(pending, res.src)
			if res.err != nil {
				p.logger.WarnContext(ctx, "source failed", "source", res.src, "error", res.err)
				failures[res.src] = res.err
				continue
			}
			p.logger.InfoContext(ctx, "source complete", "source", res.src)
			partials[res.src] = res.rec
		case <-ceiling.C:
			for src := range pending {
				p.logger.WarnContext(ctx, "source still pending at ceiling",
					"source", src, "ceiling", p.ceiling)
				failures[src] = fmt.Errorf("%s source: %w", src, portfolio.ErrTimeout)
			}
			clear(pending)
		case <-ctx.Done():
			// Detached sources finish on their own; their results die
			// in the buffered channel.
			return nil, fmt.Errorf("gathering sources: %w", ctx.Err())
		}
	}

	if len(partials) == 0 {
		errs := make([]error, 0, len(failures))
		for _, src := range sourceOrder {
			if err := failures[src]; err != nil {
				errs = append(errs, err)
			}
		}
		return nil, fmt.Errorf("every source failed: %w", errors.Join(errs...))
	}

	rec := p.engine.Merge(
		partials[portfolio.SourceDocument],
		partials[portfolio.SourceSocial],
		partials[portfolio.SourceAPI],
	)
	for _, src := range sourceOrder {
		if !requested[src] {
			continue
		}
		status := portfolio.SourceStatus{Source: src, OK: true}
		if err := failures[src]; err != nil {
			status.OK = false
			status.Error = err.Error()
		}
		rec.Sources = append(rec.Sources, status)
	}
	return rec, nil
}

// start runs one source in its own goroutine under the per-source
// timeout. A detached source keeps running when ctx is cancelled: a
// browser or API attempt spends real budget (a pool account, a rate
// window) the moment it starts, and its ledger and session writes must
// land even when the caller goes away.
func (p *Pipeline) start(ctx context.Context, src portfolio.Source, detach bool, results chan<- result,
	fetch func(context.Context) (*portfolio.PartialRecord, error),
) {
	go func() {
		parent := ctx
		if detach {
			parent = context.WithoutCancel(ctx)
		}
		cctx, cancel := context.WithTimeout(parent, p.sourceTimeout)
		defer cancel()
		rec, err := fetch(cctx)
		results <- result{src: src, rec: rec, err: err}
	}()
}

// validate rejects malformed requests before any goroutine starts.
func (p *Pipeline) validate(req Request) error {
	if req.SocialURL == "" && req.APIUser == "" && req.Document == nil {
		return portfolio.ErrNoInput
	}
	if doc := req.Document; doc != nil {
		if !document.Supported(doc.Name) {
			return fmt.Errorf("%w: %q", portfolio.ErrUnsupportedFormat, strings.ToLower(filepath.Ext(doc.Name)))
		}
		if int64(len(doc.Data)) > p.maxDocBytes {
			return fmt.Errorf("document %s: %d bytes exceeds the %d byte limit",
				doc.Name, len(doc.Data), p.maxDocBytes)
		}
	}
	return nil
}

func notConfigured(src portfolio.Source) error {
	return fmt.Errorf("%s source requested but not configured", src)
}
