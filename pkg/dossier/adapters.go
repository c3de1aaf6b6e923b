package dossier

import (
	"context"

	"github.com/codeGROOVE-dev/dossier/pkg/document"
	"github.com/codeGROOVE-dev/dossier/pkg/extract"
	"github.com/codeGROOVE-dev/dossier/pkg/github"
	"github.com/codeGROOVE-dev/dossier/pkg/linkedin"
	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

// LinkedInSource adapts the browser scraper to the pipeline's social
// interface.
type LinkedInSource struct {
	Scraper *linkedin.Scraper
}

// Fetch scrapes one profile. A partial extraction counts as success;
// any scrape or bookkeeping error fails the source.
func (s *LinkedInSource) Fetch(ctx context.Context, profileURL string) (*portfolio.PartialRecord, error) {
	out, err := s.Scraper.Scrape(ctx, profileURL)
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

// GitHubSource adapts the REST client to the pipeline's API interface.
type GitHubSource struct {
	Client *github.Client
}

// Fetch retrieves one user's profile and repositories.
func (g *GitHubSource) Fetch(ctx context.Context, username string) (*portfolio.PartialRecord, error) {
	return g.Client.FetchUser(ctx, username)
}

// DocumentChain adapts text extraction plus the strategy chain to the
// pipeline's document interface.
type DocumentChain struct {
	Chain *extract.Chain
}

// Extract converts the upload to plain text and runs the extraction
// chain over it. Decode failures are errors; an extraction that finds
// nothing is an empty record.
func (d *DocumentChain) Extract(ctx context.Context, filename string, data []byte) (*portfolio.PartialRecord, error) {
	text, err := document.ExtractText(filename, data)
	if err != nil {
		return nil, err
	}
	return d.Chain.Extract(ctx, text), nil
}
