// Package github fetches profile and repository data from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/portfolio"
)

const (
	apiBase       = "https://api.github.com"
	userAgent     = "dossier/1.0"
	tokenCacheTTL = 24 * time.Hour
)

// DefaultMaxRepos is how many repositories survive sorting and truncation
// unless WithMaxRepos says otherwise.
const DefaultMaxRepos = 10

// RateLimitError reports API quota exhaustion. RetryAfter is zero when the
// server gave no usable reset header.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("github API rate limited (retry after %s)", e.RetryAfter)
	}
	return "github API rate limited"
}

// Unwrap lets callers match errors.Is(err, portfolio.ErrRateLimited).
func (*RateLimitError) Unwrap() error { return portfolio.ErrRateLimited }

// Match returns true if the URL is a GitHub profile URL.
func Match(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	if !strings.Contains(lower, "github.com/") {
		return false
	}
	// Extract path after github.com/
	idx := strings.Index(lower, "github.com/")
	path := lower[idx+len("github.com/"):]
	path = strings.TrimSuffix(path, "/")
	if qIdx := strings.Index(path, "?"); qIdx >= 0 {
		path = path[:qIdx]
	}
	// Must be just username (no slashes)
	if strings.Contains(path, "/") {
		return false
	}
	// Skip known non-profile paths
	nonProfiles := map[string]bool{
		"features": true, "security": true, "enterprise": true, "team": true,
		"marketplace": true, "sponsors": true, "topics": true, "trending": true,
		"collections": true, "orgs": true, "solutions": true, "resources": true,
		"customer-stories": true, "partners": true, "accelerator": true,
		"trust-center": true, "why-github": true, "mcp": true, "fluidicon": true,
		"login": true, "join": true, "pricing": true, "about": true,
		"premium-support": true, "newsletter": true, "edu": true, "mobile": true,
		"readme": true, "explore": true, "new": true, "settings": true,
		"notifications": true, "issues": true, "pulls": true, "codespaces": true,
		"copilot": true, "actions": true, "projects": true, "packages": true,
		"discussions": true, "wiki": true, "stars": true, "watching": true,
		"search": true, "site": true, "apps": true,
	}
	return path != "" && !nonProfiles[path]
}

var usernameRegex = regexp.MustCompile(`github\.com/([^/?]+)`)

// ExtractUsername pulls the account name out of a profile URL. Returns ""
// when the URL carries none.
func ExtractUsername(urlStr string) string {
	urlStr = strings.TrimPrefix(urlStr, "https://")
	urlStr = strings.TrimPrefix(urlStr, "http://")
	urlStr = strings.TrimPrefix(urlStr, "www.")

	if matches := usernameRegex.FindStringSubmatch(urlStr); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// Client handles GitHub REST API requests.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	token      string
	maxRepos   int
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache    httpcache.Cacher
	logger   *slog.Logger
	token    string
	maxRepos int
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(httpCache httpcache.Cacher) Option {
	return func(c *config) { c.cache = httpCache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithToken sets the GitHub API token.
func WithToken(token string) Option {
	return func(c *config) { c.token = token }
}

// WithMaxRepos caps how many repositories FetchUser returns.
func WithMaxRepos(n int) Option {
	return func(c *config) { c.maxRepos = n }
}

// New creates a GitHub client.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &config{logger: slog.Default(), maxRepos: DefaultMaxRepos}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Try to get token from environment if not provided
	token := cfg.token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	// Fall back to gh CLI auth token (cached for 24 hours)
	if token == "" {
		if ghToken := cachedGhToken(ctx, cfg.cache); ghToken != "" {
			token = ghToken
			logger.InfoContext(ctx, "using token from gh auth token")
		}
	}

	if token == "" {
		logger.WarnContext(ctx, "GITHUB_TOKEN not set - GitHub API requests will be rate-limited to 60/hour")
	}

	maxRepos := cfg.maxRepos
	if maxRepos <= 0 {
		maxRepos = DefaultMaxRepos
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cfg.cache,
		logger:     logger,
		token:      token,
		maxRepos:   maxRepos,
	}, nil
}

// cachedGhToken returns the gh CLI auth token, using the cache.
func cachedGhToken(ctx context.Context, cache httpcache.Cacher) string {
	if cache == nil {
		return ghAuthToken(ctx)
	}

	data, err := cache.GetSet(ctx, "github:gh_auth_token", func(ctx context.Context) ([]byte, error) {
		token := ghAuthToken(ctx)
		if token == "" {
			return nil, errors.New("no gh token")
		}
		return []byte(token), nil
	}, tokenCacheTTL)
	if err != nil {
		return ""
	}
	return string(data)
}

// ghAuthToken returns the GitHub token from the gh CLI, or empty string if unavailable.
func ghAuthToken(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// FetchUser retrieves a user's profile and repositories and maps them to a
// PartialRecord. Profile scalars come from /users/{u}; projects come from the
// repository listing, filtered and sorted by popularity.
func (c *Client) FetchUser(ctx context.Context, username string) (*portfolio.PartialRecord, error) {
	if username == "" {
		return nil, errors.New("empty username")
	}

	c.logger.InfoContext(ctx, "fetching github profile", "username", username)

	userBody, err := c.get(ctx, apiBase+"/users/"+username)
	if err != nil {
		return nil, c.classify(err, username)
	}
	rec, err := parseUser(userBody)
	if err != nil {
		return nil, fmt.Errorf("parsing user %q: %w", username, err)
	}

	reposBody, err := c.get(ctx, apiBase+"/users/"+username+"/repos?per_page=100&sort=updated&direction=desc")
	if err != nil {
		return nil, c.classify(err, username)
	}
	rec.Projects, err = parseRepos(reposBody, c.maxRepos)
	if err != nil {
		return nil, fmt.Errorf("parsing repos for %q: %w", username, err)
	}

	c.logger.InfoContext(ctx, "github profile fetched",
		"username", username, "projects", len(rec.Projects))
	return rec, nil
}

// classify converts transport-level failures into the typed errors callers
// switch on. Rate limits and missing profiles must never look alike.
func (c *Client) classify(err error, username string) error {
	var httpErr *httpcache.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("github user %q: %w", username, portfolio.ErrProfileNotFound)
		case httpErr.RateLimited():
			return &RateLimitError{RetryAfter: httpErr.RetryAfter}
		}
	}
	return err
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return httpcache.FetchURLWithValidator(ctx, c.cache, c.httpClient, req, c.logger, json.Valid)
}

func parseUser(data []byte) (*portfolio.PartialRecord, error) {
	var ghUser struct {
		Login string `json:"login"`
		Name  string `json:"name"`
		Bio   string `json:"bio"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &ghUser); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(ghUser.Name)
	if name == "" {
		name = ghUser.Login
	}

	return &portfolio.PartialRecord{
		Source:   portfolio.SourceAPI,
		Name:     name,
		Headline: strings.TrimSpace(ghUser.Bio),
		Contact:  portfolio.Contact{Email: strings.TrimSpace(ghUser.Email)},
	}, nil
}

type ghRepo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Homepage    string   `json:"homepage"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stargazers_count"`
	Fork        bool     `json:"fork"`
}

// parseRepos filters, sorts, and truncates the repository listing. Forks
// that never earned five stars and repos with no description are noise, not
// portfolio material. Input arrives sorted by most recently updated, so a
// stable sort on stars keeps recency as the tie-break.
func parseRepos(data []byte, maxRepos int) ([]portfolio.Project, error) {
	var repos []ghRepo
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, err
	}

	kept := repos[:0]
	for _, r := range repos {
		if r.Fork && r.Stars < 5 {
			continue
		}
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		kept = append(kept, r)
	}

	slices.SortStableFunc(kept, func(a, b ghRepo) int {
		return b.Stars - a.Stars
	})
	if len(kept) > maxRepos {
		kept = kept[:maxRepos]
	}

	projects := make([]portfolio.Project, 0, len(kept))
	for _, r := range kept {
		var tags []string
		tags = append(tags, r.Topics...)
		if r.Language != "" && !slices.Contains(tags, r.Language) {
			tags = append(tags, r.Language)
		}
		projects = append(projects, portfolio.Project{
			Name:        r.Name,
			Description: strings.TrimSpace(r.Description),
			Link:        r.Homepage,
			Repo:        r.HTMLURL,
			Stars:       r.Stars,
			Tags:        tags,
		})
	}
	return projects, nil
}
