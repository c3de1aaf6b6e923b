// Package httpcache provides HTTP response caching with thundering herd prevention.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

// UserAgent is the standard browser User-Agent string for all fetchers.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// Stats tracks cache hit/miss statistics.
type Stats struct {
	Hits   int64
	Misses int64
}

var globalStats atomic.Pointer[Stats]

func init() {
	globalStats.Store(&Stats{})
}

// CacheStats returns the current cache statistics.
func CacheStats() Stats {
	return *globalStats.Load()
}

// ResetStats resets the cache statistics.
func ResetStats() {
	globalStats.Store(&Stats{})
}

func recordHit() {
	for {
		old := globalStats.Load()
		updated := &Stats{Hits: old.Hits + 1, Misses: old.Misses}
		if globalStats.CompareAndSwap(old, updated) {
			return
		}
	}
}

func recordMiss() {
	for {
		old := globalStats.Load()
		updated := &Stats{Hits: old.Hits, Misses: old.Misses + 1}
		if globalStats.CompareAndSwap(old, updated) {
			return
		}
	}
}

// Cacher allows external cache implementations for sharing across packages.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache wraps sfcache for HTTP response caching.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New creates a new Cache with disk persistence at ~/.cache/dossier.
func New(ttl time.Duration) (*Cache, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(cacheDir, "dossier"))
}

// NewNull creates a Cache with no persistence (all gets miss, all sets discard).
func NewNull() *Cache {
	tc, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("sfcache.NewTiered with null store: " + err.Error())
	}
	return &Cache{TieredCache: tc, ttl: 0}
}

// NewWithPath creates a new Cache with disk persistence at the specified path.
func NewWithPath(ttl time.Duration, cachePath string) (*Cache, error) {
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	persist, err := localfs.New[string, []byte]("dossier", cachePath)
	if err != nil {
		return nil, fmt.Errorf("create persistence layer: %w", err)
	}

	tc, err := sfcache.NewTiered[string, []byte](persist, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default TTL for cache entries.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// URLToKey converts a URL to a cache key using SHA256 hash.
func URLToKey(rawURL string) string {
	hash := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(hash[:])
}

// HTTPError represents an HTTP error response. RetryAfter is non-zero only
// when the server said when to come back (Retry-After or X-RateLimit-Reset).
type HTTPError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("HTTP %d fetching %s (retry after %s)", e.StatusCode, e.URL, e.RetryAfter)
	}
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// RateLimited reports whether the response was a rate-limit rejection.
// GitHub signals primary-quota exhaustion with 403, not just 429.
func (e *HTTPError) RateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// ResponseValidator validates a response body. Returns true if cacheable.
type ResponseValidator func(body []byte) bool

// FetchURL fetches a URL with caching and thundering herd prevention.
// If cache is non-nil, uses GetSet to ensure only one request is made for concurrent calls.
func FetchURL(ctx context.Context, cache Cacher, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	return FetchURLWithValidator(ctx, cache, client, req, logger, nil)
}

// FetchURLWithValidator fetches a URL with caching and optional response validation.
// If validator returns false, the response is returned but NOT cached.
//
// Permanent HTTP errors (404 and friends) are cached to avoid hammering
// servers. Rate-limit errors are never cached: RetryAfter is only meaningful
// live, and a cached 429 would keep rejecting long after the server forgave
// us. Network errors are never cached either.
func FetchURLWithValidator(
	ctx context.Context,
	cache Cacher,
	client *http.Client,
	req *http.Request,
	logger *slog.Logger,
	validator ResponseValidator,
) ([]byte, error) {
	// Build cache key - include auth marker so an anonymous result never
	// shadows an authenticated fetch.
	cacheKey := req.URL.String()
	if req.Header.Get("Authorization") != "" {
		cacheKey += "|auth"
	} else if client.Jar != nil && len(client.Jar.Cookies(req.URL)) > 0 {
		cacheKey += "|auth"
	}

	if cache == nil {
		if logger != nil {
			logger.Info("cache disabled", "url", req.URL.String())
		}
		recordMiss()
		return doFetch(ctx, client, req, logger)
	}

	var wasFetched bool
	data, err := cache.GetSet(ctx, URLToKey(cacheKey), func(ctx context.Context) ([]byte, error) {
		wasFetched = true
		recordMiss()
		if logger != nil {
			logger.Info("CACHE MISS", "url", req.URL.String())
		}
		body, fetchErr := doFetch(ctx, client, req, logger)
		if fetchErr != nil {
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) && isPermanentStatus(httpErr.StatusCode) {
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			return nil, &noCacheError{err: fetchErr}
		}
		// If validator fails, return error to prevent caching.
		if validator != nil && !validator(body) {
			if logger != nil {
				logger.Debug("skipping cache due to validation failure", "key", cacheKey)
			}
			return nil, &validationError{data: body}
		}
		return body, nil
	}, cache.TTL())

	if !wasFetched {
		recordHit()
		if logger != nil {
			logger.Debug("cache hit", "url", req.URL.String())
		}
	}

	// Handle validation failure - return the data but it wasn't cached.
	var validErr *validationError
	if errors.As(err, &validErr) {
		return validErr.data, nil
	}
	// Handle non-cacheable fetch failure - surface the live error.
	var nce *noCacheError
	if errors.As(err, &nce) {
		return nil, nce.err
	}
	if err != nil {
		return nil, err
	}

	// Check if this is a cached error.
	s := string(data)
	if errCode, found := strings.CutPrefix(s, "ERROR:"); found {
		code, _ := strconv.Atoi(errCode) //nolint:errcheck // 0 is acceptable default
		return nil, &HTTPError{StatusCode: code, URL: req.URL.String()}
	}

	return data, nil
}

// isPermanentStatus reports whether an HTTP error status is stable enough to
// cache. Rate-limit and server errors are transient by definition.
func isPermanentStatus(code int) bool {
	if code == http.StatusForbidden || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}

type validationError struct{ data []byte }

func (*validationError) Error() string { return "validation failed" }

type noCacheError struct{ err error }

func (e *noCacheError) Error() string { return e.err.Error() }
func (e *noCacheError) Unwrap() error { return e.err }

func doFetch(ctx context.Context, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	// Limit total retry time to 2 seconds
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return retry.DoWithData(
		func() ([]byte, error) {
			globalRateLimiter.Wait(req.URL.String(), logger)

			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // intentional

			if resp.StatusCode != http.StatusOK {
				return nil, &HTTPError{
					StatusCode: resp.StatusCode,
					URL:        req.URL.String(),
					RetryAfter: retryAfter(resp.Header, time.Now()),
				}
			}

			return io.ReadAll(resp.Body)
		},
		retry.Context(ctx),
		retry.Attempts(2),                     // single retry
		retry.Delay(200*time.Millisecond),     // delay before retry
		retry.MaxJitter(100*time.Millisecond), // small jitter
		retry.RetryIf(isRetryableError),       // only retry transient errors
		retry.OnRetry(func(n uint, err error) {
			if logger != nil {
				logger.Debug("retrying HTTP request", "attempt", n+1, "url", req.URL.String(), "error", err)
			}
		}),
	)
}

// retryAfter extracts a wait duration from rate-limit response headers.
// Retry-After carries delta-seconds or an HTTP date; X-RateLimit-Reset
// carries a unix timestamp. Returns 0 when neither header is usable.
func retryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return max(time.Duration(secs)*time.Second, 0)
		}
		if when, err := http.ParseTime(v); err == nil {
			return max(when.Sub(now), 0)
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return max(time.Unix(epoch, 0).Sub(now), 0)
		}
	}
	return 0
}

// isRetryableError returns true for transient errors that should be retried.
// Rate-limit rejections are NOT retried here: the caller decides when the
// account or token may be used again.
func isRetryableError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	// Network errors, timeouts, etc. are retryable
	return true
}

// Rate limiting.
var globalRateLimiter = newGlobalRateLimiter()

func newGlobalRateLimiter() *domainRateLimiter {
	return &domainRateLimiter{
		minDelay: 1100 * time.Millisecond,
		overrides: map[string]time.Duration{
			// REST API with its own quota accounting; crawl pacing not needed.
			"api.github.com": 500 * time.Millisecond,
		},
	}
}

type domainRateLimiter struct {
	overrides   map[string]time.Duration
	lastRequest sync.Map
	mu          sync.Map
	minDelay    time.Duration
}

func (r *domainRateLimiter) Wait(rawURL string, logger *slog.Logger) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return
	}
	domain := u.Host

	muI, _ := r.mu.LoadOrStore(domain, &sync.Mutex{})
	mu, ok := muI.(*sync.Mutex)
	if !ok {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	delay := r.minDelay
	if override, ok := r.overrides[domain]; ok {
		delay = override
	}

	if lastI, ok := r.lastRequest.Load(domain); ok {
		if last, ok := lastI.(time.Time); ok {
			if elapsed := time.Since(last); elapsed < delay {
				waitTime := delay - elapsed
				if logger != nil {
					logger.Debug("rate limit pause", "domain", domain, "wait", waitTime)
				}
				time.Sleep(waitTime)
			}
		}
	}

	r.lastRequest.Store(domain, time.Now())
}
