package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestURLToKey(t *testing.T) {
	a := URLToKey("https://api.github.com/users/octocat")
	b := URLToKey("https://api.github.com/users/octocat")
	c := URLToKey("https://api.github.com/users/torvalds")

	if a != b {
		t.Errorf("same URL produced different keys: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("different URLs produced the same key: %q", a)
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
	}{
		{"absent", nil, 0},
		{"retry-after seconds", map[string]string{"Retry-After": "30"}, 30 * time.Second},
		{"retry-after http date", map[string]string{"Retry-After": now.Add(90 * time.Second).Format(http.TimeFormat)}, 90 * time.Second},
		{"retry-after past date clamped", map[string]string{"Retry-After": now.Add(-time.Minute).Format(http.TimeFormat)}, 0},
		{"x-ratelimit-reset", map[string]string{"X-Ratelimit-Reset": "1748781000"}, time.Unix(1748781000, 0).Sub(now)},
		{"retry-after wins over reset", map[string]string{"Retry-After": "10", "X-Ratelimit-Reset": "1748781000"}, 10 * time.Second},
		{"garbage ignored", map[string]string{"Retry-After": "soon"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := retryAfter(h, now); got != tt.want {
				t.Errorf("retryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPermanentStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusNotFound, true},
		{http.StatusGone, true},
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}

	for _, tt := range tests {
		if got := isPermanentStatus(tt.code); got != tt.want {
			t.Errorf("isPermanentStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestHTTPErrorRateLimited(t *testing.T) {
	if !(&HTTPError{StatusCode: 429}).RateLimited() {
		t.Error("429 should be rate limited")
	}
	if !(&HTTPError{StatusCode: 403}).RateLimited() {
		t.Error("403 should be rate limited")
	}
	if (&HTTPError{StatusCode: 404}).RateLimited() {
		t.Error("404 should not be rate limited")
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewWithPath(time.Hour, t.TempDir())
	if err != nil {
		t.Fatalf("NewWithPath() error = %v", err)
	}
	return cache
}

func TestFetchURLCachesSuccess(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	ctx := context.Background()

	for i := range 2 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		body, err := FetchURL(ctx, cache, srv.Client(), req, nil)
		if err != nil {
			t.Fatalf("FetchURL %d: %v", i, err)
		}
		if string(body) != "payload" {
			t.Errorf("body %d = %q, want payload", i, body)
		}
	}

	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (second fetch should be cached)", hits)
	}
}

func TestFetchURLCachesPermanentError(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	cache := newTestCache(t)
	ctx := context.Background()

	for i := range 2 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		_, err = FetchURL(ctx, cache, srv.Client(), req, nil)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
			t.Fatalf("FetchURL %d error = %v, want HTTPError 404", i, err)
		}
	}

	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (404 should be served from cache)", hits)
	}
}

func TestFetchURLDoesNotCacheRateLimit(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cache := newTestCache(t)
	ctx := context.Background()

	for i := range 2 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		_, err = FetchURL(ctx, cache, srv.Client(), req, nil)
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("FetchURL %d error = %v, want HTTPError", i, err)
		}
		if !httpErr.RateLimited() {
			t.Errorf("FetchURL %d: RateLimited() = false, want true", i)
		}
		if httpErr.RetryAfter != 30*time.Second {
			t.Errorf("FetchURL %d: RetryAfter = %v, want 30s", i, httpErr.RetryAfter)
		}
	}

	if hits != 2 {
		t.Errorf("server hits = %d, want 2 (rate limits must never be cached)", hits)
	}
}

func TestFetchURLDoesNotCacheInvalidResponse(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte("<html>interstitial</html>"))
	}))
	defer srv.Close()

	cache := newTestCache(t)
	ctx := context.Background()
	notHTML := func(body []byte) bool { return len(body) > 0 && body[0] != '<' }

	for i := range 2 {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		body, err := FetchURLWithValidator(ctx, cache, srv.Client(), req, nil, notHTML)
		if err != nil {
			t.Fatalf("FetchURL %d: %v", i, err)
		}
		if string(body) != "<html>interstitial</html>" {
			t.Errorf("body %d = %q, want raw response back", i, body)
		}
	}

	if hits != 2 {
		t.Errorf("server hits = %d, want 2 (invalid responses must not be cached)", hits)
	}
}
