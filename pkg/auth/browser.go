package auth

import (
	"context"
	"log/slog"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/all" // register all browser cookie stores
)

// BrowserSource reads LinkedIn cookies from the operator's own browser
// stores, so a locally logged-in session can seed the scraper without
// credentials ever leaving the machine.
type BrowserSource struct {
	logger *slog.Logger
}

// NewBrowserSource creates a browser cookie source.
func NewBrowserSource(logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{logger: logger}
}

// Cookies returns the essential LinkedIn cookies found in any local browser
// store. A machine with no readable store yields no cookies and no error;
// browser cookies are a convenience, never a requirement.
func (s *BrowserSource) Cookies(ctx context.Context) (map[string]string, error) {
	s.logger.DebugContext(ctx, "reading browser cookie stores", "domain", Domain)

	kookies, err := kooky.ReadCookies(ctx, kooky.Valid, kooky.DomainHasSuffix(Domain))
	if err != nil {
		s.logger.DebugContext(ctx, "browser cookie read failed", "error", err)
		return nil, nil //nolint:nilnil // unreadable stores are not an error
	}
	if len(kookies) == 0 {
		return nil, nil //nolint:nilnil // no browser cookies is not an error
	}
	return s.filterEssential(ctx, kookies), nil
}

// filterEssential keeps only the cookies a session needs and reports which
// were found and which are missing.
func (s *BrowserSource) filterEssential(ctx context.Context, kookies []*kooky.Cookie) map[string]string {
	wanted := make(map[string]bool, len(essentialCookies))
	for _, name := range essentialCookies {
		wanted[name] = true
	}

	cookies := make(map[string]string)
	for _, c := range kookies {
		if wanted[c.Name] {
			cookies[c.Name] = c.Value
		}
	}

	var found, missing []string
	for _, name := range essentialCookies {
		if _, ok := cookies[name]; ok {
			found = append(found, name)
		} else {
			missing = append(missing, name)
		}
	}
	if len(found) > 0 {
		s.logger.InfoContext(ctx, "browser cookies found", "keys", found)
	}
	if len(missing) > 0 {
		s.logger.InfoContext(ctx, "browser cookies missing", "keys", missing)
	}

	if len(cookies) == 0 {
		return nil
	}
	return cookies
}
