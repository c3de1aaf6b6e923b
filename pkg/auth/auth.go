// Package auth finds existing LinkedIn session cookies so a scrape can skip
// the login flow entirely: explicit values, environment variables, or the
// operator's own browser cookie stores.
package auth

import (
	"context"
	"slices"
	"strings"

	"github.com/codeGROOVE-dev/dossier/pkg/session"
)

// Domain is the cookie domain all sources filter on.
const Domain = "linkedin.com"

// essentialCookies are the cookie names a LinkedIn session needs. li_at is
// the authentication token proper; the rest keep the session stable across
// requests.
var essentialCookies = []string{"li_at", "JSESSIONID", "lidc", "bcookie"}

// Source yields LinkedIn cookies from one origin. A source with nothing to
// offer returns no cookies and no error; errors are reserved for real
// failures.
type Source interface {
	Cookies(ctx context.Context) (map[string]string, error)
}

// Chain returns cookies from the first source that has any.
func Chain(ctx context.Context, sources ...Source) (map[string]string, error) {
	for _, src := range sources {
		cookies, err := src.Cookies(ctx)
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			return cookies, nil
		}
	}
	return nil, nil //nolint:nilnil // no source had cookies, but this is not an error
}

// SessionCookies converts name/value pairs into storable session cookies
// scoped to the LinkedIn domain, the shape the browser driver installs.
// Output is sorted by name.
func SessionCookies(cookies map[string]string) []session.Cookie {
	out := make([]session.Cookie, 0, len(cookies))
	for name, value := range cookies {
		if value == "" {
			continue
		}
		out = append(out, session.Cookie{
			Name:   name,
			Value:  value,
			Domain: "." + Domain,
			Path:   "/",
			Secure: true,
		})
	}
	slices.SortFunc(out, func(a, b session.Cookie) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
