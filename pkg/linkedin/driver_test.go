package linkedin

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dossier/pkg/session"
)

func TestJSString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"h1", `"h1"`},
		{`a[href*="/details/skills"]`, `"a[href*=\"/details/skills\"]"`},
		{"line\nbreak", `"line\nbreak"`},
		{"", `""`},
	}

	for _, tt := range tests {
		if got := jsString(tt.in); got != tt.want {
			t.Errorf("jsString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFromNetworkCookies(t *testing.T) {
	in := []*network.Cookie{
		{
			Name:     "li_at",
			Value:    "tok",
			Domain:   ".linkedin.com",
			Path:     "/",
			Expires:  1767225600,
			HTTPOnly: true,
			Secure:   true,
		},
		{
			Name:    "JSESSIONID",
			Value:   `"ajax:55"`,
			Domain:  ".www.linkedin.com",
			Path:    "/",
			Expires: -1,
		},
	}

	want := []session.Cookie{
		{
			Name:     "li_at",
			Value:    "tok",
			Domain:   ".linkedin.com",
			Path:     "/",
			Expires:  time.Unix(1767225600, 0).UTC(),
			HTTPOnly: true,
			Secure:   true,
		},
		// A negative expiry marks a session cookie; it keeps the zero time.
		{
			Name:   "JSESSIONID",
			Value:  `"ajax:55"`,
			Domain: ".www.linkedin.com",
			Path:   "/",
		},
	}

	if diff := cmp.Diff(want, fromNetworkCookies(in)); diff != "" {
		t.Errorf("fromNetworkCookies mismatch (-want +got):\n%s", diff)
	}
}

func TestFromNetworkCookiesEmpty(t *testing.T) {
	if got := fromNetworkCookies(nil); len(got) != 0 {
		t.Errorf("fromNetworkCookies(nil) = %v, want empty", got)
	}
}
