// Package linkedin drives a real browser through LinkedIn's login and
// profile pages, pacing itself like a person and rotating through a pool of
// accounts. Network access goes through the page driver only; LinkedIn has
// no public profile API.
package linkedin

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	loginURL = "https://www.linkedin.com/login"
	baseURL  = "https://www.linkedin.com"
)

// Match returns true if the URL is a LinkedIn profile URL.
func Match(urlStr string) bool {
	return strings.Contains(strings.ToLower(urlStr), "linkedin.com/in/")
}

// ProfileURL normalizes a profile reference into a canonical profile URL.
// It accepts full URLs, scheme-less URLs, and bare public identifiers.
// It returns "" when the reference cannot name a profile.
func ProfileURL(ref string) string {
	ref = strings.TrimSuffix(strings.TrimSpace(ref), "/")
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if !Match(ref) {
			return ""
		}
		return ref
	case Match(ref):
		return "https://" + ref
	case strings.ContainsAny(ref, "/ "):
		return ""
	default:
		return baseURL + "/in/" + ref
	}
}

var publicIDRe = regexp.MustCompile(`/in/([^/?#]+)`)

// publicID extracts the public identifier from a profile URL.
func publicID(urlStr string) string {
	m := publicIDRe.FindStringSubmatch(urlStr)
	if len(m) < 2 {
		return ""
	}
	slug := m[1]
	if strings.Contains(slug, "%") {
		if decoded, err := url.QueryUnescape(slug); err == nil {
			return decoded
		}
	}
	return slug
}

// challengeMarkers appear in URLs LinkedIn redirects to when it wants human
// verification before serving anything else.
var challengeMarkers = []string{"checkpoint", "challenge", "verify", "authwall", "uas/login"}

// challengeURL reports whether the location is a verification wall.
func challengeURL(loc string) bool {
	l := strings.ToLower(loc)
	for _, marker := range challengeMarkers {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// loggedInURL reports whether the location is a page LinkedIn only serves to
// an authenticated member. Login and signup pages are checked first because
// "/uas/login" style URLs embed otherwise-positive path segments.
func loggedInURL(loc string) bool {
	l := strings.ToLower(loc)
	for _, marker := range []string{"/login", "/signup", "/checkpoint", "/authwall"} {
		if strings.Contains(l, marker) {
			return false
		}
	}
	for _, marker := range []string{"/feed", "/mynetwork", "/in/", "/jobs"} {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}

// unavailableMarkers identify dead-profile pages, which LinkedIn serves with
// a 200 and a polite explanation instead of a status code.
var unavailableMarkers = []string{
	"this profile is not available",
	"account has been restricted",
	"page doesn't exist",
	"member you are trying to view",
}

// profileUnavailable reports whether the page text describes a missing or
// restricted profile.
func profileUnavailable(pageText string) bool {
	l := strings.ToLower(pageText)
	for _, marker := range unavailableMarkers {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}
