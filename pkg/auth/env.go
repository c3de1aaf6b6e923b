package auth

import (
	"context"
	"os"
	"slices"
)

// envVars maps environment variable names to the cookies they hold.
var envVars = map[string]string{
	"LINKEDIN_LI_AT":      "li_at",
	"LINKEDIN_JSESSIONID": "JSESSIONID",
	"LINKEDIN_LIDC":       "lidc",
	"LINKEDIN_BCOOKIE":    "bcookie",
}

// EnvSource reads session cookies from environment variables.
type EnvSource struct{}

// Cookies returns whichever LinkedIn cookies are set in the environment.
func (EnvSource) Cookies(_ context.Context) (map[string]string, error) {
	cookies := make(map[string]string)
	for envVar, cookieName := range envVars {
		if value := os.Getenv(envVar); value != "" {
			cookies[cookieName] = value
		}
	}
	if len(cookies) == 0 {
		return nil, nil //nolint:nilnil // no env vars set is not an error
	}
	return cookies, nil
}

// EnvVars returns the recognized variable names, sorted, for help messages.
func EnvVars() []string {
	vars := make([]string, 0, len(envVars))
	for v := range envVars {
		vars = append(vars, v)
	}
	slices.Sort(vars)
	return vars
}
