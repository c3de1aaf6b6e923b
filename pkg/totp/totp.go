// Package totp computes time-based one-time passwords (RFC 6238).
//
// The computation is a pure function of the shared seed and a timestamp so
// two-factor submission can be tested with fixed time inputs, isolated from
// any browser interaction.
package totp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// Code returns the 6-digit code for a base32-encoded seed at time t.
// The seed is accepted the way provisioning UIs hand it out: any case,
// optional spaces, optional padding.
func Code(seed string, t time.Time) (string, error) {
	s := strings.ToUpper(strings.ReplaceAll(seed, " ", ""))
	s = strings.TrimRight(s, "=")
	if s == "" {
		return "", errors.New("empty seed")
	}
	if t.Unix() < 0 {
		return "", errors.New("time before unix epoch")
	}
	code, err := totp.GenerateCode(s, t)
	if err != nil {
		return "", fmt.Errorf("generate totp code: %w", err)
	}
	return code, nil
}
