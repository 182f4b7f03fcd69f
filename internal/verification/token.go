// Package verification issues and consumes single-use email verification
// tokens.
package verification

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dom/autosalon/internal/auth"
)

const (
	DefaultTTL = 24 * time.Hour

	tokenBytes = 64
	maxDecodes = 2
)

// Token is a freshly issued verification token. Raw is persisted on the user,
// Encoded goes into the emailed link.
type Token struct {
	Raw      string
	Encoded  string
	IssuedAt time.Time
}

// Generate creates a new random token issued at now.
func Generate(now time.Time) (Token, error) {
	raw, err := auth.RandomToken(tokenBytes)
	if err != nil {
		return Token{}, fmt.Errorf("generate verification token: %w", err)
	}
	return Token{
		Raw:      raw,
		Encoded:  url.QueryEscape(raw),
		IssuedAt: now.UTC(),
	}, nil
}

// Decode undoes the percent-encoding a verification token may still carry
// when it reaches the server. Query parsing usually decodes once already, but
// links that went through a mail client can arrive encoded twice. Values
// without a '%' are returned unchanged. Decoding uses path rules so a literal
// '+' from the base64 alphabet is never turned into a space.
func Decode(value string) string {
	for i := 0; i < maxDecodes && strings.Contains(value, "%"); i++ {
		decoded, err := url.PathUnescape(value)
		if err != nil {
			break
		}
		value = decoded
	}
	return value
}

// IsExpired reports whether a token issued at issuedAt is older than ttl.
// A missing issue time counts as expired.
func IsExpired(issuedAt *time.Time, ttl time.Duration, now time.Time) bool {
	if issuedAt == nil {
		return true
	}
	return now.Sub(*issuedAt) > ttl
}
