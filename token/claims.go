package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The client never holds the signing key, so claims are read unverified and
// only used as hints (expiry display, logging). The backend stays the source
// of truth for token validity.

// ExpiresAt returns the exp claim of a JWT access token, or the zero time for
// opaque tokens and tokens without exp.
func ExpiresAt(raw string) time.Time {
	claims, ok := parseUnverified(raw)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// Subject returns the sub claim of a JWT access token, or "".
func Subject(raw string) string {
	claims, ok := parseUnverified(raw)
	if !ok {
		return ""
	}
	return claims.Subject
}

func parseUnverified(raw string) (*jwt.RegisteredClaims, bool) {
	if raw == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, false
	}
	return claims, true
}
