package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
)

// resolveExpiry picks the session expiry from the adapter's credentials:
// an absolute time wins, then a relative lifetime, then the exp claim when
// the access token is a JWT. The JWT subject is returned as a user id hint.
// A nil expiry means the token is valid until logout.
func resolveExpiry(creds adapter.Credentials, now time.Time) (*time.Time, string) {
	claimExp, subject := inspectToken(creds.AccessToken)

	switch {
	case !creds.ExpiresAt.IsZero():
		t := creds.ExpiresAt.UTC()
		return &t, subject
	case creds.ExpiresIn > 0:
		t := now.Add(creds.ExpiresIn).UTC()
		return &t, subject
	default:
		return claimExp, subject
	}
}

// inspectToken reads exp and sub from a JWT access token without verifying
// it; platforms sign with keys we do not hold. Opaque tokens yield nothing.
func inspectToken(raw string) (*time.Time, string) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, ""
	}
	if claims.ExpiresAt == nil {
		return nil, claims.Subject
	}
	t := claims.ExpiresAt.Time.UTC()
	return &t, claims.Subject
}
