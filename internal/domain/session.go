package domain

import "time"

// SessionState is the lifecycle position of a platform's auth session.
type SessionState string

const (
	StateUnregistered    SessionState = "unregistered"
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticating  SessionState = "authenticating"
	StateAuthenticated   SessionState = "authenticated"
	StateExpired         SessionState = "expired"
	StateLoggedOut       SessionState = "logged_out"
)

// AuthSession holds the credentials of one platform.
type AuthSession struct {
	Platform     Platform   `json:"-"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	UserID       string     `json:"userId,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// IsValid reports whether the session can be used at now: an access token
// is held and either no expiry is set or it lies in the future.
func (s *AuthSession) IsValid(now time.Time) bool {
	if s == nil || s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}

// Clear drops every credential but keeps the platform.
func (s *AuthSession) Clear() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.UserID = ""
	s.ExpiresAt = nil
}

// Clone returns a copy that does not share the expiry pointer.
func (s *AuthSession) Clone() *AuthSession {
	c := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
