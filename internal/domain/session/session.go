package session

import "time"

// Session is the authenticated identity of a visitor. A nil *Session means anonymous.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Session) Anonymous() bool {
	return s == nil || s.UserID == ""
}

// ExpiresWithin reports whether the access token is gone or will be within d.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(s.ExpiresAt)
}
