package types

import "time"

// Session is a browser login bound to an opaque cookie token.
type Session struct {
	// ID is the unique identifier of the session row. It is never sent to clients.
	ID string `json:"id" db:"id"`

	// Token is the high-entropy value carried in the session cookie.
	Token string `json:"-" db:"token"`

	// UserID references the owning user.
	UserID string `json:"user_id" db:"user_id"`

	// ExpiresAt is the absolute end of the validity window.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// CreatedAt is the timestamp when the session was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is past its validity window at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
