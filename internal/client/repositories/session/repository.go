// Package session persists the logged-in API session in the client's local
// state database.
package session

import (
	"context"
	"time"
)

// Session is what `login` stores and every other command reuses.
type Session struct {
	ServerURL string    `json:"server_url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
}

// Expired reports whether the token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type Repository interface {
	// Load returns (nil, nil) when nobody is logged in.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
