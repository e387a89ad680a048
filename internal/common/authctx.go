package common

import (
	"context"
	"time"
)

type ctxKey string

const sessionKey ctxKey = "auth/admin-session"

// Session describes an authenticated admin.
type Session struct {
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// WithSession stores the admin session on the provided context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom extracts the admin session from the context if present.
func SessionFrom(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
