// Package identity defines the authentication-session contract. The provider
// owns credentials and tokens; the rest of the application only ever sees
// sessions and the event stream announcing their lifecycle.
package identity

import (
	"context"
	"errors"
	"time"
)

// EventKind names an authentication lifecycle transition.
type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventSignedOut      EventKind = "SIGNED_OUT"
)

// ErrInvalidCredentials is returned by SignIn when the email/password pair
// does not match a stored account.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the provider's view of an authenticated account: the raw
// metadata attached to the credential, before any profile reconciliation.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Provider  string `json:"provider"`
}

// Session is a live authenticated session.
type Session struct {
	Token     string    `json:"token"`
	User      Identity  `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session's token has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Event announces a session lifecycle transition. Session is nil for
// EventSignedOut and non-nil otherwise.
type Event struct {
	Kind    EventKind
	Session *Session
}

// Provider is the authentication backend. Subscribe registers a listener for
// lifecycle events and returns an unsubscribe func; listeners are invoked
// sequentially on the goroutine that triggered the transition.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*Session, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}
