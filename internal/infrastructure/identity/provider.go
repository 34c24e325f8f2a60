// Package identity provides the local authentication provider: account
// storage, credential checks and the session lifecycle event stream the
// reconciliation layer subscribes to.
package identity

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/security"
	"golang.org/x/crypto/bcrypt"
)

// LocalProvider authenticates against the accounts table and issues signed
// JWT sessions. Lifecycle listeners are invoked sequentially on the goroutine
// that triggered the transition, so a listener observes events in order.
type LocalProvider struct {
	db        *database.DB
	logger    *logging.ChanneledLogger
	jwtSecret string
	ttl       time.Duration

	mu          sync.Mutex
	current     *identity.Session
	subscribers map[int]func(identity.Event)
	nextSubID   int
}

// NewLocalProvider creates a provider backed by the given database.
func NewLocalProvider(db *database.DB, jwtSecret string, ttl time.Duration, logger *logging.ChanneledLogger) *LocalProvider {
	return &LocalProvider{
		db:          db,
		logger:      logger,
		jwtSecret:   jwtSecret,
		ttl:         ttl,
		subscribers: make(map[int]func(identity.Event)),
	}
}

// RegisterAccount creates a new local account and returns its identity.
func (p *LocalProvider) RegisterAccount(ctx context.Context, email, password, name string) (*identity.Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ident := &identity.Identity{
		ID:       security.GenerateULID(),
		Email:    email,
		Name:     name,
		Provider: "local",
	}

	const query = `
		INSERT INTO accounts (id, email, password_hash, name, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := p.db.ExecContext(ctx, query, ident.ID, ident.Email, string(hash), ident.Name, ident.Provider, time.Now().UTC()); err != nil {
		p.logger.Auth().Error("Account registration failed", "error", err.Error(), "email", email)
		return nil, err
	}

	p.logger.LogAuthOperation("register", ident.ID, true, nil)
	return ident, nil
}

// SignIn validates the credentials, establishes a session and announces
// SIGNED_IN to every subscriber.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	const query = `
		SELECT id, email, password_hash, name, avatar_url, provider
		FROM accounts
		WHERE email = ?`

	var ident identity.Identity
	var hash string
	var name, avatarURL sql.NullString

	err := p.db.QueryRowContext(ctx, query, email).Scan(&ident.ID, &ident.Email, &hash, &name, &avatarURL, &ident.Provider)
	if err != nil {
		if err == sql.ErrNoRows {
			p.logger.LogAuthOperation("sign_in", "", false, map[string]any{"reason": "unknown email"})
			return nil, identity.ErrInvalidCredentials
		}
		p.logger.Auth().Error("Sign-in lookup failed", "error", err.Error())
		return nil, err
	}

	if name.Valid {
		ident.Name = name.String
	}
	if avatarURL.Valid {
		ident.AvatarURL = avatarURL.String
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		p.logger.LogAuthOperation("sign_in", ident.ID, false, map[string]any{"reason": "bad password"})
		return nil, identity.ErrInvalidCredentials
	}

	token, expiresAt, err := security.GenerateSessionToken(&ident, p.jwtSecret, p.ttl)
	if err != nil {
		p.logger.Auth().Error("Session token generation failed", "error", err.Error(), "userId", ident.ID)
		return nil, err
	}

	session := &identity.Session{Token: token, User: ident, ExpiresAt: expiresAt}

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	p.logger.LogAuthOperation("sign_in", ident.ID, true, nil)
	p.emit(identity.Event{Kind: identity.EventSignedIn, Session: session})
	return session, nil
}

// SignOut tears down the current session and announces SIGNED_OUT. Signing
// out with no session is a no-op.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	var userID string
	if had {
		userID = p.current.User.ID
	}
	p.current = nil
	p.mu.Unlock()

	if !had {
		return nil
	}

	p.logger.LogAuthOperation("sign_out", userID, true, nil)
	p.emit(identity.Event{Kind: identity.EventSignedOut})
	return nil
}

// CurrentSession returns the live session, or nil when signed out or
// expired. An expired session is discarded without an event; the idle
// layer owns explicit sign-out.
func (p *LocalProvider) CurrentSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, nil
	}
	if p.current.Expired(time.Now().UTC()) {
		p.current = nil
		return nil, nil
	}
	return p.current, nil
}

// Refresh reissues the session token and announces TOKEN_REFRESHED.
func (p *LocalProvider) Refresh(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return nil, nil
	}
	ident := p.current.User
	p.mu.Unlock()

	token, expiresAt, err := security.GenerateSessionToken(&ident, p.jwtSecret, p.ttl)
	if err != nil {
		p.logger.Auth().Error("Session token refresh failed", "error", err.Error(), "userId", ident.ID)
		return nil, err
	}

	session := &identity.Session{Token: token, User: ident, ExpiresAt: expiresAt}

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()

	p.logger.LogAuthOperation("token_refresh", ident.ID, true, nil)
	p.emit(identity.Event{Kind: identity.EventTokenRefreshed, Session: session})
	return session, nil
}

// Subscribe registers a lifecycle listener and returns its unsubscribe func.
func (p *LocalProvider) Subscribe(fn func(identity.Event)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subscribers, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) emit(event identity.Event) {
	p.mu.Lock()
	fns := make([]func(identity.Event), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
