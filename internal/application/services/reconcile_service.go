package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aimarket/aimarket-go/internal/application/state"
	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/domain/user"
	"github.com/aimarket/aimarket-go/internal/infrastructure/email"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/pkg/config"
)

// ProvisioningNotice is published to the state container when first-time
// setup fails and the user is signed out.
const ProvisioningNotice = "We could not finish setting up your account. Please sign in again."

// ReconcileService is the single writer of the session-user state. It
// subscribes to identity lifecycle events and converges the state container
// on the persisted profile and interests.
//
// At most one reconciliation runs at a time. A second event arriving while
// one is in flight is dropped, not queued; the in-flight pass reads current
// data and a later event will land once the lock frees.
type ReconcileService struct {
	provider   identity.Provider
	profiles   user.ProfileRepository
	interests  user.InterestRepository
	onboarding *OnboardingService
	container  *state.Container
	mail       email.Service
	logger     *logging.ChanneledLogger

	busy sync.Mutex
}

// NewReconcileService creates a new reconciliation service. The email service
// may be nil when transactional email is not configured.
func NewReconcileService(
	provider identity.Provider,
	profiles user.ProfileRepository,
	interests user.InterestRepository,
	onboarding *OnboardingService,
	container *state.Container,
	mail email.Service,
	logger *logging.ChanneledLogger,
) *ReconcileService {
	return &ReconcileService{
		provider:   provider,
		profiles:   profiles,
		interests:  interests,
		onboarding: onboarding,
		container:  container,
		mail:       mail,
		logger:     logger,
	}
}

// Listen subscribes the service to identity lifecycle events and returns the
// unsubscribe func.
func (s *ReconcileService) Listen() func() {
	return s.provider.Subscribe(func(event identity.Event) {
		s.HandleEvent(context.Background(), event)
	})
}

// HandleEvent reacts to one identity lifecycle event.
func (s *ReconcileService) HandleEvent(ctx context.Context, event identity.Event) {
	switch event.Kind {
	case identity.EventSignedOut:
		s.container.SetUser(nil)
		s.logger.Auth().Info("Session state cleared on sign-out")
	case identity.EventSignedIn, identity.EventTokenRefreshed:
		if event.Session == nil {
			// No session means no user, whatever the event calls itself.
			s.container.SetUser(nil)
			s.logger.Auth().Warn("Lifecycle event carried no session, state cleared", "kind", string(event.Kind))
			return
		}
		s.Reconcile(ctx, event.Session)
	}
}

// Reconcile converges the state container on the stored profile for the
// session's identity. Returns false when dropped because another
// reconciliation holds the lock.
func (s *ReconcileService) Reconcile(ctx context.Context, session *identity.Session) bool {
	if !s.busy.TryLock() {
		s.logger.Auth().Warn("Reconciliation already in flight, event dropped", "userId", session.User.ID)
		return false
	}
	defer s.busy.Unlock()

	start := time.Now()
	ident := session.User

	if err := s.runFirstTimeSetup(ctx, ident); err != nil {
		s.logger.Auth().Error("First-time setup failed, signing out", "error", err.Error(), "userId", ident.ID)
		if err := s.provider.SignOut(ctx); err != nil {
			s.logger.Auth().Error("Forced sign-out failed", "error", err.Error(), "userId", ident.ID)
		}
		s.container.SetNotice(ProvisioningNotice)
		return true
	}

	sessionUser, err := s.buildSessionUser(ctx, ident)
	if err != nil {
		// Fetch failures degrade to a minimal user rather than blocking
		// sign-in; the next reconciliation will fill in the rest.
		s.logger.Auth().Warn("Profile fetch failed, using session metadata", "error", err.Error(), "userId", ident.ID)
		sessionUser = minimalSessionUser(ident)
	}

	s.container.SetUser(sessionUser)
	s.logger.Auth().Info("Session reconciled", "userId", ident.ID, "duration", time.Since(start))
	return true
}

// runFirstTimeSetup consumes a pending wizard selection if one exists:
// upsert the profile, replace the interest set, then drop the pending
// payload. Any failure aborts the whole setup.
func (s *ReconcileService) runFirstTimeSetup(ctx context.Context, ident identity.Identity) error {
	pending, err := s.onboarding.PendingSelection(ctx, ident.ID)
	if err != nil {
		return fmt.Errorf("%w: pending selection read: %w", user.ErrProfileProvisioning, err)
	}
	if pending == nil {
		return nil
	}

	s.logger.Auth().Info("Running first-time setup", "userId", ident.ID)

	rec := &user.ProfileRecord{
		ID:        ident.ID,
		Email:     ident.Email,
		Name:      ident.Name,
		AvatarURL: ident.AvatarURL,
		Provider:  ident.Provider,
	}
	if err := s.profiles.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("%w: profile upsert: %w", user.ErrProfileProvisioning, err)
	}

	if err := s.interests.ReplaceAll(ctx, ident.ID, pending.InterestIDs()); err != nil {
		return fmt.Errorf("%w: interest replace: %w", user.ErrProfileProvisioning, err)
	}

	if err := s.onboarding.CompleteOnboarding(ctx, ident.ID); err != nil {
		return fmt.Errorf("%w: completion flag write: %w", user.ErrProfileProvisioning, err)
	}

	// Everything is durable; drop the pending payload so setup never reruns.
	if err := s.onboarding.ConsumePendingSelection(ctx, ident.ID); err != nil {
		s.logger.Auth().Warn("Failed to clear pending selection", "error", err.Error(), "userId", ident.ID)
	}

	if s.mail != nil {
		if err := s.mail.SendWelcomeEmail(ident.Email, ident.Name, config.MarketplaceURL); err != nil {
			// Welcome mail is best effort.
			s.logger.Email().Warn("Welcome email failed", "error", err.Error(), "userId", ident.ID)
		}
	}

	s.logger.Auth().Info("First-time setup completed", "userId", ident.ID)
	return nil
}

// buildSessionUser merges the stored profile, the stored interests and the
// session metadata, applying the display-name fallback chain.
func (s *ReconcileService) buildSessionUser(ctx context.Context, ident identity.Identity) (*user.SessionUser, error) {
	rec, err := s.profiles.FindByID(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// No profile row yet. Serve a minimal user; setup will create the
		// row on the next submit.
		return minimalSessionUser(ident), nil
	}

	interests, err := s.interests.ListByUser(ctx, ident.ID)
	if err != nil {
		return nil, err
	}

	name := rec.Name
	if name == "" {
		name = ident.Name
	}
	if name == "" {
		name = user.DefaultNickname
	}

	nickname := rec.Nickname
	if nickname == "" {
		nickname = name
	}

	avatarURL := rec.AvatarURL
	if avatarURL == "" {
		avatarURL = ident.AvatarURL
	}

	role := rec.Role
	if role == "" {
		role = user.DefaultRole
	}

	return &user.SessionUser{
		ID:        rec.ID,
		Email:     rec.Email,
		Name:      name,
		Nickname:  nickname,
		AvatarURL: avatarURL,
		Role:      role,
		Interests: interests,
	}, nil
}

func minimalSessionUser(ident identity.Identity) *user.SessionUser {
	name := ident.Name
	if name == "" {
		name = user.DefaultNickname
	}
	return &user.SessionUser{
		ID:        ident.ID,
		Email:     ident.Email,
		Name:      name,
		Nickname:  name,
		AvatarURL: ident.AvatarURL,
		Role:      user.DefaultRole,
	}
}
