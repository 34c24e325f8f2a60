package services

import (
	"context"
	"sync"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/infrastructure/messaging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/localstore"
)

// IdleService signs users out after a period of inactivity. Each signed-in
// user gets one monitor; activity from any tab feeds it. Activity is
// throttled so rapid input touches the timer at most once per interval, and
// every accepted event is persisted and fanned out to the user's other tabs
// so their countdowns resync.
type IdleService struct {
	provider    identity.Provider
	broadcaster messaging.Broadcaster
	store       *localstore.Store
	logger      *logging.ChanneledLogger
	timeout     time.Duration
	throttle    time.Duration

	mu       sync.Mutex
	monitors map[string]*idleMonitor
}

type idleMonitor struct {
	timer        *time.Timer
	lastAccepted time.Time
}

// NewIdleService creates a new inactivity logout service
func NewIdleService(
	provider identity.Provider,
	broadcaster messaging.Broadcaster,
	store *localstore.Store,
	timeout, throttle time.Duration,
	logger *logging.ChanneledLogger,
) *IdleService {
	return &IdleService{
		provider:    provider,
		broadcaster: broadcaster,
		store:       store,
		logger:      logger,
		timeout:     timeout,
		throttle:    throttle,
		monitors:    make(map[string]*idleMonitor),
	}
}

// Listen subscribes the service to identity lifecycle events so monitors
// start on sign-in and stop on sign-out. Returns the unsubscribe func.
func (s *IdleService) Listen() func() {
	return s.provider.Subscribe(func(event identity.Event) {
		switch event.Kind {
		case identity.EventSignedIn:
			if event.Session == nil {
				s.logger.Idle().Warn("Sign-in event carried no session, monitor not started")
				return
			}
			s.StartMonitor(event.Session.User.ID)
		case identity.EventSignedOut:
			s.StopAll()
		}
	})
}

// StartMonitor arms the idle timer for a user. Starting an already monitored
// user resets the timer.
func (s *IdleService) StartMonitor(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.monitors[userID]; ok {
		m.timer.Reset(s.timeout)
		return
	}

	m := &idleMonitor{lastAccepted: time.Now()}
	m.timer = time.AfterFunc(s.timeout, func() {
		s.expire(userID)
	})
	s.monitors[userID] = m

	s.logger.Idle().Info("Idle monitor started", "userId", userID, "timeout", s.timeout)
}

// StopMonitor disarms the idle timer for a user.
func (s *IdleService) StopMonitor(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.monitors[userID]; ok {
		m.timer.Stop()
		delete(s.monitors, userID)
		s.logger.Idle().Debug("Idle monitor stopped", "userId", userID)
	}
}

// StopAll disarms every monitor. Used on sign-out and shutdown.
func (s *IdleService) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, m := range s.monitors {
		m.timer.Stop()
		delete(s.monitors, userID)
	}
}

// RecordActivity notes user input from one tab. Events inside the throttle
// window are absorbed without touching the timer, the store or the other
// tabs. Activity for an unmonitored user is ignored.
func (s *IdleService) RecordActivity(ctx context.Context, userID, tabID string) bool {
	now := time.Now()

	s.mu.Lock()
	m, ok := s.monitors[userID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if now.Sub(m.lastAccepted) < s.throttle {
		s.mu.Unlock()
		return false
	}
	m.lastAccepted = now
	m.timer.Reset(s.timeout)
	s.mu.Unlock()

	if err := s.store.SetEntry(ctx, localstore.LastActivityKey(userID), "", now.UnixMilli()); err != nil {
		s.logger.Idle().Warn("Failed to persist activity timestamp", "error", err.Error(), "userId", userID)
	}

	s.broadcaster.PublishActivity(userID, tabID, now)
	return true
}

// SyncActivity applies an activity timestamp observed by another tab. It
// resets the timer without re-broadcasting, so tabs converge instead of
// ping-ponging events.
func (s *IdleService) SyncActivity(userID string, lastActivity time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.monitors[userID]
	if !ok {
		return
	}
	if lastActivity.After(m.lastAccepted) {
		m.lastAccepted = lastActivity
		m.timer.Reset(s.timeout)
	}
}

// LastActivity reads the persisted activity timestamp for a user.
func (s *IdleService) LastActivity(ctx context.Context, userID string) (time.Time, bool, error) {
	var millis int64
	ok, err := s.store.GetEntry(ctx, localstore.LastActivityKey(userID), "", &millis)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis), true, nil
}

// expire fires when the idle timeout elapses with no accepted activity. The
// sign-out is unconditional; there is no grace prompt.
func (s *IdleService) expire(userID string) {
	s.mu.Lock()
	delete(s.monitors, userID)
	s.mu.Unlock()

	s.logger.Idle().Info("Idle timeout reached, signing out", "userId", userID, "timeout", s.timeout)

	if err := s.store.Delete(context.Background(), localstore.LastActivityKey(userID)); err != nil {
		s.logger.Idle().Warn("Failed to clear activity timestamp", "error", err.Error(), "userId", userID)
	}

	if err := s.provider.SignOut(context.Background()); err != nil {
		s.logger.Idle().Error("Idle sign-out failed", "error", err.Error(), "userId", userID)
	}
	s.broadcaster.BroadcastSignOut(userID)
}
