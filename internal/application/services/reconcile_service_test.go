package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/application/state"
	"github.com/aimarket/aimarket-go/internal/domain/identity"
	"github.com/aimarket/aimarket-go/internal/domain/user"
)

type reconcileFixture struct {
	svc        *ReconcileService
	provider   *fakeProvider
	profiles   *fakeProfileRepo
	interests  *fakeInterestRepo
	onboarding *OnboardingService
	container  *state.Container
	mail       *fakeMail
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	logger := newTestLogger(t)
	store := newTestLocalStore(t, logger)
	options := NewOptionService(seededOptionRepo(), store, "v1", logger)

	f := &reconcileFixture{
		provider:   newFakeProvider(),
		profiles:   newFakeProfileRepo(),
		interests:  newFakeInterestRepo(),
		onboarding: NewOnboardingService(options, store, logger),
		container:  state.NewContainer(),
		mail:       &fakeMail{},
	}
	f.svc = NewReconcileService(f.provider, f.profiles, f.interests, f.onboarding, f.container, f.mail, logger)
	return f
}

func sessionFor(ident identity.Identity) *identity.Session {
	return &identity.Session{
		Token:     "tok",
		User:      ident,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestSignOutEventClearsState(t *testing.T) {
	f := newReconcileFixture(t)
	f.container.SetUser(&user.SessionUser{ID: "u1"})

	f.svc.HandleEvent(context.Background(), identity.Event{Kind: identity.EventSignedOut})

	assert.Nil(t, f.container.Get().User)
}

func TestSessionlessLifecycleEventClearsState(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	for _, kind := range []identity.EventKind{identity.EventSignedIn, identity.EventTokenRefreshed} {
		f.container.SetUser(&user.SessionUser{ID: "u1"})

		f.svc.HandleEvent(ctx, identity.Event{Kind: kind})

		assert.Nil(t, f.container.Get().User, "a %s event without a session must not leave a stale user", kind)
	}
}

func TestReconcileWithoutProfileRowServesMinimalUser(t *testing.T) {
	f := newReconcileFixture(t)

	ok := f.svc.Reconcile(context.Background(), sessionFor(identity.Identity{
		ID: "u1", Email: "u1@example.com", Name: "Ada",
	}))
	require.True(t, ok)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "Ada", snap.User.Name)
	assert.Equal(t, "Ada", snap.User.Nickname)
	assert.Equal(t, user.DefaultRole, snap.User.Role)
	assert.Empty(t, snap.User.Interests)
}

func TestReconcileNameFallsBackToAnonymous(t *testing.T) {
	f := newReconcileFixture(t)

	ok := f.svc.Reconcile(context.Background(), sessionFor(identity.Identity{
		ID: "u1", Email: "u1@example.com",
	}))
	require.True(t, ok)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, user.DefaultNickname, snap.User.Name)
	assert.Equal(t, user.DefaultNickname, snap.User.Nickname)
}

func TestReconcileMergesStoredProfileAndInterests(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	f.profiles.records["u1"] = &user.ProfileRecord{
		ID: "u1", Email: "u1@example.com", Nickname: "ada_l", Role: "SELLER",
	}
	require.NoError(t, f.interests.ReplaceAll(ctx, "u1", []int64{1, 10}))

	ok := f.svc.Reconcile(ctx, sessionFor(identity.Identity{
		ID: "u1", Email: "u1@example.com", Name: "Ada Lovelace",
	}))
	require.True(t, ok)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "Ada Lovelace", snap.User.Name, "empty stored name falls back to session metadata")
	assert.Equal(t, "ada_l", snap.User.Nickname, "stored nickname wins over the name fallback")
	assert.Equal(t, "SELLER", snap.User.Role)
	assert.Equal(t, []int64{1, 10}, snap.User.Interests)
}

func TestReconcileRunsFirstTimeSetup(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	ok := f.svc.Reconcile(ctx, sessionFor(identity.Identity{
		ID: "u1", Email: "u1@example.com", Name: "Ada",
	}))
	require.True(t, ok)

	stored, err := f.profiles.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "u1@example.com", stored.Email)

	interests, err := f.interests.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 10, 100}, interests)

	pending, err := f.onboarding.PendingSelection(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, pending, "pending payload is consumed after durable persistence")

	assert.Equal(t, 1, f.mail.sentCount())

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, []int64{1, 10, 100}, snap.User.Interests)
}

func TestSetupIsNotRerunWithoutPendingSelection(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	ident := identity.Identity{ID: "u1", Email: "u1@example.com"}
	require.True(t, f.svc.Reconcile(ctx, sessionFor(ident)))
	require.True(t, f.svc.Reconcile(ctx, sessionFor(ident)))

	f.profiles.mu.Lock()
	upserts := f.profiles.upserts
	f.profiles.mu.Unlock()
	assert.Equal(t, 1, upserts, "setup runs once; later reconciliations only fetch")
	assert.Equal(t, 1, f.mail.sentCount())
}

func TestSetupFailureForcesSignOutWithNotice(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	f.interests.replaceErr = errors.New("write failed")

	ok := f.svc.Reconcile(ctx, sessionFor(identity.Identity{ID: "u1", Email: "u1@example.com"}))
	require.True(t, ok)

	assert.Equal(t, 1, f.provider.signOutCount())

	snap := f.container.Get()
	assert.Nil(t, snap.User)
	assert.Equal(t, ProvisioningNotice, snap.Notice)

	pending, err := f.onboarding.PendingSelection(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, pending, "a failed setup must leave the payload for the retry")
}

func TestSetupFailureCarriesTheCause(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	cause := errors.New("interest table is locked")
	f.interests.replaceErr = cause

	err = f.svc.runFirstTimeSetup(ctx, identity.Identity{ID: "u1", Email: "u1@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, user.ErrProfileProvisioning)
	assert.ErrorIs(t, err, cause, "the underlying failure must survive the wrap")
}

func TestSetupRetrySucceedsAfterFailure(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	ident := identity.Identity{ID: "u1", Email: "u1@example.com"}

	f.interests.replaceErr = errors.New("write failed")
	require.True(t, f.svc.Reconcile(ctx, sessionFor(ident)))

	f.interests.mu.Lock()
	f.interests.replaceErr = nil
	f.interests.mu.Unlock()

	require.True(t, f.svc.Reconcile(ctx, sessionFor(ident)))

	interests, err := f.interests.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 10, 100}, interests)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Empty(t, snap.Notice)
}

func TestProfileFetchFailureDegradesToMinimalUser(t *testing.T) {
	f := newReconcileFixture(t)
	f.profiles.findErr = errors.New("store unreachable")

	ok := f.svc.Reconcile(context.Background(), sessionFor(identity.Identity{
		ID: "u1", Email: "u1@example.com", Name: "Ada",
	}))
	require.True(t, ok)

	snap := f.container.Get()
	require.NotNil(t, snap.User, "a fetch failure must not block sign-in")
	assert.Equal(t, "Ada", snap.User.Name)
	assert.Equal(t, user.DefaultRole, snap.User.Role)
}

func TestConcurrentReconcileIsDropped(t *testing.T) {
	f := newReconcileFixture(t)

	f.svc.busy.Lock()
	defer f.svc.busy.Unlock()

	ok := f.svc.Reconcile(context.Background(), sessionFor(identity.Identity{ID: "u1"}))
	assert.False(t, ok, "an in-flight reconciliation drops the new event")
	assert.Nil(t, f.container.Get().User)
}

func TestNilMailServiceIsTolerated(t *testing.T) {
	f := newReconcileFixture(t)
	f.svc.mail = nil
	ctx := context.Background()

	runWizardToConfirm(t, f.onboarding, "u1")
	_, err := f.onboarding.Submit(ctx, "u1")
	require.NoError(t, err)

	ok := f.svc.Reconcile(ctx, sessionFor(identity.Identity{ID: "u1", Email: "u1@example.com"}))
	require.True(t, ok)
	assert.NotNil(t, f.container.Get().User)
}

func TestListenReactsToProviderEvents(t *testing.T) {
	f := newReconcileFixture(t)
	unsubscribe := f.svc.Listen()
	defer unsubscribe()

	session := sessionFor(identity.Identity{ID: "u1", Email: "u1@example.com", Name: "Ada"})
	f.provider.emit(identity.Event{Kind: identity.EventSignedIn, Session: session})

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.ID)

	f.provider.emit(identity.Event{Kind: identity.EventSignedOut})
	assert.Nil(t, f.container.Get().User)
}
