package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/application/state"
	domainuser "github.com/aimarket/aimarket-go/internal/domain/user"
	schema "github.com/aimarket/aimarket-go/internal/infrastructure/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	userrepo "github.com/aimarket/aimarket-go/internal/infrastructure/persistence/user"
)

type profileFixture struct {
	svc       *ProfileService
	profiles  *userrepo.SQLProfileRepository
	interests *fakeInterestRepo
	container *state.Container
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	logger := newTestLogger(t)

	db, err := database.NewConnection("file:" + filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.NewTableCreator().CreateCatalogSchema(db.DB))

	f := &profileFixture{
		profiles:  userrepo.NewSQLProfileRepository(db, logger),
		interests: newFakeInterestRepo(),
		container: state.NewContainer(),
	}
	f.svc = NewProfileService(f.profiles, f.interests, f.container, nil, logger)
	return f
}

func TestUpdateNicknamePersistsAndRefreshesSnapshot(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	require.NoError(t, f.profiles.Upsert(ctx, &domainuser.ProfileRecord{ID: "u1", Email: "u1@example.com"}))
	f.container.SetUser(&domainuser.SessionUser{ID: "u1", Nickname: "anonymous"})

	require.NoError(t, f.svc.UpdateNickname(ctx, "u1", "ada_l"))

	rec, err := f.profiles.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ada_l", rec.Nickname)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "ada_l", snap.User.Nickname)
}

func TestUpdateNicknameRejectsEmpty(t *testing.T) {
	f := newProfileFixture(t)
	assert.Error(t, f.svc.UpdateNickname(context.Background(), "u1", ""))
}

func TestUpdateInterestsDedupes(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	f.container.SetUser(&domainuser.SessionUser{ID: "u1"})

	require.NoError(t, f.svc.UpdateInterests(ctx, "u1", []int64{5, 5, 0, -1, 7, 5}))

	stored, err := f.interests.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7}, stored)

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, []int64{5, 7}, snap.User.Interests)
}

func TestEditsForAnotherUserLeaveSnapshotAlone(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	f.container.SetUser(&domainuser.SessionUser{ID: "u1", Nickname: "ada_l"})

	require.NoError(t, f.profiles.Upsert(ctx, &domainuser.ProfileRecord{ID: "u2", Email: "u2@example.com"}))
	require.NoError(t, f.svc.UpdateNickname(ctx, "u2", "grace_h"))

	snap := f.container.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "ada_l", snap.User.Nickname)
}
