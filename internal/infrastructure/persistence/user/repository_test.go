package user

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aimarket/aimarket-go/internal/domain/user"
	schema "github.com/aimarket/aimarket-go/internal/infrastructure/database"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
)

func newTestDB(t *testing.T) (*database.DB, *logging.ChanneledLogger) {
	t.Helper()

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToConsole: false,
		OutputToFile:    false,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	require.NoError(t, err)

	db, err := database.NewConnection("file:" + filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, schema.NewTableCreator().CreateCatalogSchema(db.DB))

	return db, logger
}

func TestUpsertCreatesWithDefaults(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLProfileRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.ProfileRecord{
		ID: "u1", Email: "u1@example.com", Name: "Ada", Provider: "local",
	}))

	rec, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Ada", rec.Name)
	assert.Equal(t, domain.DefaultRole, rec.Role)
	assert.Empty(t, rec.Nickname)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestUpsertNeverTouchesNickname(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLProfileRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.ProfileRecord{ID: "u1", Email: "u1@example.com"}))
	require.NoError(t, repo.UpdateNickname(ctx, "u1", "ada_l"))

	// A later sign-in syncs identity fields but must leave the nickname alone.
	require.NoError(t, repo.Upsert(ctx, &domain.ProfileRecord{
		ID: "u1", Email: "new@example.com", Name: "Ada Lovelace", AvatarURL: "/a.webp",
	}))

	rec, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "new@example.com", rec.Email)
	assert.Equal(t, "Ada Lovelace", rec.Name)
	assert.Equal(t, "/a.webp", rec.AvatarURL)
	assert.Equal(t, "ada_l", rec.Nickname)
}

func TestFindByIDMissingReturnsNilNil(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLProfileRepository(db, logger)

	rec, err := repo.FindByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateAvatarURL(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLProfileRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.ProfileRecord{ID: "u1", Email: "u1@example.com"}))
	require.NoError(t, repo.UpdateAvatarURL(ctx, "u1", "/media/avatars/u1_256px.webp"))

	rec, err := repo.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "/media/avatars/u1_256px.webp", rec.AvatarURL)
}

func TestListByUserEmpty(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLInterestRepository(db, logger)

	ids, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReplaceAllConvergesOnGivenSet(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLInterestRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, "u1", []int64{1, 10, 100}))

	ids, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 10, 100}, ids)

	// Replace, not merge: the old set is gone entirely.
	require.NoError(t, repo.ReplaceAll(ctx, "u1", []int64{2, 20}))

	ids, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 20}, ids)
}

func TestReplaceAllWithEmptySetClears(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLInterestRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, "u1", []int64{1, 2}))
	require.NoError(t, repo.ReplaceAll(ctx, "u1", nil))

	ids, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReplaceAllIsScopedPerUser(t *testing.T) {
	db, logger := newTestDB(t)
	repo := NewSQLInterestRepository(db, logger)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, "u1", []int64{1}))
	require.NoError(t, repo.ReplaceAll(ctx, "u2", []int64{2}))
	require.NoError(t, repo.ReplaceAll(ctx, "u1", []int64{3}))

	ids, err := repo.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}
