package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
)

func TestMainCategoriesCachesAfterFirstFetch(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)
	ctx := context.Background()

	first, err := svc.MainCategories(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := svc.MainCategories(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	mainCalls, _, _ := repo.calls()
	assert.Equal(t, 1, mainCalls, "second read must be served from cache")
}

func TestSubCategoriesCachedPerParent(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)
	ctx := context.Background()

	subs1, err := svc.SubCategories(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, subs1, 2)

	subs2, err := svc.SubCategories(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Len(t, subs2, 1)

	_, err = svc.SubCategories(ctx, "u1", 1)
	require.NoError(t, err)

	_, subCalls, _ := repo.calls()
	assert.Equal(t, 2, subCalls, "each parent is cached independently")
}

func TestFetchErrorIsNotCached(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	repo.err = errors.New("catalog down")
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)
	ctx := context.Background()

	_, err := svc.Tags(ctx, "u1")
	require.Error(t, err)

	repo.mu.Lock()
	repo.err = nil
	repo.mu.Unlock()

	tags, err := svc.Tags(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, _, tagCalls := repo.calls()
	assert.Equal(t, 2, tagCalls, "the failed attempt must not have primed the cache")
}

func TestVersionBumpInvalidatesCache(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	store := newTestLocalStore(t, logger)
	ctx := context.Background()

	v1 := NewOptionService(repo, store, "v1", logger)
	_, err := v1.MainCategories(ctx, "u1")
	require.NoError(t, err)

	v2 := NewOptionService(repo, store, "v2", logger)
	_, err = v2.MainCategories(ctx, "u1")
	require.NoError(t, err)

	mainCalls, _, _ := repo.calls()
	assert.Equal(t, 2, mainCalls, "a version bump must force a refetch")
}

func TestCachesAreScopedPerUser(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)
	ctx := context.Background()

	_, err := svc.MainCategories(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.MainCategories(ctx, "u2")
	require.NoError(t, err)

	mainCalls, _, _ := repo.calls()
	assert.Equal(t, 2, mainCalls)
}

func TestPurgeOptionCachesForcesRefetch(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)
	ctx := context.Background()

	_, err := svc.MainCategories(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Tags(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, svc.PurgeOptionCaches(ctx, "u1"))

	_, err = svc.MainCategories(ctx, "u1")
	require.NoError(t, err)
	_, err = svc.Tags(ctx, "u1")
	require.NoError(t, err)

	mainCalls, _, tagCalls := repo.calls()
	assert.Equal(t, 2, mainCalls)
	assert.Equal(t, 2, tagCalls)
}

func TestRemoteFetchErrorIsRecognizable(t *testing.T) {
	logger := newTestLogger(t)
	repo := seededOptionRepo()
	repo.err = onboarding.ErrRemoteFetch
	svc := NewOptionService(repo, newTestLocalStore(t, logger), "v1", logger)

	_, err := svc.MainCategories(context.Background(), "u1")
	assert.ErrorIs(t, err, onboarding.ErrRemoteFetch)
}
