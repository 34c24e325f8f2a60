// Package services provides application-level orchestration services
package services

import (
	"context"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/localstore"
)

// OptionService loads wizard options cache-first: a versioned hit in the
// local store skips the remote catalog entirely. Failed fetches are surfaced
// to the caller and never written to the cache.
type OptionService struct {
	repo         onboarding.OptionRepository
	store        *localstore.Store
	logger       *logging.ChanneledLogger
	cacheVersion string
}

// NewOptionService creates a new option loading service
func NewOptionService(repo onboarding.OptionRepository, store *localstore.Store, cacheVersion string, logger *logging.ChanneledLogger) *OptionService {
	return &OptionService{
		repo:         repo,
		store:        store,
		logger:       logger,
		cacheVersion: cacheVersion,
	}
}

// MainCategories returns the top-level categories for the wizard's first step.
func (s *OptionService) MainCategories(ctx context.Context, userID string) ([]onboarding.Option, error) {
	key := localstore.MainCategoriesKey(userID)
	return s.load(ctx, key, func(ctx context.Context) ([]onboarding.Option, error) {
		return s.repo.MainCategories(ctx)
	})
}

// SubCategories returns the children of the chosen main category.
func (s *OptionService) SubCategories(ctx context.Context, userID string, parentID int64) ([]onboarding.Option, error) {
	key := localstore.SubCategoriesKey(userID, parentID)
	return s.load(ctx, key, func(ctx context.Context) ([]onboarding.Option, error) {
		return s.repo.SubCategories(ctx, parentID)
	})
}

// Tags returns the flat tag list for the wizard's third step.
func (s *OptionService) Tags(ctx context.Context, userID string) ([]onboarding.Option, error) {
	key := localstore.TagsKey(userID)
	return s.load(ctx, key, func(ctx context.Context) ([]onboarding.Option, error) {
		return s.repo.Tags(ctx)
	})
}

// PurgeOptionCaches drops every cached option list for a user.
func (s *OptionService) PurgeOptionCaches(ctx context.Context, userID string) error {
	return s.store.PurgePrefix(ctx, localstore.OptionsPrefix(userID))
}

func (s *OptionService) load(ctx context.Context, key string, fetch func(context.Context) ([]onboarding.Option, error)) ([]onboarding.Option, error) {
	start := time.Now()

	var cached []onboarding.Option
	hit, err := s.store.GetEntry(ctx, key, s.cacheVersion, &cached)
	if err != nil {
		// A broken cache read falls through to the remote fetch.
		s.logger.Cache().Warn("Option cache read failed, fetching remote", "key", key, "error", err.Error())
	}
	if hit {
		s.logger.Onboarding().Debug("Options served from cache", "key", key, "count", len(cached), "duration", time.Since(start))
		return cached, nil
	}

	options, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetEntry(ctx, key, s.cacheVersion, options); err != nil {
		// A failed cache write degrades to fetch-every-time, not an error.
		s.logger.Cache().Warn("Option cache write failed", "key", key, "error", err.Error())
	}

	s.logger.Onboarding().Info("Options fetched from catalog", "key", key, "count", len(options), "duration", time.Since(start))
	return options, nil
}
