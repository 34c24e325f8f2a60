package services

import (
	"context"
	"fmt"

	"github.com/aimarket/aimarket-go/internal/application/state"
	"github.com/aimarket/aimarket-go/internal/domain/user"
	"github.com/aimarket/aimarket-go/internal/infrastructure/media"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	userrepo "github.com/aimarket/aimarket-go/internal/infrastructure/persistence/user"
)

// ProfileService handles profile edits outside the reconciliation path:
// nickname changes, avatar uploads and interest edits. Each edit updates the
// store first, then the shared state snapshot.
type ProfileService struct {
	profiles  *userrepo.SQLProfileRepository
	interests user.InterestRepository
	container *state.Container
	images    *media.ImageProcessor
	logger    *logging.ChanneledLogger
}

// NewProfileService creates a new profile editing service
func NewProfileService(
	profiles *userrepo.SQLProfileRepository,
	interests user.InterestRepository,
	container *state.Container,
	images *media.ImageProcessor,
	logger *logging.ChanneledLogger,
) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		interests: interests,
		container: container,
		images:    images,
		logger:    logger,
	}
}

// UpdateNickname sets the user-chosen nickname. The nickname survives every
// future sign-in because the reconciliation upsert never writes that column.
func (s *ProfileService) UpdateNickname(ctx context.Context, userID, nickname string) error {
	if nickname == "" {
		return fmt.Errorf("nickname cannot be empty")
	}

	if err := s.profiles.UpdateNickname(ctx, userID, nickname); err != nil {
		return err
	}

	s.refreshSnapshot(userID, func(u *user.SessionUser) {
		u.Nickname = nickname
	})

	s.logger.Onboarding().Info("Nickname updated", "userId", userID)
	return nil
}

// UploadAvatar processes a base64 avatar upload into WebP renditions and
// points the profile at the new full-size rendition.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID, data string) (string, error) {
	avatarURL, err := s.images.ProcessAvatar(data, userID)
	if err != nil {
		return "", err
	}

	if err := s.profiles.UpdateAvatarURL(ctx, userID, avatarURL); err != nil {
		return "", err
	}

	s.refreshSnapshot(userID, func(u *user.SessionUser) {
		u.AvatarURL = avatarURL
	})

	s.logger.Onboarding().Info("Avatar updated", "userId", userID, "avatarUrl", avatarURL)
	return avatarURL, nil
}

// UpdateInterests replaces the user's interest set. Same replace-all
// semantics as first-time setup; the stored rows converge on the given ids.
func (s *ProfileService) UpdateInterests(ctx context.Context, userID string, interestIDs []int64) error {
	deduped := dedupeIDs(interestIDs)

	if err := s.interests.ReplaceAll(ctx, userID, deduped); err != nil {
		return err
	}

	s.refreshSnapshot(userID, func(u *user.SessionUser) {
		u.Interests = deduped
	})

	s.logger.Onboarding().Info("Interests updated", "userId", userID, "count", len(deduped))
	return nil
}

// refreshSnapshot applies an in-place edit to the current session user, if it
// is the same user the edit targeted.
func (s *ProfileService) refreshSnapshot(userID string, apply func(*user.SessionUser)) {
	snapshot := s.container.Get()
	if snapshot.User == nil || snapshot.User.ID != userID {
		return
	}
	apply(snapshot.User)
	s.container.Set(snapshot)
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
