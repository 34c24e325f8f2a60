// Package user defines the application-facing user entities and the
// interfaces for accessing profile and interest records. The repositories
// abstract the remote data store so the reconciliation core stays decoupled
// from the database.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrProfileProvisioning marks a failure during first-time setup's
// upsert/interest-write/fetch sequence. The policy is forced sign-out plus a
// user-visible retry prompt; the identity record itself is left intact.
var ErrProfileProvisioning = errors.New("profile provisioning failed")

// DefaultRole is assigned to profiles that have no stored role yet.
const DefaultRole = "BUYER"

// DefaultNickname labels users who never chose one.
const DefaultNickname = "anonymous"

// SessionUser is the reconciled, application-facing representation of the
// signed-in identity plus profile and interests. It is owned exclusively by
// the reconciliation controller; everyone else reads immutable snapshots.
type SessionUser struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Nickname  string  `json:"nickname"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
	Role      string  `json:"role"`
	Interests []int64 `json:"interests"`
}

// ProfileRecord is the persisted profile row in the remote store.
type ProfileRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Nickname  string    `json:"nickname,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfileRepository defines the operations for persisting profile records.
//
// Upsert syncs the identity-provider fields (email, name, provider, avatar)
// keyed on id. It must never touch the user-chosen nickname column, so a
// nickname set in the profile editor survives every subsequent sign-in.
type ProfileRepository interface {
	Upsert(ctx context.Context, rec *ProfileRecord) error
	FindByID(ctx context.Context, id string) (*ProfileRecord, error)
}

// InterestRepository defines the operations for persisting user interests.
//
// ReplaceAll uses replace-all semantics: delete every existing row for the
// user, then insert the new set. Not a diff/merge; re-running onboarding or
// editing interests always converges on exactly the given set.
type InterestRepository interface {
	ListByUser(ctx context.Context, userID string) ([]int64, error)
	ReplaceAll(ctx context.Context, userID string, interestIDs []int64) error
}
