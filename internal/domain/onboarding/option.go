// Package onboarding defines the entities and the wizard state machine for
// the multi-step interest-selection flow. The package is pure domain logic;
// persistence and remote access live behind the repository interface below.
package onboarding

import (
	"context"
	"errors"
	"fmt"
)

// ErrRemoteFetch marks any failure reading options from the remote catalog.
// Callers surface it without retrying; retry policy belongs to the UI layer.
var ErrRemoteFetch = errors.New("remote fetch failed")

// Option is a selectable category or tag node shown during onboarding.
// Categories form a two-level tree via ParentID; tags are a flat set.
type Option struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// Validate checks the required fields at the data-store boundary.
func (o Option) Validate() error {
	if o.ID <= 0 {
		return fmt.Errorf("option requires a positive id, got %d", o.ID)
	}
	if o.Name == "" {
		return fmt.Errorf("option %d requires a name", o.ID)
	}
	return nil
}

// ValidateOptions validates every row fetched from the remote catalog.
func ValidateOptions(opts []Option) error {
	for _, o := range opts {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OptionRepository defines the remote catalog queries backing the wizard.
type OptionRepository interface {
	MainCategories(ctx context.Context) ([]Option, error)
	SubCategories(ctx context.Context, parentID int64) ([]Option, error)
	Tags(ctx context.Context) ([]Option, error)
}
