// Package catalog provides the SQL-based implementation of the onboarding
// option repository over the category tree and tag tables.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
)

// SQLOptionRepository is the SQL-based implementation of the OptionRepository.
type SQLOptionRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLOptionRepository creates a new instance of the repository.
func NewSQLOptionRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLOptionRepository {
	return &SQLOptionRepository{
		db:     db,
		logger: logger,
	}
}

// MainCategories retrieves the top-level categories ordered by name.
func (r *SQLOptionRepository) MainCategories(ctx context.Context) ([]onboarding.Option, error) {
	const query = `
		SELECT id, name, parent_id
		FROM categories
		WHERE parent_id IS NULL
		ORDER BY name`

	return r.queryOptions(ctx, "main categories", query)
}

// SubCategories retrieves the children of one main category ordered by name.
func (r *SQLOptionRepository) SubCategories(ctx context.Context, parentID int64) ([]onboarding.Option, error) {
	const query = `
		SELECT id, name, parent_id
		FROM categories
		WHERE parent_id = ?
		ORDER BY name`

	return r.queryOptions(ctx, "sub categories", query, parentID)
}

// Tags retrieves the flat tag list ordered by name.
func (r *SQLOptionRepository) Tags(ctx context.Context) ([]onboarding.Option, error) {
	const query = `
		SELECT id, name, NULL
		FROM tags
		ORDER BY name`

	return r.queryOptions(ctx, "tags", query)
}

func (r *SQLOptionRepository) queryOptions(ctx context.Context, label, query string, args ...any) ([]onboarding.Option, error) {
	start := time.Now()
	r.logger.Database().Debug("Loading onboarding options", "kind", label)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to load onboarding options", "error", err.Error(), "kind", label)
		return nil, fmt.Errorf("%w: %s: %v", onboarding.ErrRemoteFetch, label, err)
	}
	defer rows.Close()

	var options []onboarding.Option
	for rows.Next() {
		var o onboarding.Option
		var parentID sql.NullInt64
		if err := rows.Scan(&o.ID, &o.Name, &parentID); err != nil {
			r.logger.Database().Error("Failed to scan option row", "error", err.Error(), "kind", label)
			return nil, fmt.Errorf("%w: %s: %v", onboarding.ErrRemoteFetch, label, err)
		}
		if parentID.Valid {
			p := parentID.Int64
			o.ParentID = &p
		}
		options = append(options, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", onboarding.ErrRemoteFetch, label, err)
	}

	if err := onboarding.ValidateOptions(options); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", onboarding.ErrRemoteFetch, label, err)
	}

	r.logger.Database().Info("Onboarding options loaded", "kind", label, "count", len(options), "duration", time.Since(start))
	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start))
	return options, nil
}
