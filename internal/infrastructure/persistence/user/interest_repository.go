package user

import (
	"context"
	"time"

	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	"github.com/aimarket/aimarket-go/pkg/config"
)

// SQLInterestRepository is the SQL-based implementation of the InterestRepository.
type SQLInterestRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLInterestRepository creates a new instance of the repository.
func NewSQLInterestRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLInterestRepository {
	return &SQLInterestRepository{
		db:     db,
		logger: logger,
	}
}

// ListByUser retrieves the interest ids stored for a user, oldest first.
func (r *SQLInterestRepository) ListByUser(ctx context.Context, userID string) ([]int64, error) {
	const query = `
		SELECT interest_id
		FROM user_interests
		WHERE user_id = ?
		ORDER BY id`

	start := time.Now()
	r.logger.Database().Debug("Loading user interests", "userId", userID)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Database().Error("Failed to load user interests", "error", err.Error(), "userId", userID)
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Database().Info("User interests loaded", "userId", userID, "count", len(ids), "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return ids, nil
}

// ReplaceAll replaces the user's entire interest set inside one transaction:
// delete every existing row, then insert the new ids. Re-running with the
// same input converges on the same rows.
func (r *SQLInterestRepository) ReplaceAll(ctx context.Context, userID string, interestIDs []int64) error {
	start := time.Now()
	r.logger.Database().Debug("Replacing user interests", "userId", userID, "count", len(interestIDs))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Database().Error("Failed to begin interest replace", "error", err.Error(), "userId", userID)
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_interests WHERE user_id = ?`, userID); err != nil {
		r.logger.Database().Error("Failed to clear user interests", "error", err.Error(), "userId", userID)
		return err
	}

	const insert = `INSERT INTO user_interests (user_id, interest_id) VALUES (?, ?)`
	for _, id := range interestIDs {
		if _, err := tx.ExecContext(ctx, insert, userID, id); err != nil {
			r.logger.Database().Error("Failed to insert user interest", "error", err.Error(), "userId", userID, "interestId", id)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Database().Error("Failed to commit interest replace", "error", err.Error(), "userId", userID)
		return err
	}

	r.logger.Database().Info("User interests replaced", "userId", userID, "count", len(interestIDs), "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery("BULK_INTEREST_REPLACE", duration)
	}
	return nil
}
