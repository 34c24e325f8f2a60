// Package user provides the concrete SQL-based implementations of
// the user domain repositories (Profile, Interest).
package user

import (
	"context"
	"database/sql"
	"time"

	"github.com/aimarket/aimarket-go/internal/domain/user"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
	"github.com/aimarket/aimarket-go/pkg/config"
)

// SQLProfileRepository is the SQL-based implementation of the ProfileRepository.
type SQLProfileRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLProfileRepository creates a new instance of the repository.
func NewSQLProfileRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLProfileRepository {
	return &SQLProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert syncs the identity-provider fields keyed on id. The nickname column
// is intentionally absent from the update set so a user-chosen nickname is
// never clobbered by a sign-in.
func (r *SQLProfileRepository) Upsert(ctx context.Context, rec *user.ProfileRecord) error {
	const query = `
		INSERT INTO users (id, email, name, avatar_url, provider, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			provider = excluded.provider`

	start := time.Now()
	r.logger.Database().Debug("Executing profile upsert", "id", rec.ID, "email", rec.Email)

	role := rec.Role
	if role == "" {
		role = user.DefaultRole
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		rec.ID,
		rec.Email,
		rec.Name,
		rec.AvatarURL,
		rec.Provider,
		role,
		createdAt,
	)
	if err != nil {
		r.logger.Database().Error("Profile upsert failed", "error", err.Error(), "id", rec.ID)
		return err
	}

	r.logger.Database().Info("Profile upsert completed", "id", rec.ID, "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindByID retrieves a profile record by its identifier. Returns nil without
// an error when no row exists.
func (r *SQLProfileRepository) FindByID(ctx context.Context, id string) (*user.ProfileRecord, error) {
	const query = `
		SELECT id, email, name, nickname, avatar_url, provider, role, created_at
		FROM users
		WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading profile by ID", "id", id)

	row := r.db.QueryRowContext(ctx, query, id)
	rec, err := r.scanProfile(row)
	if err != nil {
		r.logger.Database().Error("Failed to load profile by ID", "error", err.Error(), "id", id)
		return nil, err
	}
	if rec == nil {
		r.logger.Database().Debug("Profile not found by ID", "id", id)
		return nil, nil
	}

	r.logger.Database().Info("Profile loaded by ID", "id", id, "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return rec, nil
}

// scanProfile is a helper function to scan a sql.Row into a ProfileRecord.
func (r *SQLProfileRepository) scanProfile(row *sql.Row) (*user.ProfileRecord, error) {
	var rec user.ProfileRecord
	var name, nickname, avatarURL, provider sql.NullString
	var createdAtStr string

	err := row.Scan(
		&rec.ID,
		&rec.Email,
		&name,
		&nickname,
		&avatarURL,
		&provider,
		&rec.Role,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	// Handle nullable fields
	if name.Valid {
		rec.Name = name.String
	}
	if nickname.Valid {
		rec.Nickname = nickname.String
	}
	if avatarURL.Valid {
		rec.AvatarURL = avatarURL.String
	}
	if provider.Valid {
		rec.Provider = provider.String
	}

	// Parse timestamps
	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		// Try alternative timestamp format if RFC3339 fails
		rec.CreatedAt, err = time.Parse("2006-01-02 15:04:05", createdAtStr)
		if err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

// UpdateAvatarURL points the profile at a freshly processed avatar rendition.
func (r *SQLProfileRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	const query = `UPDATE users SET avatar_url = ? WHERE id = ?`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, avatarURL, id)
	if err != nil {
		r.logger.Database().Error("Avatar update failed", "error", err.Error(), "id", id)
		return err
	}

	r.logger.Database().Info("Avatar updated", "id", id, "duration", time.Since(start))
	return nil
}

// UpdateNickname sets the user-chosen nickname outside the upsert path.
func (r *SQLProfileRepository) UpdateNickname(ctx context.Context, id, nickname string) error {
	const query = `UPDATE users SET nickname = ? WHERE id = ?`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, nickname, id)
	if err != nil {
		r.logger.Database().Error("Nickname update failed", "error", err.Error(), "id", id)
		return err
	}

	r.logger.Database().Info("Nickname updated", "id", id, "duration", time.Since(start))
	return nil
}
