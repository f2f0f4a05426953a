package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esp-pix/authserver/types"
	"github.com/google/uuid"
)

// APIKeyRepository handles persistence for device API keys.
type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `k.id, k.name, k.key, k.user_id, k.is_active, k.expires_at, k.last_used_at, k.created_at`

func (r *APIKeyRepository) Create(ctx context.Context, key types.APIKey) (types.APIKey, error) {
	if key.ID == "" {
		key.ID = uuid.NewString()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO api_keys (id, name, key, user_id, is_active, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		key.ID,
		key.Name,
		key.Key,
		key.UserID,
		key.IsActive,
		nullTime(key.ExpiresAt),
		nullTime(key.LastUsedAt),
		key.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.APIKey{}, ErrConflict
		}
		return types.APIKey{}, err
	}
	return key, nil
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (types.APIKey, error) {
	const query = `
		SELECT ` + apiKeyColumns + `
		FROM api_keys k
		WHERE k.id = $1`
	return scanAPIKey(r.db.QueryRowContext(ctx, query, id))
}

// GetByKey looks a key up by its exact secret value.
func (r *APIKeyRepository) GetByKey(ctx context.Context, secret string) (types.APIKey, error) {
	const query = `
		SELECT ` + apiKeyColumns + `
		FROM api_keys k
		WHERE k.key = $1`
	return scanAPIKey(r.db.QueryRowContext(ctx, query, secret))
}

// List returns keys joined with their owners, newest first.
// An empty ownerID lists keys of every user.
func (r *APIKeyRepository) List(ctx context.Context, ownerID string) ([]types.OwnedAPIKey, error) {
	const query = `
		SELECT ` + apiKeyColumns + `, u.email, u.name
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE (CAST($1 AS TEXT) = '' OR k.user_id = $1)
		ORDER BY k.created_at DESC, k.id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]types.OwnedAPIKey, 0)
	for rows.Next() {
		var owned types.OwnedAPIKey
		var expiresAt, lastUsedAt sql.NullTime
		var ownerName sql.NullString
		if err := rows.Scan(
			&owned.ID,
			&owned.Name,
			&owned.Key,
			&owned.UserID,
			&owned.IsActive,
			&expiresAt,
			&lastUsedAt,
			&owned.CreatedAt,
			&owned.Owner.Email,
			&ownerName,
		); err != nil {
			return nil, err
		}
		owned.ExpiresAt = timePtr(expiresAt)
		owned.LastUsedAt = timePtr(lastUsedAt)
		if ownerName.Valid {
			owned.Owner.Name = &ownerName.String
		}
		keys = append(keys, owned)
	}
	return keys, rows.Err()
}

func (r *APIKeyRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE api_keys SET is_active = $1 WHERE id = $2`
	return r.execOne(ctx, query, active, id)
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE api_keys SET last_used_at = $1 WHERE id = $2`
	return r.execOne(ctx, query, at.UTC(), id)
}

func (r *APIKeyRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM api_keys WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *APIKeyRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKey(row rowScanner) (types.APIKey, error) {
	var key types.APIKey
	var expiresAt, lastUsedAt sql.NullTime
	err := row.Scan(
		&key.ID,
		&key.Name,
		&key.Key,
		&key.UserID,
		&key.IsActive,
		&expiresAt,
		&lastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.APIKey{}, ErrNotFound
		}
		return types.APIKey{}, err
	}
	key.ExpiresAt = timePtr(expiresAt)
	key.LastUsedAt = timePtr(lastUsedAt)
	return key, nil
}
