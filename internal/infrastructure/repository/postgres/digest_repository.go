package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

type DigestRepository struct {
	db *sql.DB
}

func NewDigestRepository(db *sql.DB) *DigestRepository {
	return &DigestRepository{db: db}
}

// Save stores the digest as an immutable snapshot and assigns its id.
func (r *DigestRepository) Save(ctx context.Context, digest *domain.Digest) error {
	categoriesJSON, err := json.Marshal(digest.Categories)
	if err != nil {
		return fmt.Errorf("marshal digest categories: %w", err)
	}
	if digest.ID == "" {
		digest.ID = uuid.NewString()
	}

	query, args, err := psql.Insert("digests").
		Columns("id", "user_id", "post_count", "categories", "generated_at").
		Values(digest.ID, digest.UserID, digest.PostCount(), categoriesJSON, digest.GeneratedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert digest: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return mapError("insert digest", err)
	}
	return nil
}

func (r *DigestRepository) Latest(ctx context.Context, userID string) (*domain.Digest, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, categories, generated_at
FROM digests
WHERE user_id = $1
ORDER BY generated_at DESC
LIMIT 1
`, userID)

	var digest domain.Digest
	var categoriesRaw []byte
	if err := row.Scan(&digest.ID, &digest.UserID, &categoriesRaw, &digest.GeneratedAt); err != nil {
		return nil, mapError("latest digest", err)
	}
	if err := json.Unmarshal(categoriesRaw, &digest.Categories); err != nil {
		return nil, fmt.Errorf("unmarshal digest categories: %w", err)
	}
	return &digest, nil
}
