package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

var postColumns = []string{
	"id", "user_id", "source", "external_id", "title", "content", "author", "url", "community", "metadata", "fetched_at", "created_at", "updated_at",
}

const postUpsertSuffix = `ON CONFLICT (user_id, source, external_id) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	author = EXCLUDED.author,
	url = EXCLUDED.url,
	community = EXCLUDED.community,
	metadata = EXCLUDED.metadata,
	fetched_at = EXCLUDED.fetched_at,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`

type PostRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db, now: time.Now}
}

// UpsertPosts inserts or refreshes posts keyed by (user, source, external id)
// inside one transaction.
func (r *PostRepository) UpsertPosts(ctx context.Context, userID string, posts []domain.Post) ([]domain.Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError("begin upsert posts", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := r.now().UTC()
	out := make([]domain.Post, 0, len(posts))
	for _, post := range posts {
		metadata, err := marshalMetadata(post.Metadata)
		if err != nil {
			return nil, err
		}
		query, args, err := psql.Insert("fetched_posts").
			Columns(postColumns...).
			Values(
				uuid.NewString(), userID, string(post.Source), post.ExternalID, post.Title, post.Content,
				post.Author, post.URL, post.Community, metadata, post.FetchedAt, now, now,
			).
			Suffix(postUpsertSuffix).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build upsert post: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, mapError("upsert post "+post.ExternalID, err)
		}
		post.UserID = userID
		out = append(out, post)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("commit upsert posts", err)
	}
	return out, nil
}

func (r *PostRepository) GetByID(ctx context.Context, userID, postID string) (*domain.Post, error) {
	query, args, err := psql.Select(postColumns...).
		From("fetched_posts").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get post: %w", err)
	}

	post, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("get post "+postID, err)
	}
	return &post, nil
}

func (r *PostRepository) ListByUser(ctx context.Context, userID string, source domain.PostSource) ([]domain.Post, error) {
	builder := psql.Select(postColumns...).
		From("fetched_posts").
		Where(sq.Eq{"user_id": userID})
	if source != "" {
		builder = builder.Where(sq.Eq{"source": string(source)})
	}
	query, args, err := builder.OrderBy("fetched_at DESC", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list posts", err)
	}
	defer rows.Close()

	out := make([]domain.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, post)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate posts", err)
	}
	return out, nil
}

// Delete removes posts; their summaries cascade.
func (r *PostRepository) Delete(ctx context.Context, userID string, postIDs ...string) (int64, error) {
	if len(postIDs) == 0 {
		return 0, nil
	}
	query, args, err := psql.Delete("fetched_posts").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": postIDs}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete posts: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError("delete posts", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete posts rows affected: %w", err)
	}
	return deleted, nil
}

func scanPost(row rowScanner) (domain.Post, error) {
	var post domain.Post
	var source string
	var metadataRaw []byte
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&source,
		&post.ExternalID,
		&post.Title,
		&post.Content,
		&post.Author,
		&post.URL,
		&post.Community,
		&metadataRaw,
		&post.FetchedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return domain.Post{}, err
	}
	post.Source = domain.PostSource(source)
	if err := unmarshalMetadata(metadataRaw, &post.Metadata); err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

func unmarshalMetadata(raw []byte, out *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}
