package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

const summaryReturning = "RETURNING id, user_id, post_id, status, category, content, error_message, created_at, updated_at"

var summaryColumns = []string{
	"id", "user_id", "post_id", "status", "category", "content", "error_message", "created_at", "updated_at",
}

// SummaryRepository keeps at most one non-failed summary per post through
// the uq_summaries_active_post partial index. updated_at never moves
// backwards.
type SummaryRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db, now: time.Now}
}

// Acquire creates the active record for a post or reuses the existing one.
// A reused record keeps its category and drops any earlier content.
func (r *SummaryRepository) Acquire(ctx context.Context, userID, postID string, category domain.Category) (*domain.SummaryRecord, error) {
	now := r.now().UTC()
	query, args, err := psql.Insert("summaries").
		Columns(summaryColumns...).
		Values(uuid.NewString(), userID, postID, string(domain.SummaryProcessing), string(category), "", "", now, now).
		Suffix(`ON CONFLICT (user_id, post_id) WHERE status <> 'failed' DO UPDATE SET
	status = EXCLUDED.status,
	content = '',
	error_message = '',
	updated_at = GREATEST(summaries.updated_at, EXCLUDED.updated_at)
` + summaryReturning).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build acquire summary: %w", err)
	}

	record, err := scanSummary(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("acquire summary", err)
	}
	return &record, nil
}

// Reopen moves an existing record back to processing. Reopening a failed
// record while another one is active yields domain.ErrConflict.
func (r *SummaryRepository) Reopen(ctx context.Context, id, userID, postID string) (*domain.SummaryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE summaries
SET status = $4, content = '', error_message = '', updated_at = GREATEST(updated_at, $5)
WHERE id = $1 AND user_id = $2 AND post_id = $3
`+summaryReturning, id, userID, postID, string(domain.SummaryProcessing), r.now().UTC())

	record, err := scanSummary(row)
	if err != nil {
		return nil, mapError("reopen summary "+id, err)
	}
	return &record, nil
}

func (r *SummaryRepository) MarkCompleted(ctx context.Context, id, content string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE summaries
SET status = $2, content = $3, error_message = '', updated_at = GREATEST(updated_at, $4)
WHERE id = $1
`, id, string(domain.SummaryCompleted), content, r.now().UTC())
	return checkAffected("mark summary completed "+id, result, err)
}

func (r *SummaryRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE summaries
SET status = $2, error_message = $3, updated_at = GREATEST(updated_at, $4)
WHERE id = $1
`, id, string(domain.SummaryFailed), errMessage, r.now().UTC())
	return checkAffected("mark summary failed "+id, result, err)
}

func (r *SummaryRepository) GetCurrent(ctx context.Context, userID, postID string) (*domain.SummaryRecord, error) {
	query, args, err := psql.Select(summaryColumns...).
		From("summaries").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"post_id": postID}).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build current summary: %w", err)
	}

	record, err := scanSummary(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError("current summary for post "+postID, err)
	}
	return &record, nil
}

// ListLatestCompleted returns the newest completed summary of every post,
// most recently updated first.
func (r *SummaryRepository) ListLatestCompleted(ctx context.Context, userID string) ([]domain.PostSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT DISTINCT ON (s.post_id)
	s.id, s.user_id, s.post_id, s.status, s.category, s.content, s.error_message, s.created_at, s.updated_at,
	p.id, p.user_id, p.source, p.external_id, p.title, p.content, p.author, p.url, p.community, p.metadata, p.fetched_at, p.created_at, p.updated_at
FROM summaries s
JOIN fetched_posts p ON p.id = s.post_id
WHERE s.user_id = $1 AND s.status = $2
ORDER BY s.post_id, s.updated_at DESC
`, userID, string(domain.SummaryCompleted))
	if err != nil {
		return nil, mapError("list completed summaries", err)
	}
	defer rows.Close()

	out := make([]domain.PostSummary, 0)
	for rows.Next() {
		item, err := scanPostSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completed summary: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate completed summaries", err)
	}

	slices.SortStableFunc(out, func(a, b domain.PostSummary) int {
		return b.Summary.UpdatedAt.Compare(a.Summary.UpdatedAt)
	})
	return out, nil
}

func checkAffected(op string, result sql.Result, err error) error {
	if err != nil {
		return mapError(op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, op, sql.ErrNoRows)
	}
	return nil
}

func scanSummary(row rowScanner) (domain.SummaryRecord, error) {
	var record domain.SummaryRecord
	var status, category string
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.PostID,
		&status,
		&category,
		&record.Content,
		&record.ErrorMessage,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return domain.SummaryRecord{}, err
	}
	record.Status = domain.SummaryStatus(status)
	record.Category = domain.Category(category)
	return record, nil
}

func scanPostSummary(row rowScanner) (domain.PostSummary, error) {
	var item domain.PostSummary
	var status, category, source string
	var metadataRaw []byte
	err := row.Scan(
		&item.Summary.ID, &item.Summary.UserID, &item.Summary.PostID, &status, &category,
		&item.Summary.Content, &item.Summary.ErrorMessage, &item.Summary.CreatedAt, &item.Summary.UpdatedAt,
		&item.Post.ID, &item.Post.UserID, &source, &item.Post.ExternalID, &item.Post.Title, &item.Post.Content,
		&item.Post.Author, &item.Post.URL, &item.Post.Community, &metadataRaw,
		&item.Post.FetchedAt, &item.Post.CreatedAt, &item.Post.UpdatedAt,
	)
	if err != nil {
		return domain.PostSummary{}, err
	}
	item.Summary.Status = domain.SummaryStatus(status)
	item.Summary.Category = domain.Category(category)
	item.Post.Source = domain.PostSource(source)
	if err := unmarshalMetadata(metadataRaw, &item.Post.Metadata); err != nil {
		return domain.PostSummary{}, err
	}
	return item, nil
}
