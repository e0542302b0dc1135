package ports

import (
	"context"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

// SummaryGenerator is the inbound contract for single post summarization.
type SummaryGenerator interface {
	Generate(ctx context.Context, userID string, post domain.Post, opts domain.SummaryOptions) (string, error)
}

// SummaryReader is the read model for summary record state.
type SummaryReader interface {
	Current(ctx context.Context, userID, postID string) (*domain.SummaryRecord, error)
}

// SummaryJobProcessor handles queued summary jobs.
type SummaryJobProcessor interface {
	ProcessJob(ctx context.Context, job domain.SummaryJob) error
}

// PostService stores and reads fetched posts.
type PostService interface {
	Store(ctx context.Context, userID string, source domain.PostSource, posts []domain.Post) ([]domain.Post, error)
	Get(ctx context.Context, userID, postID string) (*domain.Post, error)
	List(ctx context.Context, userID string, source domain.PostSource) ([]domain.Post, error)
	Delete(ctx context.Context, userID, postID string) error
}

// DigestService builds and reads topical digests.
type DigestService interface {
	Build(ctx context.Context, userID string, posts []domain.Post) (*domain.Digest, error)
	BuildForUser(ctx context.Context, userID string, source domain.PostSource) (*domain.Digest, error)
	Latest(ctx context.Context, userID string) (*domain.Digest, error)
	Overview(ctx context.Context, userID string) ([]domain.DigestCategory, error)
}

// SummaryJobEnqueuer schedules a summary for the worker.
type SummaryJobEnqueuer interface {
	Enqueue(ctx context.Context, userID, postID string, opts domain.SummaryOptions) (*domain.SummaryJob, error)
}
