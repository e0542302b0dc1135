package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

// PostRepository persists posts delivered by the platform fetch adapters.
type PostRepository interface {
	UpsertPosts(ctx context.Context, userID string, posts []domain.Post) ([]domain.Post, error)
	GetByID(ctx context.Context, userID, postID string) (*domain.Post, error)
	ListByUser(ctx context.Context, userID string, source domain.PostSource) ([]domain.Post, error)
	Delete(ctx context.Context, userID string, postIDs ...string) (int64, error)
}

// SummaryRepository owns summary record state. Acquire and Reopen leave the
// record in processing; at most one non-failed record exists per post.
type SummaryRepository interface {
	Acquire(ctx context.Context, userID, postID string, category domain.Category) (*domain.SummaryRecord, error)
	Reopen(ctx context.Context, id, userID, postID string) (*domain.SummaryRecord, error)
	MarkCompleted(ctx context.Context, id, content string) error
	MarkFailed(ctx context.Context, id, errMessage string) error
	GetCurrent(ctx context.Context, userID, postID string) (*domain.SummaryRecord, error)
	ListLatestCompleted(ctx context.Context, userID string) ([]domain.PostSummary, error)
}

// DigestRepository stores immutable digest snapshots.
type DigestRepository interface {
	Save(ctx context.Context, digest *domain.Digest) error
	Latest(ctx context.Context, userID string) (*domain.Digest, error)
}

// CredentialProvider hands out a short-lived token for outbound summary calls.
type CredentialProvider interface {
	Token(ctx context.Context, userID string) (string, error)
}

// CompletionClient calls the remote summarization endpoint.
type CompletionClient interface {
	Complete(ctx context.Context, token string, req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// CompletionForwarder relays a raw chat completion body to the LLM provider.
type CompletionForwarder interface {
	Forward(ctx context.Context, body []byte) ([]byte, error)
}

// SummaryQueue publishes/consumes asynchronous summary jobs.
type SummaryQueue interface {
	PublishSummaryRequested(ctx context.Context, job domain.SummaryJob) error
	SubscribeSummaryRequested(ctx context.Context, handler func(context.Context, domain.SummaryJob) error) error
}

type DigestExporter interface {
	Export(w io.Writer, digest *domain.Digest) error
}

type SummaryObserver interface {
	ObserveSummary(status domain.SummaryStatus, duration time.Duration)
	ObserveDigest(err error, postCount int)
}

// RetryRunner retries an operation with backoff. Authorization failures are
// never retried.
type RetryRunner interface {
	Run(ctx context.Context, operation string, fn func(context.Context) (any, error)) (any, error)
}
