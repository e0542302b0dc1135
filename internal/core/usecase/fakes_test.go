package usecase

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

type summaryRepoFake struct {
	mu      sync.Mutex
	records map[string]*domain.SummaryRecord
	order   []string
	clock   time.Time
	seq     int

	acquireErr   error
	reopenErr    error
	completeErr  error
	failErr      error
	failCalls    []string
	reopenCalls  int
	acquireCalls int
	completed    []domain.PostSummary
}

func newSummaryRepoFake() *summaryRepoFake {
	return &summaryRepoFake{
		records: make(map[string]*domain.SummaryRecord),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *summaryRepoFake) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *summaryRepoFake) Acquire(_ context.Context, userID, postID string, category domain.Category) (*domain.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquireCalls++
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	for _, id := range f.order {
		rec := f.records[id]
		if rec.UserID == userID && rec.PostID == postID && rec.Status != domain.SummaryFailed {
			rec.Status = domain.SummaryProcessing
			rec.Content = ""
			rec.ErrorMessage = ""
			rec.UpdatedAt = f.tick()
			copied := *rec
			return &copied, nil
		}
	}
	f.seq++
	now := f.tick()
	rec := &domain.SummaryRecord{
		ID:        fmt.Sprintf("sum-%d", f.seq),
		UserID:    userID,
		PostID:    postID,
		Status:    domain.SummaryProcessing,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.records[rec.ID] = rec
	f.order = append(f.order, rec.ID)
	copied := *rec
	return &copied, nil
}

func (f *summaryRepoFake) Reopen(_ context.Context, id, userID, postID string) (*domain.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopenCalls++
	if f.reopenErr != nil {
		return nil, f.reopenErr
	}
	rec, ok := f.records[id]
	if !ok || rec.UserID != userID || rec.PostID != postID {
		return nil, domain.WrapError(domain.ErrNotFound, "reopen", errors.New(id))
	}
	rec.Status = domain.SummaryProcessing
	rec.Content = ""
	rec.ErrorMessage = ""
	rec.UpdatedAt = f.tick()
	copied := *rec
	return &copied, nil
}

func (f *summaryRepoFake) MarkCompleted(_ context.Context, id, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.SummaryCompleted
	rec.Content = content
	rec.UpdatedAt = f.tick()
	return nil
}

func (f *summaryRepoFake) MarkFailed(ctx context.Context, id, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCalls = append(f.failCalls, id)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if f.failErr != nil {
		return f.failErr
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.SummaryFailed
	rec.ErrorMessage = errMessage
	rec.UpdatedAt = f.tick()
	return nil
}

func (f *summaryRepoFake) GetCurrent(_ context.Context, userID, postID string) (*domain.SummaryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		rec := f.records[f.order[i]]
		if rec.UserID == userID && rec.PostID == postID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *summaryRepoFake) ListLatestCompleted(context.Context, string) ([]domain.PostSummary, error) {
	return f.completed, nil
}

func (f *summaryRepoFake) record(id string) domain.SummaryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.records[id]
}

func (f *summaryRepoFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type credentialFake struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *credentialFake) Token(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("token-%d", f.calls), nil
}

type completionFake struct {
	mu       sync.Mutex
	calls    int
	tokens   []string
	requests []domain.CompletionRequest
	respond  func(req domain.CompletionRequest) (*domain.CompletionResponse, error)
}

func (f *completionFake) Complete(_ context.Context, token string, req domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.mu.Lock()
	f.calls++
	f.tokens = append(f.tokens, token)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.respond(req)
}

func textResponse(text string) *domain.CompletionResponse {
	return &domain.CompletionResponse{
		Choices: []domain.CompletionChoice{{Message: &domain.CompletionMessage{Role: domain.RoleAssistant, Content: &text}}},
	}
}

// retrierFake retries up to attempts times without sleeping.
type retrierFake struct {
	attempts int
}

func (f retrierFake) Run(ctx context.Context, _ string, fn func(context.Context) (any, error)) (any, error) {
	attempts := f.attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if domain.IsKind(err, domain.ErrAuthorization) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

type observerFake struct {
	mu       sync.Mutex
	statuses []domain.SummaryStatus
	digests  []error
}

func (f *observerFake) ObserveSummary(status domain.SummaryStatus, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *observerFake) ObserveDigest(err error, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, err)
}

type postRepoFake struct {
	posts    map[string]domain.Post
	upserted []domain.Post
	listErr  error
	deleted  int64
}

func (f *postRepoFake) UpsertPosts(_ context.Context, _ string, posts []domain.Post) ([]domain.Post, error) {
	f.upserted = append(f.upserted, posts...)
	return posts, nil
}

func (f *postRepoFake) GetByID(_ context.Context, _ string, postID string) (*domain.Post, error) {
	post, ok := f.posts[postID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get post", errors.New(postID))
	}
	return &post, nil
}

func (f *postRepoFake) ListByUser(_ context.Context, _ string, source domain.PostSource) ([]domain.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Post, 0, len(f.posts))
	for _, id := range slices.Sorted(maps.Keys(f.posts)) {
		post := f.posts[id]
		if source == "" || post.Source == source {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *postRepoFake) Delete(context.Context, string, ...string) (int64, error) {
	return f.deleted, nil
}

type digestRepoFake struct {
	saved   []*domain.Digest
	saveErr error
}

func (f *digestRepoFake) Save(_ context.Context, digest *domain.Digest) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	digest.ID = fmt.Sprintf("digest-%d", len(f.saved)+1)
	f.saved = append(f.saved, digest)
	return nil
}

func (f *digestRepoFake) Latest(context.Context, string) (*domain.Digest, error) {
	if len(f.saved) == 0 {
		return nil, domain.ErrNotFound
	}
	return f.saved[len(f.saved)-1], nil
}

type queueFake struct {
	published  []domain.SummaryJob
	publishErr error
}

func (f *queueFake) PublishSummaryRequested(_ context.Context, job domain.SummaryJob) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, job)
	return nil
}

func (f *queueFake) SubscribeSummaryRequested(context.Context, func(context.Context, domain.SummaryJob) error) error {
	return nil
}
