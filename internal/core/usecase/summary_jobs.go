package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/ports"
)

// SummaryJobUseCase moves summarization off the request path through the
// message queue.
type SummaryJobUseCase struct {
	posts     ports.PostRepository
	queue     ports.SummaryQueue
	generator ports.SummaryGenerator
}

func NewSummaryJobUseCase(posts ports.PostRepository, queue ports.SummaryQueue, generator ports.SummaryGenerator) *SummaryJobUseCase {
	return &SummaryJobUseCase{
		posts:     posts,
		queue:     queue,
		generator: generator,
	}
}

func (uc *SummaryJobUseCase) Enqueue(ctx context.Context, userID, postID string, opts domain.SummaryOptions) (*domain.SummaryJob, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(postID) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "enqueue summary", errors.New("user id and post id are required"))
	}

	post, err := uc.posts.GetByID(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	if !post.HasContent() {
		return nil, domain.WrapError(domain.ErrNoContent, "enqueue summary", fmt.Errorf("post %q has neither title nor content", postID))
	}

	opts = opts.WithDefaults()
	job := domain.SummaryJob{
		UserID:      userID,
		PostID:      postID,
		SummaryID:   opts.SummaryID,
		MaxLength:   opts.MaxLength,
		Style:       opts.Style,
		RequestedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishSummaryRequested(ctx, job); err != nil {
		return nil, fmt.Errorf("publish summary job: %w", err)
	}
	return &job, nil
}

func (uc *SummaryJobUseCase) ProcessJob(ctx context.Context, job domain.SummaryJob) error {
	post, err := uc.posts.GetByID(ctx, job.UserID, job.PostID)
	if err != nil {
		return fmt.Errorf("load post %s: %w", job.PostID, err)
	}
	if _, err := uc.generator.Generate(ctx, job.UserID, *post, job.Options()); err != nil {
		return err
	}
	return nil
}
