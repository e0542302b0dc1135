package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/ports"
)

const (
	maxStoredErrorLen   = 1000
	failPersistDeadline = 10 * time.Second
)

type SummarizeUseCase struct {
	summaries   ports.SummaryRepository
	credentials ports.CredentialProvider
	completions ports.CompletionClient
	retrier     ports.RetryRunner
	observer    ports.SummaryObserver
	model       string
}

func NewSummarizeUseCase(
	summaries ports.SummaryRepository,
	credentials ports.CredentialProvider,
	completions ports.CompletionClient,
	retrier ports.RetryRunner,
	observer ports.SummaryObserver,
	model string,
) *SummarizeUseCase {
	return &SummarizeUseCase{
		summaries:   summaries,
		credentials: credentials,
		completions: completions,
		retrier:     retrier,
		observer:    observer,
		model:       model,
	}
}

// Generate summarizes one post and drives its summary record to a terminal
// state. The record is never left in processing once Generate returns.
func (uc *SummarizeUseCase) Generate(ctx context.Context, userID string, post domain.Post, opts domain.SummaryOptions) (string, error) {
	if !post.HasContent() {
		return "", domain.WrapError(domain.ErrNoContent, "generate summary", fmt.Errorf("post %q has neither title nor content", post.ID))
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(post.ID) == "" {
		return "", domain.WrapError(domain.ErrValidation, "generate summary", errors.New("user id and post id are required"))
	}

	start := time.Now()
	opts = opts.WithDefaults()

	token, err := uc.credentials.Token(ctx, userID)
	if err != nil {
		uc.observe(domain.SummaryFailed, start)
		return "", fmt.Errorf("summary generation failed: %w", domain.WrapError(domain.ErrAuthorization, "acquire credential", err))
	}

	category := domain.ClassifyPost(post)
	record, err := uc.openRecord(ctx, userID, post.ID, category, opts.SummaryID)
	if err != nil {
		uc.observe(domain.SummaryFailed, start)
		return "", fmt.Errorf("summary generation failed: %w", err)
	}

	content, err := uc.complete(ctx, token, post, opts)
	if err != nil {
		return "", uc.fail(ctx, record.ID, "request summary", err, start)
	}

	if err := uc.summaries.MarkCompleted(ctx, record.ID, content); err != nil {
		return "", uc.fail(ctx, record.ID, "store summary", domain.WrapError(domain.ErrPersistence, "mark completed", err), start)
	}

	uc.observe(domain.SummaryCompleted, start)
	return content, nil
}

func (uc *SummarizeUseCase) Current(ctx context.Context, userID, postID string) (*domain.SummaryRecord, error) {
	record, err := uc.summaries.GetCurrent(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("get current summary: %w", err)
	}
	return record, nil
}

func (uc *SummarizeUseCase) openRecord(ctx context.Context, userID, postID string, category domain.Category, summaryID string) (*domain.SummaryRecord, error) {
	if summaryID != "" {
		record, err := uc.summaries.Reopen(ctx, summaryID, userID, postID)
		switch {
		case err == nil:
			return record, nil
		case domain.IsKind(err, domain.ErrConflict):
			// Another active record owns the post; converge on it.
		default:
			return nil, domain.WrapError(domain.ErrPersistence, "reopen summary", err)
		}
	}

	record, err := uc.summaries.Acquire(ctx, userID, postID, category)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "create summary", err)
	}
	return record, nil
}

func (uc *SummarizeUseCase) complete(ctx context.Context, token string, post domain.Post, opts domain.SummaryOptions) (string, error) {
	req := buildCompletionRequest(uc.model, post, opts)
	if err := req.Validate(); err != nil {
		return "", err
	}

	result, err := uc.retrier.Run(ctx, "summary.complete", func(attemptCtx context.Context) (any, error) {
		return uc.completions.Complete(attemptCtx, token, req)
	})
	if err != nil {
		return "", err
	}

	resp, _ := result.(*domain.CompletionResponse)
	return resp.FirstContent()
}

func (uc *SummarizeUseCase) fail(ctx context.Context, summaryID, stage string, cause error, start time.Time) error {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failPersistDeadline)
	defer cancel()

	if err := uc.summaries.MarkFailed(persistCtx, summaryID, truncateError(cause.Error())); err != nil {
		slog.Error("summary_fail_state_not_persisted",
			"summary_id", summaryID,
			"stage", stage,
			"error", err,
			"cause", cause,
		)
	}
	slog.Warn("summary_failed", "summary_id", summaryID, "stage", stage, "error", cause)

	uc.observe(domain.SummaryFailed, start)
	return fmt.Errorf("summary generation failed: %s: %w", stage, cause)
}

func (uc *SummarizeUseCase) observe(status domain.SummaryStatus, start time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveSummary(status, time.Since(start))
}

func truncateError(msg string) string {
	if len(msg) <= maxStoredErrorLen {
		return msg
	}
	return msg[:maxStoredErrorLen]
}
