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

const redditBaseURL = "https://reddit.com"

type PostsUseCase struct {
	repo ports.PostRepository
}

func NewPostsUseCase(repo ports.PostRepository) *PostsUseCase {
	return &PostsUseCase{repo: repo}
}

// Store upserts posts for one source. Posts without a resolvable URL or
// external id are skipped.
func (uc *PostsUseCase) Store(ctx context.Context, userID string, source domain.PostSource, posts []domain.Post) ([]domain.Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "store posts", errors.New("user id is required"))
	}
	if !source.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, "store posts", fmt.Errorf("unsupported source %q", source))
	}

	now := time.Now().UTC()
	accepted := make([]domain.Post, 0, len(posts))
	for _, post := range posts {
		post.UserID = userID
		post.Source = source
		post.ExternalID = strings.TrimSpace(post.ExternalID)
		post.URL = resolvePostURL(post)
		if post.ExternalID == "" || post.URL == "" {
			continue
		}
		if post.FetchedAt.IsZero() {
			post.FetchedAt = now
		}
		accepted = append(accepted, post)
	}
	if len(accepted) == 0 {
		return []domain.Post{}, nil
	}

	stored, err := uc.repo.UpsertPosts(ctx, userID, accepted)
	if err != nil {
		return nil, fmt.Errorf("upsert posts: %w", err)
	}
	return stored, nil
}

func (uc *PostsUseCase) Get(ctx context.Context, userID, postID string) (*domain.Post, error) {
	post, err := uc.repo.GetByID(ctx, userID, postID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

func (uc *PostsUseCase) List(ctx context.Context, userID string, source domain.PostSource) ([]domain.Post, error) {
	if source != "" && !source.Valid() {
		return nil, domain.WrapError(domain.ErrValidation, "list posts", fmt.Errorf("unsupported source %q", source))
	}
	posts, err := uc.repo.ListByUser(ctx, userID, source)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (uc *PostsUseCase) Delete(ctx context.Context, userID, postID string) error {
	deleted, err := uc.repo.Delete(ctx, userID, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if deleted == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete post", fmt.Errorf("id=%s", postID))
	}
	return nil
}

func resolvePostURL(post domain.Post) string {
	if u := strings.TrimSpace(post.URL); u != "" {
		return u
	}
	if post.Source != domain.SourceReddit {
		return ""
	}
	permalink, _ := post.Metadata["permalink"].(string)
	permalink = strings.TrimSpace(permalink)
	if permalink == "" {
		return ""
	}
	return redditBaseURL + "/" + strings.TrimLeft(permalink, "/")
}
