package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/core/ports"
)

type DigestUseCase struct {
	generator ports.SummaryGenerator
	posts     ports.PostRepository
	summaries ports.SummaryRepository
	digests   ports.DigestRepository
	observer  ports.SummaryObserver
	defaults  domain.SummaryOptions
	now       func() time.Time
}

func NewDigestUseCase(
	generator ports.SummaryGenerator,
	posts ports.PostRepository,
	summaries ports.SummaryRepository,
	digests ports.DigestRepository,
	observer ports.SummaryObserver,
) *DigestUseCase {
	return &DigestUseCase{
		generator: generator,
		posts:     posts,
		summaries: summaries,
		digests:   digests,
		observer:  observer,
		now:       time.Now,
	}
}

// WithSummaryDefaults sets the length and style used for every post of a
// digest.
func (uc *DigestUseCase) WithSummaryDefaults(opts domain.SummaryOptions) *DigestUseCase {
	opts.SummaryID = ""
	uc.defaults = opts.WithDefaults()
	return uc
}

type postGroup struct {
	category domain.Category
	posts    []domain.Post
}

// Build summarizes every post concurrently and groups the results by
// category. Any failed post fails the whole digest; records that already
// completed stay completed.
func (uc *DigestUseCase) Build(ctx context.Context, userID string, posts []domain.Post) (*domain.Digest, error) {
	groups := groupByCategory(posts)
	categories := make([]domain.DigestCategory, len(groups))

	var g errgroup.Group
	for i, group := range groups {
		entries := make([]domain.DigestPost, len(group.posts))
		categories[i] = domain.DigestCategory{Name: group.category, Posts: entries}

		for j, post := range group.posts {
			g.Go(func() error {
				summary, err := uc.generator.Generate(ctx, userID, post, uc.defaults)
				if err != nil {
					return fmt.Errorf("%s: post %s: %w", group.category, post.ID, err)
				}
				entries[j] = domain.NewDigestPost(post, summary)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		uc.observe(err, len(posts))
		return nil, fmt.Errorf("build digest: %w", err)
	}

	domain.SortCategories(categories)
	uc.observe(nil, len(posts))
	return &domain.Digest{
		UserID:      userID,
		Categories:  categories,
		GeneratedAt: uc.now().UTC(),
	}, nil
}

// BuildForUser builds a digest over the user's stored posts and keeps a
// snapshot of it.
func (uc *DigestUseCase) BuildForUser(ctx context.Context, userID string, source domain.PostSource) (*domain.Digest, error) {
	posts, err := uc.posts.ListByUser(ctx, userID, source)
	if err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}

	digest, err := uc.Build(ctx, userID, posts)
	if err != nil {
		return nil, err
	}
	if err := uc.digests.Save(ctx, digest); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "store digest", err)
	}
	return digest, nil
}

func (uc *DigestUseCase) Latest(ctx context.Context, userID string) (*domain.Digest, error) {
	digest, err := uc.digests.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("latest digest: %w", err)
	}
	return digest, nil
}

// Overview groups the latest completed summary of every post by the
// category stored on its record. No summaries are generated.
func (uc *DigestUseCase) Overview(ctx context.Context, userID string) ([]domain.DigestCategory, error) {
	items, err := uc.summaries.ListLatestCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list completed summaries: %w", err)
	}

	index := make(map[domain.Category]int)
	categories := make([]domain.DigestCategory, 0)
	for _, item := range items {
		category := item.Summary.Category
		if !domain.IsKnownCategory(category) {
			category = domain.CategoryOther
		}
		i, ok := index[category]
		if !ok {
			i = len(categories)
			index[category] = i
			categories = append(categories, domain.DigestCategory{Name: category})
		}
		categories[i].Posts = append(categories[i].Posts, domain.NewDigestPost(item.Post, item.Summary.Content))
	}

	domain.SortCategories(categories)
	return categories, nil
}

func (uc *DigestUseCase) observe(err error, postCount int) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveDigest(err, postCount)
}

func groupByCategory(posts []domain.Post) []postGroup {
	index := make(map[domain.Category]int)
	groups := make([]postGroup, 0)
	for _, post := range posts {
		category := domain.ClassifyPost(post)
		i, ok := index[category]
		if !ok {
			i = len(groups)
			index[category] = i
			groups = append(groups, postGroup{category: category})
		}
		groups[i].posts = append(groups[i].posts, post)
	}
	return groups
}
