package domain

import (
	"sort"
	"time"
)

type DigestPost struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
	URL     string `json:"url"`
}

type DigestCategory struct {
	Name  Category     `json:"name"`
	Posts []DigestPost `json:"posts"`
}

type Digest struct {
	ID          string           `json:"id,omitempty"`
	UserID      string           `json:"user_id,omitempty"`
	Categories  []DigestCategory `json:"categories"`
	GeneratedAt time.Time        `json:"generated_at"`
}

func (d *Digest) PostCount() int {
	total := 0
	for _, c := range d.Categories {
		total += len(c.Posts)
	}
	return total
}

// SortCategories orders categories by post count, busiest first. Ties keep
// the declared category order.
func SortCategories(categories []DigestCategory) {
	sort.SliceStable(categories, func(i, j int) bool {
		if len(categories[i].Posts) != len(categories[j].Posts) {
			return len(categories[i].Posts) > len(categories[j].Posts)
		}
		return categoryRank(categories[i].Name) < categoryRank(categories[j].Name)
	})
}

const untitledPost = "Untitled Post"

func NewDigestPost(post Post, summary string) DigestPost {
	title := post.Title
	if title == "" {
		title = untitledPost
	}
	return DigestPost{
		Title:   title,
		Summary: summary,
		Source:  post.ShortSource(),
		URL:     post.URL,
	}
}
