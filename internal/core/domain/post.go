package domain

import (
	"strings"
	"time"
)

type PostSource string

const (
	SourceReddit   PostSource = "reddit"
	SourceTwitter  PostSource = "twitter"
	SourceLinkedIn PostSource = "linkedin"
)

func (s PostSource) Valid() bool {
	switch s {
	case SourceReddit, SourceTwitter, SourceLinkedIn:
		return true
	default:
		return false
	}
}

// Post is a saved item handed over by a platform fetch adapter.
type Post struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Source     PostSource     `json:"source"`
	ExternalID string         `json:"external_id"`
	Title      string         `json:"title,omitempty"`
	Content    string         `json:"content,omitempty"`
	Author     string         `json:"author,omitempty"`
	URL        string         `json:"url,omitempty"`
	Community  string         `json:"community,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	FetchedAt  time.Time      `json:"fetched_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (p Post) HasContent() bool {
	return strings.TrimSpace(p.Title) != "" || strings.TrimSpace(p.Content) != ""
}

// SourceLabel is the human readable origin used in prompts.
func (p Post) SourceLabel() string {
	switch p.Source {
	case SourceReddit:
		if p.Community == "" {
			return "Reddit"
		}
		return "Reddit - r/" + p.Community
	case SourceTwitter:
		if p.Author == "" {
			return "Twitter"
		}
		return "Twitter - @" + p.Author
	case SourceLinkedIn:
		return "LinkedIn"
	default:
		if p.Community != "" {
			return p.Community
		}
		return "Unknown"
	}
}

// ShortSource is the compact origin shown next to digest entries.
func (p Post) ShortSource() string {
	switch {
	case p.Source == SourceReddit && p.Community != "":
		return "r/" + p.Community
	case p.Source == SourceTwitter && p.Author != "":
		return "@" + p.Author
	case p.Source == SourceLinkedIn:
		return "LinkedIn"
	case p.Community != "":
		return p.Community
	default:
		return string(p.Source)
	}
}
