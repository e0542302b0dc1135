package domain

import (
	"strings"
	"time"
)

type SummaryStatus string

const (
	SummaryProcessing SummaryStatus = "processing"
	SummaryCompleted  SummaryStatus = "completed"
	SummaryFailed     SummaryStatus = "failed"
)

type SummaryStyle string

const (
	StyleConcise  SummaryStyle = "concise"
	StyleDetailed SummaryStyle = "detailed"
	StyleBullet   SummaryStyle = "bullet"
)

const (
	DefaultSummaryMaxLength = 200
	DefaultSummaryStyle     = StyleConcise
)

type SummaryRecord struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	PostID       string        `json:"post_id"`
	Status       SummaryStatus `json:"status"`
	Category     Category      `json:"category"`
	Content      string        `json:"content,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// SummaryOptions tune a single summarization call. SummaryID points at a
// record the caller already knows about.
type SummaryOptions struct {
	MaxLength int          `json:"max_length,omitempty"`
	Style     SummaryStyle `json:"style,omitempty"`
	SummaryID string       `json:"summary_id,omitempty"`
}

func (o SummaryOptions) WithDefaults() SummaryOptions {
	out := o
	if out.MaxLength <= 0 {
		out.MaxLength = DefaultSummaryMaxLength
	}
	out.Style = SummaryStyle(strings.ToLower(strings.TrimSpace(string(out.Style))))
	if out.Style == "" {
		out.Style = DefaultSummaryStyle
	}
	out.SummaryID = strings.TrimSpace(out.SummaryID)
	return out
}

// PostSummary joins a completed summary with the post it describes.
type PostSummary struct {
	Summary SummaryRecord
	Post    Post
}

// SummaryJob is the queued form of a summarization request.
type SummaryJob struct {
	UserID      string       `json:"user_id"`
	PostID      string       `json:"post_id"`
	SummaryID   string       `json:"summary_id,omitempty"`
	MaxLength   int          `json:"max_length,omitempty"`
	Style       SummaryStyle `json:"style,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
}

func (j SummaryJob) Options() SummaryOptions {
	return SummaryOptions{MaxLength: j.MaxLength, Style: j.Style, SummaryID: j.SummaryID}
}
