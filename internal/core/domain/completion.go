package domain

import (
	"errors"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the body accepted by the summarization endpoint.
type CompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

func (r CompletionRequest) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(r.Model) == "" {
		verr.Add("model", "is required")
	}
	if len(r.Messages) == 0 {
		verr.Add("messages", "must be a non-empty array")
	}
	for _, msg := range r.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			verr.Add("messages.role", "unsupported role "+msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			verr.Add("messages.content", "must not be empty")
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

type CompletionMessage struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

type CompletionChoice struct {
	Index        int                `json:"index"`
	Message      *CompletionMessage `json:"message,omitempty"`
	FinishReason *string            `json:"finish_reason,omitempty"`
}

type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse mirrors the provider's chat completion payload. Every
// field is optional until FirstContent has checked it.
type CompletionResponse struct {
	ID      string             `json:"id,omitempty"`
	Model   string             `json:"model,omitempty"`
	Choices []CompletionChoice `json:"choices,omitempty"`
	Usage   *CompletionUsage   `json:"usage,omitempty"`
}

func (r *CompletionResponse) FirstContent() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", WrapError(ErrInvalidResponse, "read completion", errors.New("response has no choices"))
	}
	msg := r.Choices[0].Message
	if msg == nil || msg.Content == nil {
		return "", WrapError(ErrInvalidResponse, "read completion", errors.New("first choice has no message content"))
	}
	content := strings.TrimSpace(*msg.Content)
	if content == "" {
		return "", WrapError(ErrInvalidResponse, "read completion", errors.New("first choice content is empty"))
	}
	return content, nil
}
