package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

const summarySystemPrompt = "You are an AI assistant specializing in summarizing content. " +
	"Your task is to provide clear, informative summaries that capture the key points and main ideas of the content."

func buildSummaryPrompt(post domain.Post, opts domain.SummaryOptions) string {
	content := strings.TrimSpace(post.Content)
	if content == "" {
		content = strings.TrimSpace(post.Title)
	}

	var b strings.Builder
	b.WriteString("Please provide a clear and informative summary of the following content:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(post.Title))
	fmt.Fprintf(&b, "Content: %s\n", content)
	fmt.Fprintf(&b, "Source: %s\n\n", post.SourceLabel())
	b.WriteString("Guidelines:\n")
	fmt.Fprintf(&b, "- Aim for a %d-word %s summary\n", opts.MaxLength, opts.Style)
	b.WriteString("- Focus on key points and main ideas\n")
	b.WriteString("- Maintain original context and meaning\n")
	b.WriteString("- Use clear, concise language\n\n")
	b.WriteString("Please provide the summary in a single paragraph.")
	return b.String()
}

func buildCompletionRequest(model string, post domain.Post, opts domain.SummaryOptions) domain.CompletionRequest {
	return domain.CompletionRequest{
		Model: model,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: summarySystemPrompt},
			{Role: domain.RoleUser, Content: buildSummaryPrompt(post, opts)},
		},
	}
}
