package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"casevise/internal/models"
)

// Composer renders a prompt from retrieved chunks and invokes the chat model.
type Composer struct {
	llm llms.Model
}

func NewComposer(llm llms.Model) *Composer {
	return &Composer{llm: llm}
}

// BuildContext joins chunk texts with blank lines, preserving retrieval order.
func BuildContext(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

// TemplateFor maps a perspective to its summary template. Values outside the
// known set are a validation error, never a silent fallback.
func TemplateFor(p models.Perspective) (string, error) {
	switch p {
	case models.PerspectiveStudent:
		return models.StudentPromptTemplate, nil
	case models.PerspectiveLawyer:
		return models.LawyerPromptTemplate, nil
	case models.PerspectiveJudge:
		return models.JudgePromptTemplate, nil
	default:
		return "", &models.PerspectiveError{Value: string(p)}
	}
}

// Answer responds to a free-form question over the retrieved chunks.
func (c *Composer) Answer(ctx context.Context, chunks []models.Chunk, question string) (string, error) {
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, question, BuildContext(chunks))
	return c.generate(ctx, prompt)
}

// Summarize produces a perspective-tailored summary of the chunks.
func (c *Composer) Summarize(ctx context.Context, chunks []models.Chunk, perspective models.Perspective) (string, error) {
	tmpl, err := TemplateFor(perspective)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(tmpl, BuildContext(chunks))
	return c.generate(ctx, prompt)
}

// generate performs a single model call. Errors and empty completions both
// surface as *models.GenerationError; the response text never carries a
// stringified failure.
func (c *Composer) generate(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}
	resp, err := c.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", &models.GenerationError{Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", &models.GenerationError{Err: errors.New("model returned no content")}
	}
	return resp.Choices[0].Content, nil
}
