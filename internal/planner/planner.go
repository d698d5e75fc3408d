// Package planner turns natural-language requests into executable plans.
// It defines the planner contract, the prompt builders, the lenient response
// parsing ladder, plan validation, and the fallback plan synthesis used when
// planning exhausts its attempt budget.
package planner

import (
	"context"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// Task type hints passed to planner backends.
const (
	TaskPlanning   = "planning"
	TaskValidation = "validation"
	TaskReplanning = "replanning"
	TaskGeneration = "generation"
)

// GenerateOptions configures one planner call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Format      string // "json" requests structured output
	TaskType    string
}

// Response is the raw outcome of one planner call. Content may be a string
// that still needs JSON decoding or an already-decoded object; the parsing
// ladder accepts both.
type Response struct {
	Content    any
	Model      string
	TokenCount models.TokenCount
}

// Planner is the text-in/structured-text-out collaborator that produces
// plans, validations and replanning decisions.
type Planner interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error)
}

// Logger is the logging surface the planner components use.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// TextAdapter exposes a Planner as the plain text generator the code tools
// consume.
type TextAdapter struct {
	Planner Planner
}

// GenerateText runs a free-form generation call and returns the text with
// its usage accounting.
func (a *TextAdapter) GenerateText(ctx context.Context, prompt string) (*tool.Generation, error) {
	resp, err := a.Planner.Generate(ctx, prompt, GenerateOptions{
		MaxTokens: 2048,
		Format:    "text",
		TaskType:  TaskGeneration,
	})
	if err != nil {
		return nil, err
	}

	text, _ := resp.Content.(string)
	return &tool.Generation{
		Text:         text,
		Model:        resp.Model,
		InputTokens:  resp.TokenCount.Prompt,
		OutputTokens: resp.TokenCount.Completion,
	}, nil
}
