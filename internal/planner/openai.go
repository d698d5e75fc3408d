package planner

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pmorten/stagehand/internal/models"
)

// OpenAIPlanner backs the planner contract with the OpenAI chat completion
// API. It requests structured output when the caller asks for JSON so the
// parsing ladder rarely has to fall back to fence extraction.
type OpenAIPlanner struct {
	client *openai.Client
	model  string
	logger Logger
}

// NewOpenAIPlanner builds an OpenAI-backed planner. The API key is read
// from OPENAI_API_KEY when apiKey is empty.
func NewOpenAIPlanner(apiKey, model string, logger Logger) (*OpenAIPlanner, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai planner requires an API key (set OPENAI_API_KEY)")
	}
	if model == "" {
		return nil, fmt.Errorf("openai planner requires a model name")
	}
	return &OpenAIPlanner{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// Generate runs one chat completion and returns the raw text with usage
// accounting attached.
func (p *OpenAIPlanner) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(opts.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Format == "json" {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		req.Messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: jsonOnlySystemPrompt},
		}, req.Messages...)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai %s call failed: %w", opts.TaskType, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai %s call returned no choices", opts.TaskType)
	}

	if p.logger != nil {
		p.logger.LogDebug(fmt.Sprintf("openai %s call used %d prompt / %d completion tokens",
			opts.TaskType, resp.Usage.PromptTokens, resp.Usage.CompletionTokens))
	}

	model := resp.Model
	if model == "" {
		model = p.model
	}
	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   model,
		TokenCount: models.TokenCount{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
		},
	}, nil
}
