package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pmorten/stagehand/internal/models"
)

// ClaudePlanner backs the planner contract with the claude CLI in
// non-interactive print mode. It is the offline-friendly alternative to the
// API backend: no key management, but also no reliable token accounting
// unless the CLI reports usage in its JSON envelope.
type ClaudePlanner struct {
	ClaudePath string
	Timeout    time.Duration
	logger     Logger
}

// claudeEnvelope is the JSON envelope the CLI emits with --output-format json.
type claudeEnvelope struct {
	Result  string `json:"result"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewClaudePlanner builds a CLI-backed planner. claudePath defaults to
// "claude" on PATH and timeout defaults to five minutes.
func NewClaudePlanner(claudePath string, timeout time.Duration, logger Logger) *ClaudePlanner {
	if claudePath == "" {
		claudePath = "claude"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ClaudePlanner{ClaudePath: claudePath, Timeout: timeout, logger: logger}
}

// Generate runs one claude CLI invocation and returns its text output.
func (p *ClaudePlanner) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Response, error) {
	if opts.Format == "json" {
		prompt = jsonOnlySystemPrompt + "\n\n" + prompt
	}

	args := []string{
		"-p", prompt,
		"--output-format", "json",
	}

	runCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, p.ClaudePath, args...)
	output, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("claude %s call timed out after %s", opts.TaskType, p.Timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("claude %s call failed: %w (output: %s)", opts.TaskType, err, truncate(string(output), 500))
	}

	if p.logger != nil {
		p.logger.LogDebug(fmt.Sprintf("claude %s call completed in %s", opts.TaskType, time.Since(start).Round(time.Millisecond)))
	}

	text, usage := parseClaudeOutput(string(output))
	if text == "" {
		return nil, fmt.Errorf("claude %s call produced no output", opts.TaskType)
	}

	return &Response{
		Content: text,
		Model:   "claude-cli",
		TokenCount: models.TokenCount{
			Prompt:     usage.Prompt,
			Completion: usage.Completion,
		},
	}, nil
}

// parseClaudeOutput unwraps the CLI's JSON envelope. Non-JSON output is
// passed through untouched so the parsing ladder can still work on it.
func parseClaudeOutput(output string) (string, models.TokenCount) {
	var env claudeEnvelope
	if err := json.Unmarshal([]byte(output), &env); err != nil {
		return strings.TrimSpace(output), models.TokenCount{}
	}

	usage := models.TokenCount{
		Prompt:     env.Usage.InputTokens,
		Completion: env.Usage.OutputTokens,
	}
	if env.Result != "" {
		return env.Result, usage
	}
	if env.Content != "" {
		return env.Content, usage
	}
	return strings.TrimSpace(output), usage
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
