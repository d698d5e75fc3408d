package tool

import (
	"context"
	"fmt"
	"strings"
)

// Generation is one LLM completion with its usage accounting.
type Generation struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TextGenerator is the minimal LLM surface the code tools need.
// The planner backends satisfy it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (*Generation, error)
}

// codeTool implements the planner-backed code capabilities. All four share
// the same parameter surface (content plus optional file path and focus) and
// differ only in the prompt they build.
type codeTool struct {
	name        string
	description string
	generator   TextGenerator
	prompt      func(params map[string]any) string
}

// Name returns the tool's dispatch name.
func (t *codeTool) Name() string { return t.name }

// Description returns the capability summary.
func (t *codeTool) Description() string { return t.description }

// Schema returns the parameter schema.
func (t *codeTool) Schema() map[string]ParamSpec {
	return map[string]ParamSpec{
		"content":  {Type: "string", Description: "Source code or error text to work on", Required: true},
		"filePath": {Type: "string", Description: "File the content originates from", Required: false},
		"focus":    {Type: "string", Description: "Aspect to concentrate on", Required: false},
		"language": {Type: "string", Description: "Programming language hint", Required: false},
	}
}

// Run builds the prompt, invokes the generator and returns the generated
// text together with model usage so reflection can price the call.
func (t *codeTool) Run(ctx context.Context, params map[string]any) (any, error) {
	if _, err := stringParam(params, "content"); err != nil {
		return nil, err
	}
	if t.generator == nil {
		return nil, fmt.Errorf("%s: no text generator configured", t.name)
	}

	gen, err := t.generator.GenerateText(ctx, t.prompt(params))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}

	result := map[string]any{"text": gen.Text}
	if gen.Model != "" {
		result["model"] = gen.Model
		result["inputTokens"] = gen.InputTokens
		result["outputTokens"] = gen.OutputTokens
	}
	if path, ok := params["filePath"].(string); ok && path != "" {
		result["filePath"] = path
	}
	return result, nil
}

func promptHeader(task string, params map[string]any) string {
	var sb strings.Builder
	sb.WriteString(task)
	sb.WriteString("\n")
	if lang, ok := params["language"].(string); ok && lang != "" {
		fmt.Fprintf(&sb, "Language: %s\n", lang)
	}
	if focus, ok := params["focus"].(string); ok && focus != "" {
		fmt.Fprintf(&sb, "Focus: %s\n", focus)
	}
	if path, ok := params["filePath"].(string); ok && path != "" {
		fmt.Fprintf(&sb, "File: %s\n", path)
	}
	content, _ := params["content"].(string)
	sb.WriteString("\n```\n")
	sb.WriteString(content)
	sb.WriteString("\n```\n")
	return sb.String()
}

// NewAnalyzeCodeTool creates the code analysis capability.
func NewAnalyzeCodeTool(g TextGenerator) Tool {
	return &codeTool{
		name:        NameAnalyzeCode,
		description: "Analyzes source code and reports structure, issues and suggestions",
		generator:   g,
		prompt: func(params map[string]any) string {
			return promptHeader("Analyze the following code. Report structure, potential issues and concrete suggestions.", params)
		},
	}
}

// NewFixErrorTool creates the error fixing capability.
func NewFixErrorTool(g TextGenerator) Tool {
	return &codeTool{
		name:        NameFixError,
		description: "Proposes a corrected version of code that produces an error",
		generator:   g,
		prompt: func(params map[string]any) string {
			return promptHeader("The following code or error output is broken. Propose a corrected version and explain the fix briefly.", params)
		},
	}
}

// NewGenerateTestTool creates the test generation capability.
func NewGenerateTestTool(g TextGenerator) Tool {
	return &codeTool{
		name:        NameGenerateTest,
		description: "Generates unit tests for the provided code",
		generator:   g,
		prompt: func(params map[string]any) string {
			return promptHeader("Write unit tests for the following code. Cover the main paths and edge cases.", params)
		},
	}
}

// NewExplainCodeTool creates the code explanation capability.
func NewExplainCodeTool(g TextGenerator) Tool {
	return &codeTool{
		name:        NameExplainCode,
		description: "Explains what the provided code does",
		generator:   g,
		prompt: func(params map[string]any) string {
			return promptHeader("Explain what the following code does, at the level of a code review summary.", params)
		},
	}
}

// DefaultRegistry builds a registry with every builtin tool wired against the
// given workspace root and generator.
func DefaultRegistry(root string, g TextGenerator, shell *RunShellCommandTool) (*Registry, error) {
	if shell == nil {
		shell = &RunShellCommandTool{WorkDir: root}
	}

	registry := NewRegistry()
	tools := []Tool{
		&ReadFileTool{Root: root},
		&WriteFileTool{Root: root},
		&FindFileTool{Root: root},
		shell,
		NewAnalyzeCodeTool(g),
		NewFixErrorTool(g),
		NewGenerateTestTool(g),
		NewExplainCodeTool(g),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
