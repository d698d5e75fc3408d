package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/pmorten/stagehand/internal/models"
)

// planEnvelope matches the JSON shapes planners produce for plans:
// {"plan":{"steps":[...]}} or {"steps":[...]}.
type planEnvelope struct {
	Plan  *stepsEnvelope  `json:"plan"`
	Steps []wireStep      `json:"steps"`
}

type stepsEnvelope struct {
	Steps []wireStep `json:"steps"`
}

type wireStep struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params"`
	DependsOn   []string       `json:"dependsOn"`
	IsCritical  *bool          `json:"isCritical"`
}

// ParsePlan decodes planner output into a Plan. It tolerates an
// already-decoded object, a raw JSON string, JSON wrapped in markdown code
// fences, and JSON embedded in surrounding prose. A response none of those
// ladder rungs can decode returns an error; the planning loop turns that
// into a fallback plan.
func ParsePlan(content any) (*models.Plan, error) {
	raw, err := decodeJSON(content)
	if err != nil {
		return nil, err
	}

	var envelope planEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("plan has unexpected shape: %w", err)
	}

	steps := envelope.Steps
	if envelope.Plan != nil && len(envelope.Plan.Steps) > 0 {
		steps = envelope.Plan.Steps
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}

	plan := &models.Plan{Steps: make([]models.PlanStep, 0, len(steps))}
	for i, ws := range steps {
		if ws.Tool == "" {
			return nil, fmt.Errorf("step %d has no tool", i)
		}
		params := ws.Params
		if params == nil {
			params = map[string]any{}
		}
		plan.Steps = append(plan.Steps, models.PlanStep{
			Description: ws.Description,
			Tool:        ws.Tool,
			Params:      params,
			DependsOn:   ws.DependsOn,
			IsCritical:  ws.IsCritical,
		})
	}
	return plan, nil
}

// ParseValidation decodes a plan review response.
func ParseValidation(content any) (*models.ValidationResult, error) {
	raw, err := decodeJSON(content)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Valid          bool                     `json:"valid"`
		Confidence     int                      `json:"confidence"`
		Issues         []models.ValidationIssue `json:"issues"`
		OptimizedSteps []wireStep               `json:"optimizedSteps"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("validation result has unexpected shape: %w", err)
	}

	result := &models.ValidationResult{
		Valid:      wire.Valid,
		Confidence: wire.Confidence,
		Issues:     wire.Issues,
	}
	for _, ws := range wire.OptimizedSteps {
		params := ws.Params
		if params == nil {
			params = map[string]any{}
		}
		result.OptimizedSteps = append(result.OptimizedSteps, models.PlanStep{
			Description: ws.Description,
			Tool:        ws.Tool,
			Params:      params,
			DependsOn:   ws.DependsOn,
			IsCritical:  ws.IsCritical,
		})
	}
	return result, nil
}

// ParseEvaluation decodes a replanning decision response.
func ParseEvaluation(content any) (*models.EvaluationResult, error) {
	raw, err := decodeJSON(content)
	if err != nil {
		return nil, err
	}

	var result models.EvaluationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("evaluation result has unexpected shape: %w", err)
	}
	return &result, nil
}

// decodeJSON normalizes planner content to raw JSON bytes: objects are
// re-encoded, strings are tried verbatim, then as fenced code blocks, then
// as the outermost braced substring.
func decodeJSON(content any) ([]byte, error) {
	switch v := content.(type) {
	case nil:
		return nil, fmt.Errorf("empty planner response")
	case string:
		return decodeJSONString(v)
	case []byte:
		return decodeJSONString(string(v))
	default:
		// Already-decoded object
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("re-encode planner object: %w", err)
		}
		return raw, nil
	}
}

func decodeJSONString(s string) ([]byte, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("empty planner response")
	}

	if json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	// Models often wrap JSON in markdown fences despite instructions.
	for _, block := range fencedBlocks(trimmed) {
		candidate := strings.TrimSpace(block)
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	// Last rung: the outermost braced region of prose-wrapped JSON.
	start := strings.IndexByte(trimmed, '{')
	end := strings.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	return nil, fmt.Errorf("planner response is not valid JSON")
}

// fencedBlocks extracts the contents of fenced code blocks from markdown.
func fencedBlocks(source string) []string {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(gtext.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fence, ok := n.(*ast.FencedCodeBlock); ok {
			var sb strings.Builder
			lines := fence.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				sb.Write(segment.Value(src))
			}
			blocks = append(blocks, sb.String())
		}
		return ast.WalkContinue, nil
	})
	return blocks
}
