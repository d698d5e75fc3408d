package planner

import (
	"strings"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// FallbackPlan synthesizes a trivial one-step plan when planning or
// validation exhausts its attempt budget. The tool is chosen by input
// keywords; the default is code analysis.
func FallbackPlan(input string) *models.Plan {
	lower := strings.ToLower(input)

	toolName := tool.NameAnalyzeCode
	description := "Analyze the code related to the request"
	switch {
	case strings.Contains(lower, "test"):
		toolName = tool.NameGenerateTest
		description = "Generate tests for the code related to the request"
	case strings.Contains(lower, "error") || strings.Contains(lower, "fix"):
		toolName = tool.NameFixError
		description = "Fix the reported error"
	case strings.Contains(lower, "explain"):
		toolName = tool.NameExplainCode
		description = "Explain the code related to the request"
	}

	return &models.Plan{
		Steps: []models.PlanStep{{
			Description: description,
			Tool:        toolName,
			Params: map[string]any{
				"content": input,
				"focus":   "user request",
			},
		}},
		AppliedRules: []string{"fallback plan"},
	}
}
