package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// jsonOnlySystemPrompt enforces machine-readable output across backends.
const jsonOnlySystemPrompt = "You are a planning assistant for a coding agent. Your ONLY output must be valid JSON matching the requested schema. No markdown, no code fences, no prose."

// optimizationRules are embedded in planning and validation prompts. They
// double as the applied-rules provenance recorded on accepted plans.
var optimizationRules = []string{
	"Use recursive glob patterns (e.g. **/*.go) with FindFileTool instead of repeated single-directory searches",
	"Reference earlier outputs with $STEP[n].property or $STEP[n].property[index], never by repeating their content",
	"Analysis tools (AnalyzeCodeTool, ExplainCodeTool, GenerateTestTool) need both content and filePath parameters",
	"Prefer one shell command per step; do not chain unrelated commands with &&",
}

// planSchema is the JSON shape requested from every planning call.
const planSchema = `{"plan":{"steps":[{"description":"...","tool":"...","params":{...},"dependsOn":["..."],"isCritical":true}]}}`

// Catalog renders the registered tools as a prompt section.
func Catalog(registry *tool.Registry) string {
	var sb strings.Builder
	for _, t := range registry.All() {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name(), t.Description())
		for name, spec := range t.Schema() {
			required := "optional"
			if spec.Required {
				required = "required"
			}
			fmt.Fprintf(&sb, "    %s (%s, %s): %s\n", name, spec.Type, required, spec.Description)
		}
	}
	return sb.String()
}

// BuildPlanPrompt produces the initial planning prompt for a user request.
func BuildPlanPrompt(input, catalog string) string {
	var sb strings.Builder
	sb.WriteString("Create a step-by-step execution plan for the following request.\n\n")
	fmt.Fprintf(&sb, "Request:\n%s\n\n", input)
	fmt.Fprintf(&sb, "Available tools:\n%s\n", catalog)
	sb.WriteString("Rules:\n")
	for _, rule := range optimizationRules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	fmt.Fprintf(&sb, "\nRespond with JSON of the shape %s\n", planSchema)
	return sb.String()
}

// BuildImprovedPlanPrompt seeds a follow-up planning attempt with the
// issues found in the previous candidate so the planner can make targeted
// fixes instead of starting over.
func BuildImprovedPlanPrompt(input, catalog string, previous *models.Plan, issues []models.ValidationIssue) string {
	var sb strings.Builder
	sb.WriteString("Your previous plan for this request was rejected. Produce an improved plan that fixes the listed issues.\n\n")
	fmt.Fprintf(&sb, "Request:\n%s\n\n", input)

	if previous != nil {
		if steps, err := json.Marshal(previous.Steps); err == nil {
			fmt.Fprintf(&sb, "Previous plan steps:\n%s\n\n", steps)
		}
	}

	sb.WriteString("Issues to fix:\n")
	for _, issue := range issues {
		fmt.Fprintf(&sb, "- step %d [%s]: %s", issue.StepIndex, issue.Severity, issue.Description)
		if issue.Suggestion != "" {
			fmt.Fprintf(&sb, " (suggestion: %s)", issue.Suggestion)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\nAvailable tools:\n%s\n", catalog)
	fmt.Fprintf(&sb, "Respond with JSON of the shape %s\n", planSchema)
	return sb.String()
}

// BuildValidationPrompt asks the planner to review a candidate plan.
func BuildValidationPrompt(plan *models.Plan, catalog string) string {
	var sb strings.Builder
	sb.WriteString("Review the following execution plan for structural and semantic problems.\n\n")

	if steps, err := json.Marshal(plan.Steps); err == nil {
		fmt.Fprintf(&sb, "Candidate steps:\n%s\n\n", steps)
	}
	fmt.Fprintf(&sb, "Available tools:\n%s\n", catalog)
	sb.WriteString("Optimization rules to enforce:\n")
	for _, rule := range optimizationRules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}

	sb.WriteString(`
Respond with JSON: {"valid":bool,"confidence":0-100,"issues":[{"stepIndex":int,"severity":"low|medium|high","description":"...","suggestion":"..."}],"optimizedSteps":[...]}
Include optimizedSteps only when you can produce a strictly better plan.
`)
	return sb.String()
}

// BuildEvaluationPrompt asks the planner whether a failed attempt warrants
// a new plan.
func BuildEvaluationPrompt(input string, plan *models.Plan, execution models.ExecutionResult, reflection *models.Reflection) string {
	var sb strings.Builder
	sb.WriteString("An execution attempt for the following request did not fully succeed. Decide whether generating a new plan is likely to help.\n\n")
	fmt.Fprintf(&sb, "Request:\n%s\n\n", input)
	fmt.Fprintf(&sb, "Steps succeeded: %d, failed: %d\n", execution.SuccessCount(), execution.FailureCount())
	if execution.StoppedAtStep != "" {
		fmt.Fprintf(&sb, "Stopped at: %s (%s)\n", execution.StoppedAtStep, execution.StopReason)
	}
	if reflection != nil {
		fmt.Fprintf(&sb, "Reflection: %s\n", reflection.Text)
	}
	sb.WriteString("\nRespond with JSON: {\"shouldReplan\":bool,\"reasoning\":\"...\",\"confidence\":0-100}\n")
	return sb.String()
}

// BuildReplanPrompt asks the planner for a new plan informed by the failure
// detail of the previous attempt.
func BuildReplanPrompt(input, catalog string, plan *models.Plan, execution models.ExecutionResult, attempt int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Replanning attempt %d. The previous plan for this request failed; produce a new plan that avoids the failures below.\n\n", attempt)
	fmt.Fprintf(&sb, "Request:\n%s\n\n", input)

	sb.WriteString("Previous attempt:\n")
	for _, result := range execution.Results {
		status := "ok"
		if !result.Success {
			status = "FAILED: " + result.Error
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", result.Step.Description, result.Step.Tool, status)
	}

	fmt.Fprintf(&sb, "\nAvailable tools:\n%s\n", catalog)
	fmt.Fprintf(&sb, "Respond with JSON of the shape %s\n", planSchema)
	return sb.String()
}
