package engine

import (
	"fmt"
	"strings"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// writeToolNames are tools that consume upstream file content or search
// results. Used by the continuation heuristics.
var writeToolNames = map[string]bool{
	tool.NameWriteFile: true,
	tool.NameFixError:  true,
}

// consumerToolNames additionally include execution, for the search-then-run
// adjacency.
var consumerToolNames = map[string]bool{
	tool.NameWriteFile:    true,
	tool.NameFixError:     true,
	tool.NameShellCommand: true,
}

// searchUtilities are the text-search commands recognized inside a shell
// step's command parameter.
var searchUtilities = []string{"grep", "rg", "ripgrep", "ag ", "ack", "find ", "fgrep", "egrep"}

// CriticalityAnalyzer decides whether a step failure must halt the remaining
// plan. The continuation rules are heuristics seeded from observed tool
// adjacencies, not a full dependency graph.
type CriticalityAnalyzer struct {
	logger Logger
}

// NewCriticalityAnalyzer creates a CriticalityAnalyzer. logger may be nil.
func NewCriticalityAnalyzer(logger Logger) *CriticalityAnalyzer {
	return &CriticalityAnalyzer{logger: logger}
}

// IsCritical reports whether the step's failure must halt the plan.
// Steps without an explicit isCritical flag are critical (fail-closed).
func (ca *CriticalityAnalyzer) IsCritical(step models.PlanStep, plan *models.Plan) bool {
	return step.Critical()
}

// CanContinue decides whether execution may proceed after the given result
// was appended. A successful result always permits continuation. After a
// failure, continuation is blocked when a later step declares a dependency
// on the failed step or when a tool adjacency heuristic detects that a
// downstream step consumes what this step should have produced. With no
// evidence either way, continuation is permitted; the caller has already
// marked the overall run unsuccessful.
func (ca *CriticalityAnalyzer) CanContinue(result models.StepResult, stepIndex int, plan *models.Plan) bool {
	if result.Success {
		return true
	}
	if plan == nil {
		return true
	}

	remaining := remainingSteps(stepIndex, plan)

	// Explicit dependency declarations win over heuristics.
	for _, later := range remaining {
		for _, dep := range later.DependsOn {
			if dep == result.Step.Description {
				ca.debugf("halting: step %q depends on failed step %q", later.Description, result.Step.Description)
				return false
			}
		}
	}

	// Read-then-write adjacency: a failed read blocks any later write/fix.
	if result.Step.Tool == tool.NameReadFile {
		for _, later := range remaining {
			if writeToolNames[later.Tool] {
				ca.debugf("halting: failed %s feeds later %s", result.Step.Tool, later.Tool)
				return false
			}
		}
	}

	// Search-then-consume adjacency: a failed shell text-search blocks any
	// later write/fix/execute step.
	if result.Step.Tool == tool.NameShellCommand && isSearchCommand(result.Step.Params) {
		for _, later := range remaining {
			if consumerToolNames[later.Tool] {
				ca.debugf("halting: failed search step feeds later %s", later.Tool)
				return false
			}
		}
	}

	// Unknown dependency defaults to "assume independent". See DESIGN.md for
	// the fail-open discussion.
	return true
}

// remainingSteps returns the plan steps after the given index. Index-based
// scoping keeps duplicate descriptions apart and covers retry copies, which
// execute at the original step's position.
func remainingSteps(stepIndex int, plan *models.Plan) []models.PlanStep {
	if stepIndex < 0 || stepIndex+1 >= len(plan.Steps) {
		return nil
	}
	return plan.Steps[stepIndex+1:]
}

// isSearchCommand reports whether a shell step's command invokes a
// text-search utility.
func isSearchCommand(params map[string]any) bool {
	command, ok := params["command"].(string)
	if !ok {
		return false
	}
	lower := strings.ToLower(command)
	for _, utility := range searchUtilities {
		if strings.Contains(lower, utility) {
			return true
		}
	}
	return false
}

func (ca *CriticalityAnalyzer) debugf(format string, args ...any) {
	if ca.logger != nil {
		ca.logger.LogDebug(fmt.Sprintf(format, args...))
	}
}
