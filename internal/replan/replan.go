// Package replan decides whether a failed execution attempt warrants a new
// plan and, when it does, obtains one from the planner.
package replan

import (
	"context"
	"fmt"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/planner"
)

// replanConfidence is the minimum planner confidence required to act on a
// replan recommendation.
const replanConfidence = 60

// fallbackFailureRate is the failure-rate threshold for the heuristic used
// when the planner's evaluation cannot be parsed.
const fallbackFailureRate = 0.5

// Controller evaluates completed attempts and produces replacement plans.
type Controller struct {
	planner planner.Planner
	logger  planner.Logger

	// AutoReplanning disables evaluation entirely when false.
	AutoReplanning bool
	// MaxReplanning bounds the number of replacement plans per orchestration.
	MaxReplanning int
}

// NewController creates a ReplanningController with the given bounds.
func NewController(p planner.Planner, logger planner.Logger, maxReplanning int) (*Controller, error) {
	if p == nil {
		return nil, fmt.Errorf("replanning controller requires a planner")
	}
	if maxReplanning < 0 {
		return nil, fmt.Errorf("maxReplanning must be non-negative, got %d", maxReplanning)
	}
	return &Controller{
		planner:        p,
		logger:         logger,
		AutoReplanning: true,
		MaxReplanning:  maxReplanning,
	}, nil
}

// Evaluate decides whether the attempt should be replanned. The planner's
// recommendation is accepted only at sufficient confidence; if its response
// cannot be parsed, a pure failure-rate heuristic decides instead.
func (c *Controller) Evaluate(ctx context.Context, input string, plan *models.Plan, execution models.ExecutionResult, reflection *models.Reflection) *models.EvaluationResult {
	if !c.AutoReplanning {
		return &models.EvaluationResult{ShouldReplan: false, Reasoning: "automatic replanning is disabled"}
	}
	if execution.FailureCount() == 0 {
		return &models.EvaluationResult{ShouldReplan: false, Reasoning: "all steps succeeded"}
	}

	resp, err := c.planner.Generate(ctx, planner.BuildEvaluationPrompt(input, plan, execution, reflection), planner.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0,
		Format:      "json",
		TaskType:    planner.TaskReplanning,
	})
	if err != nil {
		c.warnf("replan evaluation call failed, using failure-rate heuristic: %v", err)
		return c.heuristicEvaluation(execution)
	}

	result, err := planner.ParseEvaluation(resp.Content)
	if err != nil {
		c.warnf("replan evaluation response unparseable, using failure-rate heuristic: %v", err)
		return c.heuristicEvaluation(execution)
	}

	if result.ShouldReplan && result.Confidence < replanConfidence {
		c.infof("replan recommendation at confidence %d below threshold %d, ignoring", result.Confidence, replanConfidence)
		result.ShouldReplan = false
	}
	return result
}

// heuristicEvaluation replans when more than half of the attempted steps
// failed.
func (c *Controller) heuristicEvaluation(execution models.ExecutionResult) *models.EvaluationResult {
	total := len(execution.Results)
	if total == 0 {
		return &models.EvaluationResult{ShouldReplan: false, Reasoning: "no steps were attempted"}
	}
	rate := float64(execution.FailureCount()) / float64(total)
	if rate > fallbackFailureRate {
		return &models.EvaluationResult{
			ShouldReplan: true,
			Reasoning:    fmt.Sprintf("heuristic: %d of %d steps failed", execution.FailureCount(), total),
			Confidence:   replanConfidence,
		}
	}
	return &models.EvaluationResult{
		ShouldReplan: false,
		Reasoning:    fmt.Sprintf("heuristic: failure rate %.0f%% within tolerance", rate*100),
	}
}

// Replan asks the planner for a replacement plan informed by the failure
// detail. A planner failure here is terminal for the replanning loop.
func (c *Controller) Replan(ctx context.Context, input, catalog string, previous *models.Plan, execution models.ExecutionResult, attempt int, reason string) (*models.Plan, error) {
	if attempt > c.MaxReplanning {
		return nil, fmt.Errorf("replanning attempt %d exceeds limit %d", attempt, c.MaxReplanning)
	}

	resp, err := c.planner.Generate(ctx, planner.BuildReplanPrompt(input, catalog, previous, execution, attempt), planner.GenerateOptions{
		MaxTokens:   4096,
		Temperature: 0.2,
		Format:      "json",
		TaskType:    planner.TaskReplanning,
	})
	if err != nil {
		return nil, fmt.Errorf("replanning call failed: %w", err)
	}

	plan, err := planner.ParsePlan(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("replanning produced an unusable plan: %w", err)
	}

	plan.Model = resp.Model
	tc := resp.TokenCount
	plan.TokenCount = &tc
	plan.ReplanningInfo = &models.ReplanningInfo{
		Attempt:          attempt,
		Reason:           reason,
		LearningsApplied: learnings(execution),
	}
	c.infof("replanning attempt %d produced a new %d-step plan", attempt, len(plan.Steps))
	return plan, nil
}

// learnings summarizes the previous attempt's failures for provenance.
func learnings(execution models.ExecutionResult) []string {
	var out []string
	for _, result := range execution.Results {
		if result.Success {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s) failed: %s", result.Step.Description, result.Step.Tool, result.Error))
	}
	return out
}

func (c *Controller) infof(format string, args ...any) {
	if c.logger != nil {
		c.logger.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (c *Controller) warnf(format string, args ...any) {
	if c.logger != nil {
		c.logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
