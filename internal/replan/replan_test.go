package replan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/planner"
)

type cannedPlanner struct {
	content string
	err     error
	calls   int
}

func (p *cannedPlanner) Generate(_ context.Context, _ string, _ planner.GenerateOptions) (*planner.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &planner.Response{
		Content:    p.content,
		Model:      "scripted-model",
		TokenCount: models.TokenCount{Prompt: 80, Completion: 40},
	}, nil
}

func failedExecution(failed, succeeded int) models.ExecutionResult {
	var results []models.StepResult
	for i := 0; i < succeeded; i++ {
		results = append(results, models.StepResult{Success: true, Step: models.PlanStep{Description: "ok step", Tool: "ReadFileTool"}})
	}
	for i := 0; i < failed; i++ {
		results = append(results, models.StepResult{Success: false, Error: "boom", Step: models.PlanStep{Description: "bad step", Tool: "WriteFileTool"}})
	}
	return models.ExecutionResult{Success: failed == 0, Results: results}
}

func TestEvaluateAcceptsConfidentRecommendation(t *testing.T) {
	p := &cannedPlanner{content: `{"shouldReplan":true,"reasoning":"critical step failed","confidence":80}`}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(2, 1), nil)
	assert.True(t, eval.ShouldReplan)
	assert.Equal(t, 80, eval.Confidence)
}

func TestEvaluateRejectsLowConfidenceRecommendation(t *testing.T) {
	p := &cannedPlanner{content: `{"shouldReplan":true,"reasoning":"maybe","confidence":50}`}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(2, 1), nil)
	assert.False(t, eval.ShouldReplan)
}

func TestEvaluateSkipsPlannerWhenNothingFailed(t *testing.T) {
	p := &cannedPlanner{}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(0, 3), nil)
	assert.False(t, eval.ShouldReplan)
	assert.Zero(t, p.calls)
}

func TestEvaluateDisabled(t *testing.T) {
	p := &cannedPlanner{}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)
	c.AutoReplanning = false

	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(3, 0), nil)
	assert.False(t, eval.ShouldReplan)
	assert.Zero(t, p.calls)
}

func TestEvaluateHeuristicOnUnparseableResponse(t *testing.T) {
	p := &cannedPlanner{content: "not json at all"}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	// 2 of 3 failed: above the 50% threshold.
	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(2, 1), nil)
	assert.True(t, eval.ShouldReplan)

	// 1 of 3 failed: within tolerance.
	eval = c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(1, 2), nil)
	assert.False(t, eval.ShouldReplan)

	// Exactly half failed: threshold is strict.
	eval = c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(1, 1), nil)
	assert.False(t, eval.ShouldReplan)
}

func TestEvaluateHeuristicOnCallError(t *testing.T) {
	p := &cannedPlanner{err: errors.New("connection reset")}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	eval := c.Evaluate(context.Background(), "do things", &models.Plan{}, failedExecution(3, 0), nil)
	assert.True(t, eval.ShouldReplan)
}

func TestReplanAnnotatesProvenance(t *testing.T) {
	p := &cannedPlanner{content: `{"steps":[{"description":"try again","tool":"AnalyzeCodeTool","params":{"content":"x"}}]}`}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	execution := failedExecution(1, 1)
	plan, err := c.Replan(context.Background(), "do things", "catalog", &models.Plan{}, execution, 2, "critical step failed")
	require.NoError(t, err)
	require.NotNil(t, plan.ReplanningInfo)
	assert.Equal(t, 2, plan.ReplanningInfo.Attempt)
	assert.Equal(t, "critical step failed", plan.ReplanningInfo.Reason)
	require.Len(t, plan.ReplanningInfo.LearningsApplied, 1)
	assert.Contains(t, plan.ReplanningInfo.LearningsApplied[0], "bad step")
	assert.Equal(t, "scripted-model", plan.Model)
}

func TestReplanRespectsBound(t *testing.T) {
	p := &cannedPlanner{content: `{"steps":[{"description":"x","tool":"AnalyzeCodeTool","params":{}}]}`}
	c, err := NewController(p, nil, 2)
	require.NoError(t, err)

	_, err = c.Replan(context.Background(), "do things", "catalog", &models.Plan{}, failedExecution(1, 0), 3, "reason")
	assert.Error(t, err)
	assert.Zero(t, p.calls)
}

func TestReplanPlannerFailureIsTerminal(t *testing.T) {
	p := &cannedPlanner{err: errors.New("planner down")}
	c, err := NewController(p, nil, 5)
	require.NoError(t, err)

	_, err = c.Replan(context.Background(), "do things", "catalog", &models.Plan{}, failedExecution(1, 0), 1, "reason")
	assert.Error(t, err)
}

func TestNewControllerValidation(t *testing.T) {
	_, err := NewController(nil, nil, 5)
	assert.Error(t, err)

	_, err = NewController(&cannedPlanner{}, nil, -1)
	assert.Error(t, err)
}
