package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorten/stagehand/internal/editor"
	"github.com/pmorten/stagehand/internal/engine"
	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/planner"
	"github.com/pmorten/stagehand/internal/reflection"
	"github.com/pmorten/stagehand/internal/replan"
	"github.com/pmorten/stagehand/internal/tool"
)

// flakyTool fails a fixed number of times before succeeding.
type flakyTool struct {
	name      string
	failures  int
	runs      int
	lastError string
}

func (t *flakyTool) Name() string        { return t.name }
func (t *flakyTool) Description() string { return "test tool" }
func (t *flakyTool) Schema() map[string]tool.ParamSpec {
	return map[string]tool.ParamSpec{}
}
func (t *flakyTool) Run(_ context.Context, _ map[string]any) (any, error) {
	t.runs++
	if t.runs <= t.failures {
		return nil, errors.New(t.lastError)
	}
	return map[string]any{"output": "done"}, nil
}

// loopPlanner scripts one response per task type queue, like the planner
// package tests do.
type loopPlanner struct {
	responses map[string][]string
	calls     map[string]int
}

func (p *loopPlanner) Generate(_ context.Context, _ string, opts planner.GenerateOptions) (*planner.Response, error) {
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[opts.TaskType]++
	queue := p.responses[opts.TaskType]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted response for %s", opts.TaskType)
	}
	content := queue[0]
	p.responses[opts.TaskType] = queue[1:]
	return &planner.Response{
		Content:    content,
		Model:      "scripted-model",
		TokenCount: models.TokenCount{Prompt: 50, Completion: 25},
	}, nil
}

func planJSON(toolName string) string {
	return fmt.Sprintf(`{"steps":[{"description":"run %s","tool":"%s","params":{},"isCritical":true}]}`, toolName, toolName)
}

const acceptReview = `{"valid":true,"confidence":90}`

func newHarness(t *testing.T, p planner.Planner, maxReplanning int, tools ...tool.Tool) (*Orchestrator, *recordingStore) {
	t.Helper()

	registry := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}

	resolver := engine.NewResolver(editor.NoEditor, nil)
	eng, err := engine.NewEngine(registry, resolver)
	require.NoError(t, err)

	planning, err := planner.NewService(p, planner.NewValidator(p, nil), nil)
	require.NoError(t, err)

	replanner, err := replan.NewController(p, nil, maxReplanning)
	require.NoError(t, err)

	store := &recordingStore{}
	orc, err := New(registry, planning, eng, reflection.NewEngine(), replanner, store, nil)
	require.NoError(t, err)
	return orc, store
}

type recordingStore struct {
	records []*models.OrchestrationRecord
	err     error
}

func (s *recordingStore) Save(_ context.Context, record *models.OrchestrationRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func TestOrchestrateSuccessWithoutReplanning(t *testing.T) {
	worker := &flakyTool{name: "WorkTool"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
	}}
	orc, store := newHarness(t, p, 5, worker)

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ReplanCount)
	require.NotNil(t, result.Reflection)
	assert.Equal(t, models.ReflectionSuccess, result.Reflection.Status)
	assert.Zero(t, p.calls[planner.TaskReplanning])

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.Equal(t, models.RecordTypeUserRequest, record.Type)
	assert.Equal(t, "do the work", record.Input)
	assert.True(t, record.Success)
}

func TestOrchestrateReplansOnce(t *testing.T) {
	// Critical tool fails the first attempt entirely, succeeds after replan.
	worker := &flakyTool{name: "WorkTool", failures: 1, lastError: "tool exploded"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
		planner.TaskReplanning: {
			`{"shouldReplan":true,"reasoning":"critical step failed","confidence":80}`,
			planJSON("WorkTool"),
		},
	}}
	orc, store := newHarness(t, p, 5, worker)

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ReplanCount)
	require.NotNil(t, result.Plan.ReplanningInfo)
	assert.Equal(t, 1, result.Plan.ReplanningInfo.Attempt)

	require.Len(t, store.records, 1)
	assert.Equal(t, 1, store.records[0].ReplanCount)
}

func TestOrchestrateStopsAtReplanningLimit(t *testing.T) {
	// Tool never succeeds; evaluation always recommends replanning.
	worker := &flakyTool{name: "WorkTool", failures: 1 << 20, lastError: "tool exploded"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
		planner.TaskReplanning: {
			`{"shouldReplan":true,"reasoning":"still failing","confidence":90}`,
			planJSON("WorkTool"),
			`{"shouldReplan":true,"reasoning":"still failing","confidence":90}`,
			planJSON("WorkTool"),
			`{"shouldReplan":true,"reasoning":"still failing","confidence":90}`,
		},
	}}
	orc, _ := newHarness(t, p, 2, worker)

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ReplanCount)
	// Two replans means exactly two evaluate+replan pairs were issued.
	assert.Equal(t, 4, p.calls[planner.TaskReplanning])
}

func TestOrchestrateStopsWhenEvaluationDeclines(t *testing.T) {
	worker := &flakyTool{name: "WorkTool", failures: 1 << 20, lastError: "tool exploded"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
		planner.TaskReplanning: {`{"shouldReplan":false,"reasoning":"replanning will not help","confidence":90}`},
	}}
	orc, store := newHarness(t, p, 5, worker)

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ReplanCount)
	require.Len(t, store.records, 1)
	assert.False(t, store.records[0].Success)
}

func TestOrchestrateReplanFailureKeepsLastAttempt(t *testing.T) {
	worker := &flakyTool{name: "WorkTool", failures: 1 << 20, lastError: "tool exploded"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
		// Evaluation recommends replanning, then the replan call has no
		// scripted response and errors out.
		planner.TaskReplanning: {`{"shouldReplan":true,"reasoning":"try again","confidence":90}`},
	}}
	orc, _ := newHarness(t, p, 5, worker)

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ReplanCount)
	require.NotNil(t, result.Reflection)
	assert.Equal(t, models.ReflectionFailed, result.Reflection.Status)
}

func TestOrchestratePersistFailureDoesNotSurface(t *testing.T) {
	worker := &flakyTool{name: "WorkTool"}
	p := &loopPlanner{responses: map[string][]string{
		planner.TaskPlanning:   {planJSON("WorkTool")},
		planner.TaskValidation: {acceptReview},
	}}
	orc, store := newHarness(t, p, 5, worker)
	store.err = errors.New("disk full")

	result, err := orc.Orchestrate(context.Background(), "do the work")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestOrchestrateRejectsEmptyInput(t *testing.T) {
	worker := &flakyTool{name: "WorkTool"}
	p := &loopPlanner{responses: map[string][]string{}}
	orc, _ := newHarness(t, p, 5, worker)

	_, err := orc.Orchestrate(context.Background(), "")
	assert.Error(t, err)
}
