package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/tool"
)

// scriptedTool returns canned responses in call order, failing with the
// scripted error when one is set for that call.
type scriptedTool struct {
	name     string
	required []string
	outputs  []any
	errs     []error
	calls    int
	seen     []map[string]any
}

func (s *scriptedTool) Name() string        { return s.name }
func (s *scriptedTool) Description() string { return "scripted " + s.name }

func (s *scriptedTool) Schema() map[string]tool.ParamSpec {
	schema := make(map[string]tool.ParamSpec)
	for _, name := range s.required {
		schema[name] = tool.ParamSpec{Type: "string", Required: true}
	}
	return schema
}

func (s *scriptedTool) Run(ctx context.Context, params map[string]any) (any, error) {
	call := s.calls
	s.calls++
	s.seen = append(s.seen, params)

	var err error
	if call < len(s.errs) {
		err = s.errs[call]
	}
	if err != nil {
		return nil, err
	}
	if call < len(s.outputs) {
		return s.outputs[call], nil
	}
	return map[string]any{"ok": true}, nil
}

func newTestEngine(t *testing.T, tools ...tool.Tool) (*Engine, *[]Event) {
	t.Helper()

	registry := tool.NewRegistry()
	for _, tl := range tools {
		require.NoError(t, registry.Register(tl))
	}

	var events []Event
	e, err := NewEngine(registry, NewResolver(nil, nil),
		WithObserver(ObserverFunc(func(ev Event) { events = append(events, ev) })))
	require.NoError(t, err)
	return e, &events
}

func TestExecuteResolvesChainedReferences(t *testing.T) {
	read := &scriptedTool{
		name:     "ReadFileTool",
		required: []string{"filePath"},
		outputs:  []any{map[string]any{"content": "X", "filePath": "a.ts"}},
	}
	write := &scriptedTool{name: "WriteFileTool", required: []string{"filePath", "content"}}
	e, _ := newTestEngine(t, read, write)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "read a.ts", Tool: "ReadFileTool", Params: map[string]any{"filePath": "a.ts"}},
		{Description: "write a.ts", Tool: "WriteFileTool", Params: map[string]any{"filePath": "a.ts", "content": "$STEP[0].content"}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.True(t, execution.Success)
	require.Len(t, execution.Results, 2)
	require.Len(t, write.seen, 1)
	assert.Equal(t, "X", write.seen[0]["content"])
	assert.Equal(t, "a.ts", write.seen[0]["filePath"])
}

func TestExecuteToolNotFoundHalts(t *testing.T) {
	e, _ := newTestEngine(t, &scriptedTool{name: "ReadFileTool"})

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "bogus step", Tool: "NoSuchTool", Params: map[string]any{}},
		{Description: "never runs", Tool: "ReadFileTool", Params: map[string]any{}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.False(t, execution.Success)
	require.Len(t, execution.Results, 1, "steps after a missing tool are never attempted")
	assert.Equal(t, "bogus step", execution.StoppedAtStep)
	assert.Contains(t, execution.StopReason, "not found")
}

func TestExecuteMissingParameterHalts(t *testing.T) {
	read := &scriptedTool{name: "ReadFileTool", required: []string{"filePath"}}
	e, _ := newTestEngine(t, read)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "read without path", Tool: "ReadFileTool", Params: map[string]any{}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.False(t, execution.Success)
	assert.Equal(t, 0, read.calls, "the tool must not run with missing parameters")
	assert.Contains(t, execution.StopReason, "filePath")
}

func TestExecuteRetriesTransientFailureOnce(t *testing.T) {
	shell := &scriptedTool{
		name:     "RunShellCommandTool",
		required: []string{"command"},
		errs:     []error{errors.New("rate limit exceeded"), nil},
		outputs:  []any{nil, map[string]any{"output": "done"}},
	}
	after := &scriptedTool{name: "ExplainCodeTool", required: []string{"content"}}
	e, _ := newTestEngine(t, &scriptedTool{name: "ReadFileTool", required: []string{"filePath"}, outputs: []any{map[string]any{"content": "c"}}}, shell, after)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "read", Tool: "ReadFileTool", Params: map[string]any{"filePath": "a"}},
		{Description: "build", Tool: "RunShellCommandTool", Params: map[string]any{"command": "make"}},
		{Description: "explain", Tool: "ExplainCodeTool", Params: map[string]any{"content": "c"}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.True(t, execution.Success)
	require.Len(t, execution.Results, 3)
	assert.True(t, execution.Results[1].Success)
	assert.True(t, execution.Results[1].WasRetry)
	assert.Equal(t, 2, shell.calls, "exactly one retry")
	assert.Equal(t, 1, after.calls, "the step after a compensated failure still executes")
}

func TestExecuteFailedRetryIsOriginalStepFailure(t *testing.T) {
	shell := &scriptedTool{
		name:     "RunShellCommandTool",
		required: []string{"command"},
		errs:     []error{errors.New("timed out"), errors.New("timed out again")},
	}
	e, _ := newTestEngine(t, shell)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "slow command", Tool: "RunShellCommandTool", Params: map[string]any{"command": "sleep"}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.False(t, execution.Success)
	require.Len(t, execution.Results, 1)
	assert.False(t, execution.Results[0].Success)
	assert.Equal(t, 2, shell.calls)
	assert.Equal(t, "slow command", execution.StoppedAtStep, "critical by default")
}

func TestExecuteCriticalFailureHaltsRemainingSteps(t *testing.T) {
	failing := &scriptedTool{
		name:     "WriteFileTool",
		required: []string{"filePath", "content"},
		errs:     []error{errors.New("disk full")},
	}
	never := &scriptedTool{name: "ExplainCodeTool", required: []string{"content"}}
	e, _ := newTestEngine(t, failing, never)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "write output", Tool: "WriteFileTool", Params: map[string]any{"filePath": "o", "content": "c"}},
		{Description: "explain", Tool: "ExplainCodeTool", Params: map[string]any{"content": "c"}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.False(t, execution.Success)
	assert.Equal(t, "write output", execution.StoppedAtStep)
	assert.Equal(t, 0, never.calls, "steps after a critical failure are never attempted")
}

func TestExecuteNonCriticalFailureContinues(t *testing.T) {
	nonCritical := false
	failing := &scriptedTool{
		name:     "ExplainCodeTool",
		required: []string{"content"},
		errs:     []error{errors.New("model refused")},
	}
	after := &scriptedTool{name: "AnalyzeCodeTool", required: []string{"content"}}
	e, _ := newTestEngine(t, failing, after)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "explain", Tool: "ExplainCodeTool", Params: map[string]any{"content": "c"}, IsCritical: &nonCritical},
		{Description: "analyze", Tool: "AnalyzeCodeTool", Params: map[string]any{"content": "c"}},
	}}

	execution := e.Execute(context.Background(), plan)

	assert.False(t, execution.Success, "overall success is false once any step failed")
	require.Len(t, execution.Results, 2, "non-critical failures do not halt the loop")
	assert.Empty(t, execution.StoppedAtStep)
}

func TestExecuteEmitsLifecycleEvents(t *testing.T) {
	read := &scriptedTool{name: "ReadFileTool", required: []string{"filePath"}}
	e, events := newTestEngine(t, read)

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "read", Tool: "ReadFileTool", Params: map[string]any{"filePath": "a"}},
	}}
	e.Execute(context.Background(), plan)

	var types []EventType
	for _, ev := range *events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventPlanUpdate, EventStepStart, EventStepSuccess}, types)
}

func TestExecuteCanceledContextStops(t *testing.T) {
	read := &scriptedTool{name: "ReadFileTool", required: []string{"filePath"}}
	e, _ := newTestEngine(t, read)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := &models.Plan{Steps: []models.PlanStep{
		{Description: "read", Tool: "ReadFileTool", Params: map[string]any{"filePath": "a"}},
	}}
	execution := e.Execute(ctx, plan)

	assert.False(t, execution.Success)
	assert.Equal(t, 0, read.calls)
	assert.Contains(t, execution.StopReason, "canceled")
}
