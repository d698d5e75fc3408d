// Package engine implements the step execution loop of the orchestrator:
// tool dispatch, variable resolution, retry handling, and the criticality
// and continuation analysis that decides whether a run survives a failure.
package engine

import (
	"context"
	"fmt"

	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/snapshot"
	"github.com/pmorten/stagehand/internal/tool"
)

// Snapshotter captures workspace state around shell command execution.
// snapshot.Manager satisfies it.
type Snapshotter interface {
	Take() (*snapshot.Snapshot, error)
}

// Engine drives the sequential step loop for one execution attempt.
// It is single-threaded: steps, retries, and snapshots are awaited in order.
type Engine struct {
	registry    *tool.Registry
	resolver    *Resolver
	criticality *CriticalityAnalyzer
	retry       *RetryController
	snapshots   Snapshotter // optional, attached to shell step results
	observer    Observer    // optional
	logger      Logger      // optional
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithSnapshotter attaches a workspace snapshotter for shell-step auditing.
func WithSnapshotter(s Snapshotter) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithObserver attaches a lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger attaches a logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine. registry and resolver are required.
func NewEngine(registry *tool.Registry, resolver *Resolver, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine requires a tool registry")
	}
	if resolver == nil {
		return nil, fmt.Errorf("engine requires a variable resolver")
	}

	e := &Engine{
		registry:    registry,
		resolver:    resolver,
		criticality: NewCriticalityAnalyzer(nil),
		retry:       NewRetryController(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.criticality.logger == nil {
		e.criticality = NewCriticalityAnalyzer(e.logger)
	}
	return e, nil
}

// Execute runs the plan's steps sequentially and returns the aggregate
// result. Tool errors never propagate: every failure is recorded as a
// StepResult and reflected in the ExecutionResult fields.
func (e *Engine) Execute(ctx context.Context, plan *models.Plan) models.ExecutionResult {
	execution := models.ExecutionResult{Success: true}
	if plan == nil || len(plan.Steps) == 0 {
		return execution
	}

	e.emit(Event{Type: EventPlanUpdate, StepIndex: -1, Plan: plan})

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			execution.Success = false
			execution.StoppedAtStep = step.Description
			execution.StopReason = fmt.Sprintf("execution canceled: %v", err)
			break
		}

		e.emit(Event{Type: EventStepStart, StepIndex: i, Step: step})
		e.infof("step %d/%d: %s (%s)", i+1, len(plan.Steps), step.Description, step.Tool)

		// Dispatch. A missing tool is always blocking.
		capability, ok := e.registry.Get(step.Tool)
		if !ok {
			err := NewToolNotFoundError(step.Tool, step.Description)
			result := failedResult(step, err)
			execution.Results = append(execution.Results, result)
			execution.Success = false
			execution.StoppedAtStep = step.Description
			execution.StopReason = err.Error()
			e.emit(Event{Type: EventStepError, StepIndex: i, Step: step, Result: &result})
			break
		}

		// Required parameters must be present before resolution; a reference
		// string satisfies presence.
		if missing := tool.MissingParams(capability, step.Params); len(missing) > 0 {
			err := NewMissingParameterError(step.Tool, step.Description, missing)
			result := failedResult(step, err)
			execution.Results = append(execution.Results, result)
			execution.Success = false
			execution.StoppedAtStep = step.Description
			execution.StopReason = err.Error()
			e.emit(Event{Type: EventStepError, StepIndex: i, Step: step, Result: &result})
			break
		}

		result := e.runStep(ctx, capability, step, execution.Results)
		execution.Results = append(execution.Results, result)

		if result.Success {
			e.emit(Event{Type: EventStepSuccess, StepIndex: i, Step: step, Result: &result})
		} else {
			e.emit(Event{Type: EventStepError, StepIndex: i, Step: step, Result: &result})
			execution.Success = false

			if e.criticality.IsCritical(step, plan) {
				execution.StoppedAtStep = step.Description
				execution.StopReason = result.Error
				e.warnf("critical step %q failed, halting: %s", step.Description, result.Error)
				break
			}
			e.warnf("non-critical step %q failed, continuing: %s", step.Description, result.Error)
		}

		// Continuation check applies to every appended result: a step can
		// "succeed" while invalidating what downstream steps need.
		if !e.criticality.CanContinue(result, i, plan) {
			execution.StoppedAtStep = step.Description
			if result.Error != "" {
				execution.StopReason = result.Error
			} else {
				execution.StopReason = fmt.Sprintf("downstream steps depend on output step %q did not provide", step.Description)
			}
			break
		}
	}

	return execution
}

// runStep resolves parameters, invokes the tool, and applies the single
// retry policy. The returned result always references the original step;
// a compensated failure is reported as success with WasRetry set.
func (e *Engine) runStep(ctx context.Context, capability tool.Tool, step models.PlanStep, prior []models.StepResult) models.StepResult {
	params := e.resolver.Resolve(step.Params, prior)
	params = e.resolver.EnrichWithFileInfo(params, prior)

	executed := step.Clone()
	executed.Params = params

	output, err := e.invoke(ctx, capability, params)
	if err == nil {
		return models.StepResult{Success: true, Result: output, Step: executed}
	}

	if !e.retry.Classify(err, step) {
		return failedResult(executed, NewStepExecutionError(step.Description, step.Tool, err))
	}

	// One retry with a modified step, re-resolved against the same priors.
	modified := e.retry.Modify(step, err)
	e.infof("retrying step %q after transient error: %v", step.Description, err)

	retryParams := e.resolver.Resolve(modified.Params, prior)
	retryParams = e.resolver.EnrichWithFileInfo(retryParams, prior)

	output, retryErr := e.invoke(ctx, capability, retryParams)
	if retryErr == nil {
		return models.StepResult{Success: true, Result: output, Step: executed, WasRetry: true}
	}

	// A failed retry is a failure of the original step.
	return failedResult(executed, NewStepExecutionError(step.Description, step.Tool, retryErr))
}

// invoke runs the tool, attaching a before/after snapshot diff to shell
// command results. Snapshot failures are logged, never fatal.
func (e *Engine) invoke(ctx context.Context, capability tool.Tool, params map[string]any) (any, error) {
	if capability.Name() != tool.NameShellCommand || e.snapshots == nil {
		return capability.Run(ctx, params)
	}

	before, snapErr := e.snapshots.Take()
	if snapErr != nil {
		e.warnf("pre-command snapshot failed: %v", snapErr)
	}

	output, err := capability.Run(ctx, params)

	after, snapErr := e.snapshots.Take()
	if snapErr != nil {
		e.warnf("post-command snapshot failed: %v", snapErr)
	}

	if before != nil && after != nil {
		if diff := snapshot.Compare(before, after); !diff.Empty() {
			if obj, ok := output.(map[string]any); ok {
				obj["fileChanges"] = diff
			}
		}
	}
	return output, err
}

func failedResult(step models.PlanStep, err error) models.StepResult {
	return models.StepResult{Success: false, Error: err.Error(), Step: step}
}

func (e *Engine) emit(event Event) {
	if e.observer != nil {
		e.observer.HandleEvent(event)
	}
}

func (e *Engine) infof(format string, args ...any) {
	if e.logger != nil {
		e.logger.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warnf(format string, args ...any) {
	if e.logger != nil {
		e.logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
