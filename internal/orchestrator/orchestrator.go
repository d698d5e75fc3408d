// Package orchestrator drives the full plan → execute → reflect → replan
// loop for one user request and persists the outcome.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/pmorten/stagehand/internal/engine"
	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/planner"
	"github.com/pmorten/stagehand/internal/reflection"
	"github.com/pmorten/stagehand/internal/replan"
	"github.com/pmorten/stagehand/internal/tool"
)

// Logger is the logging surface the orchestrator needs.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Store persists completed orchestrations. history.Store satisfies it; a
// nil store disables persistence.
type Store interface {
	Save(ctx context.Context, record *models.OrchestrationRecord) error
}

// Orchestrator wires the planning service, execution engine, reflection
// engine and replanning controller into the outer control loop.
type Orchestrator struct {
	registry  *tool.Registry
	planning  *planner.Service
	engine    *engine.Engine
	reflector *reflection.Engine
	replanner *replan.Controller
	store     Store
	logger    Logger
}

// New creates an Orchestrator. store and logger may be nil.
func New(registry *tool.Registry, planning *planner.Service, eng *engine.Engine, reflector *reflection.Engine, replanner *replan.Controller, store Store, logger Logger) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("orchestrator requires a tool registry")
	}
	if planning == nil {
		return nil, fmt.Errorf("orchestrator requires a planning service")
	}
	if eng == nil {
		return nil, fmt.Errorf("orchestrator requires an execution engine")
	}
	if reflector == nil {
		return nil, fmt.Errorf("orchestrator requires a reflection engine")
	}
	if replanner == nil {
		return nil, fmt.Errorf("orchestrator requires a replanning controller")
	}
	return &Orchestrator{
		registry:  registry,
		planning:  planning,
		engine:    eng,
		reflector: reflector,
		replanner: replanner,
		store:     store,
		logger:    logger,
	}, nil
}

// Orchestrate runs one request end to end. Results and reflection from the
// final attempt are returned even when the run only partially succeeded;
// an error is returned only when the whole pipeline was unusable.
func (o *Orchestrator) Orchestrate(ctx context.Context, input string) (*models.OrchestrationResult, error) {
	if input == "" {
		return nil, fmt.Errorf("empty request")
	}

	catalog := planner.Catalog(o.registry)
	plan := o.planning.PlanTask(ctx, input, catalog)
	o.infof("plan ready: %d steps", len(plan.Steps))

	var (
		execution   models.ExecutionResult
		reflected   *models.Reflection
		replanCount int
	)

	for {
		execution = o.engine.Execute(ctx, plan)
		reflected = o.reflector.Reflect(plan, execution)
		o.infof("attempt finished: %s (%d ok, %d failed)", reflected.Status, reflected.SuccessfulSteps, reflected.FailedSteps)

		if execution.Success {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if replanCount >= o.replanner.MaxReplanning {
			o.warnf("replanning limit %d reached, stopping with last attempt", o.replanner.MaxReplanning)
			break
		}

		eval := o.replanner.Evaluate(ctx, input, plan, execution, reflected)
		if !eval.ShouldReplan {
			o.infof("not replanning: %s", eval.Reasoning)
			break
		}

		newPlan, err := o.replanner.Replan(ctx, input, catalog, plan, execution, replanCount+1, eval.Reasoning)
		if err != nil {
			// Terminal for the loop; the last attempt's outcome stands.
			o.warnf("replanning failed, stopping: %v", err)
			break
		}

		plan = newPlan
		replanCount++
		o.infof("replanning attempt %d: new plan with %d steps", replanCount, len(plan.Steps))
	}

	result := &models.OrchestrationResult{
		Success:     execution.Success,
		Results:     execution.Results,
		Reflection:  reflected,
		Plan:        plan,
		ReplanCount: replanCount,
	}

	o.persist(ctx, input, plan, execution, reflected, replanCount)
	return result, nil
}

// persist writes the orchestration record. Persistence failures are logged,
// never surfaced: the run's outcome is already decided.
func (o *Orchestrator) persist(ctx context.Context, input string, plan *models.Plan, execution models.ExecutionResult, reflected *models.Reflection, replanCount int) {
	if o.store == nil {
		return
	}

	var costUSD float64
	if reflected != nil {
		costUSD = reflected.TotalCostUSD
	}
	record := &models.OrchestrationRecord{
		Type:          models.RecordTypeUserRequest,
		Input:         input,
		Plan:          plan,
		Results:       execution.Results,
		Reflection:    reflected,
		Success:       execution.Success,
		StoppedAtStep: execution.StoppedAtStep,
		StopReason:    execution.StopReason,
		ReplanCount:   replanCount,
		ModelCostUSD:  costUSD,
	}
	if err := o.store.Save(ctx, record); err != nil {
		o.warnf("could not persist orchestration record: %v", err)
	}
}

func (o *Orchestrator) infof(format string, args ...any) {
	if o.logger != nil {
		o.logger.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (o *Orchestrator) warnf(format string, args ...any) {
	if o.logger != nil {
		o.logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
