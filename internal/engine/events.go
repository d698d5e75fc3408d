package engine

import "github.com/pmorten/stagehand/internal/models"

// EventType identifies one engine lifecycle event.
type EventType string

// Lifecycle event types emitted by the execution engine.
const (
	EventStepStart   EventType = "stepStart"
	EventStepSuccess EventType = "stepSuccess"
	EventStepError   EventType = "stepError"
	EventPlanUpdate  EventType = "planUpdate"
)

// Event carries the context of one lifecycle notification.
type Event struct {
	Type      EventType
	StepIndex int               // Index of the step in the plan, -1 for plan-level events
	Step      models.PlanStep   // The step involved, zero value for plan-level events
	Result    *models.StepResult // Set for stepSuccess/stepError
	Plan      *models.Plan       // Set for planUpdate
}

// Observer receives engine lifecycle events. Implementations must not block;
// the engine calls them synchronously from its single control thread.
type Observer interface {
	HandleEvent(event Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(event Event)

// HandleEvent calls the wrapped function.
func (f ObserverFunc) HandleEvent(event Event) {
	if f != nil {
		f(event)
	}
}

// Logger is the logging surface the engine and its collaborators need.
// logger.ConsoleLogger and logger.FileLogger satisfy it.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}
