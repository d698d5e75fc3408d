package models

// StepResult records the outcome of one executed step.
// Results are appended in execution order for the lifetime of one execution
// attempt and discarded wholesale when replanning restarts execution.
type StepResult struct {
	Success  bool     `json:"success"`
	Result   any      `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
	Step     PlanStep `json:"step"`
	WasRetry bool     `json:"wasRetry,omitempty"`
}

// ResultObject returns the step result as a key/value object when it has
// that shape, which is what variable references resolve against.
func (r StepResult) ResultObject() (map[string]any, bool) {
	obj, ok := r.Result.(map[string]any)
	return obj, ok
}

// ExecutionResult is the aggregate outcome of one execution attempt
type ExecutionResult struct {
	Success       bool         `json:"success"` // False if any step failed without compensation
	Results       []StepResult `json:"results"`
	StoppedAtStep string       `json:"stoppedAtStep,omitempty"` // Description of the step that halted the run
	StopReason    string       `json:"stopReason,omitempty"`
}

// SuccessCount returns the number of successful step results
func (er ExecutionResult) SuccessCount() int {
	n := 0
	for _, r := range er.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// FailureCount returns the number of failed step results
func (er ExecutionResult) FailureCount() int {
	return len(er.Results) - er.SuccessCount()
}
