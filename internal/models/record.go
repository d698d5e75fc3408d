package models

import "time"

// RecordTypeUserRequest is the record type written for a completed orchestration
const RecordTypeUserRequest = "userRequest"

// OrchestrationRecord is the persisted event for one completed orchestration.
// It is written through the history store after the replanning loop settles.
type OrchestrationRecord struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"` // Always "userRequest"
	Input         string       `json:"input"`
	Plan          *Plan        `json:"plan"`
	Results       []StepResult `json:"results"`
	Reflection    *Reflection  `json:"reflection"`
	Timestamp     time.Time    `json:"timestamp"`
	Success       bool         `json:"success"`
	StoppedAtStep string       `json:"stoppedAtStep,omitempty"`
	StopReason    string       `json:"stopReason,omitempty"`
	ReplanCount   int          `json:"replanCount"`
	ModelCostUSD  float64      `json:"modelCost"`
}

// OrchestrationResult is the final aggregate returned to the caller
type OrchestrationResult struct {
	Success     bool         `json:"success"`
	Results     []StepResult `json:"results"`
	Reflection  *Reflection  `json:"reflection"`
	Plan        *Plan        `json:"plan"`
	ReplanCount int          `json:"replanCount"`
	Error       string       `json:"error,omitempty"`
}
