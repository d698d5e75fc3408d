package models

// Issue severity constants
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ValidationIssue describes one problem found during plan review
type ValidationIssue struct {
	StepIndex   int    `json:"stepIndex"`
	Severity    string `json:"severity"` // low, medium, high
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ValidationResult is the reviewer's verdict on a candidate plan
type ValidationResult struct {
	Valid          bool              `json:"valid"`
	Confidence     int               `json:"confidence"` // 0-100
	Issues         []ValidationIssue `json:"issues,omitempty"`
	OptimizedSteps []PlanStep        `json:"optimizedSteps,omitempty"`
}

// HasHighSeverityIssue reports whether any issue is high severity
func (v ValidationResult) HasHighSeverityIssue() bool {
	for _, issue := range v.Issues {
		if issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// EvaluationResult is the replanning decision for a completed attempt
type EvaluationResult struct {
	ShouldReplan bool   `json:"shouldReplan"`
	Reasoning    string `json:"reasoning"`
	Confidence   int    `json:"confidence"` // 0-100
}
