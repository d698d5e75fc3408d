package models

// Reflection status constants
const (
	ReflectionSuccess = "success"
	ReflectionPartial = "partial"
	ReflectionFailed  = "failed"
)

// ModelUsage aggregates calls, tokens and cost for one model
type ModelUsage struct {
	Model        string  `json:"model"`
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUSD"`
	CostEUR      float64 `json:"costEUR"`
}

// Reflection is the structured post-mortem of one execution attempt
type Reflection struct {
	Text            string       `json:"text"`
	Status          string       `json:"status"` // success, partial, failed
	SuccessfulSteps int          `json:"successfulSteps"`
	FailedSteps     int          `json:"failedSteps"`
	StoppedAtStep   string       `json:"stoppedAtStep,omitempty"`
	StopReason      string       `json:"stopReason,omitempty"`
	ModelUsage      []ModelUsage `json:"modelUsage,omitempty"`
	TotalCostUSD    float64      `json:"totalCostUSD"`
	TotalCostEUR    float64      `json:"totalCostEUR"`
	Recommendations []string     `json:"recommendations,omitempty"`
}
