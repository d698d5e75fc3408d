package models

// Plan represents an execution plan produced by the planner for one request
type Plan struct {
	Steps          []PlanStep      `json:"steps"`                    // Ordered steps to execute
	Model          string          `json:"model,omitempty"`          // Model used to generate the plan
	TokenCount     *TokenCount     `json:"tokenCount,omitempty"`     // Token usage of the planning call
	AppliedRules   []string        `json:"appliedRules,omitempty"`   // Optimization rules applied during validation
	ValidationInfo *ValidationInfo `json:"validationInfo,omitempty"` // Provenance from validation loop
	ReplanningInfo *ReplanningInfo `json:"replanningInfo,omitempty"` // Provenance from replanning
}

// PlanStep is one unit of work in a plan.
// Steps are immutable once generated; retry and variable substitution
// operate on copies.
type PlanStep struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Params      map[string]any `json:"params"`
	DependsOn   []string       `json:"dependsOn,omitempty"`  // Descriptions of steps this step depends on
	IsCritical  *bool          `json:"isCritical,omitempty"` // Explicit criticality override; nil means unset
	WasModified bool           `json:"wasModified,omitempty"`
}

// Clone returns a deep copy of the step. Params are copied one level deep,
// which is sufficient because retry modification only adds top-level keys.
func (s PlanStep) Clone() PlanStep {
	clone := s
	if s.Params != nil {
		clone.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			clone.Params[k] = v
		}
	}
	if s.DependsOn != nil {
		clone.DependsOn = append([]string(nil), s.DependsOn...)
	}
	if s.IsCritical != nil {
		v := *s.IsCritical
		clone.IsCritical = &v
	}
	return clone
}

// Critical reports the step's effective criticality.
// Steps without an explicit flag are treated as critical (fail-closed).
func (s PlanStep) Critical() bool {
	if s.IsCritical == nil {
		return true
	}
	return *s.IsCritical
}

// TokenCount holds prompt/completion token usage for one model call
type TokenCount struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

// ValidationInfo records how a plan fared in the validation loop
type ValidationInfo struct {
	Attempt    int `json:"attempt"`    // 1-based planning attempt that produced this plan
	Confidence int `json:"confidence"` // Validator confidence 0-100
}

// ReplanningInfo records why a plan replaced a previous one
type ReplanningInfo struct {
	Attempt          int      `json:"attempt"` // 1-based replanning attempt
	Reason           string   `json:"reason"`
	LearningsApplied []string `json:"learningsApplied,omitempty"`
}
