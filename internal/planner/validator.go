package planner

import (
	"context"
	"fmt"

	"github.com/pmorten/stagehand/internal/models"
)

// Acceptance thresholds for plan review.
const (
	acceptConfidence    = 70 // plain acceptance: valid, confident, no high issues
	optimizedConfidence = 60 // optimized output is trusted at a lower bar
)

// Validator delegates structural and semantic plan review to the planner.
// When disabled it trivially accepts every plan.
type Validator struct {
	planner Planner
	logger  Logger

	// Enabled toggles planner-backed review (intelligent validation).
	Enabled bool
}

// NewValidator creates a Validator.
func NewValidator(p Planner, logger Logger) *Validator {
	return &Validator{planner: p, logger: logger, Enabled: true}
}

// Validate reviews a candidate plan. A planner response that cannot be
// parsed accepts the original plan unmodified: planning must not deadlock
// on a formatting glitch.
func (v *Validator) Validate(ctx context.Context, plan *models.Plan, catalog string) *models.ValidationResult {
	if !v.Enabled {
		return &models.ValidationResult{Valid: true, Confidence: 100}
	}

	resp, err := v.planner.Generate(ctx, BuildValidationPrompt(plan, catalog), GenerateOptions{
		MaxTokens:   2048,
		Temperature: 0,
		Format:      "json",
		TaskType:    TaskValidation,
	})
	if err != nil {
		v.warnf("plan validation call failed, accepting plan: %v", err)
		return &models.ValidationResult{Valid: true, Confidence: acceptConfidence}
	}

	result, err := ParseValidation(resp.Content)
	if err != nil {
		v.warnf("plan validation response unparseable, accepting plan: %v", err)
		return &models.ValidationResult{Valid: true, Confidence: acceptConfidence}
	}
	return result
}

// Accepted applies the acceptance rule: a valid, confident review with no
// high-severity issues passes, and an optimized step list is trusted at a
// lower confidence bar than strict issue counting.
func Accepted(result *models.ValidationResult) bool {
	if result == nil {
		return false
	}
	if result.Valid && result.Confidence >= acceptConfidence && !result.HasHighSeverityIssue() {
		return true
	}
	return len(result.OptimizedSteps) > 0 && result.Confidence >= optimizedConfidence
}

func (v *Validator) warnf(format string, args ...any) {
	if v.logger != nil {
		v.logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
