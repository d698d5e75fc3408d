package engine

import (
	"strings"

	"github.com/pmorten/stagehand/internal/models"
)

// retryablePatterns are the error substrings treated as transient.
// Matching is case-insensitive against the full error text.
var retryablePatterns = []string{
	"context length",
	"context-length",
	"context window",
	"rate limit",
	"too many requests",
	"timeout",
	"timed out",
	"network error",
	"connection refused",
	"connection reset",
	"temporary failure",
	"temporarily unavailable",
}

// contextLengthPatterns identify errors caused by oversized model input.
var contextLengthPatterns = []string{"context length", "context-length", "context window"}

// RetryController classifies step errors as retryable and produces a
// modified step for the single retry attempt.
type RetryController struct{}

// NewRetryController creates a RetryController.
func NewRetryController() *RetryController {
	return &RetryController{}
}

// Classify reports whether the error is worth one retry. A step that was
// already modified by a previous retry is never retried again.
func (rc *RetryController) Classify(err error, step models.PlanStep) bool {
	if err == nil || step.WasModified {
		return false
	}

	text := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

// Modify clones the step for the retry attempt: the clone is marked as
// modified and its description is prefixed "Retry:". Context-length errors
// additionally tag the params with a simplified flag, which is consumed by
// the tool, not interpreted here.
func (rc *RetryController) Modify(step models.PlanStep, err error) models.PlanStep {
	modified := step.Clone()
	modified.WasModified = true
	modified.Description = "Retry: " + step.Description

	if err != nil {
		text := strings.ToLower(err.Error())
		for _, pattern := range contextLengthPatterns {
			if strings.Contains(text, pattern) {
				if modified.Params == nil {
					modified.Params = make(map[string]any)
				}
				modified.Params["simplified"] = true
				break
			}
		}
	}

	return modified
}
