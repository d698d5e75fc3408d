package planner

import (
	"context"
	"fmt"

	"github.com/pmorten/stagehand/internal/models"
)

// maxPlanAttempts bounds the generate-validate loop for one request.
const maxPlanAttempts = 3

// Service runs the outer planning loop: generate a candidate, review it,
// and re-prompt with the reviewer's issues until a plan is accepted or the
// attempt budget is exhausted.
type Service struct {
	planner   Planner
	validator *Validator
	logger    Logger
}

// NewService creates a planning Service. validator may be nil, in which
// case every structurally valid plan is accepted.
func NewService(p Planner, validator *Validator, logger Logger) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("planning service requires a planner")
	}
	return &Service{planner: p, validator: validator, logger: logger}, nil
}

// PlanTask produces an accepted plan for the input. After three failed
// attempts (structural or validation) it falls back to a trivial one-step
// plan chosen by input keywords, so planning never returns an error for a
// malformed planner; only a failed planner transport surfaces as error-free
// fallback too.
func (s *Service) PlanTask(ctx context.Context, input, catalog string) *models.Plan {
	var lastPlan *models.Plan
	var lastIssues []models.ValidationIssue

	for attempt := 1; attempt <= maxPlanAttempts; attempt++ {
		prompt := BuildPlanPrompt(input, catalog)
		if attempt > 1 {
			prompt = BuildImprovedPlanPrompt(input, catalog, lastPlan, lastIssues)
		}

		resp, err := s.planner.Generate(ctx, prompt, GenerateOptions{
			MaxTokens:   4096,
			Temperature: 0.2,
			Format:      "json",
			TaskType:    TaskPlanning,
		})
		if err != nil {
			s.warnf("planning attempt %d failed: %v", attempt, err)
			continue
		}

		plan, err := ParsePlan(resp.Content)
		if err != nil {
			s.warnf("planning attempt %d produced unparseable plan: %v", attempt, err)
			continue
		}
		plan.Model = resp.Model
		tc := resp.TokenCount
		plan.TokenCount = &tc

		if s.validator == nil {
			plan.ValidationInfo = &models.ValidationInfo{Attempt: attempt, Confidence: 100}
			return plan
		}

		review := s.validator.Validate(ctx, plan, catalog)
		if Accepted(review) {
			if len(review.OptimizedSteps) > 0 {
				plan.Steps = review.OptimizedSteps
				plan.AppliedRules = append(plan.AppliedRules, "validator optimization")
			}
			plan.ValidationInfo = &models.ValidationInfo{Attempt: attempt, Confidence: review.Confidence}
			s.infof("plan accepted on attempt %d (confidence %d, %d steps)", attempt, review.Confidence, len(plan.Steps))
			return plan
		}

		s.infof("plan rejected on attempt %d (confidence %d, %d issues)", attempt, review.Confidence, len(review.Issues))
		lastPlan = plan
		lastIssues = review.Issues
	}

	s.warnf("planning exhausted %d attempts, using fallback plan", maxPlanAttempts)
	return FallbackPlan(input)
}

func (s *Service) infof(format string, args ...any) {
	if s.logger != nil {
		s.logger.LogInfo(fmt.Sprintf(format, args...))
	}
}

func (s *Service) warnf(format string, args ...any) {
	if s.logger != nil {
		s.logger.LogWarn(fmt.Sprintf(format, args...))
	}
}
