// Package reflection produces the structured post-mortem of one execution
// attempt: success/failure counts, per-model cost accounting, and
// recommendations derived from the stop reason.
package reflection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmorten/stagehand/internal/models"
)

// usdToEUR is the fixed conversion rate applied to all cost figures.
const usdToEUR = 0.92

// highCostThresholdUSD triggers the cost advisory.
const highCostThresholdUSD = 0.05

// modelRate prices one model in USD per million tokens.
type modelRate struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// defaultRate prices models absent from the table at the low tier.
var defaultRate = modelRate{InputPerMTok: 0.15, OutputPerMTok: 0.60}

var modelRates = map[string]modelRate{
	"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4-turbo":       {InputPerMTok: 10.00, OutputPerMTok: 30.00},
	"gpt-4":             {InputPerMTok: 30.00, OutputPerMTok: 60.00},
	"gpt-3.5-turbo":     {InputPerMTok: 0.50, OutputPerMTok: 1.50},
	"o3-mini":           {InputPerMTok: 1.10, OutputPerMTok: 4.40},
	"claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
}

// stopReasonAdvice maps stop-reason substrings to recommendation text.
// The keys mirror the exact phrasings of the engine's typed errors and the
// tools' error messages. Checked case-insensitively in order; the first
// match wins, so specific causes come before the generic step-failure row.
var stopReasonAdvice = []struct {
	substring string
	advice    string
}{
	{"not found for step", "Check the tool catalog: the plan referenced a tool that is not registered."},
	{"missing required parameter", "The plan omitted a required parameter; consider rephrasing the request with more detail."},
	{"rate limit", "The model provider is rate limiting; wait before retrying or switch to a smaller model."},
	{"context length", "The request exceeded the model context window; split the task into smaller pieces."},
	{"timed out", "A step timed out; increase the shell timeout or simplify the command."},
	{"timeout", "A step timed out; increase the shell timeout or simplify the command."},
	{"downstream steps depend", "A failed step had dependents; fix its error so the rest of the plan can run."},
	{"failed in", "A step failure halted the run; inspect its error before rerunning."},
}

// rateFor matches a model name to its pricing row. Provider-versioned names
// like "gpt-4o-2024-08-06" match their base entry by prefix.
func rateFor(model string) modelRate {
	if r, ok := modelRates[model]; ok {
		return r
	}
	// Longest matching prefix so "gpt-4o-mini-..." never prices as "gpt-4o".
	best, bestLen := defaultRate, 0
	for name, r := range modelRates {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = r, len(name)
		}
	}
	return best
}

func cost(r modelRate, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*r.InputPerMTok/1e6 + float64(outputTokens)*r.OutputPerMTok/1e6
}

// Engine builds Reflections. It is stateless; the struct exists so callers
// can inject it as a collaborator.
type Engine struct{}

// NewEngine creates a ReflectionEngine.
func NewEngine() *Engine {
	return &Engine{}
}

// Reflect summarizes one execution attempt. The plan's own generation call is
// included in cost accounting when it carries model and token info.
func (e *Engine) Reflect(plan *models.Plan, execution models.ExecutionResult) *models.Reflection {
	succeeded := execution.SuccessCount()
	failed := execution.FailureCount()

	status := models.ReflectionSuccess
	switch {
	case succeeded == 0 && failed > 0:
		status = models.ReflectionFailed
	case failed > 0:
		status = models.ReflectionPartial
	}

	usage := aggregateUsage(plan, execution.Results)
	var totalUSD, totalEUR float64
	for _, u := range usage {
		totalUSD += u.CostUSD
		totalEUR += u.CostEUR
	}

	r := &models.Reflection{
		Status:          status,
		SuccessfulSteps: succeeded,
		FailedSteps:     failed,
		StoppedAtStep:   execution.StoppedAtStep,
		StopReason:      execution.StopReason,
		ModelUsage:      usage,
		TotalCostUSD:    totalUSD,
		TotalCostEUR:    totalEUR,
		Recommendations: recommendations(execution.StopReason, totalUSD),
	}
	r.Text = summaryText(r)
	return r
}

// aggregateUsage groups model calls by model name, in first-seen order with
// the planning call first.
func aggregateUsage(plan *models.Plan, results []models.StepResult) []models.ModelUsage {
	byModel := map[string]*models.ModelUsage{}
	var order []string

	add := func(model string, inputTokens, outputTokens int) {
		u, ok := byModel[model]
		if !ok {
			u = &models.ModelUsage{Model: model}
			byModel[model] = u
			order = append(order, model)
		}
		u.Calls++
		u.InputTokens += inputTokens
		u.OutputTokens += outputTokens
	}

	if plan != nil && plan.Model != "" && plan.TokenCount != nil {
		add(plan.Model, plan.TokenCount.Prompt, plan.TokenCount.Completion)
	}

	for _, result := range results {
		obj, ok := result.ResultObject()
		if !ok {
			continue
		}
		model, ok := obj["model"].(string)
		if !ok || model == "" {
			continue
		}
		add(model, intField(obj, "inputTokens"), intField(obj, "outputTokens"))
	}

	usage := make([]models.ModelUsage, 0, len(order))
	for _, model := range order {
		u := byModel[model]
		rate := rateFor(model)
		u.CostUSD = cost(rate, u.InputTokens, u.OutputTokens)
		u.CostEUR = u.CostUSD * usdToEUR
		usage = append(usage, *u)
	}
	return usage
}

// intField reads a numeric result field that may arrive as int or, after a
// JSON round trip, float64.
func intField(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func recommendations(stopReason string, totalUSD float64) []string {
	var recs []string
	lower := strings.ToLower(stopReason)
	if lower != "" {
		for _, entry := range stopReasonAdvice {
			if strings.Contains(lower, entry.substring) {
				recs = append(recs, entry.advice)
				break
			}
		}
	}
	if totalUSD > highCostThresholdUSD {
		recs = append(recs, fmt.Sprintf("High model cost for one request ($%.4f); consider a cheaper model or a narrower task.", totalUSD))
	}
	return recs
}

func summaryText(r *models.Reflection) string {
	var sb strings.Builder
	switch r.Status {
	case models.ReflectionSuccess:
		fmt.Fprintf(&sb, "All %d steps completed successfully.", r.SuccessfulSteps)
	case models.ReflectionPartial:
		fmt.Fprintf(&sb, "%d of %d steps succeeded.", r.SuccessfulSteps, r.SuccessfulSteps+r.FailedSteps)
	default:
		fmt.Fprintf(&sb, "All %d attempted steps failed.", r.FailedSteps)
	}
	if r.StoppedAtStep != "" {
		fmt.Fprintf(&sb, " Stopped at %q", r.StoppedAtStep)
		if r.StopReason != "" {
			fmt.Fprintf(&sb, ": %s", r.StopReason)
		} else {
			sb.WriteString(".")
		}
	}
	if len(r.ModelUsage) > 0 {
		names := make([]string, 0, len(r.ModelUsage))
		for _, u := range r.ModelUsage {
			names = append(names, u.Model)
		}
		sort.Strings(names)
		fmt.Fprintf(&sb, " Model cost $%.4f (€%.4f) across %s.", r.TotalCostUSD, r.TotalCostEUR, strings.Join(names, ", "))
	}
	return sb.String()
}
