package estimator

import (
	"fmt"
	"math"
	"sort"

	apperrors "procrecipe/internal/errors"
)

// RoutingStepInput is one sequenced step with its resolved recipe.
type RoutingStepInput struct {
	Seq int `json:"seq"`
	Input
}

// StepEstimate labels a step's estimate with the recipe it came from.
type StepEstimate struct {
	Seq        int    `json:"seq"`
	RecipeID   string `json:"recipe_id,omitempty"`
	RecipeCode string `json:"recipe_code,omitempty"`
	RecipeName string `json:"recipe_name,omitempty"`
	TimeEstimate
}

// Totals is the sum over a set of step estimates.
type Totals struct {
	TotalSetupMinutes float64 `json:"total_setup_minutes"`
	TotalRunMinutes   float64 `json:"total_run_minutes"`
	TotalMinutes      float64 `json:"total_minutes"`
	FormattedTotal    string  `json:"formatted_total"`
}

// RoutingEstimate is a routing broken down by step.
type RoutingEstimate struct {
	Steps []StepEstimate `json:"steps"`
	Totals
}

// EstimateRouting estimates every step and sums the results. Steps are reported in
// ascending seq order; equal seqs keep their input order.
func (e *Estimator) EstimateRouting(steps []RoutingStepInput) (RoutingEstimate, error) {
	ordered := append([]RoutingStepInput(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	out := RoutingEstimate{Steps: make([]StepEstimate, 0, len(ordered))}
	for _, step := range ordered {
		if step.Recipe == nil {
			return RoutingEstimate{}, apperrors.InvalidArgument(fmt.Sprintf("routing step %d has no recipe", step.Seq))
		}
		estimate, err := e.Estimate(step.Input)
		if err != nil {
			return RoutingEstimate{}, err
		}
		out.Steps = append(out.Steps, StepEstimate{
			Seq:          step.Seq,
			RecipeID:     step.Recipe.ID,
			RecipeCode:   step.Recipe.Code,
			RecipeName:   step.Recipe.Name,
			TimeEstimate: estimate,
		})
	}
	out.Totals = Summarize(out.Steps)
	return out, nil
}

// Summarize adds up step estimates. The total is always the sum of step totals.
func Summarize(steps []StepEstimate) Totals {
	var totals Totals
	for _, step := range steps {
		totals.TotalSetupMinutes += step.SetupMinutes
		totals.TotalRunMinutes += step.RunMinutes
		totals.TotalMinutes += step.TotalMinutes
	}
	totals.FormattedTotal = FormatMinutes(totals.TotalMinutes)
	return totals
}

// FormatMinutes renders a duration compactly: "45 min", "1h", "1h 30m". Fractions round
// to the nearest minute and negative values render as "0 min".
func FormatMinutes(minutes float64) string {
	if math.IsNaN(minutes) || minutes <= 0 {
		return "0 min"
	}
	m := int64(math.Round(minutes))
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	hours, rest := m/60, m%60
	if rest == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rest)
}
