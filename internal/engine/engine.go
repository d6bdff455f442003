// Package engine is the single entry point for recipe management and time estimation.
// It adapts loosely filled requests into matcher and estimator calls, falls back to a
// flat per-unit rate when no recipe matches, and classifies the capacity risk of the total.
package engine

import (
	"context"
	"math"

	"procrecipe/internal/estimator"
	applog "procrecipe/internal/log"
	"procrecipe/internal/matcher"
	"procrecipe/internal/modifiers"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

// DefaultFallbackMinutes is the per-unit rate for steps without a matching recipe.
const DefaultFallbackMinutes = 15.0

var logger = applog.Component("engine")

// CapacityRisk is a coarse classification of total processing time.
type CapacityRisk string

const (
	RiskLow    CapacityRisk = "LOW"
	RiskMedium CapacityRisk = "MEDIUM"
	RiskHigh   CapacityRisk = "HIGH"
)

// ClassifyCapacityRisk buckets a total by hours. Both thresholds are strict, so exactly
// four hours is LOW and exactly eight hours is MEDIUM.
func ClassifyCapacityRisk(totalMinutes float64) CapacityRisk {
	hours := totalMinutes / 60
	switch {
	case hours > 8:
		return RiskHigh
	case hours > 4:
		return RiskMedium
	default:
		return RiskLow
	}
}

// StepResult is one step of a request estimate.
type StepResult struct {
	estimator.StepEstimate
	OperationType models.OperationType `json:"operation_type"`
	Description   string               `json:"description,omitempty"`
	UsingRecipe   bool                 `json:"using_recipe"`
	MatchScore    int                  `json:"match_score,omitempty"`
	UnitSource    UnitSource           `json:"unit_source"`
}

// RequestEstimate aggregates a request or template estimate.
type RequestEstimate struct {
	Steps []StepResult `json:"steps"`
	estimator.Totals
	TotalHours   float64      `json:"total_hours"`
	CapacityRisk CapacityRisk `json:"capacity_risk"`
}

// DeleteResult reports the outcome of DeleteRecipe.
type DeleteResult struct {
	Success bool `json:"success"`
}

// Engine wires the repository, matcher and estimator together.
type Engine struct {
	repo            recipes.Repository
	matcher         *matcher.Matcher
	estimator       *estimator.Estimator
	fallbackMinutes float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTables replaces the built-in modifier tables.
func WithTables(tables *modifiers.Tables) Option {
	return func(e *Engine) {
		e.estimator = estimator.New(tables)
	}
}

// WithFallbackMinutes sets the per-unit rate used when nothing matches. Non-positive
// values keep the default.
func WithFallbackMinutes(minutes float64) Option {
	return func(e *Engine) {
		if minutes > 0 {
			e.fallbackMinutes = minutes
		}
	}
}

func New(repo recipes.Repository, opts ...Option) *Engine {
	e := &Engine{
		repo:            repo,
		matcher:         matcher.New(repo),
		estimator:       estimator.New(nil),
		fallbackMinutes: DefaultFallbackMinutes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tables returns the modifier tables the engine estimates with.
func (e *Engine) Tables() *modifiers.Tables {
	return e.estimator.Tables()
}

// FallbackMinutes returns the per-unit fallback rate.
func (e *Engine) FallbackMinutes() float64 {
	return e.fallbackMinutes
}

func (e *Engine) ListRecipes(ctx context.Context, filter recipes.Filter) ([]models.Recipe, error) {
	return e.repo.List(ctx, filter)
}

func (e *Engine) GetRecipe(ctx context.Context, id string) (models.Recipe, error) {
	return e.repo.Get(ctx, id)
}

func (e *Engine) CreateRecipe(ctx context.Context, draft models.Recipe) (models.Recipe, error) {
	return e.repo.Create(ctx, draft)
}

func (e *Engine) UpdateRecipe(ctx context.Context, id string, patch recipes.Patch) (models.Recipe, error) {
	return e.repo.Update(ctx, id, patch)
}

// DeleteRecipe retires a recipe. Recipes are never removed; deletion deprecates so
// history and routing references survive.
func (e *Engine) DeleteRecipe(ctx context.Context, id string) (DeleteResult, error) {
	if _, err := e.repo.Deprecate(ctx, id); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Success: true}, nil
}

func (e *Engine) ActivateRecipe(ctx context.Context, id string) (models.Recipe, error) {
	return e.repo.Activate(ctx, id)
}

func (e *Engine) DuplicateRecipe(ctx context.Context, id, code, createdBy string) (models.Recipe, error) {
	return e.repo.Duplicate(ctx, id, code, createdBy)
}

func (e *Engine) ListRoutingTemplates(ctx context.Context, division string) ([]models.RoutingTemplate, error) {
	return e.repo.ListRoutingTemplates(ctx, recipes.TemplateFilter{Division: division})
}

func (e *Engine) GetRoutingTemplate(ctx context.Context, id string) (models.RoutingTemplate, error) {
	return e.repo.GetRoutingTemplate(ctx, id)
}

func (e *Engine) CreateRoutingTemplate(ctx context.Context, template models.RoutingTemplate) (models.RoutingTemplate, error) {
	return e.repo.CreateRoutingTemplate(ctx, template)
}

func (e *Engine) EstimateRecipeTime(in estimator.Input) (estimator.TimeEstimate, error) {
	return e.estimator.Estimate(in)
}

func (e *Engine) EstimateRoutingTime(steps []estimator.RoutingStepInput) (estimator.RoutingEstimate, error) {
	return e.estimator.EstimateRouting(steps)
}

// FindMatchingRecipe returns the best active recipe for req; ok is false on no match.
// The operation type is accepted in any spelling ParseOperationType understands.
func (e *Engine) FindMatchingRecipe(ctx context.Context, req matcher.Request) (matcher.Match, bool, error) {
	if parsed, ok := models.ParseOperationType(string(req.OperationType)); ok {
		req.OperationType = parsed
	}
	match, ok, err := e.matcher.FindMatchingRecipe(ctx, req)
	if err != nil {
		return matcher.Match{}, false, err
	}
	if ok {
		matchRequests.WithLabelValues("hit").Inc()
	} else {
		matchRequests.WithLabelValues("miss").Inc()
	}
	return match, ok, nil
}

// EstimateForRequest matches and estimates each step, then totals the request. Steps
// without a seq are numbered by position.
func (e *Engine) EstimateForRequest(ctx context.Context, steps []OperationStep, rc RequestContext) (RequestEstimate, error) {
	results := make([]StepResult, 0, len(steps))
	for i, step := range steps {
		normalized := Normalize(step, rc)
		if normalized.Seq <= 0 {
			normalized.Seq = i + 1
		}

		result, err := e.estimateStep(ctx, normalized)
		if err != nil {
			return RequestEstimate{}, err
		}
		results = append(results, result)
	}
	return e.aggregate(ctx, results), nil
}

func (e *Engine) estimateStep(ctx context.Context, step NormalizedStep) (StepResult, error) {
	result := StepResult{
		OperationType: step.Match.OperationType,
		Description:   step.Description,
		UnitSource:    step.UnitSource,
	}

	match, ok, err := e.FindMatchingRecipe(ctx, step.Match)
	if err != nil {
		return StepResult{}, err
	}
	if !ok {
		result.StepEstimate = e.fallback(step)
		fallbackSteps.Inc()
		logger.Debug(ctx, "step estimated with fallback",
			"seq", step.Seq,
			"operation_type", step.Match.OperationType,
			"division", step.Match.Division,
			"minutes", result.TotalMinutes,
		)
		return result, nil
	}

	estimate, err := e.estimator.Estimate(estimator.Input{
		Recipe:         &match.Recipe,
		UnitCount:      step.UnitCount,
		MaterialGrade:  step.Match.MaterialGrade,
		Thickness:      step.Match.Thickness,
		ToleranceClass: step.ToleranceClass,
	})
	if err != nil {
		return StepResult{}, err
	}
	result.StepEstimate = estimator.StepEstimate{
		Seq:          step.Seq,
		RecipeID:     match.Recipe.ID,
		RecipeCode:   match.Recipe.Code,
		RecipeName:   match.Recipe.Name,
		TimeEstimate: estimate,
	}
	result.UsingRecipe = true
	result.MatchScore = match.Score
	return result, nil
}

// fallback prices a step at a flat per-unit rate with no setup.
func (e *Engine) fallback(step NormalizedStep) estimator.StepEstimate {
	perUnit := step.FallbackMinutes
	if perUnit <= 0 {
		perUnit = e.fallbackMinutes
	}
	units := estimator.NormalizeUnitCount(step.UnitCount)
	raw := perUnit * units
	run := math.Round(raw)
	return estimator.StepEstimate{
		Seq: step.Seq,
		TimeEstimate: estimator.TimeEstimate{
			UnitCount:     units,
			RunMinutesRaw: raw,
			RunMinutes:    run,
			TotalMinutes:  run,
			Factors: estimator.Factors{
				Material:       1,
				Thickness:      1,
				Tolerance:      1,
				ToleranceClass: models.ToleranceStandard,
			},
		},
	}
}

// EstimateRoutingTemplate estimates a stored template against live recipe data and the
// caller's order parameters. Every step uses its referenced recipe whatever its status.
func (e *Engine) EstimateRoutingTemplate(ctx context.Context, id string, rc RequestContext) (RequestEstimate, error) {
	template, err := e.repo.GetRoutingTemplate(ctx, id)
	if err != nil {
		return RequestEstimate{}, err
	}

	units, source := unitCount(OperationStep{}, rc)
	inputs := make([]estimator.RoutingStepInput, 0, len(template.Steps))
	for _, step := range template.Steps {
		inputs = append(inputs, estimator.RoutingStepInput{
			Seq: step.Seq,
			Input: estimator.Input{
				Recipe:         step.Recipe,
				UnitCount:      units,
				MaterialGrade:  rc.MaterialGrade,
				Thickness:      rc.Thickness,
				ToleranceClass: rc.ToleranceClass,
			},
		})
	}

	routing, err := e.estimator.EstimateRouting(inputs)
	if err != nil {
		return RequestEstimate{}, err
	}

	byID := make(map[string]models.OperationType, len(template.Steps))
	notes := make(map[int]string, len(template.Steps))
	for _, step := range template.Steps {
		if step.Recipe != nil {
			byID[step.Recipe.ID] = step.Recipe.OperationType
		}
		notes[step.Seq] = step.Notes
	}

	results := make([]StepResult, 0, len(routing.Steps))
	for _, step := range routing.Steps {
		results = append(results, StepResult{
			StepEstimate:  step,
			OperationType: byID[step.RecipeID],
			Description:   notes[step.Seq],
			UsingRecipe:   true,
			UnitSource:    source,
		})
	}
	return e.aggregate(ctx, results), nil
}

func (e *Engine) aggregate(ctx context.Context, results []StepResult) RequestEstimate {
	steps := make([]estimator.StepEstimate, len(results))
	for i, result := range results {
		steps[i] = result.StepEstimate
	}
	totals := estimator.Summarize(steps)
	risk := ClassifyCapacityRisk(totals.TotalMinutes)

	estimatesByRisk.WithLabelValues(string(risk)).Inc()
	estimatedMinutes.Observe(totals.TotalMinutes)
	logger.Debug(ctx, "estimate aggregated",
		"steps", len(results),
		"total_minutes", totals.TotalMinutes,
		"capacity_risk", risk,
	)

	return RequestEstimate{
		Steps:        results,
		Totals:       totals,
		TotalHours:   totals.TotalMinutes / 60,
		CapacityRisk: risk,
	}
}
