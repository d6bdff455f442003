// Package estimator turns a recipe and job parameters into setup and run minutes, and
// sums per-step estimates into routing totals.
package estimator

import (
	"math"

	apperrors "procrecipe/internal/errors"
	"procrecipe/internal/modifiers"
	"procrecipe/models"
)

// Input is one recipe applied to one job. Zero values are defaulted, never rejected.
type Input struct {
	Recipe         *models.Recipe        `json:"-"`
	UnitCount      float64               `json:"unit_count"`
	MaterialGrade  string                `json:"material_grade,omitempty"`
	Thickness      *float64              `json:"thickness,omitempty"`
	ToleranceClass models.ToleranceClass `json:"tolerance_class,omitempty"`
}

// Factors are the multipliers behind an estimate, returned so the number can be explained.
type Factors struct {
	Material       float64               `json:"material"`
	Thickness      float64               `json:"thickness"`
	ThicknessBand  string                `json:"thickness_band,omitempty"`
	Tolerance      float64               `json:"tolerance"`
	ToleranceClass models.ToleranceClass `json:"tolerance_class"`
}

// TimeEstimate is the result for a single recipe.
type TimeEstimate struct {
	UnitCount     float64 `json:"unit_count"`
	SetupMinutes  float64 `json:"setup_minutes"`
	RunMinutesRaw float64 `json:"run_minutes_raw"`
	RunMinutes    float64 `json:"run_minutes"`
	TotalMinutes  float64 `json:"total_minutes"`
	Factors       Factors `json:"factors"`
}

// Estimator applies modifier tables to recipe time standards. It holds no mutable state.
type Estimator struct {
	tables *modifiers.Tables
}

// New returns an estimator over tables, or over the built-in tables when tables is nil.
func New(tables *modifiers.Tables) *Estimator {
	if tables == nil {
		tables = modifiers.Default()
	}
	return &Estimator{tables: tables}
}

// Tables exposes the modifier tables in use.
func (e *Estimator) Tables() *modifiers.Tables {
	return e.tables
}

// Estimate computes setup, run and total minutes for in.Recipe. Only a missing recipe
// is an error.
func (e *Estimator) Estimate(in Input) (TimeEstimate, error) {
	if in.Recipe == nil {
		return TimeEstimate{}, apperrors.InvalidArgument("estimate requires a recipe")
	}
	recipe := in.Recipe

	units := NormalizeUnitCount(in.UnitCount)
	factors := Factors{
		Material:  e.tables.MaterialFactor(in.MaterialGrade),
		Thickness: 1.0,
	}
	if thickness, ok := NormalizeThickness(in.Thickness); ok {
		if band, found := e.tables.ThicknessBand(thickness); found {
			factors.Thickness = band.Factor
			factors.ThicknessBand = band.Label
		}
	}
	factors.ToleranceClass, factors.Tolerance = e.tolerance(in.ToleranceClass, recipe.ToleranceClass)

	setup := math.Round(recipe.SetupMinutes * factors.Material)
	raw := recipe.RunMinutesPerUnit * units * factors.Material * factors.Thickness * factors.Tolerance
	run := math.Max(math.Round(raw), recipe.MinRunMinutes)

	return TimeEstimate{
		UnitCount:     units,
		SetupMinutes:  setup,
		RunMinutesRaw: raw,
		RunMinutes:    run,
		TotalMinutes:  setup + run,
		Factors:       factors,
	}, nil
}

// tolerance resolves the caller's class, then the recipe's, then STANDARD.
func (e *Estimator) tolerance(requested, recipeDefault models.ToleranceClass) (models.ToleranceClass, float64) {
	for _, candidate := range []models.ToleranceClass{requested, recipeDefault} {
		class, ok := models.ParseToleranceClass(string(candidate))
		if !ok {
			continue
		}
		if factor, found := e.tables.ToleranceFactor(class); found {
			return class, factor
		}
	}
	return models.ToleranceStandard, e.tables.StandardToleranceFactor()
}

// NormalizeUnitCount treats missing, non-positive and non-finite counts as one unit.
func NormalizeUnitCount(units float64) float64 {
	if units <= 0 || math.IsNaN(units) || math.IsInf(units, 0) {
		return 1
	}
	return units
}

// NormalizeThickness drops absent, negative and non-finite thickness values.
func NormalizeThickness(thickness *float64) (float64, bool) {
	if thickness == nil {
		return 0, false
	}
	t := *thickness
	if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, false
	}
	return t, true
}
