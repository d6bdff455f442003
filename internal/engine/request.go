package engine

import (
	"strings"

	"procrecipe/internal/estimator"
	"procrecipe/internal/matcher"
	"procrecipe/models"
)

// OperationStep is one requested operation as callers send it. Everything except the
// operation type may be omitted.
type OperationStep struct {
	Seq            int                   `json:"seq,omitempty"`
	OperationType  models.OperationType  `json:"operation_type"`
	Description    string                `json:"description,omitempty"`
	Division       string                `json:"division,omitempty"`
	MaterialGrade  string                `json:"material_grade,omitempty"`
	Form           string                `json:"form,omitempty"`
	Thickness      *float64              `json:"thickness,omitempty"`
	ToleranceClass models.ToleranceClass `json:"tolerance_class,omitempty"`

	Quantity     float64 `json:"quantity,omitempty"`
	HoleCount    float64 `json:"hole_count,omitempty"`
	BendCount    float64 `json:"bend_count,omitempty"`
	LinearInches float64 `json:"linear_inches,omitempty"`
	SquareFeet   float64 `json:"square_feet,omitempty"`

	// EstimatedMinutes is the caller's per-unit guess used when no recipe matches.
	EstimatedMinutes float64 `json:"estimated_minutes,omitempty"`
}

// RequestContext holds the order-level defaults shared by every step.
type RequestContext struct {
	Division       string                `json:"division,omitempty"`
	MaterialGrade  string                `json:"material_grade,omitempty"`
	Form           string                `json:"form,omitempty"`
	Thickness      *float64              `json:"thickness,omitempty"`
	ToleranceClass models.ToleranceClass `json:"tolerance_class,omitempty"`
	Quantity       float64               `json:"quantity,omitempty"`
}

// UnitSource names the step field a unit count was taken from.
type UnitSource string

const (
	UnitsQuantity      UnitSource = "quantity"
	UnitsHoles         UnitSource = "holes"
	UnitsBends         UnitSource = "bends"
	UnitsLinearFeet    UnitSource = "linear_feet"
	UnitsSquareFeet    UnitSource = "square_feet"
	UnitsOrderQuantity UnitSource = "order_quantity"
	UnitsDefault       UnitSource = "default"
)

// NormalizedStep is a step with every default applied.
type NormalizedStep struct {
	Seq            int
	Description    string
	Match          matcher.Request
	ToleranceClass models.ToleranceClass
	UnitCount      float64
	UnitSource     UnitSource
	// FallbackMinutes is the caller's per-unit guess, zero when absent.
	FallbackMinutes float64
}

// Normalize applies the default policy to a step: order-level values fill anything the
// step leaves blank, and the unit count comes from the first positive of quantity, hole
// count, bend count, linear feet, square feet and order quantity, else one.
func Normalize(step OperationStep, rc RequestContext) NormalizedStep {
	thickness := step.Thickness
	if _, ok := estimator.NormalizeThickness(thickness); !ok {
		thickness = rc.Thickness
	}
	if _, ok := estimator.NormalizeThickness(thickness); !ok {
		thickness = nil
	}

	units, source := unitCount(step, rc)
	fallback := 0.0
	if step.EstimatedMinutes > 0 {
		fallback = step.EstimatedMinutes
	}

	operation := step.OperationType
	if parsed, ok := models.ParseOperationType(string(operation)); ok {
		operation = parsed
	}

	return NormalizedStep{
		Seq:         step.Seq,
		Description: strings.TrimSpace(step.Description),
		Match: matcher.Request{
			OperationType: operation,
			Division:      firstNonEmpty(step.Division, rc.Division),
			MaterialGrade: firstNonEmpty(step.MaterialGrade, rc.MaterialGrade),
			Form:          firstNonEmpty(step.Form, rc.Form),
			Thickness:     thickness,
		},
		ToleranceClass:  models.ToleranceClass(firstNonEmpty(string(step.ToleranceClass), string(rc.ToleranceClass))),
		UnitCount:       units,
		UnitSource:      source,
		FallbackMinutes: fallback,
	}
}

func unitCount(step OperationStep, rc RequestContext) (float64, UnitSource) {
	candidates := []struct {
		value  float64
		source UnitSource
	}{
		{step.Quantity, UnitsQuantity},
		{step.HoleCount, UnitsHoles},
		{step.BendCount, UnitsBends},
		{step.LinearInches / 12, UnitsLinearFeet},
		{step.SquareFeet, UnitsSquareFeet},
		{rc.Quantity, UnitsOrderQuantity},
	}
	for _, candidate := range candidates {
		if candidate.value > 0 {
			return candidate.value, candidate.source
		}
	}
	return 1, UnitsDefault
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
