package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"procrecipe/internal/engine"
	apperrors "procrecipe/internal/errors"
	"procrecipe/internal/estimator"
	"procrecipe/models"
)

type recipeEstimateRequest struct {
	RecipeID       string                `json:"recipe_id"`
	UnitCount      float64               `json:"unit_count"`
	MaterialGrade  string                `json:"material_grade"`
	Thickness      *float64              `json:"thickness"`
	ToleranceClass models.ToleranceClass `json:"tolerance_class"`
}

func (req recipeEstimateRequest) input(recipe *models.Recipe) estimator.Input {
	return estimator.Input{
		Recipe:         recipe,
		UnitCount:      req.UnitCount,
		MaterialGrade:  req.MaterialGrade,
		Thickness:      req.Thickness,
		ToleranceClass: req.ToleranceClass,
	}
}

type routingEstimateStep struct {
	Seq int `json:"seq"`
	recipeEstimateRequest
}

type routingEstimateRequest struct {
	Steps []routingEstimateStep `json:"steps"`
}

type requestEstimateRequest struct {
	Steps   []engine.OperationStep `json:"steps"`
	Context engine.RequestContext  `json:"context"`
}

func (req recipeEstimateRequest) resolve(r *http.Request) (*models.Recipe, error) {
	id := strings.TrimSpace(req.RecipeID)
	if id == "" {
		return nil, apperrors.InvalidArgument("recipe_id is required")
	}
	recipe, err := estimation.GetRecipe(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// EstimateRecipe estimates one stored recipe. Any status is accepted; matching is not
// involved.
func EstimateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload recipeEstimateRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	recipe, err := payload.resolve(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	estimate, err := estimation.EstimateRecipeTime(payload.input(recipe))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

func EstimateRouting(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload routingEstimateRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	inputs := make([]estimator.RoutingStepInput, 0, len(payload.Steps))
	for i, step := range payload.Steps {
		recipe, err := step.resolve(r)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.ErrCodeInvalidArgument {
				err = apperrors.InvalidArgument(fmt.Sprintf("step %d: recipe_id is required", i+1))
			}
			writeError(w, r, err)
			return
		}
		inputs = append(inputs, estimator.RoutingStepInput{Seq: step.Seq, Input: step.input(recipe)})
	}

	estimate, err := estimation.EstimateRoutingTime(inputs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}

// EstimateRequest matches each requested operation against the active library and
// totals the result with a capacity risk.
func EstimateRequest(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload requestEstimateRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	for i, step := range payload.Steps {
		if strings.TrimSpace(string(step.OperationType)) == "" {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("step %d: operation_type is required", i+1))
			return
		}
	}

	estimate, err := estimation.EstimateForRequest(r.Context(), payload.Steps, payload.Context)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}
