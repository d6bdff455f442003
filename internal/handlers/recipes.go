package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"procrecipe/internal/engine"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

// recipePayload is the body of create and update requests. Absent fields are left
// untouched on update.
type recipePayload struct {
	Code                *string                `json:"code"`
	Name                *string                `json:"name"`
	Description         *string                `json:"description"`
	OperationType       *models.OperationType  `json:"operation_type"`
	Division            *string                `json:"division"`
	WorkCenter          *string                `json:"work_center"`
	ApplicableMaterials *[]string              `json:"applicable_materials"`
	ApplicableForms     *[]string              `json:"applicable_forms"`
	ThicknessMin        *float64               `json:"thickness_min"`
	ThicknessMax        *float64               `json:"thickness_max"`
	ToleranceClass      *models.ToleranceClass `json:"tolerance_class"`
	SetupMinutes        *float64               `json:"setup_minutes"`
	RunMinutesPerUnit   *float64               `json:"run_minutes_per_unit"`
	MinRunMinutes       *float64               `json:"min_run_minutes"`
	PricePerUnit        *decimal.Decimal       `json:"price_per_unit"`
	PriceUnit           *string                `json:"price_unit"`
	Notes               *string                `json:"notes"`
	CreatedBy           string                 `json:"created_by"`
}

func (p recipePayload) patch() recipes.Patch {
	patch := recipes.Patch{
		Code:                p.Code,
		Name:                p.Name,
		Description:         p.Description,
		OperationType:       p.OperationType,
		Division:            p.Division,
		WorkCenter:          p.WorkCenter,
		ApplicableMaterials: p.ApplicableMaterials,
		ApplicableForms:     p.ApplicableForms,
		ThicknessMin:        p.ThicknessMin,
		ThicknessMax:        p.ThicknessMax,
		ToleranceClass:      p.ToleranceClass,
		SetupMinutes:        p.SetupMinutes,
		RunMinutesPerUnit:   p.RunMinutesPerUnit,
		MinRunMinutes:       p.MinRunMinutes,
		PricePerUnit:        p.PricePerUnit,
		PriceUnit:           p.PriceUnit,
		Notes:               p.Notes,
	}
	if patch.OperationType != nil {
		if op, ok := models.ParseOperationType(string(*patch.OperationType)); ok {
			patch.OperationType = &op
		}
	}
	if patch.ToleranceClass != nil {
		if class, ok := models.ParseToleranceClass(string(*patch.ToleranceClass)); ok {
			patch.ToleranceClass = &class
		}
	}
	return patch
}

// draft builds a new recipe by applying the payload over an empty record.
func (p recipePayload) draft() models.Recipe {
	draft := models.Recipe{CreatedBy: strings.TrimSpace(p.CreatedBy)}
	p.patch().Apply(&draft)
	return draft
}

// ListRecipes serves GET /api/recipes with optional division, operation_type, status and
// search filters.
func ListRecipes(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	query := r.URL.Query()
	filter := recipes.Filter{
		Division: strings.TrimSpace(query.Get("division")),
		Search:   strings.TrimSpace(query.Get("search")),
	}
	if value := strings.TrimSpace(query.Get("operation_type")); value != "" {
		op, ok := models.ParseOperationType(value)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown operation_type")
			return
		}
		filter.OperationType = op
	}
	if value := strings.TrimSpace(query.Get("status")); value != "" {
		status, ok := models.ParseRecipeStatus(value)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter.Status = status
	}

	list, err := estimation.ListRecipes(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func GetRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	recipe, err := estimation.GetRecipe(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func CreateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload recipePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	recipe, err := estimation.CreateRecipe(r.Context(), payload.draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload recipePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	recipe, err := estimation.UpdateRecipe(r.Context(), r.PathValue("id"), payload.patch())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

// DeleteRecipe deprecates the recipe; nothing is physically removed.
func DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	result, err := estimation.DeleteRecipe(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func ActivateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	recipe, err := estimation.ActivateRecipe(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

type duplicateRequest struct {
	Code      string `json:"code"`
	CreatedBy string `json:"created_by"`
}

// DuplicateRecipe copies a recipe into a new draft. The body is optional.
func DuplicateRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload duplicateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &payload) {
		return
	}
	recipe, err := estimation.DuplicateRecipe(r.Context(), r.PathValue("id"), payload.Code, payload.CreatedBy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

type matchResponse struct {
	Recipe *models.Recipe `json:"recipe"`
	Score  int            `json:"score,omitempty"`
}

// MatchRecipe finds the best active recipe. A miss is a normal answer with a null recipe.
func MatchRecipe(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var step engine.OperationStep
	if !decodeJSON(w, r, &step) {
		return
	}
	if strings.TrimSpace(string(step.OperationType)) == "" {
		writeJSONError(w, http.StatusBadRequest, "operation_type is required")
		return
	}
	normalized := engine.Normalize(step, engine.RequestContext{})

	match, ok, err := estimation.FindMatchingRecipe(r.Context(), normalized.Match)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, matchResponse{})
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Recipe: &match.Recipe, Score: match.Score})
}
