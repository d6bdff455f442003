// Package recipes owns the recipe library and the routing templates built on it. All
// reads return deep copies; callers never hold references into a store.
package recipes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"gorm.io/datatypes"

	apperrors "procrecipe/internal/errors"
	applog "procrecipe/internal/log"
	"procrecipe/models"
)

var logger = applog.Component("recipes")

// Repository is the system of record for recipes and routing templates.
type Repository interface {
	Create(ctx context.Context, draft models.Recipe) (models.Recipe, error)
	Get(ctx context.Context, id string) (models.Recipe, error)
	Update(ctx context.Context, id string, patch Patch) (models.Recipe, error)
	Activate(ctx context.Context, id string) (models.Recipe, error)
	Deprecate(ctx context.Context, id string) (models.Recipe, error)
	Duplicate(ctx context.Context, id, code, createdBy string) (models.Recipe, error)
	List(ctx context.Context, filter Filter) ([]models.Recipe, error)

	CreateRoutingTemplate(ctx context.Context, template models.RoutingTemplate) (models.RoutingTemplate, error)
	GetRoutingTemplate(ctx context.Context, id string) (models.RoutingTemplate, error)
	ListRoutingTemplates(ctx context.Context, filter TemplateFilter) ([]models.RoutingTemplate, error)
}

// Transactor runs a unit of work whose writes commit together or not at all. fn must use
// the repository it is handed, never the receiver.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repo Repository) error) error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Division      string
	OperationType models.OperationType
	Status        models.RecipeStatus
	// Search matches case-insensitively against code, name and description.
	Search string
}

// TemplateFilter narrows ListRoutingTemplates.
type TemplateFilter struct {
	Division string
}

// Patch carries the fields an update changes. Nil fields are left untouched. Status is
// absent: lifecycle moves go through Activate and Deprecate.
type Patch struct {
	Code                *string
	Name                *string
	Description         *string
	OperationType       *models.OperationType
	Division            *string
	WorkCenter          *string
	ApplicableMaterials *[]string
	ApplicableForms     *[]string
	ThicknessMin        *float64
	ThicknessMax        *float64
	ToleranceClass      *models.ToleranceClass
	SetupMinutes        *float64
	RunMinutesPerUnit   *float64
	MinRunMinutes       *float64
	PricePerUnit        *decimal.Decimal
	PriceUnit           *string
	Notes               *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply copies every set field of the patch onto r.
func (p Patch) Apply(r *models.Recipe) {
	if p.Code != nil {
		r.Code = *p.Code
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.OperationType != nil {
		r.OperationType = *p.OperationType
	}
	if p.Division != nil {
		r.Division = *p.Division
	}
	if p.WorkCenter != nil {
		r.WorkCenter = *p.WorkCenter
	}
	if p.ApplicableMaterials != nil {
		r.ApplicableMaterials = datatypes.JSONSlice[string](append([]string{}, (*p.ApplicableMaterials)...))
	}
	if p.ApplicableForms != nil {
		r.ApplicableForms = datatypes.JSONSlice[string](append([]string{}, (*p.ApplicableForms)...))
	}
	if p.ThicknessMin != nil {
		r.ThicknessMin = *p.ThicknessMin
	}
	if p.ThicknessMax != nil {
		r.ThicknessMax = *p.ThicknessMax
	}
	if p.ToleranceClass != nil {
		r.ToleranceClass = *p.ToleranceClass
	}
	if p.SetupMinutes != nil {
		r.SetupMinutes = *p.SetupMinutes
	}
	if p.RunMinutesPerUnit != nil {
		r.RunMinutesPerUnit = *p.RunMinutesPerUnit
	}
	if p.MinRunMinutes != nil {
		r.MinRunMinutes = *p.MinRunMinutes
	}
	if p.PricePerUnit != nil {
		r.PricePerUnit = *p.PricePerUnit
	}
	if p.PriceUnit != nil {
		r.PriceUnit = *p.PriceUnit
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
}

// normalizeRecipe trims identifiers and upper-cases the vocabulary fields so lookups
// by division, grade and form are insensitive to caller formatting.
func normalizeRecipe(r *models.Recipe) {
	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	r.Division = NormalizeDivision(r.Division)
	r.WorkCenter = strings.TrimSpace(r.WorkCenter)
	if op, ok := models.ParseOperationType(string(r.OperationType)); ok {
		r.OperationType = op
	}
	if strings.TrimSpace(string(r.ToleranceClass)) == "" {
		r.ToleranceClass = models.ToleranceStandard
	} else if class, ok := models.ParseToleranceClass(string(r.ToleranceClass)); ok {
		r.ToleranceClass = class
	}
	r.ApplicableMaterials = normalizeSet(r.ApplicableMaterials)
	r.ApplicableForms = normalizeSet(r.ApplicableForms)
}

// NormalizeDivision is the canonical division spelling used for storage and filtering.
func NormalizeDivision(division string) string {
	return strings.ToUpper(strings.TrimSpace(division))
}

func normalizeSet(values datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToUpper(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func validateRecipe(r models.Recipe) error {
	missing := make([]string, 0, 4)
	if r.Code == "" {
		missing = append(missing, "code")
	}
	if r.Name == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(string(r.OperationType)) == "" {
		missing = append(missing, "operation_type")
	}
	if r.Division == "" {
		missing = append(missing, "division")
	}
	if len(missing) > 0 {
		return apperrors.Validation("missing required fields: "+strings.Join(missing, ", "),
			map[string]any{"fields": missing})
	}
	if !r.OperationType.IsValid() {
		return apperrors.Validation("unknown operation type "+string(r.OperationType),
			map[string]any{"operation_type": r.OperationType})
	}
	if !r.ToleranceClass.IsValid() {
		return apperrors.Validation("unknown tolerance class "+string(r.ToleranceClass),
			map[string]any{"tolerance_class": r.ToleranceClass})
	}
	if r.ThicknessMin < 0 || r.ThicknessMax < r.ThicknessMin {
		return apperrors.Validation("thickness range must satisfy 0 <= min <= max",
			map[string]any{"thickness_min": r.ThicknessMin, "thickness_max": r.ThicknessMax})
	}
	if r.SetupMinutes < 0 || r.RunMinutesPerUnit < 0 || r.MinRunMinutes < 0 {
		return apperrors.Validation("time standards must not be negative", map[string]any{"code": r.Code})
	}
	if r.PricePerUnit.IsNegative() {
		return apperrors.Validation("price must not be negative", map[string]any{"code": r.Code})
	}
	return nil
}

func duplicateCode(code string) error {
	return apperrors.Validation("recipe code "+code+" already exists", map[string]any{"code": code})
}

// prepareDraft turns caller input into a storable DRAFT at version 1.
func prepareDraft(draft models.Recipe, id string, now time.Time) (models.Recipe, error) {
	recipe := draft.Clone()
	normalizeRecipe(&recipe)
	if err := validateRecipe(recipe); err != nil {
		return models.Recipe{}, err
	}
	recipe.ID = id
	recipe.Status = models.StatusDraft
	recipe.Version = 1
	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	return recipe, nil
}

// patched applies a patch to a copy of current, bumping the version. current is untouched.
func patched(current models.Recipe, patch Patch, now time.Time) (models.Recipe, error) {
	next := current.Clone()
	patch.Apply(&next)
	normalizeRecipe(&next)
	if err := validateRecipe(next); err != nil {
		return models.Recipe{}, err
	}
	next.ID = current.ID
	next.Status = current.Status
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = now
	return next, nil
}

// activation resolves the target of Activate. changed is false for the idempotent case.
func activation(r models.Recipe) (changed bool, err error) {
	switch r.Status {
	case models.StatusActive:
		return false, nil
	case models.StatusDeprecated:
		return false, apperrors.InvalidTransition(r.ID, string(r.Status), string(models.StatusActive))
	default:
		return true, nil
	}
}

func duplicateOf(source models.Recipe, code, createdBy, id string, now time.Time) (models.Recipe, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = source.Code + "-COPY"
	}
	dup := source.Clone()
	dup.Code = code
	if strings.TrimSpace(createdBy) != "" {
		dup.CreatedBy = strings.TrimSpace(createdBy)
	}
	parent := source.ID
	dup.DuplicatedFromID = &parent
	return prepareDraft(dup, id, now)
}

func matchesFilter(r models.Recipe, filter Filter, search string) bool {
	if filter.Division != "" && r.Division != NormalizeDivision(filter.Division) {
		return false
	}
	if filter.OperationType != "" && r.OperationType != filter.OperationType {
		return false
	}
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	if search == "" {
		return true
	}
	folder := cases.Fold()
	for _, field := range []string{r.Code, r.Name, r.Description} {
		if strings.Contains(folder.String(field), search) {
			return true
		}
	}
	return false
}

func foldSearch(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	return cases.Fold().String(search)
}

// sortRecipes fixes the listing order: ascending code, then id.
func sortRecipes(list []models.Recipe) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Code != list[j].Code {
			return list[i].Code < list[j].Code
		}
		return list[i].ID < list[j].ID
	})
}

func normalizeTemplate(t *models.RoutingTemplate) {
	t.Name = strings.TrimSpace(t.Name)
	t.Division = NormalizeDivision(t.Division)
	t.Description = strings.TrimSpace(t.Description)
}

// validateTemplate checks the template header and step sequencing. Recipe references
// are checked by each store against its own records.
func validateTemplate(t models.RoutingTemplate) error {
	if t.Name == "" || t.Division == "" {
		return apperrors.Validation("routing template requires name and division",
			map[string]any{"name": t.Name, "division": t.Division})
	}
	if len(t.Steps) == 0 {
		return apperrors.Validation("routing template requires at least one step", map[string]any{"name": t.Name})
	}
	prev := 0
	for _, step := range t.Steps {
		if step.Seq < 1 {
			return apperrors.Validation("step seq must be 1 or greater", map[string]any{"seq": step.Seq})
		}
		if step.Seq <= prev {
			return apperrors.Validation("step seq must be unique and ascending",
				map[string]any{"seq": step.Seq, "previous": prev})
		}
		if strings.TrimSpace(step.RecipeID) == "" {
			return apperrors.Validation("step requires a recipe id", map[string]any{"seq": step.Seq})
		}
		prev = step.Seq
	}
	return nil
}

func sortTemplates(list []models.RoutingTemplate) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}
