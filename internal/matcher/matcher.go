// Package matcher selects the best-fit active recipe for a requested operation.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	applog "procrecipe/internal/log"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

var logger = applog.Component("matcher")

// Scoring weights. A confirmed thickness fit outranks an unknown thickness.
const (
	MaterialWeight       = 3
	FormWeight           = 2
	ThicknessWeight      = 2
	UnknownThicknessBias = 1
	MaxScore             = MaterialWeight + FormWeight + ThicknessWeight
)

// Request describes the operation to match.
type Request struct {
	OperationType models.OperationType `json:"operation_type"`
	Division      string               `json:"division"`
	MaterialGrade string               `json:"material_grade,omitempty"`
	Form          string               `json:"form,omitempty"`
	Thickness     *float64             `json:"thickness,omitempty"`
}

// Match is the selected recipe and the score that won.
type Match struct {
	Recipe models.Recipe `json:"recipe"`
	Score  int           `json:"score"`
}

// Lister is the part of the repository the matcher reads.
type Lister interface {
	List(ctx context.Context, filter recipes.Filter) ([]models.Recipe, error)
}

// Matcher scores candidates from a recipe source.
type Matcher struct {
	source Lister
}

func New(source Lister) *Matcher {
	return &Matcher{source: source}
}

// FindMatchingRecipe returns the highest scoring active recipe for the request's
// operation type and division. ok is false when no candidate exists; that is a normal
// outcome, and err is only set when the source fails.
func (m *Matcher) FindMatchingRecipe(ctx context.Context, req Request) (Match, bool, error) {
	candidates, err := m.source.List(ctx, recipes.Filter{
		Division:      req.Division,
		OperationType: req.OperationType,
		Status:        models.StatusActive,
	})
	if err != nil {
		return Match{}, false, fmt.Errorf("list candidates: %w", err)
	}

	match, ok := Best(candidates, req)
	if !ok {
		logger.Debug(ctx, "no recipe candidates", "operation_type", req.OperationType, "division", req.Division)
		return Match{}, false, nil
	}
	logger.Debug(ctx, "recipe matched",
		"code", match.Recipe.Code,
		"score", match.Score,
		"candidates", len(candidates),
	)
	return match, true, nil
}

// Best picks the top scoring candidate. Ties keep the earliest candidate in the given
// order, so callers pass the repository listing order. Inactive candidates and those for
// another operation or division are ignored.
func Best(candidates []models.Recipe, req Request) (Match, bool) {
	division := recipes.NormalizeDivision(req.Division)
	scored := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		if !candidate.IsActive() || candidate.OperationType != req.OperationType || candidate.Division != division {
			continue
		}
		scored = append(scored, Match{Recipe: candidate, Score: Score(candidate, req)})
	}
	if len(scored) == 0 {
		return Match{}, false
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	best := scored[0]
	best.Recipe = best.Recipe.Clone()
	return best, true
}

// Score rates how well a recipe's applicability fits the request. Empty applicability
// sets are wildcards.
func Score(recipe models.Recipe, req Request) int {
	score := 0
	if appliesTo(recipe.ApplicableMaterials, req.MaterialGrade) {
		score += MaterialWeight
	}
	if appliesTo(recipe.ApplicableForms, req.Form) {
		score += FormWeight
	}
	if req.Thickness == nil {
		score += UnknownThicknessBias
	} else if t := *req.Thickness; recipe.ThicknessMin <= t && t <= recipe.ThicknessMax {
		score += ThicknessWeight
	}
	return score
}

func appliesTo(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	value = strings.TrimSpace(value)
	for _, candidate := range set {
		if strings.EqualFold(candidate, value) {
			return true
		}
	}
	return false
}
