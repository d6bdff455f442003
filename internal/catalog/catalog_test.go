package catalog

import (
	"context"
	"testing"

	"procrecipe/internal/recipes"
	"procrecipe/models"
)

func TestRecipesHaveUniqueCodes(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, recipe := range Recipes() {
		if seen[recipe.Code] {
			t.Fatalf("duplicate code %s", recipe.Code)
		}
		seen[recipe.Code] = true
	}
	for _, tpl := range Templates() {
		for _, code := range tpl.Codes {
			if !seen[code] {
				t.Fatalf("template %s references unknown code %s", tpl.Name, code)
			}
		}
	}
}

func TestSeedActivatesLibrary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := recipes.NewMemoryRepository()
	if err := Seed(ctx, repo, "seed"); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	active, err := repo.List(ctx, recipes.Filter{Status: models.StatusActive})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != len(Recipes()) {
		t.Fatalf("expected %d active recipes, got %d", len(Recipes()), len(active))
	}

	saw, err := repo.List(ctx, recipes.Filter{Search: "SAW-STD"})
	if err != nil || len(saw) != 1 {
		t.Fatalf("expected SAW-STD, got %v (err %v)", saw, err)
	}
	if saw[0].SetupMinutes != 8 || saw[0].RunMinutesPerUnit != 5 || saw[0].MinRunMinutes != 3 {
		t.Fatalf("unexpected SAW-STD standard %+v", saw[0])
	}
	if saw[0].CreatedBy != "seed" {
		t.Fatalf("CreatedBy = %q", saw[0].CreatedBy)
	}

	templates, err := repo.ListRoutingTemplates(ctx, recipes.TemplateFilter{Division: "METALS"})
	if err != nil {
		t.Fatalf("ListRoutingTemplates() error = %v", err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 metals templates, got %d", len(templates))
	}
	bracket := templates[0]
	if bracket.Name != "Bracket fabrication" || len(bracket.Steps) != 5 {
		t.Fatalf("unexpected first template %+v", bracket)
	}
	if bracket.Steps[0].Seq != 10 || bracket.Steps[0].Recipe == nil || bracket.Steps[0].Recipe.Code != "SAW-STD" {
		t.Fatalf("unexpected first step %+v", bracket.Steps[0])
	}
}

func TestSeedTwiceFailsOnDuplicateCodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := recipes.NewMemoryRepository()
	if err := Seed(ctx, repo, ""); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if err := Seed(ctx, repo, ""); err == nil {
		t.Fatal("expected second seed to fail")
	}
}
