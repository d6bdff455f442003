package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"procrecipe/internal/engine"
	"procrecipe/internal/estimator"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(context.Background(), append([]string{"estimate"}, args...))
	return out.String(), err
}

func TestMatchCommand(t *testing.T) {
	out, err := runApp(t, "match", "--operation", "cut", "--division", "METALS", "--material", "A36")
	if err != nil {
		t.Fatalf("match error = %v", err)
	}

	var got matchResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Recipe == nil || got.Recipe.Code != "SAW-STD" || got.Score != 6 {
		t.Fatalf("unexpected match: %+v", got)
	}
}

func TestMatchCommandMiss(t *testing.T) {
	out, err := runApp(t, "match", "--operation", "HEAT_TREAT", "--division", "PLASTICS")
	if err != nil {
		t.Fatalf("match error = %v", err)
	}
	if strings.TrimSpace(out) != `{
  "recipe": null
}` {
		t.Fatalf("expected null recipe, got %q", out)
	}
}

func TestMatchCommandRejectsUnknownOperation(t *testing.T) {
	if _, err := runApp(t, "match", "--operation", "weld", "--division", "METALS"); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestRecipeCommand(t *testing.T) {
	out, err := runApp(t, "recipe", "--code", "saw-std", "--units", "4", "--material", "A36")
	if err != nil {
		t.Fatalf("recipe error = %v", err)
	}

	var got estimator.StepEstimate
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.RecipeCode != "SAW-STD" || got.TotalMinutes != 28 {
		t.Fatalf("unexpected estimate: %+v", got)
	}

	if _, err := runApp(t, "recipe", "--code", "NOPE"); err == nil {
		t.Fatal("expected error for unknown code")
	}
}

func TestRecipeCommandYAML(t *testing.T) {
	out, err := runApp(t, "--format", "yaml", "recipe", "--code", "SAW-STD", "--units", "4", "--material", "A36")
	if err != nil {
		t.Fatalf("recipe error = %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if got["recipe_code"] != "SAW-STD" {
		t.Fatalf("expected json field names in yaml, got %v", got)
	}
	if total, ok := got["total_minutes"].(int); !ok || total != 28 {
		t.Fatalf("expected total_minutes 28, got %#v", got["total_minutes"])
	}
}

func TestRoutingCommandByName(t *testing.T) {
	out, err := runApp(t, "routing", "--template", "bracket fabrication", "--quantity", "2", "--material", "A36")
	if err != nil {
		t.Fatalf("routing error = %v", err)
	}

	var got engine.RequestEstimate
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got.Steps) != 5 || got.TotalMinutes != 66 || got.FormattedTotal != "1h 6m" {
		t.Fatalf("unexpected routing estimate: steps=%d total=%v %q", len(got.Steps), got.TotalMinutes, got.FormattedTotal)
	}

	if _, err := runApp(t, "routing", "--template", "missing"); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestRequestCommandReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.yaml")
	doc := `context:
  division: METALS
  material_grade: A36
steps:
  - operation_type: CUT
    quantity: 4
  - operation_type: HEAT_TREAT
    division: PLASTICS
    quantity: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}

	out, err := runApp(t, "--fallback", "20", "request", path)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}

	var got engine.RequestEstimate
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	// SAW-STD 28 plus the unmatched step at 20 minutes per unit.
	if got.TotalMinutes != 68 || got.Steps[1].UsingRecipe {
		t.Fatalf("unexpected request estimate: %+v", got)
	}
}

func TestRequestCommandRequiresSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, []byte(`{"steps": []}`), 0o600); err != nil {
		t.Fatalf("write request: %v", err)
	}
	if _, err := runApp(t, "request", path); err == nil {
		t.Fatal("expected error for empty request")
	}
	if _, err := runApp(t, "request"); err == nil {
		t.Fatal("expected error without a file")
	}
}

func TestListCommand(t *testing.T) {
	out, err := runApp(t, "list", "--division", "plastics")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	var list []models.Recipe
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(list) != 2 || list[0].Code != "ROUTER-PLASTIC" {
		t.Fatalf("unexpected plastics recipes: %+v", list)
	}

	out, err = runApp(t, "list", "--templates")
	if err != nil {
		t.Fatalf("list templates error = %v", err)
	}
	var templates []models.RoutingTemplate
	if err := json.Unmarshal([]byte(out), &templates); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(templates) != 3 {
		t.Fatalf("expected 3 templates, got %d", len(templates))
	}

	if _, err := runApp(t, "list", "--status", "retired"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUnknownFormat(t *testing.T) {
	if _, err := runApp(t, "--format", "xml", "list"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestRepositoryErrorPropagates(t *testing.T) {
	original := openRepositoryFunc
	openRepositoryFunc = func(context.Context, bool) (recipes.Repository, float64, error) {
		return nil, 0, errors.New("no database")
	}
	t.Cleanup(func() { openRepositoryFunc = original })

	if _, err := runApp(t, "--db", "list"); err == nil {
		t.Fatal("expected repository error")
	}
}
