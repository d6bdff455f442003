package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"procrecipe/internal/catalog"
	"procrecipe/internal/config"
	"procrecipe/internal/db"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

const sampleCSV = `Code,Name,Description,Operation Type,Division,Work Center,Materials,Forms,Thickness Min,Thickness Max,Tolerance Class,Setup Minutes,Run Minutes Per Unit,Min Run Minutes,Price Per Unit,Price Unit,Notes
WATERJET-STD,Waterjet profile,"Abrasive   waterjet profile",cut,metals,WJ-01,"a36; 304 |A36",plate,0,3 in,,10,3.5,5,$6.25,each,
LASER-SHEET,Fiber laser sheet,,CUT,METALS,LASER-01,,SHEET,0,0.375,close,6,1.2,3,,,N/A

BEVEL-PLATE,Bevel plate edge,,FORM,METALS,,,,,,,4,2,,2.00,EDGE,bevel prep for weld
`

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipes.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func withMemoryRepository(t *testing.T) *recipes.MemoryRepository {
	t.Helper()
	repo := recipes.NewMemoryRepository()
	original := openRepositoryFunc
	openRepositoryFunc = func(context.Context) (recipes.Repository, error) { return repo, nil }
	t.Cleanup(func() { openRepositoryFunc = original })
	return repo
}

func byCode(t *testing.T, repo recipes.Repository) map[string]models.Recipe {
	t.Helper()
	list, err := repo.List(context.Background(), recipes.Filter{})
	if err != nil {
		t.Fatalf("list recipes: %v", err)
	}
	out := make(map[string]models.Recipe, len(list))
	for _, recipe := range list {
		out[recipe.Code] = recipe
	}
	return out
}

func TestReadCSVSkipsBlankRows(t *testing.T) {
	records, err := readCSV(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("readCSV() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0]["Code"] != "WATERJET-STD" || records[2]["Notes"] != "bevel prep for weld" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestReadCSVRejectsEmptyFile(t *testing.T) {
	if _, err := readCSV(writeCSV(t, "")); err == nil {
		t.Fatal("expected error for empty csv")
	}
}

func TestBuildRecipeNormalizesColumns(t *testing.T) {
	records, err := readCSV(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("readCSV() error = %v", err)
	}

	recipe, err := buildRecipe(records[0])
	if err != nil {
		t.Fatalf("buildRecipe() error = %v", err)
	}
	if recipe.OperationType != models.OperationCut || recipe.Division != "METALS" {
		t.Fatalf("unexpected vocabulary: %q %q", recipe.OperationType, recipe.Division)
	}
	if got := strings.Join(recipe.ApplicableMaterials, ","); got != "A36,304" {
		t.Fatalf("expected deduplicated materials A36,304, got %s", got)
	}
	if recipe.ThicknessMax != 3 || recipe.RunMinutesPerUnit != 3.5 {
		t.Fatalf("unexpected numbers: max=%v run=%v", recipe.ThicknessMax, recipe.RunMinutesPerUnit)
	}
	if recipe.ToleranceClass != models.ToleranceStandard {
		t.Fatalf("expected blank tolerance to default to STANDARD, got %q", recipe.ToleranceClass)
	}
	if recipe.PricePerUnit.String() != "6.25" || recipe.PriceUnit != "EACH" {
		t.Fatalf("unexpected price: %s %s", recipe.PricePerUnit, recipe.PriceUnit)
	}
	if recipe.Description != "Abrasive waterjet profile" {
		t.Fatalf("expected collapsed whitespace, got %q", recipe.Description)
	}

	bevel, err := buildRecipe(records[2])
	if err != nil {
		t.Fatalf("buildRecipe() error = %v", err)
	}
	if bevel.ThicknessMin != 0 || bevel.ThicknessMax != catalog.OpenEnded {
		t.Fatalf("expected blank thickness to accept any stock, got %v-%v", bevel.ThicknessMin, bevel.ThicknessMax)
	}

	laser, err := buildRecipe(records[1])
	if err != nil {
		t.Fatalf("buildRecipe() error = %v", err)
	}
	if laser.ThicknessMax != 0.375 {
		t.Fatalf("expected explicit max 0.375, got %v", laser.ThicknessMax)
	}
	if laser.ToleranceClass != models.ToleranceClose || laser.Notes != "" || len(laser.ApplicableMaterials) != 0 {
		t.Fatalf("unexpected laser recipe: %+v", laser)
	}
}

func TestBuildRecipeRejectsBadPrice(t *testing.T) {
	if _, err := buildRecipe(map[string]string{"Code": "X", "Price Per Unit": "cheap"}); err == nil {
		t.Fatal("expected error for invalid price")
	}
}

func TestRunImportsAsDrafts(t *testing.T) {
	repo := withMemoryRepository(t)

	var out bytes.Buffer
	if err := run(context.Background(), &out, writeCSV(t, sampleCSV), importOptions{CreatedBy: "tester"}); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	stored := byCode(t, repo)
	if len(stored) != 3 {
		t.Fatalf("expected 3 recipes, got %d", len(stored))
	}
	for code, recipe := range stored {
		if recipe.Status != models.StatusDraft {
			t.Fatalf("expected %s to be DRAFT, got %s", code, recipe.Status)
		}
		if recipe.CreatedBy != "tester" {
			t.Fatalf("expected author tester on %s, got %q", code, recipe.CreatedBy)
		}
	}
	if !strings.Contains(out.String(), "3 created") {
		t.Fatalf("unexpected summary: %q", out.String())
	}
}

func TestRunUpsertsByCodeAndActivates(t *testing.T) {
	repo := withMemoryRepository(t)
	ctx := context.Background()
	path := writeCSV(t, sampleCSV)

	if err := run(ctx, &bytes.Buffer{}, path, importOptions{}); err != nil {
		t.Fatalf("first run() error = %v", err)
	}
	first := byCode(t, repo)

	records, err := readCSV(path)
	if err != nil {
		t.Fatalf("readCSV() error = %v", err)
	}
	records[0]["Setup Minutes"] = "14"

	summary, err := importRecipes(ctx, repo, records, importOptions{Activate: true})
	if err != nil {
		t.Fatalf("importRecipes() error = %v", err)
	}
	if summary.Created != 0 || summary.Updated != 1 || summary.Unchanged != 2 || summary.Activated != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	second := byCode(t, repo)
	waterjet := second["WATERJET-STD"]
	if waterjet.ID != first["WATERJET-STD"].ID {
		t.Fatal("expected update in place, not a new recipe")
	}
	if waterjet.SetupMinutes != 14 || waterjet.Version != 2 {
		t.Fatalf("expected updated setup and version bump, got setup=%v version=%d", waterjet.SetupMinutes, waterjet.Version)
	}
	if second["LASER-SHEET"].Version != 1 {
		t.Fatalf("expected unchanged recipe to keep version 1, got %d", second["LASER-SHEET"].Version)
	}
	for code, recipe := range second {
		if recipe.Status != models.StatusActive {
			t.Fatalf("expected %s to be ACTIVE, got %s", code, recipe.Status)
		}
	}
}

func TestImportLeavesDeprecatedRecipesAlone(t *testing.T) {
	repo := recipes.NewMemoryRepository()
	ctx := context.Background()
	records, err := readCSV(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("readCSV() error = %v", err)
	}
	if _, err := importRecipes(ctx, repo, records[:1], importOptions{}); err != nil {
		t.Fatalf("importRecipes() error = %v", err)
	}
	if _, err := repo.Deprecate(ctx, byCode(t, repo)["WATERJET-STD"].ID); err != nil {
		t.Fatalf("deprecate: %v", err)
	}

	summary, err := importRecipes(ctx, repo, records[:1], importOptions{Activate: true})
	if err != nil {
		t.Fatalf("importRecipes() error = %v", err)
	}
	if summary.Activated != 0 || byCode(t, repo)["WATERJET-STD"].Status != models.StatusDeprecated {
		t.Fatalf("expected deprecated recipe to stay deprecated, summary %+v", summary)
	}
}

func TestImportStopsAtInvalidRow(t *testing.T) {
	repo := recipes.NewMemoryRepository()
	records := []map[string]string{
		{"Code": "GOOD", "Name": "Good", "Operation Type": "CUT", "Division": "METALS"},
		{"Code": "BAD", "Name": "Bad", "Operation Type": "WELD", "Division": "METALS"},
	}

	summary, err := importRecipes(context.Background(), repo, records, importOptions{})
	if err == nil {
		t.Fatal("expected error for unknown operation type")
	}
	if !strings.Contains(err.Error(), "record 2 (BAD)") {
		t.Fatalf("expected error to name the failing record, got %v", err)
	}
	if summary != (importSummary{}) {
		t.Fatalf("expected empty summary after rollback, got %+v", summary)
	}
	if stored := byCode(t, repo); len(stored) != 0 {
		t.Fatalf("expected earlier rows rolled back, got %d recipes", len(stored))
	}
}

func TestImportRollsBackDatabaseOnFailure(t *testing.T) {
	ctx := context.Background()
	database, err := db.Initialize(config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("initialize database: %v", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	repo := recipes.NewGormRepository(database)

	records, err := readCSV(writeCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("readCSV() error = %v", err)
	}
	if _, err := importRecipes(ctx, repo, records[:1], importOptions{Activate: true}); err != nil {
		t.Fatalf("seed import: %v", err)
	}

	records[0]["Setup Minutes"] = "20"
	records[2]["Operation Type"] = "WELD"
	if _, err := importRecipes(ctx, repo, records, importOptions{Activate: true}); err == nil {
		t.Fatal("expected error for unknown operation type")
	}

	stored := byCode(t, repo)
	if len(stored) != 1 {
		t.Fatalf("expected only the seeded recipe, got %d", len(stored))
	}
	waterjet := stored["WATERJET-STD"]
	if waterjet.SetupMinutes != 10 || waterjet.Version != 1 || waterjet.Status != models.StatusActive {
		t.Fatalf("expected seeded recipe untouched, got setup=%v version=%d status=%s",
			waterjet.SetupMinutes, waterjet.Version, waterjet.Status)
	}

	records[2]["Operation Type"] = "FORM"
	summary, err := importRecipes(ctx, repo, records, importOptions{Activate: true})
	if err != nil {
		t.Fatalf("importRecipes() error = %v", err)
	}
	if summary.Created != 2 || summary.Updated != 1 || summary.Activated != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRunValidatesInput(t *testing.T) {
	withMemoryRepository(t)

	if err := run(context.Background(), &bytes.Buffer{}, " ", importOptions{}); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := run(context.Background(), &bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.csv"), importOptions{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRunPropagatesRepositoryError(t *testing.T) {
	original := openRepositoryFunc
	openRepositoryFunc = func(context.Context) (recipes.Repository, error) { return nil, errors.New("no database") }
	t.Cleanup(func() { openRepositoryFunc = original })

	if err := run(context.Background(), &bytes.Buffer{}, writeCSV(t, sampleCSV), importOptions{}); err == nil {
		t.Fatal("expected repository error")
	}
}

func TestCommandParsesFlags(t *testing.T) {
	repo := withMemoryRepository(t)
	path := writeCSV(t, sampleCSV)

	cmd := newCommand()
	var out bytes.Buffer
	cmd.Writer = &out
	if err := cmd.Run(context.Background(), []string{"import_recipes", "--activate", "--created-by", "cli", path}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for code, recipe := range byCode(t, repo) {
		if recipe.Status != models.StatusActive || recipe.CreatedBy != "cli" {
			t.Fatalf("unexpected %s: status=%s author=%q", code, recipe.Status, recipe.CreatedBy)
		}
	}
	if !strings.Contains(out.String(), "3 activated") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}
