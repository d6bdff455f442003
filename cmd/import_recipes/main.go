package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"procrecipe/internal/catalog"
	"procrecipe/internal/config"
	"procrecipe/internal/db"
	"procrecipe/internal/db/mock"
	applog "procrecipe/internal/log"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

const defaultCSVPath = "recipes.csv"

var (
	numberPattern   = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	cleanWhitespace = regexp.MustCompile(`\s+`)
)

// openRepositoryFunc connects to the configured store.
var openRepositoryFunc = func(ctx context.Context) (recipes.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := applog.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("set log level: %w", err)
	}

	if cfg.Database.UseMock {
		database, err := mock.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("open mock database: %w", err)
		}
		return recipes.NewGormRepository(database), nil
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return recipes.NewGormRepository(database), nil
}

type importOptions struct {
	Activate  bool
	CreatedBy string
}

type importSummary struct {
	Created   int
	Updated   int
	Unchanged int
	Activated int
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "import_recipes",
		Usage:     "Upsert recipes from a CSV file by code",
		ArgsUsage: "[csv path]",
		Description: `Each row creates a new DRAFT recipe or updates the recipe with the same code.
Expected columns: Code, Name, Description, Operation Type, Division, Work Center,
Materials, Forms, Thickness Min, Thickness Max, Tolerance Class, Setup Minutes,
Run Minutes Per Unit, Min Run Minutes, Price Per Unit, Price Unit, Notes.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "activate",
				Usage: "Promote imported DRAFT recipes to ACTIVE",
			},
			&cli.StringFlag{
				Name:  "created-by",
				Value: "csv-import",
				Usage: "Author recorded on newly created recipes",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			csvPath := defaultCSVPath
			if cmd.Args().Present() {
				csvPath = cmd.Args().First()
			}
			return run(ctx, cmd.Writer, csvPath, importOptions{
				Activate:  cmd.Bool("activate"),
				CreatedBy: cmd.String("created-by"),
			})
		},
	}
}

func run(ctx context.Context, out io.Writer, csvPath string, opts importOptions) error {
	if strings.TrimSpace(csvPath) == "" {
		return fmt.Errorf("csv path must not be empty")
	}
	if out == nil {
		out = os.Stdout
	}

	if _, err := os.Stat(csvPath); err != nil {
		return fmt.Errorf("locate csv: %w", err)
	}

	records, err := readCSV(csvPath)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	repo, err := openRepositoryFunc(ctx)
	if err != nil {
		return err
	}

	summary, err := importRecipes(ctx, repo, records, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d recipes from %s (%d created, %d updated, %d unchanged, %d activated)\n",
		summary.Created+summary.Updated+summary.Unchanged, filepath.Base(csvPath),
		summary.Created, summary.Updated, summary.Unchanged, summary.Activated)
	return nil
}

// importRecipes upserts every record by code. A failing row aborts the import and,
// when the repository supports transactions, rolls back the rows before it.
func importRecipes(ctx context.Context, repo recipes.Repository, records []map[string]string, opts importOptions) (importSummary, error) {
	tx, ok := repo.(recipes.Transactor)
	if !ok {
		applog.Warn(ctx, "repository is not transactional; a failing row leaves earlier rows imported")
		return upsertRecipes(ctx, repo, records, opts)
	}

	var summary importSummary
	err := tx.WithinTransaction(ctx, func(repo recipes.Repository) error {
		var err error
		summary, err = upsertRecipes(ctx, repo, records, opts)
		return err
	})
	if err != nil {
		return importSummary{}, err
	}
	return summary, nil
}

func upsertRecipes(ctx context.Context, repo recipes.Repository, records []map[string]string, opts importOptions) (importSummary, error) {
	var summary importSummary

	existing, err := repo.List(ctx, recipes.Filter{})
	if err != nil {
		return summary, fmt.Errorf("list recipes: %w", err)
	}
	byCode := make(map[string]models.Recipe, len(existing))
	for _, recipe := range existing {
		byCode[recipe.Code] = recipe
	}

	for idx, record := range records {
		incoming, err := buildRecipe(record)
		if err != nil {
			return summary, fmt.Errorf("record %d (%s): %w", idx+1, record["Code"], err)
		}

		stored, found := byCode[incoming.Code]
		switch {
		case !found:
			incoming.CreatedBy = strings.TrimSpace(opts.CreatedBy)
			stored, err = repo.Create(ctx, incoming)
			if err != nil {
				return summary, fmt.Errorf("record %d (%s): create: %w", idx+1, incoming.Code, err)
			}
			summary.Created++
		case unchanged(stored, incoming):
			summary.Unchanged++
		default:
			stored, err = repo.Update(ctx, stored.ID, fullPatch(incoming))
			if err != nil {
				return summary, fmt.Errorf("record %d (%s): update: %w", idx+1, incoming.Code, err)
			}
			summary.Updated++
		}

		if opts.Activate && stored.Status == models.StatusDraft {
			stored, err = repo.Activate(ctx, stored.ID)
			if err != nil {
				return summary, fmt.Errorf("record %d (%s): activate: %w", idx+1, incoming.Code, err)
			}
			summary.Activated++
		}
		byCode[stored.Code] = stored
	}

	return summary, nil
}

func readCSV(path string) ([]map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}

	header := make([]string, len(rows[0]))
	for idx, key := range rows[0] {
		header[idx] = strings.TrimSpace(strings.TrimPrefix(key, "\ufeff"))
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}

		record := make(map[string]string, len(header))
		for idx, key := range header {
			if idx >= len(row) {
				continue
			}
			record[key] = strings.TrimSpace(row[idx])
		}
		records = append(records, record)
	}

	return records, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func buildRecipe(row map[string]string) (models.Recipe, error) {
	price, err := parsePrice(row["Price Per Unit"])
	if err != nil {
		return models.Recipe{}, err
	}

	recipe := models.Recipe{
		Code:                strings.TrimSpace(row["Code"]),
		Name:                normalizeText(row["Name"]),
		Description:         normalizeText(row["Description"]),
		OperationType:       parseOperationType(row["Operation Type"]),
		Division:            recipes.NormalizeDivision(normalizeValue(row["Division"])),
		WorkCenter:          normalizeValue(row["Work Center"]),
		ApplicableMaterials: splitList(row["Materials"]),
		ApplicableForms:     splitList(row["Forms"]),
		ThicknessMin:        parseFirstNumber(row["Thickness Min"]),
		ThicknessMax:        parseThicknessMax(row["Thickness Max"]),
		ToleranceClass:      parseToleranceClass(row["Tolerance Class"]),
		SetupMinutes:        parseFirstNumber(row["Setup Minutes"]),
		RunMinutesPerUnit:   parseFirstNumber(row["Run Minutes Per Unit"]),
		MinRunMinutes:       parseFirstNumber(row["Min Run Minutes"]),
		PricePerUnit:        price,
		PriceUnit:           strings.ToUpper(normalizeValue(row["Price Unit"])),
		Notes:               normalizeText(row["Notes"]),
	}
	return recipe, nil
}

func normalizeValue(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return ""
	}
	return value
}

func normalizeText(value string) string {
	value = normalizeValue(value)
	if value == "" {
		return value
	}
	value = cleanWhitespace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

func parseFirstNumber(value string) float64 {
	value = normalizeValue(value)
	if value == "" {
		return 0
	}

	match := numberPattern.FindString(value)
	if match == "" {
		return 0
	}

	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// parseThicknessMax reads the upper thickness bound. A blank cell leaves the range open.
func parseThicknessMax(value string) float64 {
	if normalizeValue(value) == "" {
		return catalog.OpenEnded
	}
	return parseFirstNumber(value)
}

func parsePrice(value string) (decimal.Decimal, error) {
	value = strings.TrimPrefix(normalizeValue(value), "$")
	value = strings.ReplaceAll(value, ",", "")
	if value == "" {
		return decimal.Zero, nil
	}
	price, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", value, err)
	}
	return price, nil
}

// parseOperationType keeps unknown values as written so validation reports them.
func parseOperationType(value string) models.OperationType {
	value = normalizeValue(value)
	if op, ok := models.ParseOperationType(value); ok {
		return op
	}
	return models.OperationType(value)
}

func parseToleranceClass(value string) models.ToleranceClass {
	value = normalizeValue(value)
	if value == "" {
		return models.ToleranceStandard
	}
	if class, ok := models.ParseToleranceClass(value); ok {
		return class
	}
	return models.ToleranceClass(value)
}

// splitList reads a set column; entries may be separated by commas, semicolons or pipes.
func splitList(value string) []string {
	value = normalizeValue(value)
	if value == "" || strings.EqualFold(value, "ANY") || value == "*" {
		return []string{}
	}

	value = strings.NewReplacer(";", ",", "|", ",").Replace(value)
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.ToUpper(strings.TrimSpace(part))
		if clean == "" || slices.Contains(result, clean) {
			continue
		}
		result = append(result, clean)
	}
	return result
}

func unchanged(stored, incoming models.Recipe) bool {
	return stored.Name == incoming.Name &&
		stored.Description == incoming.Description &&
		stored.OperationType == incoming.OperationType &&
		stored.Division == incoming.Division &&
		stored.WorkCenter == incoming.WorkCenter &&
		slices.Equal([]string(stored.ApplicableMaterials), []string(incoming.ApplicableMaterials)) &&
		slices.Equal([]string(stored.ApplicableForms), []string(incoming.ApplicableForms)) &&
		stored.ThicknessMin == incoming.ThicknessMin &&
		stored.ThicknessMax == incoming.ThicknessMax &&
		stored.ToleranceClass == incoming.ToleranceClass &&
		stored.SetupMinutes == incoming.SetupMinutes &&
		stored.RunMinutesPerUnit == incoming.RunMinutesPerUnit &&
		stored.MinRunMinutes == incoming.MinRunMinutes &&
		stored.PricePerUnit.Equal(incoming.PricePerUnit) &&
		stored.PriceUnit == incoming.PriceUnit &&
		stored.Notes == incoming.Notes
}

// fullPatch replaces every definition field; the code is the lookup key and stays.
func fullPatch(r models.Recipe) recipes.Patch {
	materials := []string(r.ApplicableMaterials)
	forms := []string(r.ApplicableForms)
	return recipes.Patch{
		Name:                &r.Name,
		Description:         &r.Description,
		OperationType:       &r.OperationType,
		Division:            &r.Division,
		WorkCenter:          &r.WorkCenter,
		ApplicableMaterials: &materials,
		ApplicableForms:     &forms,
		ThicknessMin:        &r.ThicknessMin,
		ThicknessMax:        &r.ThicknessMax,
		ToleranceClass:      &r.ToleranceClass,
		SetupMinutes:        &r.SetupMinutes,
		RunMinutesPerUnit:   &r.RunMinutesPerUnit,
		MinRunMinutes:       &r.MinRunMinutes,
		PricePerUnit:        &r.PricePerUnit,
		PriceUnit:           &r.PriceUnit,
		Notes:               &r.Notes,
	}
}
