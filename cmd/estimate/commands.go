package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gorm.io/gorm"

	"procrecipe/internal/catalog"
	"procrecipe/internal/config"
	"procrecipe/internal/db"
	"procrecipe/internal/db/mock"
	"procrecipe/internal/engine"
	"procrecipe/internal/estimator"
	applog "procrecipe/internal/log"
	"procrecipe/internal/matcher"
	"procrecipe/internal/modifiers"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

// openRepositoryFunc returns the store behind the engine. It is swapped in tests.
var openRepositoryFunc = openRepository

func openRepository(ctx context.Context, useDatabase bool) (recipes.Repository, float64, error) {
	if !useDatabase {
		repo := recipes.NewMemoryRepository()
		if err := catalog.Seed(ctx, repo, "catalog"); err != nil {
			return nil, 0, fmt.Errorf("seed catalog: %w", err)
		}
		return repo, 0, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, 0, fmt.Errorf("load config: %w", err)
	}
	var database *gorm.DB
	if cfg.Database.UseMock {
		database, err = mock.New(ctx)
	} else {
		database, err = db.Configure(cfg.Database)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open database: %w", err)
	}
	return recipes.NewGormRepository(database), cfg.Estimation.FallbackMinutesPerUnit, nil
}

func openEngine(ctx context.Context, cmd *cli.Command) (*engine.Engine, error) {
	if err := applog.SetLevel(cmd.String("log-level")); err != nil {
		return nil, err
	}

	repo, fallback, err := openRepositoryFunc(ctx, cmd.Bool("db"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("fallback") {
		fallback = cmd.Float("fallback")
	}
	opts := []engine.Option{engine.WithFallbackMinutes(fallback)}

	if path := cmd.String("tables"); path != "" {
		tables, err := modifiers.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load modifier tables: %w", err)
		}
		opts = append(opts, engine.WithTables(tables))
	}
	return engine.New(repo, opts...), nil
}

// render writes v to the command's writer in the selected format.
func render(cmd *cli.Command, v any) error {
	format, err := parseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	var out io.Writer = os.Stdout
	if root := cmd.Root(); root != nil && root.Writer != nil {
		out = root.Writer
	}
	return write(out, format, v)
}

func optionalFloat(cmd *cli.Command, name string) *float64 {
	if !cmd.IsSet(name) {
		return nil
	}
	value := cmd.Float(name)
	return &value
}

func recipeByCode(ctx context.Context, e *engine.Engine, code string) (models.Recipe, error) {
	code = strings.TrimSpace(code)
	list, err := e.ListRecipes(ctx, recipes.Filter{Search: code})
	if err != nil {
		return models.Recipe{}, err
	}
	for _, recipe := range list {
		if strings.EqualFold(recipe.Code, code) {
			return recipe, nil
		}
	}
	return models.Recipe{}, fmt.Errorf("recipe %q not found", code)
}

func materialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "material", Aliases: []string{"m"}, Usage: "Material grade (e.g., A36, 304)"},
		&cli.StringFlag{Name: "form", Usage: "Stock form (e.g., PLATE, SHEET, BAR)"},
		&cli.FloatFlag{Name: "thickness", Aliases: []string{"t"}, Usage: "Stock thickness in inches"},
		&cli.StringFlag{Name: "tolerance", Usage: "Tolerance class (STANDARD, CLOSE, TIGHT)"},
	}
}

type matchResult struct {
	Recipe *models.Recipe `json:"recipe"`
	Score  int            `json:"score,omitempty"`
}

func matchCmd() *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Find the best active recipe for an operation",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "operation", Required: true, Usage: fmt.Sprintf("Operation type (supported values: %v)", models.OperationTypes())},
			&cli.StringFlag{Name: "division", Required: true, Usage: "Division (e.g., METALS, PLASTICS)"},
		}, materialFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			op, ok := models.ParseOperationType(cmd.String("operation"))
			if !ok {
				return fmt.Errorf("operation: %q, supported values: %v", cmd.String("operation"), models.OperationTypes())
			}
			e, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}

			match, found, err := e.FindMatchingRecipe(ctx, matcher.Request{
				OperationType: op,
				Division:      cmd.String("division"),
				MaterialGrade: cmd.String("material"),
				Form:          cmd.String("form"),
				Thickness:     optionalFloat(cmd, "thickness"),
			})
			if err != nil {
				return fmt.Errorf("match recipe: %w", err)
			}
			if !found {
				return render(cmd, matchResult{})
			}
			return render(cmd, matchResult{Recipe: &match.Recipe, Score: match.Score})
		},
	}
}

func recipeCmd() *cli.Command {
	return &cli.Command{
		Name:  "recipe",
		Usage: "Estimate time for one recipe by code",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Required: true, Usage: "Recipe code (e.g., SAW-STD)"},
			&cli.FloatFlag{Name: "units", Aliases: []string{"n"}, Value: 1, Usage: "Unit count"},
		}, materialFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			recipe, err := recipeByCode(ctx, e, cmd.String("code"))
			if err != nil {
				return err
			}

			estimate, err := e.EstimateRecipeTime(estimator.Input{
				Recipe:         &recipe,
				UnitCount:      cmd.Float("units"),
				MaterialGrade:  cmd.String("material"),
				Thickness:      optionalFloat(cmd, "thickness"),
				ToleranceClass: models.ToleranceClass(cmd.String("tolerance")),
			})
			if err != nil {
				return fmt.Errorf("estimate recipe: %w", err)
			}
			return render(cmd, estimator.StepEstimate{
				Seq:          1,
				RecipeID:     recipe.ID,
				RecipeCode:   recipe.Code,
				RecipeName:   recipe.Name,
				TimeEstimate: estimate,
			})
		},
	}
}

func routingCmd() *cli.Command {
	return &cli.Command{
		Name:  "routing",
		Usage: "Estimate a routing template by id or name",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "template", Required: true, Usage: "Routing template id or name"},
			&cli.FloatFlag{Name: "quantity", Aliases: []string{"q"}, Usage: "Order quantity"},
		}, materialFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			id, err := templateID(ctx, e, cmd.String("template"))
			if err != nil {
				return err
			}

			estimate, err := e.EstimateRoutingTemplate(ctx, id, engine.RequestContext{
				MaterialGrade:  cmd.String("material"),
				Form:           cmd.String("form"),
				Thickness:      optionalFloat(cmd, "thickness"),
				ToleranceClass: models.ToleranceClass(cmd.String("tolerance")),
				Quantity:       cmd.Float("quantity"),
			})
			if err != nil {
				return fmt.Errorf("estimate routing: %w", err)
			}
			return render(cmd, estimate)
		},
	}
}

func templateID(ctx context.Context, e *engine.Engine, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	templates, err := e.ListRoutingTemplates(ctx, "")
	if err != nil {
		return "", err
	}
	for _, tpl := range templates {
		if tpl.ID == ref || strings.EqualFold(tpl.Name, ref) {
			return tpl.ID, nil
		}
	}
	return "", fmt.Errorf("routing template %q not found", ref)
}

type requestDocument struct {
	Steps   []engine.OperationStep `json:"steps"`
	Context engine.RequestContext  `json:"context"`
}

func requestCmd() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "Estimate a multi-step request from a JSON or YAML file",
		ArgsUsage: "<file|->",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("request file is required")
			}

			var in io.Reader = os.Stdin
			if path != "-" {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open request: %w", err)
				}
				defer file.Close()
				in = file
			} else if root := cmd.Root(); root != nil && root.Reader != nil {
				in = root.Reader
			}

			var doc requestDocument
			if err := decodeDocument(in, &doc); err != nil {
				return err
			}
			if len(doc.Steps) == 0 {
				return fmt.Errorf("request has no steps")
			}

			e, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			estimate, err := e.EstimateForRequest(ctx, doc.Steps, doc.Context)
			if err != nil {
				return fmt.Errorf("estimate request: %w", err)
			}
			return render(cmd, estimate)
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recipes or routing templates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "division", Usage: "Only this division"},
			&cli.StringFlag{Name: "operation", Usage: "Only this operation type"},
			&cli.StringFlag{Name: "status", Usage: "Only this status (DRAFT, ACTIVE, DEPRECATED)"},
			&cli.StringFlag{Name: "search", Usage: "Case-insensitive text in code, name or description"},
			&cli.BoolFlag{Name: "templates", Usage: "List routing templates instead of recipes"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := openEngine(ctx, cmd)
			if err != nil {
				return err
			}
			if cmd.Bool("templates") {
				templates, err := e.ListRoutingTemplates(ctx, cmd.String("division"))
				if err != nil {
					return err
				}
				return render(cmd, templates)
			}

			filter := recipes.Filter{Division: cmd.String("division"), Search: cmd.String("search")}
			if value := cmd.String("operation"); value != "" {
				op, ok := models.ParseOperationType(value)
				if !ok {
					return fmt.Errorf("operation: %q, supported values: %v", value, models.OperationTypes())
				}
				filter.OperationType = op
			}
			if value := cmd.String("status"); value != "" {
				status, ok := models.ParseRecipeStatus(value)
				if !ok {
					return fmt.Errorf("status: %q is not a recipe status", value)
				}
				filter.Status = status
			}
			list, err := e.ListRecipes(ctx, filter)
			if err != nil {
				return err
			}
			return render(cmd, list)
		},
	}
}
