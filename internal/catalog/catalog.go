// Package catalog holds the shop's standard recipe library and routing templates used to
// seed fresh stores.
package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"procrecipe/internal/recipes"
	"procrecipe/models"
)

// OpenEnded is the upper thickness bound for recipes that accept any stock thickness.
const OpenEnded = 999.0

// Template is a routing template whose steps reference recipes by code.
type Template struct {
	Name        string
	Division    string
	Description string
	Codes       []string
}

func set(values ...string) datatypes.JSONSlice[string] {
	return datatypes.JSONSlice[string](values)
}

// Recipes returns the standard recipe library. Every call builds fresh values.
func Recipes() []models.Recipe {
	return []models.Recipe{
		{
			Code:              "SAW-STD",
			Name:              "Band saw cut-off",
			Description:       "Straight cut-off on the horizontal band saw.",
			OperationType:     models.OperationCut,
			Division:          "METALS",
			WorkCenter:        "SAW-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      8,
			RunMinutesPerUnit: 5,
			MinRunMinutes:     3,
			PricePerUnit:      decimal.RequireFromString("4.50"),
			PriceUnit:         "CUT",
		},
		{
			Code:                "PLASMA-PLATE",
			Name:                "CNC plasma plate profile",
			Description:         "Profile cutting of carbon plate on the plasma table.",
			OperationType:       models.OperationCut,
			Division:            "METALS",
			WorkCenter:          "PLASMA-01",
			ApplicableMaterials: set("A36", "A572", "1018"),
			ApplicableForms:     set("PLATE", "SHEET"),
			ThicknessMin:        0.125,
			ThicknessMax:        1.5,
			ToleranceClass:      models.ToleranceStandard,
			SetupMinutes:        12,
			RunMinutesPerUnit:   1.5,
			MinRunMinutes:       5,
			PricePerUnit:        decimal.RequireFromString("2.25"),
			PriceUnit:           "LFT",
		},
		{
			Code:                "SHEAR-SHEET",
			Name:                "Sheet shear",
			Description:         "Square shearing of sheet stock up to 1/4 inch.",
			OperationType:       models.OperationCut,
			Division:            "METALS",
			WorkCenter:          "SHEAR-01",
			ApplicableForms:     set("SHEET"),
			ThicknessMax:        0.25,
			ToleranceClass:      models.ToleranceStandard,
			SetupMinutes:        5,
			RunMinutesPerUnit:   0.75,
			MinRunMinutes:       2,
			PricePerUnit:        decimal.RequireFromString("1.10"),
			PriceUnit:           "CUT",
		},
		{
			Code:              "BRAKE-STD",
			Name:              "Press brake bend",
			Description:       "Air bending on the 175 ton press brake.",
			OperationType:     models.OperationForm,
			Division:          "METALS",
			WorkCenter:        "BRAKE-01",
			ApplicableForms:   set("SHEET", "PLATE"),
			ThicknessMax:      0.75,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      15,
			RunMinutesPerUnit: 1.5,
			MinRunMinutes:     5,
			PricePerUnit:      decimal.RequireFromString("3.00"),
			PriceUnit:         "BEND",
		},
		{
			Code:              "DRILL-STD",
			Name:              "Radial drill holes",
			Description:       "Through holes on the radial arm drill.",
			OperationType:     models.OperationMachine,
			Division:          "METALS",
			WorkCenter:        "DRILL-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      10,
			RunMinutesPerUnit: 2,
			MinRunMinutes:     4,
			PricePerUnit:      decimal.RequireFromString("1.75"),
			PriceUnit:         "HOLE",
		},
		{
			Code:                "MILL-SS",
			Name:                "Stainless face mill",
			Description:         "Facing stainless bar and plate on the vertical mill.",
			OperationType:       models.OperationMachine,
			Division:            "METALS",
			WorkCenter:          "VMC-02",
			ApplicableMaterials: set("304", "316"),
			ThicknessMax:        OpenEnded,
			ToleranceClass:      models.ToleranceClose,
			SetupMinutes:        30,
			RunMinutesPerUnit:   6,
			MinRunMinutes:       10,
			PricePerUnit:        decimal.RequireFromString("12.00"),
			PriceUnit:           "SQFT",
		},
		{
			Code:              "DEBURR-STD",
			Name:              "Deburr and edge break",
			Description:       "Hand deburring of cut edges.",
			OperationType:     models.OperationFinish,
			Division:          "METALS",
			WorkCenter:        "FINISH-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      2,
			RunMinutesPerUnit: 1,
			MinRunMinutes:     2,
			PricePerUnit:      decimal.RequireFromString("0.80"),
			PriceUnit:         "EA",
		},
		{
			Code:              "STRESS-RELIEVE",
			Name:              "Stress relieve",
			Description:       "Furnace stress relief after heavy welding or machining.",
			OperationType:     models.OperationHeatTreat,
			Division:          "METALS",
			WorkCenter:        "FURNACE-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      45,
			RunMinutesPerUnit: 3,
			MinRunMinutes:     60,
			PricePerUnit:      decimal.RequireFromString("25.00"),
			PriceUnit:         "EA",
		},
		{
			Code:              "QC-FIRST",
			Name:              "First article inspection",
			Description:       "Dimensional check of the first piece off each setup.",
			OperationType:     models.OperationInspect,
			Division:          "METALS",
			WorkCenter:        "QC-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      5,
			RunMinutesPerUnit: 0.5,
			MinRunMinutes:     5,
			PricePerUnit:      decimal.Zero,
			PriceUnit:         "EA",
		},
		{
			Code:                "ROUTER-PLASTIC",
			Name:                "CNC router profile",
			Description:         "Profile routing of plastic sheet.",
			OperationType:       models.OperationCut,
			Division:            "PLASTICS",
			WorkCenter:          "ROUTER-01",
			ApplicableMaterials: set("HDPE", "UHMW", "ACETAL", "POLYCARB"),
			ApplicableForms:     set("SHEET"),
			ThicknessMax:        4,
			ToleranceClass:      models.ToleranceStandard,
			SetupMinutes:        10,
			RunMinutesPerUnit:   2,
			MinRunMinutes:       5,
			PricePerUnit:        decimal.RequireFromString("3.40"),
			PriceUnit:           "LFT",
		},
		{
			Code:              "SAW-PLASTIC",
			Name:              "Panel saw cut",
			Description:       "Straight cuts on the vertical panel saw.",
			OperationType:     models.OperationCut,
			Division:          "PLASTICS",
			WorkCenter:        "PANEL-01",
			ThicknessMax:      OpenEnded,
			ToleranceClass:    models.ToleranceStandard,
			SetupMinutes:      4,
			RunMinutesPerUnit: 2,
			MinRunMinutes:     2,
			PricePerUnit:      decimal.RequireFromString("1.50"),
			PriceUnit:         "CUT",
		},
	}
}

// Templates returns the standard routing templates.
func Templates() []Template {
	return []Template{
		{
			Name:        "Bracket fabrication",
			Division:    "METALS",
			Description: "Saw, drill, bend, deburr and inspect a formed plate bracket.",
			Codes:       []string{"SAW-STD", "DRILL-STD", "BRAKE-STD", "DEBURR-STD", "QC-FIRST"},
		},
		{
			Name:        "Plate profile",
			Division:    "METALS",
			Description: "Plasma profile with deburr.",
			Codes:       []string{"PLASMA-PLATE", "DEBURR-STD"},
		},
		{
			Name:        "Plastic panel",
			Division:    "PLASTICS",
			Description: "Panel saw then router profile.",
			Codes:       []string{"SAW-PLASTIC", "ROUTER-PLASTIC"},
		},
	}
}

// Seed creates and activates the standard recipes, then the templates that reference
// them. Steps are numbered 10, 20, 30 to leave room for inserted operations.
func Seed(ctx context.Context, repo recipes.Repository, createdBy string) error {
	ids := make(map[string]string)
	for _, draft := range Recipes() {
		draft.CreatedBy = createdBy
		created, err := repo.Create(ctx, draft)
		if err != nil {
			return fmt.Errorf("seed recipe %s: %w", draft.Code, err)
		}
		if _, err := repo.Activate(ctx, created.ID); err != nil {
			return fmt.Errorf("activate recipe %s: %w", draft.Code, err)
		}
		ids[created.Code] = created.ID
	}

	for _, tpl := range Templates() {
		template := models.RoutingTemplate{
			Name:        tpl.Name,
			Division:    tpl.Division,
			Description: tpl.Description,
		}
		for i, code := range tpl.Codes {
			id, ok := ids[code]
			if !ok {
				return fmt.Errorf("template %s references unknown recipe %s", tpl.Name, code)
			}
			template.Steps = append(template.Steps, models.RoutingStep{Seq: (i + 1) * 10, RecipeID: id})
		}
		if _, err := repo.CreateRoutingTemplate(ctx, template); err != nil {
			return fmt.Errorf("seed template %s: %w", tpl.Name, err)
		}
	}
	return nil
}
