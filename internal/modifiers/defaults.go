package modifiers

import (
	"math"

	"procrecipe/models"
)

func defaultMaterials() map[string]float64 {
	return map[string]float64{
		// carbon and alloy steel
		"A36":  1.0,
		"1018": 1.0,
		"A572": 1.05,
		"1045": 1.15,
		"4140": 1.3,
		// stainless
		"304": 1.4,
		"316": 1.5,
		// aluminum
		"6061": 0.8,
		"5052": 0.85,
		"7075": 0.95,
		// plastics
		"HDPE":     0.7,
		"UHMW":     0.75,
		"ACETAL":   0.8,
		"NYLON":    0.8,
		"POLYCARB": 0.85,
	}
}

func defaultBands() []Band {
	return []Band{
		{Label: `Sheet (<0.25")`, Min: 0, Max: 0.25, Factor: 1.0},
		{Label: `Plate (0.25–0.5")`, Min: 0.25, Max: 0.5, Factor: 1.05},
		{Label: `Medium (0.5–1")`, Min: 0.5, Max: 1, Factor: 1.1},
		{Label: `Heavy (1–2")`, Min: 1, Max: 2, Factor: 1.2},
		{Label: `Extra Heavy (2"+)`, Min: 2, Max: math.Inf(1), Factor: 1.4},
	}
}

func defaultTolerances() map[models.ToleranceClass]float64 {
	return map[models.ToleranceClass]float64{
		models.ToleranceStandard: 1.0,
		models.ToleranceClose:    1.25,
		models.ToleranceTight:    1.6,
	}
}

// Default returns the built-in shop tables.
func Default() *Tables {
	t, err := New(defaultMaterials(), defaultBands(), defaultTolerances())
	if err != nil {
		panic("modifiers: built-in tables are invalid: " + err.Error())
	}
	return t
}
