package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "procrecipe/internal/errors"
	"procrecipe/models"
)

func ptr(v float64) *float64 { return &v }

func sawStd() *models.Recipe {
	return &models.Recipe{
		ID:                "saw-1",
		Code:              "SAW-STD",
		Name:              "Band saw cut-off",
		OperationType:     models.OperationCut,
		Division:          "METALS",
		ThicknessMax:      999,
		ToleranceClass:    models.ToleranceStandard,
		SetupMinutes:      8,
		RunMinutesPerUnit: 5,
		MinRunMinutes:     3,
	}
}

func TestEstimateStandardScenario(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Estimate(Input{
		Recipe:         sawStd(),
		UnitCount:      4,
		MaterialGrade:  "A36",
		ToleranceClass: models.ToleranceStandard,
	})
	require.NoError(t, err)

	assert.Equal(t, 8.0, got.SetupMinutes)
	assert.Equal(t, 20.0, got.RunMinutesRaw)
	assert.Equal(t, 20.0, got.RunMinutes)
	assert.Equal(t, 28.0, got.TotalMinutes)
	assert.Equal(t, Factors{Material: 1, Thickness: 1, Tolerance: 1, ToleranceClass: models.ToleranceStandard}, got.Factors)
}

func TestEstimateThicknessAndTolerance(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Estimate(Input{
		Recipe:         sawStd(),
		UnitCount:      1,
		MaterialGrade:  "A36",
		Thickness:      ptr(1.5),
		ToleranceClass: models.ToleranceTight,
	})
	require.NoError(t, err)

	assert.InDelta(t, 9.6, got.RunMinutesRaw, 1e-9)
	assert.Equal(t, 10.0, got.RunMinutes)
	assert.Equal(t, 18.0, got.TotalMinutes)
	assert.Equal(t, 1.2, got.Factors.Thickness)
	assert.Equal(t, `Heavy (1–2")`, got.Factors.ThicknessBand)
	assert.Equal(t, 1.6, got.Factors.Tolerance)
	assert.Equal(t, models.ToleranceTight, got.Factors.ToleranceClass)
}

func TestEstimateAppliesMaterialToSetup(t *testing.T) {
	t.Parallel()

	got, err := New(nil).Estimate(Input{Recipe: sawStd(), UnitCount: 2, MaterialGrade: "316"})
	require.NoError(t, err)

	assert.Equal(t, 12.0, got.SetupMinutes, "round(8 x 1.5)")
	assert.Equal(t, 15.0, got.RunMinutes, "5 x 2 x 1.5")
	assert.Equal(t, 1.5, got.Factors.Material)
}

func TestEstimateRespectsRunFloor(t *testing.T) {
	t.Parallel()

	recipe := sawStd()
	recipe.RunMinutesPerUnit = 0.5
	recipe.MinRunMinutes = 3

	got, err := New(nil).Estimate(Input{Recipe: recipe, UnitCount: 1, MaterialGrade: "6061"})
	require.NoError(t, err)
	assert.Equal(t, 0.4, got.RunMinutesRaw)
	assert.Equal(t, 3.0, got.RunMinutes)
	assert.Equal(t, 9.0, got.TotalMinutes, "round(8 x 0.8) + 3")
}

func TestEstimateFloorHoldsForAllInputs(t *testing.T) {
	t.Parallel()

	e := New(nil)
	recipe := sawStd()
	recipe.MinRunMinutes = 7
	grades := []string{"", "A36", "304", "HDPE", "UNKNOWN"}
	classes := []models.ToleranceClass{"", models.ToleranceStandard, models.ToleranceClose, models.ToleranceTight, "LOOSE"}
	for _, grade := range grades {
		for _, class := range classes {
			for _, units := range []float64{-3, 0, 0.1, 1, 25} {
				for _, thickness := range []*float64{nil, ptr(-1), ptr(0), ptr(0.3), ptr(5)} {
					got, err := e.Estimate(Input{Recipe: recipe, UnitCount: units, MaterialGrade: grade, Thickness: thickness, ToleranceClass: class})
					require.NoError(t, err)
					assert.GreaterOrEqual(t, got.RunMinutes, recipe.MinRunMinutes)
					assert.Equal(t, got.SetupMinutes+got.RunMinutes, got.TotalMinutes)
				}
			}
		}
	}
}

func TestEstimateDefaultsLooseInputs(t *testing.T) {
	t.Parallel()

	e := New(nil)
	baseline, err := e.Estimate(Input{Recipe: sawStd(), UnitCount: 1})
	require.NoError(t, err)

	for name, in := range map[string]Input{
		"zero units":         {Recipe: sawStd()},
		"negative units":     {Recipe: sawStd(), UnitCount: -4},
		"nan units":          {Recipe: sawStd(), UnitCount: math.NaN()},
		"negative thickness": {Recipe: sawStd(), UnitCount: 1, Thickness: ptr(-2)},
		"zero thickness":     {Recipe: sawStd(), UnitCount: 1, Thickness: ptr(0)},
		"unknown grade":      {Recipe: sawStd(), UnitCount: 1, MaterialGrade: "MYSTERY"},
		"unknown tolerance":  {Recipe: sawStd(), UnitCount: 1, ToleranceClass: "LOOSE"},
	} {
		got, err := e.Estimate(in)
		require.NoError(t, err, name)
		assert.Equal(t, baseline.TotalMinutes, got.TotalMinutes, name)
		assert.Equal(t, 1.0, got.UnitCount, name)
	}
}

func TestEstimateToleranceFallsBackToRecipe(t *testing.T) {
	t.Parallel()

	recipe := sawStd()
	recipe.ToleranceClass = models.ToleranceClose

	got, err := New(nil).Estimate(Input{Recipe: recipe, UnitCount: 4})
	require.NoError(t, err)
	assert.Equal(t, models.ToleranceClose, got.Factors.ToleranceClass)
	assert.Equal(t, 25.0, got.RunMinutes)

	got, err = New(nil).Estimate(Input{Recipe: recipe, UnitCount: 4, ToleranceClass: "tight"})
	require.NoError(t, err)
	assert.Equal(t, models.ToleranceTight, got.Factors.ToleranceClass)
	assert.Equal(t, 32.0, got.RunMinutes)

	recipe.ToleranceClass = "UNSET"
	got, err = New(nil).Estimate(Input{Recipe: recipe, UnitCount: 4})
	require.NoError(t, err)
	assert.Equal(t, models.ToleranceStandard, got.Factors.ToleranceClass)
	assert.Equal(t, 1.0, got.Factors.Tolerance)
}

func TestEstimateRequiresRecipe(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Estimate(Input{UnitCount: 3})
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestEstimateIsDeterministic(t *testing.T) {
	t.Parallel()

	e := New(nil)
	in := Input{Recipe: sawStd(), UnitCount: 7, MaterialGrade: "4140", Thickness: ptr(0.6), ToleranceClass: models.ToleranceClose}
	first, err := e.Estimate(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Estimate(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
