// Package modifiers holds the immutable reference tables that scale recipe base times:
// material difficulty, thickness bands and tolerance classes.
package modifiers

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"procrecipe/models"
)

// Band is a half-open thickness interval [Min, Max) with its multiplicative factor.
type Band struct {
	Label  string  `json:"label"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Factor float64 `json:"factor"`
}

// Contains reports whether thickness falls in [Min, Max).
func (b Band) Contains(thickness float64) bool {
	return thickness >= b.Min && thickness < b.Max
}

// Tables is a validated, read-only set of modifier lookups. The zero value is not usable;
// build one with New or Default.
type Tables struct {
	materials  map[string]float64
	bands      []Band
	tolerances map[models.ToleranceClass]float64
}

// New copies and validates the provided tables.
func New(materials map[string]float64, bands []Band, tolerances map[models.ToleranceClass]float64) (*Tables, error) {
	t := &Tables{
		materials:  make(map[string]float64, len(materials)),
		bands:      append([]Band(nil), bands...),
		tolerances: make(map[models.ToleranceClass]float64, len(tolerances)),
	}
	for grade, factor := range materials {
		key := normalizeGrade(grade)
		if key == "" {
			return nil, fmt.Errorf("material grade must not be empty")
		}
		if factor <= 0 {
			return nil, fmt.Errorf("material %s: factor must be positive, got %v", key, factor)
		}
		t.materials[key] = factor
	}
	for class, factor := range tolerances {
		t.tolerances[class] = factor
	}
	sort.SliceStable(t.bands, func(i, j int) bool { return t.bands[i].Min < t.bands[j].Min })

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tables) validate() error {
	if len(t.bands) == 0 {
		return fmt.Errorf("at least one thickness band is required")
	}
	if t.bands[0].Min != 0 {
		return fmt.Errorf("thickness bands must start at 0, first band starts at %v", t.bands[0].Min)
	}
	for i, band := range t.bands {
		if band.Max <= band.Min {
			return fmt.Errorf("thickness band %q: max %v must exceed min %v", band.Label, band.Max, band.Min)
		}
		if band.Factor <= 0 {
			return fmt.Errorf("thickness band %q: factor must be positive", band.Label)
		}
		if i == 0 {
			continue
		}
		prev := t.bands[i-1]
		if band.Min != prev.Max {
			return fmt.Errorf("thickness band %q starts at %v but previous band ends at %v", band.Label, band.Min, prev.Max)
		}
		if band.Factor < prev.Factor {
			return fmt.Errorf("thickness band %q factor %v is below previous band factor %v", band.Label, band.Factor, prev.Factor)
		}
	}
	if last := t.bands[len(t.bands)-1]; !math.IsInf(last.Max, 1) {
		return fmt.Errorf("last thickness band %q must be open-ended", last.Label)
	}

	standard, ok := t.tolerances[models.ToleranceStandard]
	if !ok {
		return fmt.Errorf("tolerance table must define %s", models.ToleranceStandard)
	}
	if standard <= 0 {
		return fmt.Errorf("tolerance %s: factor must be positive", models.ToleranceStandard)
	}
	for class, factor := range t.tolerances {
		if !class.IsValid() {
			return fmt.Errorf("unknown tolerance class %q", class)
		}
		if factor < standard {
			return fmt.Errorf("tolerance %s: factor %v is below %s factor %v", class, factor, models.ToleranceStandard, standard)
		}
	}
	return nil
}

// MaterialFactor returns the factor for grade, 1.0 when the grade is blank or unknown.
func (t *Tables) MaterialFactor(grade string) float64 {
	if factor, ok := t.materials[normalizeGrade(grade)]; ok {
		return factor
	}
	return 1.0
}

// ThicknessBand returns the band containing thickness. Non-positive thickness never
// matches a band.
func (t *Tables) ThicknessBand(thickness float64) (Band, bool) {
	if thickness <= 0 || math.IsNaN(thickness) {
		return Band{}, false
	}
	for _, band := range t.bands {
		if band.Contains(thickness) {
			return band, true
		}
	}
	return Band{}, false
}

// ThicknessFactor returns the band factor for thickness, 1.0 when no band applies.
func (t *Tables) ThicknessFactor(thickness float64) float64 {
	if band, ok := t.ThicknessBand(thickness); ok {
		return band.Factor
	}
	return 1.0
}

// ToleranceFactor returns the factor for class and whether the class is in the table.
func (t *Tables) ToleranceFactor(class models.ToleranceClass) (float64, bool) {
	factor, ok := t.tolerances[class]
	return factor, ok
}

// StandardToleranceFactor is the baseline tolerance factor.
func (t *Tables) StandardToleranceFactor() float64 {
	return t.tolerances[models.ToleranceStandard]
}

// Materials returns a copy of the material table.
func (t *Tables) Materials() map[string]float64 {
	out := make(map[string]float64, len(t.materials))
	for grade, factor := range t.materials {
		out[grade] = factor
	}
	return out
}

// Bands returns a copy of the thickness bands in ascending order.
func (t *Tables) Bands() []Band {
	return append([]Band(nil), t.bands...)
}

// Tolerances returns a copy of the tolerance table.
func (t *Tables) Tolerances() map[models.ToleranceClass]float64 {
	out := make(map[models.ToleranceClass]float64, len(t.tolerances))
	for class, factor := range t.tolerances {
		out[class] = factor
	}
	return out
}

func normalizeGrade(grade string) string {
	return strings.ToUpper(strings.TrimSpace(grade))
}
