package modifiers

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"procrecipe/models"
)

// fileTables is the on-disk YAML layout. Sections left out keep the built-in values.
type fileTables struct {
	Materials      map[string]float64 `yaml:"materials"`
	ThicknessBands []fileBand         `yaml:"thickness_bands"`
	Tolerances     map[string]float64 `yaml:"tolerances"`
}

type fileBand struct {
	Label  string   `yaml:"label"`
	Min    float64  `yaml:"min"`
	Max    *float64 `yaml:"max"` // omitted on the open-ended band
	Factor float64  `yaml:"factor"`
}

// Load decodes YAML modifier tables from r.
func Load(r io.Reader) (*Tables, error) {
	var raw fileTables
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode modifier tables: %w", err)
	}

	materials := defaultMaterials()
	if raw.Materials != nil {
		materials = raw.Materials
	}

	bands := defaultBands()
	if raw.ThicknessBands != nil {
		bands = make([]Band, 0, len(raw.ThicknessBands))
		for _, b := range raw.ThicknessBands {
			upper := math.Inf(1)
			if b.Max != nil {
				upper = *b.Max
			}
			bands = append(bands, Band{Label: b.Label, Min: b.Min, Max: upper, Factor: b.Factor})
		}
	}

	tolerances := defaultTolerances()
	if raw.Tolerances != nil {
		tolerances = make(map[models.ToleranceClass]float64, len(raw.Tolerances))
		for name, factor := range raw.Tolerances {
			class, ok := models.ParseToleranceClass(name)
			if !ok {
				return nil, fmt.Errorf("unknown tolerance class %q", name)
			}
			tolerances[class] = factor
		}
	}

	tables, err := New(materials, bands, tolerances)
	if err != nil {
		return nil, fmt.Errorf("validate modifier tables: %w", err)
	}
	return tables, nil
}

// LoadFile reads YAML modifier tables from path.
func LoadFile(path string) (*Tables, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open modifier tables: %w", err)
	}
	defer file.Close()

	return Load(file)
}
