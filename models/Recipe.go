package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OperationType is the manufacturing operation a recipe standardizes.
type OperationType string

const (
	OperationCut       OperationType = "CUT"
	OperationForm      OperationType = "FORM"
	OperationMachine   OperationType = "MACHINE"
	OperationFinish    OperationType = "FINISH"
	OperationHeatTreat OperationType = "HEAT_TREAT"
	OperationInspect   OperationType = "INSPECT"
)

// OperationTypes lists every supported operation in display order.
func OperationTypes() []OperationType {
	return []OperationType{
		OperationCut,
		OperationForm,
		OperationMachine,
		OperationFinish,
		OperationHeatTreat,
		OperationInspect,
	}
}

// IsValid reports whether the operation type is one of the supported values.
func (o OperationType) IsValid() bool {
	for _, candidate := range OperationTypes() {
		if o == candidate {
			return true
		}
	}
	return false
}

// ParseOperationType normalizes free-form input ("heat-treat", " cut ") to an OperationType.
func ParseOperationType(value string) (OperationType, bool) {
	op := OperationType(normalizeCode(value))
	return op, op.IsValid()
}

// RecipeStatus is the lifecycle state of a recipe.
type RecipeStatus string

const (
	StatusDraft      RecipeStatus = "DRAFT"
	StatusActive     RecipeStatus = "ACTIVE"
	StatusDeprecated RecipeStatus = "DEPRECATED"
)

// IsValid reports whether the status is a known lifecycle state.
func (s RecipeStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusDeprecated:
		return true
	default:
		return false
	}
}

// ParseRecipeStatus normalizes free-form input to a RecipeStatus.
func ParseRecipeStatus(value string) (RecipeStatus, bool) {
	status := RecipeStatus(normalizeCode(value))
	return status, status.IsValid()
}

// ToleranceClass describes how tight the requested tolerances are.
type ToleranceClass string

const (
	ToleranceStandard ToleranceClass = "STANDARD"
	ToleranceClose    ToleranceClass = "CLOSE"
	ToleranceTight    ToleranceClass = "TIGHT"
)

// IsValid reports whether the tolerance class is known.
func (t ToleranceClass) IsValid() bool {
	switch t {
	case ToleranceStandard, ToleranceClose, ToleranceTight:
		return true
	default:
		return false
	}
}

// ParseToleranceClass normalizes free-form input to a ToleranceClass.
func ParseToleranceClass(value string) (ToleranceClass, bool) {
	class := ToleranceClass(normalizeCode(value))
	return class, class.IsValid()
}

// Recipe is a named time and cost standard for one operation type on one class of material.
type Recipe struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	Code        string `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Version     int    `gorm:"not null;default:1" json:"version"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	OperationType OperationType `gorm:"size:16;not null;index" json:"operation_type"`
	Division      string        `gorm:"size:32;not null;index" json:"division"`
	WorkCenter    string        `gorm:"size:64" json:"work_center"`

	// Empty sets act as wildcards.
	ApplicableMaterials datatypes.JSONSlice[string] `json:"applicable_materials"`
	ApplicableForms     datatypes.JSONSlice[string] `json:"applicable_forms"`
	ThicknessMin        float64                     `gorm:"not null;default:0" json:"thickness_min"`
	ThicknessMax        float64                     `gorm:"not null;default:0" json:"thickness_max"`
	ToleranceClass      ToleranceClass              `gorm:"size:16;not null;default:STANDARD" json:"tolerance_class"`

	SetupMinutes      float64 `gorm:"not null;default:0" json:"setup_minutes"`
	RunMinutesPerUnit float64 `gorm:"not null;default:0" json:"run_minutes_per_unit"`
	MinRunMinutes     float64 `gorm:"not null;default:0" json:"min_run_minutes"`

	PricePerUnit decimal.Decimal `gorm:"type:decimal(12,4)" json:"price_per_unit"`
	PriceUnit    string          `gorm:"size:16" json:"price_unit"`

	Status           RecipeStatus `gorm:"size:16;not null;default:DRAFT;index" json:"status"`
	DuplicatedFromID *string      `gorm:"size:36" json:"duplicated_from_id,omitempty"`

	CreatedBy string    `gorm:"size:128" json:"created_by"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the recipe is eligible for matching.
func (r Recipe) IsActive() bool {
	return r.Status == StatusActive
}

// Clone returns a deep copy so callers never share slices with a store.
func (r Recipe) Clone() Recipe {
	out := r
	if r.ApplicableMaterials != nil {
		out.ApplicableMaterials = append(datatypes.JSONSlice[string]{}, r.ApplicableMaterials...)
	}
	if r.ApplicableForms != nil {
		out.ApplicableForms = append(datatypes.JSONSlice[string]{}, r.ApplicableForms...)
	}
	if r.DuplicatedFromID != nil {
		parent := *r.DuplicatedFromID
		out.DuplicatedFromID = &parent
	}
	return out
}

func normalizeCode(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "_")
	return strings.ReplaceAll(value, " ", "_")
}
