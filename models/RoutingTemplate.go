package models

import "time"

// RoutingTemplate is a named, ordered process plan for a division. It carries no time
// standard of its own; totals are always derived from the referenced recipes.
type RoutingTemplate struct {
	ID          string        `gorm:"primaryKey;size:36" json:"id"`
	Name        string        `gorm:"not null" json:"name"`
	Division    string        `gorm:"size:32;not null;index" json:"division"`
	Description string        `gorm:"type:text" json:"description"`
	Steps       []RoutingStep `gorm:"foreignKey:TemplateID" json:"steps"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type RoutingStep struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	TemplateID string `gorm:"size:36;not null;index" json:"template_id"`
	Seq        int    `gorm:"not null" json:"seq"`
	RecipeID   string `gorm:"size:36;not null" json:"recipe_id"`
	Notes      string `gorm:"type:text" json:"notes,omitempty"`

	// Resolved at read time, never persisted through the step.
	Recipe *Recipe `gorm:"foreignKey:RecipeID" json:"recipe,omitempty"`
}

// Clone returns a deep copy of the template including resolved recipes.
func (t RoutingTemplate) Clone() RoutingTemplate {
	out := t
	if t.Steps != nil {
		out.Steps = make([]RoutingStep, len(t.Steps))
		for i, step := range t.Steps {
			out.Steps[i] = step
			if step.Recipe != nil {
				recipe := step.Recipe.Clone()
				out.Steps[i].Recipe = &recipe
			}
		}
	}
	return out
}
