package handlers

import (
	"net/http"
	"strings"

	"procrecipe/internal/engine"
	"procrecipe/models"
)

type routingStepPayload struct {
	Seq      int    `json:"seq"`
	RecipeID string `json:"recipe_id"`
	Notes    string `json:"notes"`
}

type routingTemplatePayload struct {
	Name        string               `json:"name"`
	Division    string               `json:"division"`
	Description string               `json:"description"`
	Steps       []routingStepPayload `json:"steps"`
}

func (p routingTemplatePayload) template() models.RoutingTemplate {
	tpl := models.RoutingTemplate{
		Name:        p.Name,
		Division:    p.Division,
		Description: p.Description,
		Steps:       make([]models.RoutingStep, 0, len(p.Steps)),
	}
	for _, step := range p.Steps {
		tpl.Steps = append(tpl.Steps, models.RoutingStep{
			Seq:      step.Seq,
			RecipeID: strings.TrimSpace(step.RecipeID),
			Notes:    step.Notes,
		})
	}
	return tpl
}

func ListRoutingTemplates(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	templates, err := estimation.ListRoutingTemplates(r.Context(), strings.TrimSpace(r.URL.Query().Get("division")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func GetRoutingTemplate(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	tpl, err := estimation.GetRoutingTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func CreateRoutingTemplate(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var payload routingTemplatePayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	tpl, err := estimation.CreateRoutingTemplate(r.Context(), payload.template())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

// EstimateRoutingTemplate estimates a stored template with the order parameters in the
// body. An empty body estimates one unit with no material context.
func EstimateRoutingTemplate(w http.ResponseWriter, r *http.Request) {
	if !available(w, r) {
		return
	}
	var rc engine.RequestContext
	if r.ContentLength != 0 && !decodeJSON(w, r, &rc) {
		return
	}
	estimate, err := estimation.EstimateRoutingTemplate(r.Context(), r.PathValue("id"), rc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, estimate)
}
