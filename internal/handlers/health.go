package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	applog "procrecipe/internal/log"
	"procrecipe/internal/recipes"
	"procrecipe/models"
)

type healthResponse struct {
	Status        string    `json:"status"`
	Time          time.Time `json:"time"`
	ActiveRecipes int       `json:"active_recipes"`
	Error         string    `json:"error,omitempty"`
}

// Health is the readiness probe. It fails with 503 until an engine is configured and
// while the recipe store cannot be listed.
func Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applog.Debug(ctx, "health check requested", "method", r.Method)

	resp := healthResponse{Status: "ok", Time: time.Now().UTC()}
	status := http.StatusOK
	if estimation == nil {
		resp.Status = "unavailable"
		resp.Error = "estimation engine not configured"
		status = http.StatusServiceUnavailable
	} else {
		active, err := estimation.ListRecipes(ctx, recipes.Filter{Status: models.StatusActive})
		if err != nil {
			applog.Warn(ctx, "health check could not list recipes", "error", err)
			resp.Status = "unavailable"
			resp.Error = "recipe store unreachable"
			status = http.StatusServiceUnavailable
		} else {
			resp.ActiveRecipes = len(active)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		applog.Error(ctx, "failed to encode health response", "error", err)
		return
	}
	applog.Debug(ctx, "health check responded", "status", resp.Status)
}
