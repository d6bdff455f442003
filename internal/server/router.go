package server

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"procrecipe/internal/handlers"
	applog "procrecipe/internal/log"
)

func (s *Server) newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	mux.HandleFunc("GET /healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	mux.Handle("GET /metrics", promhttp.Handler())
	applog.Debug(context.Background(), "route registered", "path", "/metrics")

	s.route(mux, "GET /api/recipes", handlers.ListRecipes)
	s.route(mux, "POST /api/recipes", handlers.CreateRecipe)
	s.route(mux, "POST /api/recipes/match", handlers.MatchRecipe)
	s.route(mux, "GET /api/recipes/{id}", handlers.GetRecipe)
	s.route(mux, "PUT /api/recipes/{id}", handlers.UpdateRecipe)
	s.route(mux, "DELETE /api/recipes/{id}", handlers.DeleteRecipe)
	s.route(mux, "POST /api/recipes/{id}/activate", handlers.ActivateRecipe)
	s.route(mux, "POST /api/recipes/{id}/duplicate", handlers.DuplicateRecipe)

	s.route(mux, "GET /api/routing-templates", handlers.ListRoutingTemplates)
	s.route(mux, "POST /api/routing-templates", handlers.CreateRoutingTemplate)
	s.route(mux, "GET /api/routing-templates/{id}", handlers.GetRoutingTemplate)
	s.route(mux, "POST /api/routing-templates/{id}/estimate", handlers.EstimateRoutingTemplate)

	s.route(mux, "POST /api/estimates/recipe", handlers.EstimateRecipe)
	s.route(mux, "POST /api/estimates/routing", handlers.EstimateRouting)
	s.route(mux, "POST /api/estimates/request", handlers.EstimateRequest)

	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, s.withMiddleware(pattern, handler))
	applog.Debug(context.Background(), "route registered", "pattern", pattern)
}
