/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the planning dashboard

ROUTE GROUPS:
  /api/items/*            Item policies, stock, demand, forecasts, per-item planning
  /api/forecasts/*        Batch forecasting
  /api/planning/*         Batch planning
  /api/recommendations/*  Latest recommendations and approval workflow
  /api/scenarios/*        Demo scenarios
  /                       API index page

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Post("/", h.CreateItem)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}/stock", h.PutStock)
			r.Get("/{id}/position", h.GetPosition)
			r.Post("/{id}/demand", h.RecordDemand)
			r.Get("/{id}/demand/series", h.GetDemandSeries)
			r.Post("/{id}/forecast", h.ForecastItem)
			r.Get("/{id}/forecast", h.GetForecast)
			r.Post("/{id}/plan", h.PlanItem)
			r.Get("/{id}/recommendations", h.GetItemRecommendations)
		})

		// Forecast routes
		r.Route("/forecasts", func(r chi.Router) {
			r.Post("/run", h.RunForecasts)
		})

		// Planning routes
		r.Route("/planning", func(r chi.Router) {
			r.Post("/run", h.RunPlanning)
			r.Post("/cycle", h.RunCycle)
		})

		// Recommendation routes
		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/latest", h.LatestRecommendations)
			r.Get("/{id}", h.GetRecommendation)
			r.Post("/{id}/approve", h.ApproveRecommendation)
			r.Post("/{id}/reject", h.RejectRecommendation)
			r.Post("/{id}/complete", h.CompleteRecommendation)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Replenishment Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Replenishment Engine API</h1>
<p>Load a demo with <code>POST /api/scenarios/load {"scenario_id": "stock-out"}</code></p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/items">/api/items</a> - List item policies</li>
<li><a href="/api/recommendations/latest">/api/recommendations/latest</a> - Latest recommendations</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
