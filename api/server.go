/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers. The API is a
  localhost control surface for a future tray/UI shell; it is not meant to
  face a network.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Localhost origins only

ROUTE GROUPS:
  /api/status           Engine identity and configuration summary
  /api/calendar/*       Date classification and month views
  /api/schedule/*       Override management
  /api/runs/*           Journaled runs: history and manual triggers
  /api/config/*         Redacted overhead policy
  /api/scenarios/*      Demo scenarios (only with demo mode on)

SECURITY NOTE:
  No authentication middleware. Bind to 127.0.0.1 only.

SEE ALSO:
  - handlers.go: Handler implementations
  - scheduler.go: The daily timer the serve command starts alongside this
  - cmd/timesheet: Server startup
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
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/classify", h.ClassifyDate)
			r.Get("/month", h.GetMonth)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/overrides", h.ListOverrides)
			r.Post("/overrides", h.AddOverride)
			r.Delete("/overrides", h.RemoveOverride)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{id}", h.GetRun)
			r.Post("/reconcile", h.TriggerReconcile)
			r.Post("/verify", h.TriggerVerify)
			r.Post("/submit", h.TriggerSubmit)
		})

		r.Get("/config/overhead", h.GetOverheadConfig)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Landing page for anyone poking at the port directly.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Worklog Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Worklog Engine API</h1>
<ul>
<li><a href="/api/status">/api/status</a> - Engine status</li>
<li><a href="/api/runs">/api/runs</a> - Recent runs</li>
<li><a href="/api/config/overhead">/api/config/overhead</a> - Overhead policy</li>
</ul>
</body>
</html>`))
	})

	return r
}
