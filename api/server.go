/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:    Unique ID per request for tracing
  2. AccessLog:    zerolog request line carrying req_id
  3. Recoverer:    Panic recovery (500 instead of crash)
  4. CORS:         Cross-origin requests for the frontend
  5. Authenticate: Bearer token to activity.Session (API routes only)
  6. RequireAdmin: Writes to operators, classes, holidays and scenarios

ROUTE GROUPS:
  /api/periods/*       Pay period lookup
  /api/recurrences/*   Form preview
  /api/activities/*    Batch, grid, list and delete
  /api/aggregates      Dashboard
  /api/counts/*        Monthly counts
  /api/reports/*       xlsx / csv downloads
  /api/holidays/*      Holiday calendar
  /api/operators, /api/classes, /api/assignments
  /api/scenarios/*     Demo data (resets the database)
  /metrics             Prometheus (unauthenticated)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token verification
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/activity-engine/logging"
	"github.com/warp/activity-engine/observability"
)

// RouterOptions configures cross-cutting middleware.
type RouterOptions struct {
	Auth        AuthConfig
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Method(http.MethodGet, "/metrics", observability.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.Auth))

		r.Get("/periods/{month}", h.GetPeriod)
		r.Post("/recurrences/preview", h.PreviewRecurrence)

		// Activity routes
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.ListActivities)
			r.Post("/batch", h.SubmitBatch)
			r.Get("/grid", h.GetGrid)
			r.Post("/grid", h.SubmitGrid)
			r.Post("/delete", h.DeleteActivities)
			r.Delete("/{id}", h.DeleteActivity)
		})

		// Aggregate routes
		r.Get("/aggregates", h.GetAggregates)
		r.Get("/counts/operator", h.CountForOperator)
		r.Get("/counts/group", h.CountForGroup)
		r.Get("/utilization", h.GetUtilization)

		// Report routes
		r.Route("/reports", func(r chi.Router) {
			r.Get("/monthly", h.MonthlyReport)
			r.Get("/annual", h.AnnualReport)
			r.Get("/academic", h.AcademicReport)
			r.Get("/summary", h.SummaryReport)
		})

		// Reference data routes
		r.Route("/operators", func(r chi.Router) {
			r.Get("/", h.ListOperators)
			r.With(RequireAdmin).Post("/", h.CreateOperator)
		})
		r.Route("/classes", func(r chi.Router) {
			r.Get("/", h.ListClasses)
			r.With(RequireAdmin).Post("/", h.CreateClass)
		})
		r.Post("/assignments", h.CreateAssignment)

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.With(RequireAdmin).Post("/", h.CreateHoliday)
			r.With(RequireAdmin).Delete("/{id}", h.DeleteHoliday)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.With(RequireAdmin).Post("/load", h.LoadScenario)
		})
	})

	return r
}
