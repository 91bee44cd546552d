/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. AccessLog:  Structured request logging (zerolog)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /healthz                 Liveness plus database ping
  /api/routine-jobs/*      Owner role
  /api/financial-records/* Owner role
  /api/habits/*            Owner role
  /api/tasks/*             Owner role
  /api/goals/*             Owner role
  /api/reconcile/*         Service role
  /api/scenarios/*         Service role (demo data)

SECURITY NOTE:
  The owner id is taken from the X-Owner-ID header set by the gateway.
  Service routes are mounted only when a service key is configured.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Owner and service-key guards
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	CORSOrigins []string
	ServiceKey  string
	Log         zerolog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(opts.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", OwnerHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireOwner)

			r.Route("/routine-jobs", func(r chi.Router) {
				r.Get("/", h.ListRoutineJobs)
				r.Post("/", h.CreateRoutineJob)
				r.Get("/{id}", h.GetRoutineJob)
				r.Put("/{id}", h.UpdateRoutineJob)
				r.Delete("/{id}", h.DeleteRoutineJob)
				r.Post("/{id}/toggle-active", h.ToggleRoutineJobActive)
				r.Get("/{id}/progress", h.GetRoutineJobProgress)

				// Completions are written by the reconciler only.
				r.Post("/{id}/completions", h.RejectCompletionWrite)
				r.Put("/{id}/completions", h.RejectCompletionWrite)
				r.Delete("/{id}/completions", h.RejectCompletionWrite)
			})

			r.Route("/financial-records", func(r chi.Router) {
				r.Get("/", h.ListFinancialRecords)
				r.Post("/", h.CreateFinancialRecord)
				r.Get("/summary", h.GetFinancialSummary)
			})

			r.Route("/habits", func(r chi.Router) {
				r.Get("/", h.ListHabits)
				r.Post("/", h.CreateHabit)
				r.Get("/{id}", h.GetHabit)
				r.Delete("/{id}", h.DeleteHabit)
				r.Post("/{id}/toggle", h.ToggleHabit)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks)
				r.Post("/", h.CreateTask)
				r.Get("/{id}", h.GetTask)
				r.Put("/{id}", h.UpdateTask)
				r.Delete("/{id}", h.DeleteTask)
				r.Post("/{id}/complete", h.CompleteTask)
				r.Post("/{id}/reopen", h.ReopenTask)
			})

			r.Route("/goals", func(r chi.Router) {
				r.Get("/", h.ListGoals)
				r.Post("/", h.CreateGoal)
				r.Get("/{id}", h.GetGoal)
				r.Put("/{id}", h.UpdateGoal)
				r.Delete("/{id}", h.DeleteGoal)
			})
		})

		if opts.ServiceKey == "" {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(RequireServiceKey(opts.ServiceKey))

			r.Post("/reconcile", h.TriggerReconcile)
			r.Get("/reconcile/runs", h.ListReconciliationRuns)
			r.Get("/reconcile/runs/{id}", h.GetReconciliationRun)

			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}

// Health reports liveness and database reachability.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
