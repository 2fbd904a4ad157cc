/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the mobile and web clients

ROUTE GROUPS:
  /api/agreements/*     Agreements and their occurrences
  /api/entities/*       Reward points per requester or collector
  /api/calendar/*       Date preview and period helpers
  /api/scenarios/*      Demo scenarios
  /api/admin/*          Admin operations

SECURITY NOTE:
  No authentication middleware. The actor role is taken from the request
  body; callers are trusted to send their own role.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows every origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/materials", h.ListMaterials)
		r.Get("/notices", h.ListNotices)

		// Agreement routes
		r.Route("/agreements", func(r chi.Router) {
			r.Get("/", h.ListAgreements)
			r.Post("/", h.CreateAgreement)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAgreement)
				r.Get("/timeline", h.GetTimeline)
				r.Post("/accept", h.AcceptAgreement)
				r.Post("/decline", h.DeclineAgreement)
				r.Post("/cancel", h.CancelAgreement)

				// Occurrence routes
				r.Route("/occurrences/{occurrenceID}", func(r chi.Router) {
					r.Put("/", h.EditOccurrence)
					r.Post("/register", h.RegisterCollection)
					r.Post("/cancel", h.CancelOccurrence)
					r.Post("/ratings", h.RateOccurrence)
				})
			})
		})

		// Rewards routes
		r.Route("/entities/{id}/rewards", func(r chi.Router) {
			r.Get("/", h.GetRewards)
			r.Get("/transactions", h.GetRewardTransactions)
			r.Post("/adjustments", h.CreateAdjustment)
		})

		// Calendar routes
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/preview", h.PreviewDates)
			r.Get("/period", h.ClassifyTime)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/reminders", h.TriggerReminders)
		})
	})

	return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			}).Info("request handled")
		})
	}
}
