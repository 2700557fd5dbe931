package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/dial-agent-go/internal/middleware"
)

type Handlers struct {
	Status       *StatusHandler
	Recordings   *RecordingHandler
	Events       *EventsHandler
	Metrics      http.Handler
	ControlToken string
}

// NewRouter builds the local control API.
func NewRouter(h Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", h.Status.Health)
	r.Handle("/metrics", h.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.NewControlAuth(h.ControlToken).Handler)

		r.Get("/status", h.Status.Status)
		r.Get("/calls/last", h.Status.LastCall)
		r.Get("/events", h.Events.ServeHTTP)

		r.Route("/recordings", func(r chi.Router) {
			r.Get("/stats", h.Recordings.Stats)
			r.With(middleware.BodyLimit(0)).Post("/cleanup", h.Recordings.Cleanup)
			r.Post("/enable", h.Recordings.Enable)
		})
	})

	return r
}
