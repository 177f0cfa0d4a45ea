package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concord/internal/guard"
)

// NewRouter wires the public endpoints and the guarded region.
func NewRouter(h *Handler, g *guard.Guard) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/session", h.handleSession)

		// Protected region: every request runs the guard state machine.
		r.Group(func(r chi.Router) {
			r.Use(g.RequireSession)
			r.Get("/account", h.handleAccount)
		})
	})

	return r
}
