package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/directory"
)

// Handler is the HTTP adapter over the directory API. The application service
// is only used to authenticate bearer tokens.
type Handler struct {
	service   *application.Service
	api       *directory.API
	gatherer  prometheus.Gatherer
	readiness func(context.Context) error
}

// NewHandler wires the adapter. gatherer and readiness may be nil.
func NewHandler(service *application.Service, api *directory.API, gatherer prometheus.Gatherer, readiness func(context.Context) error) *Handler {
	return &Handler{service: service, api: api, gatherer: gatherer, readiness: readiness}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(handler.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1/users", func(r chi.Router) {
		r.Get("/username-availability", handler.checkUsername)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/", handler.createUser)
			r.Get("/by-phone/{phone}", handler.getUserByPhone)
			r.Get("/by-username/{username}", handler.getUserByUsername)
			r.Get("/me", handler.getMe)
			r.Get("/{user_id}", handler.getUserByID)
			r.Patch("/{user_id}/fields/{field}", handler.updateField)
			r.Get("/{user_id}/visibility", handler.getVisibilitySettings)
			r.Put("/{user_id}/visibility/{field_kind}/viewers/{viewer_id}", handler.grantVisibility)
			r.Delete("/{user_id}/visibility/{field_kind}/viewers/{viewer_id}", handler.revokeVisibility)
			r.Delete("/{user_id}", handler.deleteUser)
		})
	})
	return r
}
