package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.Middleware)
	r.Use(apiVersion)

	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/appdata/{app}", func(r chi.Router) {
		r.Use(h.appAuth)

		r.Get("/", h.Ping)

		r.Group(func(r chi.Router) {
			r.Use(h.userAuth)

			r.Route("/{collection}", func(r chi.Router) {
				r.Get("/", h.Find)
				r.Post("/", h.Create)
				r.Delete("/", h.DeleteByQuery)
				r.Get("/_count", h.Count)
				r.Post("/_group", h.Group)
				r.Get("/{id}", h.Get)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
		})
	})

	r.Route("/blob/{app}", func(r chi.Router) {
		r.Use(h.appAuth)
		r.Use(h.userAuth)

		r.Get("/", h.Find)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})

	r.Route("/user/{app}", func(r chi.Router) {
		r.Use(h.appAuth)

		r.Post("/", h.Signup)
		r.Post("/login", h.Login)
	})

	return r
}
