// Package http provides the HTTP delivery layer of the link shortener.
// It contains the owner API, the public redirect endpoint and the
// middleware identifying link owners.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	httpSwagger "github.com/swaggo/http-swagger"
)

// NewRouter builds the chi router serving the API, the swagger docs and the
// short code redirects.
func NewRouter(logger *httplog.Logger, links linkUseCase, resolver linkResolver, jwtSecret []byte) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hideQueryPassword)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer(logger.Logger))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)

		r.Route("/links", func(r chi.Router) {
			r.Use(authenticate(jwtSecret))

			h := newLinkHandler(links, validator.New())

			r.Post("/", h.createLink)
			r.With(requireOwner).Get("/", h.listLinks)

			r.Route("/{shortCode}", func(r chi.Router) {
				r.Get("/short-url", h.getShortURL)

				r.Group(func(r chi.Router) {
					r.Use(requireOwner)

					r.Get("/", h.getLink)
					r.Patch("/", h.updateLink)
					r.Get("/stats", h.getStats)
				})
			})
		})
	})

	rh := newRedirectHandler(resolver)

	r.Route("/{shortCode}", func(r chi.Router) {
		r.Get("/", rh.redirect)
		r.Post("/", rh.redirect)
	})

	return r
}
