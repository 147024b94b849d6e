package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vitaria/catalog/internal/api"
	"github.com/vitaria/catalog/internal/logging"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Secret         []byte
	AllowedOrigins []string
	Log            logging.Logger
	// Metrics and MetricsHandler are optional.
	Metrics        *Metrics
	MetricsHandler http.Handler
}

// NewRouter mounts h under /api/v1 together with /health and, when
// configured, /metrics.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(Logger(log))
	r.Use(chiMiddleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Handler)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	r.Route(api.BasePath, func(r chi.Router) {
		r.Post("/auth/token", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(opts.Secret))

			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)

			r.Route("/uploads", func(r chi.Router) {
				r.Post("/avatar", h.PresignAvatarUpload)
				r.Post("/products/{id}", h.PresignProductUploads)
				r.Post("/view-urls", h.ViewURLs)
				r.Post("/discard", h.DiscardUploads)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Post("/", h.CreateProduct)
				r.Get("/{id}", h.GetProduct)
				r.Put("/{id}/images", h.SaveProductImages)
				r.Delete("/{id}", h.DeleteProduct)
			})

			r.Post("/users", h.CreateUser)
			r.Delete("/users/{id}", h.DeleteUser)
			r.Get("/activity", h.RecentActivity)
		})
	})

	return r
}
