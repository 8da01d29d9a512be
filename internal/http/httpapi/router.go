package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"outfitswap/internal/http/handlers"
	"outfitswap/internal/infra"
	"outfitswap/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/state", app.State)
		r.Get("/feed", app.Feed)
		r.Get("/display/{token}", app.DisplayAsset)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))

			r.Put("/base", app.PutBase)
			r.Delete("/base", app.DeleteBase)
			r.Post("/outfits", app.PostOutfits)
			r.Delete("/outfits/{id}", app.DeleteOutfit)
			r.Post("/generate", app.Generate)
		})

		r.Get("/jobs/{id}/result", app.JobResult)
		r.Get("/results.zip", app.ResultsZip)
	})

	return r
}
