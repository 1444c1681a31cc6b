package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundpost/soundpost-backend/api/controllers"
	"github.com/soundpost/soundpost-backend/api/middleware"
	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
)

// Deps carries everything the router wires into controllers. Optional
// dependencies (uploads, redis, gcs) may be nil; the affected endpoints
// answer with a typed error instead of panicking.
type Deps struct {
	Posts        controllers.PostsService
	Uploads      controllers.UploadsService
	Store        controllers.ArtifactOpener
	MediaMetrics *metrics.MediaMetrics
	Health       map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/posts", func(r chi.Router) {
			r.Post("/", controllers.CreatePost(deps.Posts, cfg, logg))
			r.Get("/", controllers.ListPosts(deps.Posts, logg))
			r.Route("/{postID}", func(r chi.Router) {
				r.Get("/", controllers.GetPost(deps.Posts, logg))
				r.Patch("/", controllers.UpdatePost(deps.Posts, cfg, logg))
				r.Delete("/", controllers.DeletePost(deps.Posts, cfg, logg))
				r.Get("/media", controllers.StreamMedia(deps.Posts, deps.Store, cfg, deps.MediaMetrics, logg))
				r.Get("/media/mime-type", controllers.MediaMimeType(deps.Posts, deps.Store, logg))
				r.Post("/transcribe", controllers.TranscribePost(deps.Posts, logg))
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/presign", controllers.PresignUpload(deps.Uploads, cfg, logg))
			r.Get("/presign/{postID}", controllers.PresignDownload(deps.Posts, deps.Uploads, logg))
		})
	})

	return r
}
