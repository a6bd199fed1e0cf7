package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter assembles the API surface.
func NewRouter(app *handlers.App, logger infra.Logger) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Identity)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobsCreate)
		r.Get("/{job_id}", app.JobsGet)
		r.Post("/{job_id}/edits", app.EditsCreate)
		r.Get("/{job_id}/history", app.HistoryGet)
		r.Post("/{job_id}/export", app.ExportPDF)
	})

	r.Post("/v1/webhooks/payments", app.PaymentsWebhook)
	r.Get("/v1/files/{token}", app.FilesDownload)

	return r
}
