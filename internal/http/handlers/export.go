package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/pdf"
)

type exportRequest struct {
	PaperSize string `json:"paper_size"`
	Title     string `json:"title"`
}

// ExportPDF renders a succeeded job's image onto the requested paper size and
// returns a short-lived link to the document. The rendered file is stored at
// its fixed path, so repeated exports overwrite rather than accumulate.
func (a *App) ExportPDF(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Jobs.Get(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: export lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}
	if job.Status != domain.JobStatusSucceeded {
		a.error(w, http.StatusConflict, "source_not_ready", "job has not succeeded")
		return
	}

	image, err := a.Store.Read(r.Context(), domain.EdgeImagePath(userID, job.ID))
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: export image read failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}

	doc, err := pdf.Render(image, pdf.PaperSize(req.PaperSize), req.Title)
	if err != nil {
		if errors.Is(err, pdf.ErrUnsupportedPaperSize) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: pdf render failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}

	key := domain.PDFPath(userID, job.ID)
	if _, err := a.Store.Write(r.Context(), key, doc); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: pdf store failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}
	if err := a.Assets.Create(r.Context(), &domain.Asset{
		UserID:      userID,
		JobID:       job.ID,
		Kind:        domain.AssetKindPDF,
		StoragePath: key,
		ByteSize:    int64(len(doc)),
	}); err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: pdf asset record failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}

	url, err := a.Links.Issue(r.Context(), userID, key)
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: pdf link issue failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to export")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"pdf_url": url})
}
