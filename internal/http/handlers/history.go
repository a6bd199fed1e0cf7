package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// HistoryGet resolves the chain for any job id in it and returns the
// succeeded versions in order (original first), each with a download link,
// plus an edit-quota summary.
func (a *App) HistoryGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")

	job, err := a.Jobs.Get(r.Context(), jobID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: history lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	originalID := job.ID
	if job.IsEdit() {
		originalID = job.Params.EditParentID
	}

	chain, err := a.Jobs.ListChain(r.Context(), originalID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", originalID).Msg("api: chain lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}

	editCount := 0
	versions := make([]map[string]any, 0, len(chain))
	for _, item := range chain {
		if item.IsEdit() {
			editCount++
		}
		if item.Status != domain.JobStatusSucceeded {
			continue
		}
		version := a.jobPayload(&item)
		if url, err := a.Links.Issue(r.Context(), userID, domain.EdgeImagePath(userID, item.ID)); err == nil {
			version["image_url"] = url
		}
		versions = append(versions, version)
	}

	a.json(w, http.StatusOK, map[string]any{
		"original_job_id": originalID,
		"versions":        versions,
		"has_edits":       editCount > 0,
		"edit_count":      editCount,
		"max_edits":       domain.MaxEditsPerOriginal,
	})
}
