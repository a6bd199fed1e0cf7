package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

type jobCreateRequest struct {
	SourceAssetID string `json:"source_asset_id"`
	TextPrompt    string `json:"text_prompt"`
	Complexity    string `json:"complexity"`
	LineThickness string `json:"line_thickness"`
	CustomPrompt  string `json:"custom_prompt"`
}

type editCreateRequest struct {
	EditPrompt    string `json:"edit_prompt"`
	Complexity    string `json:"complexity"`
	LineThickness string `json:"line_thickness"`
}

// JobsCreate accepts an original submission: either an uploaded source asset
// or a free-text subject, plus the enumerated style parameters.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	prompt := req.CustomPrompt
	if prompt == "" {
		prompt = req.TextPrompt
	}
	job := &domain.Job{
		UserID: userID,
		Params: domain.JobParams{
			Complexity:    domain.Complexity(req.Complexity),
			LineThickness: domain.LineThickness(req.LineThickness),
			CustomPrompt:  prompt,
			SourceAssetID: req.SourceAssetID,
		},
	}
	if err := job.Params.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if req.SourceAssetID != "" {
		if _, err := a.Assets.Get(r.Context(), req.SourceAssetID, userID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				a.error(w, http.StatusNotFound, "not_found", "source asset not found")
				return
			}
			a.Logger.Error().Err(err).Msg("api: source asset lookup failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
			return
		}
	}

	if err := a.Jobs.SubmitOriginal(r.Context(), job); err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

// EditsCreate accepts a derivative submission against a succeeded job in the
// chain. Quota and readiness failures never create a row or debit credit.
func (a *App) EditsCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	parentID := chi.URLParam(r, "job_id")
	var req editCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := domain.ValidateEditPrompt(req.EditPrompt); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job := &domain.Job{
		UserID: userID,
		Params: domain.JobParams{
			Complexity:    domain.Complexity(req.Complexity),
			LineThickness: domain.LineThickness(req.LineThickness),
			EditParentID:  parentID,
			EditPrompt:    req.EditPrompt,
		},
	}
	if err := a.Jobs.SubmitEdit(r.Context(), job); err != nil {
		a.submitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
}

// JobsGet returns the job's current state and, once succeeded, short-lived
// download links for its artifacts.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
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
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("api: job lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}

	resp := a.jobPayload(job)
	if job.Status == domain.JobStatusSucceeded {
		if url, err := a.Links.Issue(r.Context(), userID, domain.EdgeImagePath(userID, job.ID)); err == nil {
			resp["image_url"] = url
		}
		if _, err := a.Assets.GetByJobKind(r.Context(), job.ID, domain.AssetKindPDF); err == nil {
			if url, err := a.Links.Issue(r.Context(), userID, domain.PDFPath(userID, job.ID)); err == nil {
				resp["pdf_url"] = url
			}
		}
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) jobPayload(job *domain.Job) map[string]any {
	payload := map[string]any{
		"id":             job.ID,
		"status":         job.Status,
		"complexity":     job.Params.Complexity,
		"line_thickness": job.Params.LineThickness,
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
	}
	if job.Params.CustomPrompt != "" {
		payload["custom_prompt"] = job.Params.CustomPrompt
	}
	if job.Params.SourceAssetID != "" {
		payload["source_asset_id"] = job.Params.SourceAssetID
	}
	if job.IsEdit() {
		payload["edit_parent_id"] = job.Params.EditParentID
		payload["edit_prompt"] = job.Params.EditPrompt
	}
	if job.Model != "" {
		payload["model"] = job.Model
	}
	if job.Cost > 0 {
		payload["cost"] = job.Cost
	}
	if job.ErrorMessage != "" {
		payload["error"] = job.ErrorMessage
	}
	if job.StartedAt != nil {
		payload["started_at"] = job.StartedAt
	}
	if job.EndedAt != nil {
		payload["ended_at"] = job.EndedAt
	}
	return payload
}

// submitError maps submission failures onto their HTTP shape.
func (a *App) submitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrMaxEditsReached):
		a.error(w, http.StatusConflict, "max_edits_reached", "edit limit reached for this page")
	case errors.Is(err, domain.ErrSourceNotReady):
		a.error(w, http.StatusConflict, "source_not_ready", "the source job has not succeeded")
	default:
		a.Logger.Error().Err(err).Msg("api: submission failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
	}
}
