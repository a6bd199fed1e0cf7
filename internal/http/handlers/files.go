package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
)

// FilesDownload streams the asset behind a short-lived link token. The token
// itself is the authorization; expired tokens are indistinguishable from
// unknown ones.
func (a *App) FilesDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	_, path, err := a.Links.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "link expired or unknown")
			return
		}
		a.Logger.Error().Err(err).Msg("api: link resolve failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve link")
		return
	}

	data, err := a.Store.Read(r.Context(), path)
	if err != nil {
		a.Logger.Error().Err(err).Str("path", path).Msg("api: file read failed")
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}

	w.Header().Set("Content-Type", contentTypeForPath(path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func contentTypeForPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
