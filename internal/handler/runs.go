package handler

import (
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/pygate/internal/apperror"
	"github.com/sakif/pygate/internal/repository"
	"github.com/sakif/pygate/internal/service"
)

// RunHandler serves the run history.
type RunHandler struct {
	runs   *service.RunService
	logger *slog.Logger
}

func NewRunHandler(runs *service.RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

// HandleList supports ?limit, ?offset, ?snippet, ?kind and ?ok=true|false.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := repository.RunFilter{
		ListOptions: repository.ListOptions{Limit: limit, Offset: offset},
		SnippetID:   q.Get("snippet"),
		Kind:        q.Get("kind"),
	}
	if v := q.Get("ok"); v != "" {
		ok, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, apperror.ValidationFailed("ok", "ok must be true or false"))
			return
		}
		filter.OK = &ok
	}

	runs, err := h.runs.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleArtifact downloads one artifact, such as a chart PDF.
func (h *RunHandler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.runs.Artifact(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", a.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		h.logger.Warn("failed to write artifact", slog.String("error", err.Error()))
	}
}
