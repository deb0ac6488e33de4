package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/pygate/internal/service"
)

// ExecuteHandler serves the two ways of running a snippet: the python_repl
// tool, which answers in the agent text contract, and /api/execute, which
// returns the stored run record.
type ExecuteHandler struct {
	runs   *service.RunService
	logger *slog.Logger
}

func NewExecuteHandler(runs *service.RunService, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{runs: runs, logger: logger}
}

// HandleExecute runs the snippet and returns its run record. Rejected and
// failed snippets are still 200: the record carries kind and reason.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := h.runs.Execute(r.Context(), caller(r), code)
	if err != nil {
		h.logger.Error("execute failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleTool is the python_repl tool endpoint. The body is the plain text
// tool response.
func (h *ExecuteHandler) HandleTool(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := h.runs.Tool(r.Context(), caller(r), code)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		h.logger.Warn("failed to write tool response", slog.String("error", err.Error()))
	}
}
