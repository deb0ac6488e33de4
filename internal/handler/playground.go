package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/sandbox"
)

//go:embed templates/*.html
var templateFS embed.FS

// PlaygroundHandler renders the operator page for trying snippets
// against the live policy.
type PlaygroundHandler struct {
	templates   *template.Template
	gk          *gatekeeper.Gatekeeper
	authEnabled bool
	logger      *slog.Logger
}

func NewPlaygroundHandler(gk *gatekeeper.Gatekeeper, authEnabled bool, logger *slog.Logger) (*PlaygroundHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/playground.html")
	if err != nil {
		return nil, err
	}
	return &PlaygroundHandler{templates: tmpl, gk: gk, authEnabled: authEnabled, logger: logger}, nil
}

func (h *PlaygroundHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	_, signedIn := auth.SubjectFromContext(r.Context())
	data := map[string]any{
		"Title":       "pygate",
		"Roots":       h.gk.Policy().AllowedImportRoots(),
		"Modules":     sandbox.Modules(),
		"Timeout":     h.gk.Timeout().String(),
		"Backend":     h.gk.Backend(),
		"AuthEnabled": h.authEnabled,
		"SignedIn":    signedIn,
		"Example":     "import matplotlib.pyplot as plt\nx = [1, 2, 3, 4]\nplt.plot(x, [v * v for v in x])\nplt.title('squares')\nplt.show()\nprint(sum(x))",
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
