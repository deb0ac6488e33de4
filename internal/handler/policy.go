package handler

import (
	"net/http"

	"github.com/sakif/pygate/internal/gatekeeper"
	"github.com/sakif/pygate/internal/policy"
	"github.com/sakif/pygate/internal/sandbox"
)

// PolicyHandler exposes the validator without running anything.
type PolicyHandler struct {
	gk *gatekeeper.Gatekeeper
}

func NewPolicyHandler(gk *gatekeeper.Gatekeeper) *PolicyHandler {
	return &PolicyHandler{gk: gk}
}

// PolicyResponse describes what a snippet may use.
type PolicyResponse struct {
	AllowedImportRoots   []string `json:"allowedImportRoots" yaml:"allowed_import_roots"`
	ForbiddenIdentifiers []string `json:"forbiddenIdentifiers" yaml:"forbidden_identifiers"`
	Capabilities         []string `json:"capabilities" yaml:"capabilities"`
	Modules              []string `json:"modules" yaml:"modules"`
	Timeout              string   `json:"timeout" yaml:"timeout"`
	Backend              string   `json:"backend" yaml:"backend"`
}

// DescribePolicy reports the effective policy of gk.
func DescribePolicy(gk *gatekeeper.Gatekeeper) PolicyResponse {
	p := gk.Policy()
	return PolicyResponse{
		AllowedImportRoots:   p.AllowedImportRoots(),
		ForbiddenIdentifiers: p.ForbiddenIdentifiers(),
		Capabilities:         sandbox.Allowlist(),
		Modules:              sandbox.Modules(),
		Timeout:              gk.Timeout().String(),
		Backend:              gk.Backend(),
	}
}

func (h *PolicyHandler) HandlePolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DescribePolicy(h.gk))
}

// HandleValidate reports every violation in the snippet. A rejected
// snippet is a 200 with accepted=false.
func (h *PolicyHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	code, err := decodeCode(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	report := h.gk.Inspect(code)
	if report.Violations == nil {
		report.Violations = []policy.Violation{}
	}
	writeJSON(w, http.StatusOK, report)
}
