package server

import (
	"net/http"

	"github.com/snipx-dev/snipx/internal/sandbox"
)

type runtimeView struct {
	Language  sandbox.Language `json:"language"`
	Readiness string           `json:"readiness"`
	Error     string           `json:"error,omitempty"`
}

func (s *Server) runtimeState() runtimeView {
	view := runtimeView{Language: sandbox.LanguagePython, Readiness: sandbox.NotRequested.String()}
	if s.loader == nil {
		return view
	}
	view.Readiness = s.loader.State().String()
	if err := s.loader.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

func (s *Server) handleRuntimeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runtimeState())
}

// handleRuntimeProvision starts provisioning and returns immediately; poll
// GET /api/runtime for the outcome.
func (s *Server) handleRuntimeProvision(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "python runtime is not configured"})
		return
	}
	s.loader.EnsureReady(r.Context())
	writeJSON(w, http.StatusAccepted, s.runtimeState())
}
