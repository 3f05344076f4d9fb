package server

import (
	"net/http"
	"time"

	"github.com/snipx-dev/snipx/internal/sandbox"
)

type snippetSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type snippetRequest struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

type languageView struct {
	ID        sandbox.Language `json:"id"`
	Label     string           `json:"label"`
	Extension string           `json:"extension"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"app":       appName,
	})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs := sandbox.Languages()
	views := make([]languageView, 0, len(langs))
	for _, l := range langs {
		views = append(views, languageView{ID: l, Label: l.Label(), Extension: l.Extension()})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	summaries := make([]snippetSummary, 0, len(snippets))
	for _, sn := range snippets {
		summaries = append(summaries, snippetSummary{
			ID:        sn.ID,
			Title:     sn.Title,
			Preview:   sn.Preview(),
			CreatedAt: sn.CreatedAt,
			UpdatedAt: sn.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCreateSnippet(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.store.Create(r.Context(), req.Title, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snippet, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info().Int64("id", id).Msg("snippet created")
	writeJSON(w, http.StatusCreated, snippet)
}

func (s *Server) handleGetSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	snippet, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

func (s *Server) handleUpdateSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.saveAndRespond(w, r, id, req.Code, req.Title)
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.sessions.dropSnippet(id)
	s.logger.Info().Int64("id", id).Msg("snippet deleted")
	w.WriteHeader(http.StatusNoContent)
}

// saveAndRespond updates a snippet and writes the stored record.
func (s *Server) saveAndRespond(w http.ResponseWriter, r *http.Request, id int64, code, title string) {
	if err := s.store.Update(r.Context(), id, code, title); err != nil {
		s.writeError(w, r, err)
		return
	}

	snippet, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}
