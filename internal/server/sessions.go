package server

import (
	"fmt"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snipx-dev/snipx/internal/sandbox"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	maxSessions        = 1024
)

// editorSession ties a sandbox session to the snippet it was opened from.
type editorSession struct {
	id        string
	snippetID int64
	session   *sandbox.Session
	lastUsed  time.Time
}

// sessionTable holds open editor sessions. Sessions unused for longer than
// idle are dropped, and opening one past max drops the least recently used.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*editorSession
	now      func() time.Time
	idle     time.Duration
	max      int
}

func newSessionTable(now func() time.Time) *sessionTable {
	return &sessionTable{
		sessions: make(map[string]*editorSession),
		now:      now,
		idle:     sessionIdleTimeout,
		max:      maxSessions,
	}
}

func (t *sessionTable) add(es *editorSession) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.expire(now)
	for len(t.sessions) >= t.max {
		t.evictOldest()
	}
	es.lastUsed = now
	t.sessions[es.id] = es
}

func (t *sessionTable) get(id string) (*editorSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	es, ok := t.sessions[id]
	if ok && now.Sub(es.lastUsed) > t.idle {
		delete(t.sessions, id)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	es.lastUsed = now
	return es, nil
}

func (t *sessionTable) expire(now time.Time) {
	for id, es := range t.sessions {
		if now.Sub(es.lastUsed) > t.idle {
			delete(t.sessions, id)
		}
	}
}

func (t *sessionTable) evictOldest() {
	var oldest *editorSession
	for _, es := range t.sessions {
		if oldest == nil || es.lastUsed.Before(oldest.lastUsed) {
			oldest = es
		}
	}
	if oldest != nil {
		delete(t.sessions, oldest.id)
	}
}

func (t *sessionTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *sessionTable) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.sessions[id]
	delete(t.sessions, id)
	return ok
}

// dropSnippet closes every session opened from snippet id.
func (t *sessionTable) dropSnippet(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for sid, es := range t.sessions {
		if es.snippetID == id {
			delete(t.sessions, sid)
		}
	}
}

type sessionView struct {
	ID            string           `json:"id"`
	SnippetID     int64            `json:"snippet_id"`
	Title         string           `json:"title"`
	Code          string           `json:"code"`
	Language      sandbox.Language `json:"language"`
	LanguageLabel string           `json:"language_label"`
	Output        string           `json:"output"`
	Busy          bool             `json:"busy"`
	CanRun        bool             `json:"can_run"`
	RunLabel      string           `json:"run_label"`
	Readiness     string           `json:"readiness"`
}

func viewOf(es *editorSession) sessionView {
	st := es.session.Snapshot()
	return sessionView{
		ID:            es.id,
		SnippetID:     es.snippetID,
		Title:         st.Title,
		Code:          st.Source,
		Language:      st.Language,
		LanguageLabel: st.Language.Label(),
		Output:        st.Output,
		Busy:          st.Running,
		CanRun:        st.CanRun,
		RunLabel:      st.RunLabel,
		Readiness:     st.Readiness.String(),
	}
}

type sessionPatch struct {
	Title    *string `json:"title"`
	Code     *string `json:"code"`
	Language *string `json:"language"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
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

	es := &editorSession{
		id:        uuid.NewString(),
		snippetID: snippet.ID,
		session:   sandbox.NewSession(s.registry, s.loader, snippet.Title, snippet.Code),
	}
	s.sessions.add(es)

	s.logger.Debug().Str("session", es.id).Int64("snippet", id).Msg("session opened")
	writeJSON(w, http.StatusCreated, viewOf(es))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	es, err := s.sessions.get(r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(es))
}

func (s *Server) handlePatchSession(w http.ResponseWriter, r *http.Request) {
	es, err := s.sessions.get(r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var patch sessionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}

	if patch.Language != nil {
		lang, err := sandbox.ParseLanguage(*patch.Language)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		// Provisioning outlives this request.
		if err := es.session.Select(r.Context(), lang); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if patch.Title != nil {
		es.session.SetTitle(*patch.Title)
	}
	if patch.Code != nil {
		es.session.SetSource(*patch.Code)
	}

	writeJSON(w, http.StatusOK, viewOf(es))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(r.PathValue("sid")) {
		s.writeError(w, r, fmt.Errorf("%w: %s", errSessionNotFound, r.PathValue("sid")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	es, err := s.sessions.get(r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := es.session.Run(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Debug().Str("session", es.id).Str("language", string(es.session.Language())).Msg("run finished")
	writeJSON(w, http.StatusOK, viewOf(es))
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	es, err := s.sessions.get(r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.saveAndRespond(w, r, es.snippetID, es.session.Source(), es.session.Title())
}

func (s *Server) handleDownloadSession(w http.ResponseWriter, r *http.Request) {
	es, err := s.sessions.get(r.PathValue("sid"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name, _ := es.session.Export()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := es.session.WriteTo(w); err != nil {
		s.logger.Warn().Err(err).Str("session", es.id).Msg("download interrupted")
	}
}
