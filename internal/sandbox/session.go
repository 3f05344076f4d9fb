// Package sandbox runs snippet source for the editor: one strategy per
// language, a lazily provisioned delegated runtime, and per-session run state.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBusy is returned by Session.Run while a previous run is still in flight.
var ErrBusy = errors.New("a run is already in progress")

const (
	runningLabel = "Running..."
	loadingLabel = "Loading..."
	retryLabel   = "Retry"
	runLabel     = "Run Code"

	unsupportedMessage = "Language not supported"
)

// State is a point-in-time view of a session.
type State struct {
	Title     string
	Source    string
	Language  Language
	Output    string
	Running   bool
	CanRun    bool
	RunLabel  string
	Readiness Readiness
}

// Session is one editor's view of a snippet: its title, source, selected
// language and last output. At most one run is in flight per session.
type Session struct {
	registry *Registry
	loader   *Loader

	mu       sync.Mutex
	title    string
	source   string
	language Language
	output   string
	running  bool
}

// NewSession creates a session with JavaScript selected.
func NewSession(registry *Registry, loader *Loader, title, source string) *Session {
	return &Session{
		registry: registry,
		loader:   loader,
		title:    title,
		source:   source,
		language: LanguageJavaScript,
	}
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

func (s *Session) SetSource(source string) {
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()
}

// Select changes the active language. Selecting Python starts provisioning
// its runtime if that has not happened yet.
func (s *Session) Select(ctx context.Context, lang Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}

	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()

	if lang == LanguagePython && s.loader != nil {
		s.loader.EnsureReady(ctx)
	}
	return nil
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) Language() Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Snapshot returns the current state, including the run affordance.
func (s *Session) Snapshot() State {
	readiness := s.readiness()

	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		Title:     s.title,
		Source:    s.source,
		Language:  s.language,
		Output:    s.output,
		Running:   s.running,
		Readiness: readiness,
	}

	python := s.language == LanguagePython
	waiting := python && (readiness == NotRequested || readiness == Loading)
	switch {
	case s.running:
		state.RunLabel = runningLabel
	case python && readiness == Failed:
		state.RunLabel = retryLabel
	case waiting:
		state.RunLabel = loadingLabel
	default:
		state.RunLabel = runLabel
	}
	state.CanRun = !s.running && !waiting
	return state
}

func (s *Session) readiness() Readiness {
	if s.loader == nil {
		return NotRequested
	}
	return s.loader.State()
}

// Run executes the current source with the selected language's strategy and
// publishes the result as the session output. It returns ErrBusy without
// side effects when a run is already in flight.
func (s *Session) Run(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", ErrBusy
	}
	s.running = true
	s.output = runningLabel
	lang, source := s.language, s.source
	s.mu.Unlock()

	// Running after a failed provisioning starts another attempt.
	if lang == LanguagePython && s.loader != nil && s.loader.State() == Failed {
		s.loader.EnsureReady(ctx)
	}

	var out string
	defer func() {
		s.mu.Lock()
		s.output = out
		s.running = false
		s.mu.Unlock()
	}()

	out = s.execute(ctx, lang, source)
	return out, nil
}

func (s *Session) execute(ctx context.Context, lang Language, source string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error: %v", r)
		}
	}()

	strategy, ok := s.registry.Lookup(lang)
	if !ok {
		return unsupportedMessage
	}

	text, err := strategy.Execute(ctx, source)
	if err != nil {
		return "Error: " + err.Error()
	}
	return text
}
