package sandbox

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const errorLinePrefix = "ERROR: "

// Console is the diagnostic channel a running snippet writes to.
type Console interface {
	Info(text string)
	Error(text string)
}

// LogConsole forwards console output to a structured logger.
type LogConsole struct {
	Logger zerolog.Logger
}

func (c LogConsole) Info(text string) {
	c.Logger.Info().Str("stream", "console").Msg(text)
}

func (c LogConsole) Error(text string) {
	c.Logger.Error().Str("stream", "console").Msg(text)
}

// Discard drops everything written to it.
type Discard struct{}

func (Discard) Info(string)  {}
func (Discard) Error(string) {}

// recorder buffers console lines for a single Capture call. Once sealed,
// writes go to the fallback console instead.
type recorder struct {
	mu       sync.Mutex
	lines    []string
	sealed   bool
	fallback Console
}

func (r *recorder) Info(text string) {
	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		if r.fallback != nil {
			r.fallback.Info(text)
		}
		return
	}
	r.lines = append(r.lines, text)
	r.mu.Unlock()
}

func (r *recorder) Error(text string) {
	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		if r.fallback != nil {
			r.fallback.Error(text)
		}
		return
	}
	r.lines = append(r.lines, errorLinePrefix+text)
	r.mu.Unlock()
}

func (r *recorder) seal() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return r.lines
}

// Capture runs fn with a console that records everything written to it and
// returns the recorded text. Error lines carry an "ERROR: " prefix and a
// non-nil return value is appended as a "Return value: <v>" line.
//
// The recording console is sealed on every exit path, panics included, so
// writes made through a retained reference after Capture returns reach
// fallback rather than the captured text.
func Capture(fallback Console, fn func(Console) (any, error)) (string, error) {
	rec := &recorder{fallback: fallback}
	defer rec.seal()

	value, err := fn(rec)
	lines := rec.seal()
	if err != nil {
		return strings.Join(lines, "\n"), err
	}
	if value != nil {
		lines = append(lines, fmt.Sprintf("Return value: %v", value))
	}
	return strings.Join(lines, "\n"), nil
}
