package sandbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type funcStrategy struct {
	lang Language
	fn   func(ctx context.Context, source string) (string, error)
}

func (f *funcStrategy) Language() Language { return f.lang }

func (f *funcStrategy) Execute(ctx context.Context, source string) (string, error) {
	return f.fn(ctx, source)
}

func newTestSession(t *testing.T, loader *Loader, strategies ...Strategy) *Session {
	t.Helper()
	reg, err := NewRegistry(strategies...)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return NewSession(reg, loader, "demo", "")
}

func defaultSession(t *testing.T, loader *Loader) *Session {
	t.Helper()
	reg, err := NewDefaultRegistry(Discard{}, loader, Limits{})
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error: %v", err)
	}
	return NewSession(reg, loader, "demo", "")
}

func TestSession_Run(t *testing.T) {
	t.Run("publishes_javascript_output", func(t *testing.T) {
		s := defaultSession(t, nil)
		s.SetSource("console.log(1+1)")

		got, err := s.Run(context.Background())

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "2" {
			t.Errorf("got %q, want %q", got, "2")
		}
		state := s.Snapshot()
		if state.Output != "2" {
			t.Errorf("Output = %q, want %q", state.Output, "2")
		}
		if state.Running {
			t.Error("session still running after settlement")
		}
	})

	t.Run("releases_busy_flag_when_source_throws", func(t *testing.T) {
		s := defaultSession(t, nil)
		s.SetSource("throw new Error('x')")

		got, _ := s.Run(context.Background())

		if got != "Error: x" {
			t.Errorf("got %q, want %q", got, "Error: x")
		}
		if s.Snapshot().Running {
			t.Error("session still running after failure")
		}
	})

	t.Run("renders_strategy_panic", func(t *testing.T) {
		s := newTestSession(t, nil, &funcStrategy{lang: LanguageJavaScript, fn: func(context.Context, string) (string, error) {
			panic("kaboom")
		}})

		got, err := s.Run(context.Background())

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Error: kaboom" {
			t.Errorf("got %q, want %q", got, "Error: kaboom")
		}
		if s.Snapshot().Running {
			t.Error("session still running after panic")
		}
	})

	t.Run("renders_strategy_error", func(t *testing.T) {
		s := newTestSession(t, nil, &funcStrategy{lang: LanguageJavaScript, fn: func(context.Context, string) (string, error) {
			return "", errors.New("engine unavailable")
		}})

		got, _ := s.Run(context.Background())

		if got != "Error: engine unavailable" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("reports_unsupported_language", func(t *testing.T) {
		s := newTestSession(t, nil, NewJavaScript(Discard{}, JavaScriptOptions{}))
		if err := s.Select(context.Background(), LanguageJava); err != nil {
			t.Fatalf("Select() error: %v", err)
		}

		got, _ := s.Run(context.Background())

		if got != "Language not supported" {
			t.Errorf("got %q, want %q", got, "Language not supported")
		}
	})

	t.Run("passes_current_source_to_strategy", func(t *testing.T) {
		var seen string
		s := newTestSession(t, nil, &funcStrategy{lang: LanguageJavaScript, fn: func(_ context.Context, source string) (string, error) {
			seen = source
			return "ok", nil
		}})
		s.SetSource("first")
		s.SetSource("second")

		_, _ = s.Run(context.Background())

		if seen != "second" {
			t.Errorf("strategy saw %q, want %q", seen, "second")
		}
	})
}

func TestSession_rejects_concurrent_runs(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newTestSession(t, nil, &funcStrategy{lang: LanguageJavaScript, fn: func(context.Context, string) (string, error) {
		close(started)
		<-release
		return "finished", nil
	}})

	done := make(chan string)
	go func() {
		out, _ := s.Run(context.Background())
		done <- out
	}()
	<-started

	state := s.Snapshot()
	if !state.Running || state.CanRun {
		t.Errorf("during run: Running = %v, CanRun = %v", state.Running, state.CanRun)
	}
	if state.Output != "Running..." || state.RunLabel != "Running..." {
		t.Errorf("during run: Output = %q, RunLabel = %q", state.Output, state.RunLabel)
	}

	if _, err := s.Run(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Run() error = %v, want %v", err, ErrBusy)
	}

	close(release)
	if out := <-done; out != "finished" {
		t.Errorf("first run = %q, want %q", out, "finished")
	}

	state = s.Snapshot()
	if state.Running || !state.CanRun || state.Output != "finished" {
		t.Errorf("after run: %+v", state)
	}
}

// blockingInterpreter runs until its context is done.
type blockingInterpreter struct{}

func (blockingInterpreter) Run(ctx context.Context, source string) (Output, error) {
	<-ctx.Done()
	return Output{}, ctx.Err()
}

func TestSession_bounds_python_runs(t *testing.T) {
	loader := readyLoader(t, blockingInterpreter{})
	reg, err := NewDefaultRegistry(Discard{}, loader, Limits{Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error: %v", err)
	}
	s := NewSession(reg, loader, "spin", "while True: pass")
	if err := s.Select(context.Background(), LanguagePython); err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	done := make(chan string, 1)
	go func() {
		out, _ := s.Run(context.Background())
		done <- out
	}()

	select {
	case out := <-done:
		if want := "Python Error: " + context.DeadlineExceeded.Error(); out != want {
			t.Errorf("got %q, want %q", out, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("python run outlived the timeout")
	}
	if s.Snapshot().Running {
		t.Error("session still running after timeout")
	}
}

func TestSession_retries_failed_provisioning(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	interp := &fakeInterpreter{output: Output{Stdout: "ok"}}
	loader := NewLoader("python", ProvisionFunc(func(ctx context.Context) (Interpreter, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		<-release
		return interp, nil
	}), zerolog.Nop())
	s := defaultSession(t, loader)
	s.SetSource("print('ok')")

	_ = s.Select(context.Background(), LanguagePython)
	if state, _ := loader.Wait(context.Background()); state != Failed {
		t.Fatalf("loader state = %s, want %s", state, Failed)
	}

	state := s.Snapshot()
	if state.RunLabel != "Retry" || !state.CanRun || state.Readiness != Failed {
		t.Errorf("after failure: RunLabel = %q, CanRun = %v, Readiness = %s", state.RunLabel, state.CanRun, state.Readiness)
	}

	got, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got != PythonLoadingMessage {
		t.Errorf("got %q, want %q", got, PythonLoadingMessage)
	}
	if loader.State() != Loading {
		t.Errorf("loader state = %s, want %s", loader.State(), Loading)
	}

	close(release)
	if state, err := loader.Wait(context.Background()); state != Ready || err != nil {
		t.Fatalf("loader state = %s, err = %v, want ready", state, err)
	}
	if got, _ := s.Run(context.Background()); got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
	if calls.Load() != 2 {
		t.Errorf("provision calls = %d, want 2", calls.Load())
	}
}

func TestSession_instruction_languages(t *testing.T) {
	s := defaultSession(t, nil)
	s.SetSource("public class Main {}")
	if err := s.Select(context.Background(), LanguageJava); err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	got, err := s.Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != javaInstructions {
		t.Errorf("got %q, want java instructions", got)
	}
	if s.Snapshot().Running {
		t.Error("session still running")
	}
}

func TestSession_Select(t *testing.T) {
	t.Run("python_starts_provisioning", func(t *testing.T) {
		prov := newGatedProvisioner(&fakeInterpreter{})
		loader := NewLoader("python", prov, zerolog.Nop())
		s := defaultSession(t, loader)

		if err := s.Select(context.Background(), LanguagePython); err != nil {
			t.Fatalf("Select() error: %v", err)
		}
		if err := s.Select(context.Background(), LanguagePython); err != nil {
			t.Fatalf("Select() error: %v", err)
		}

		state := s.Snapshot()
		if state.CanRun {
			t.Error("CanRun = true while python is loading")
		}
		if state.RunLabel != "Loading..." {
			t.Errorf("RunLabel = %q, want %q", state.RunLabel, "Loading...")
		}
		if state.Readiness != Loading {
			t.Errorf("Readiness = %s, want %s", state.Readiness, Loading)
		}

		close(prov.release)
		if _, err := loader.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
		if prov.calls.Load() != 1 {
			t.Errorf("provision calls = %d, want 1", prov.calls.Load())
		}

		state = s.Snapshot()
		if !state.CanRun || state.RunLabel != "Run Code" {
			t.Errorf("after ready: CanRun = %v, RunLabel = %q", state.CanRun, state.RunLabel)
		}
	})

	t.Run("python_runs_once_ready", func(t *testing.T) {
		interp := &fakeInterpreter{output: Output{Stdout: "2\n"}}
		loader := readyLoader(t, interp)
		s := defaultSession(t, loader)
		s.SetSource("print(1+1)")
		_ = s.Select(context.Background(), LanguagePython)

		got, _ := s.Run(context.Background())

		if got != "2\n" {
			t.Errorf("got %q, want %q", got, "2\n")
		}
	})

	t.Run("other_languages_do_not_provision", func(t *testing.T) {
		prov := newGatedProvisioner(&fakeInterpreter{})
		loader := NewLoader("python", prov, zerolog.Nop())
		s := defaultSession(t, loader)

		_ = s.Select(context.Background(), LanguageCPP)

		if loader.State() != NotRequested {
			t.Errorf("loader state = %s, want %s", loader.State(), NotRequested)
		}
		if !s.Snapshot().CanRun {
			t.Error("CanRun = false for cpp")
		}
	})

	t.Run("rejects_unknown_language", func(t *testing.T) {
		s := defaultSession(t, nil)

		err := s.Select(context.Background(), Language("ruby"))

		if !errors.Is(err, ErrUnknownLanguage) {
			t.Errorf("err = %v, want %v", err, ErrUnknownLanguage)
		}
		if s.Language() != LanguageJavaScript {
			t.Errorf("Language() = %q, want unchanged", s.Language())
		}
	})
}

func TestNewRegistry(t *testing.T) {
	t.Run("rejects_duplicates", func(t *testing.T) {
		_, err := NewRegistry(NewCPPInstructions(), NewCPPInstructions())
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("rejects_empty", func(t *testing.T) {
		if _, err := NewRegistry(); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("rejects_nil", func(t *testing.T) {
		if _, err := NewRegistry(nil); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("default_covers_every_language", func(t *testing.T) {
		reg, err := NewDefaultRegistry(Discard{}, nil, Limits{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, lang := range Languages() {
			if _, ok := reg.Lookup(lang); !ok {
				t.Errorf("no strategy for %q", lang)
			}
		}
	})
}
