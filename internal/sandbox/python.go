package sandbox

import (
	"context"
	"time"
)

// PythonLoadingMessage is returned when Python is run before its runtime is ready.
const PythonLoadingMessage = "Python runtime is loading... Please wait and try again."

// PythonOptions tunes the delegated Python strategy.
type PythonOptions struct {
	// Timeout stops a run that takes longer, releasing the shared
	// interpreter for other sessions. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
}

// Python runs source in the delegated interpreter held by a Loader.
type Python struct {
	loader  *Loader
	timeout time.Duration
}

func NewPython(loader *Loader, opts PythonOptions) *Python {
	return &Python{loader: loader, timeout: opts.Timeout}
}

func (p *Python) Language() Language {
	return LanguagePython
}

// Execute runs source when the runtime is ready and reports the advisory
// loading text otherwise. Interpreter faults are rendered, not returned.
func (p *Python) Execute(ctx context.Context, source string) (string, error) {
	if p.loader == nil {
		return PythonLoadingMessage, nil
	}

	interp, ok := p.loader.Interpreter()
	if !ok {
		return PythonLoadingMessage, nil
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := interp.Run(ctx, source)
	if err != nil {
		return "Python Error: " + err.Error(), nil
	}

	text := out.Stdout
	if out.Stderr != "" {
		text += "\nErrors:\n" + out.Stderr
	}
	if text == "" {
		return successMessage, nil
	}
	return text, nil
}
