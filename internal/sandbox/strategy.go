package sandbox

import (
	"context"
	"fmt"
	"time"
)

const successMessage = "Code executed successfully"

// Strategy runs source text for one language and returns display text.
//
// Faults caused by the source itself are rendered into the returned text.
// A non-nil error means the strategy could not do its job at all.
type Strategy interface {
	Language() Language
	Execute(ctx context.Context, source string) (string, error)
}

// Registry maps each language to the strategy that runs it.
type Registry struct {
	strategies map[Language]Strategy
}

// NewRegistry constructs a registry from the supplied strategies.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	reg := &Registry{
		strategies: make(map[Language]Strategy, len(strategies)),
	}

	for _, strategy := range strategies {
		if strategy == nil {
			return nil, fmt.Errorf("strategy cannot be nil")
		}

		lang := strategy.Language()
		if !lang.Valid() {
			return nil, fmt.Errorf("strategy has unsupported language %q", lang)
		}
		if _, exists := reg.strategies[lang]; exists {
			return nil, fmt.Errorf("duplicate strategy for language %q", lang)
		}

		reg.strategies[lang] = strategy
	}

	if len(reg.strategies) == 0 {
		return nil, fmt.Errorf("at least one strategy must be registered")
	}

	return reg, nil
}

// Limits bound every run of the script strategies.
type Limits struct {
	// Timeout interrupts a run that takes longer. Zero means no limit
	// beyond the caller's context.
	Timeout time.Duration
}

// NewDefaultRegistry wires the standard strategies: JavaScript in-process,
// Python through loader, and instructions for C++ and Java.
func NewDefaultRegistry(fallback Console, loader *Loader, limits Limits) (*Registry, error) {
	return NewRegistry(
		NewJavaScript(fallback, JavaScriptOptions{Timeout: limits.Timeout}),
		NewPython(loader, PythonOptions{Timeout: limits.Timeout}),
		NewCPPInstructions(),
		NewJavaInstructions(),
	)
}

// Lookup returns the strategy registered for lang.
func (r *Registry) Lookup(lang Language) (Strategy, bool) {
	strategy, ok := r.strategies[lang]
	return strategy, ok
}

// withTimeout bounds ctx by d when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
