package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Readiness is the lifecycle of a delegated runtime.
type Readiness int

const (
	NotRequested Readiness = iota
	Loading
	Ready
	Failed
)

func (r Readiness) String() string {
	switch r {
	case NotRequested:
		return "not-requested"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// Output is what a delegated interpreter wrote during one run.
type Output struct {
	Stdout string
	Stderr string
}

// Interpreter executes source text inside a delegated language runtime.
//
// Implementations reset their captured stdout and stderr at the start of
// every Run and must be safe for concurrent use.
type Interpreter interface {
	Run(ctx context.Context, source string) (Output, error)
}

// Provisioner fetches and initializes a delegated runtime.
type Provisioner interface {
	Provision(ctx context.Context) (Interpreter, error)
}

// ProvisionFunc adapts a function to the Provisioner interface.
type ProvisionFunc func(ctx context.Context) (Interpreter, error)

func (f ProvisionFunc) Provision(ctx context.Context) (Interpreter, error) {
	return f(ctx)
}

// Loader gates access to a delegated runtime that is provisioned lazily,
// in the background, at most once at a time.
//
// A successful provisioning is permanent. A failed one leaves the loader in
// Failed with the error retained; the next EnsureReady starts a new attempt.
type Loader struct {
	name        string
	provisioner Provisioner
	logger      zerolog.Logger

	mu          sync.Mutex
	state       Readiness
	interpreter Interpreter
	err         error
	done        chan struct{}
}

// NewLoader creates a loader for the named runtime.
func NewLoader(name string, provisioner Provisioner, logger zerolog.Logger) *Loader {
	return &Loader{
		name:        name,
		provisioner: provisioner,
		logger:      logger.With().Str("runtime", name).Logger(),
	}
}

// EnsureReady starts provisioning unless the runtime is already ready or
// loading. It never blocks on the provisioning itself.
func (l *Loader) EnsureReady(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Ready || l.state == Loading {
		return
	}

	l.state = Loading
	l.err = nil
	done := make(chan struct{})
	l.done = done

	l.logger.Info().Msg("provisioning runtime")
	go l.provision(context.WithoutCancel(ctx), done)
}

func (l *Loader) provision(ctx context.Context, done chan struct{}) {
	var (
		interp Interpreter
		err    error
	)

	defer func() {
		if r := recover(); r != nil {
			interp, err = nil, fmt.Errorf("provision %s: panic: %v", l.name, r)
		}

		l.mu.Lock()
		if err != nil {
			l.state = Failed
			l.err = err
			l.logger.Error().Err(err).Msg("runtime provisioning failed")
		} else {
			l.state = Ready
			l.interpreter = interp
			l.logger.Info().Msg("runtime ready")
		}
		l.mu.Unlock()
		close(done)
	}()

	interp, err = l.provisioner.Provision(ctx)
	if err == nil && interp == nil {
		err = fmt.Errorf("provision %s: provisioner returned no interpreter", l.name)
	}
}

// State returns the current readiness.
func (l *Loader) State() Readiness {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the error from the last failed provisioning attempt.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Interpreter returns the provisioned runtime once the loader is ready.
func (l *Loader) Interpreter() (Interpreter, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Ready {
		return nil, false
	}
	return l.interpreter, true
}

// Wait blocks until an in-flight provisioning settles or ctx is done. It
// returns immediately when nothing is loading.
func (l *Loader) Wait(ctx context.Context) (Readiness, error) {
	l.mu.Lock()
	state, done := l.state, l.done
	l.mu.Unlock()

	if state != Loading {
		return state, l.Err()
	}

	select {
	case <-done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.state, l.err
	case <-ctx.Done():
		return Loading, ctx.Err()
	}
}
