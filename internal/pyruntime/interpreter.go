// Package pyruntime provisions and runs the Python interpreter compiled to
// WebAssembly (WASI), hosted in-process by wazero.
package pyruntime

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/snipx-dev/snipx/internal/sandbox"
	"github.com/snipx-dev/snipx/internal/util"
)

// ExecError reports a non-zero interpreter exit.
type ExecError struct {
	ExitCode uint32
	Stderr   string
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("exit status %d", e.ExitCode)
}

// InterpreterConfig describes a compiled runtime.
type InterpreterConfig struct {
	// Module is the path of the python wasm binary.
	Module string
	// Root is the host directory mounted read-only at "/" in the guest.
	Root string
	// Env is the guest environment as "VAR=value" entries.
	Env []string
	// CacheDir keeps compiled machine code between processes. Optional.
	CacheDir string
}

// Interpreter runs Python source in a fresh module instance per call. The
// compiled module and stdout/stderr buffers are shared, so runs are
// serialised.
type Interpreter struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	root     string
	env      []string

	mu     sync.Mutex
	stdout bytes.Buffer
	stderr bytes.Buffer
}

var _ sandbox.Interpreter = (*Interpreter)(nil)

// NewInterpreter compiles the module described by cfg.
func NewInterpreter(ctx context.Context, cfg InterpreterConfig) (*Interpreter, error) {
	wasm, err := os.ReadFile(cfg.Module)
	if err != nil {
		return nil, fmt.Errorf("read python module: %w", err)
	}

	rc := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.CacheDir != "" {
		cc, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open compilation cache: %w", err)
		}
		rc = rc.WithCompilationCache(cc)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("compile python module: %w", err)
	}

	return &Interpreter{
		runtime:  rt,
		compiled: compiled,
		root:     cfg.Root,
		env:      cfg.Env,
	}, nil
}

// Run executes source as `python -c source`. A non-zero exit returns an
// *ExecError alongside the captured output; a cancelled ctx returns its
// error.
func (i *Interpreter) Run(ctx context.Context, source string) (sandbox.Output, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.stdout.Reset()
	i.stderr.Reset()

	mc := wazero.NewModuleConfig().
		WithName("").
		WithArgs("python", "-c", source).
		WithStdout(&i.stdout).
		WithStderr(&i.stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)
	if i.root != "" {
		mc = mc.WithFSConfig(wazero.NewFSConfig().WithReadOnlyDirMount(i.root, "/"))
	}
	for _, entry := range i.env {
		if name, value, ok := util.SplitEnv(entry); ok {
			mc = mc.WithEnv(name, value)
		}
	}

	mod, err := i.runtime.InstantiateModule(ctx, i.compiled, mc)
	if mod != nil {
		_ = mod.Close(ctx)
	}

	out := sandbox.Output{Stdout: i.stdout.String(), Stderr: i.stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return out, nil
		}
		return out, &ExecError{ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(out.Stderr)}
	}
	return out, err
}

// Close releases the runtime and compiled module.
func (i *Interpreter) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}
