package pyruntime

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/snipx-dev/snipx/internal/cache"
	"github.com/snipx-dev/snipx/internal/index"
	"github.com/snipx-dev/snipx/internal/sandbox"
	"github.com/snipx-dev/snipx/internal/util"
)

// Options configures a Provisioner.
type Options struct {
	// Version is a semver constraint; empty means the newest release.
	Version string
	// IndexURL lists releases. Ignored when BundleURL is set.
	IndexURL string
	// BundleURL is a runtime tarball to use directly.
	BundleURL string
	// AllowEnv extends the guest environment, see util.FilterEnv.
	AllowEnv []string
	// ShowProgress renders a download progress bar on stderr.
	ShowProgress bool
}

// Provisioner downloads, extracts and compiles the Python runtime.
type Provisioner struct {
	opts   Options
	logger zerolog.Logger
}

var _ sandbox.Provisioner = (*Provisioner)(nil)

func NewProvisioner(opts Options, logger zerolog.Logger) *Provisioner {
	return &Provisioner{opts: opts, logger: logger.With().Str("component", "pyruntime").Logger()}
}

// Locate resolves where the runtime lives without downloading anything.
// For an index-backed runtime it loads (and may refresh) the release index.
func (p *Provisioner) Locate(ctx context.Context) (*Resolution, error) {
	if p.opts.BundleURL != "" {
		path, err := cache.PythonPath(bundleKey(p.opts.BundleURL))
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Release: index.Release{URL: p.opts.BundleURL},
			Path:    path,
			Cached:  cache.Exists(path),
		}, nil
	}

	idx, err := index.Load(ctx, p.opts.IndexURL)
	if err != nil {
		return nil, err
	}
	return Resolve(idx, p.opts.Version)
}

// Provision makes the runtime available and returns a ready interpreter.
func (p *Provisioner) Provision(ctx context.Context) (sandbox.Interpreter, error) {
	res, err := p.Locate(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve python runtime: %w", err)
	}

	log := p.logger.With().Str("path", res.Path).Logger()
	if res.Version != nil {
		log = log.With().Str("version", res.Version.String()).Logger()
	}

	if res.Cached {
		log.Debug().Msg("using cached runtime")
	} else {
		log.Info().Str("url", res.Release.URL).Msg("downloading runtime")
		label := "Python runtime"
		if res.Version != nil {
			label = "Python " + res.Version.String()
		}
		if err := Download(ctx, res.Release.URL, res.Path, label, p.opts.ShowProgress); err != nil {
			return nil, err
		}
	}

	module, err := FindModule(res.Path)
	if err != nil {
		return nil, err
	}

	cacheDir, err := cache.CompileCacheDir()
	if err != nil {
		return nil, err
	}
	if err := cache.EnsureDir(cacheDir); err != nil {
		return nil, err
	}

	interp, err := NewInterpreter(ctx, InterpreterConfig{
		Module:   module,
		Root:     res.Path,
		Env:      util.FilterEnv(p.opts.AllowEnv),
		CacheDir: cacheDir,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("module", module).Msg("runtime ready")
	return interp, nil
}

// bundleKey names the cache directory for a directly configured bundle.
func bundleKey(url string) string {
	h := sha256.Sum256([]byte(url))
	return "bundle-" + hex.EncodeToString(h[:])[:12]
}
