// Package config loads snipx settings from a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/snipx-dev/snipx/internal/cache"
)

const (
	DefaultAddr          = "127.0.0.1:8080"
	DefaultIndexURL      = "https://api.github.com/repos/vmware-labs/webassembly-language-runtimes/releases?per_page=100"
	DefaultTimeout       = 10 * time.Second
	DefaultPythonVersion = "^3.11"
)

// Duration is a time.Duration written as a string ("10s", "1m30s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q must not be negative", text)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Server struct {
	Addr string `toml:"addr"`
}

type Database struct {
	Path string `toml:"path"`
}

type Python struct {
	// Version is a semver constraint matched against the release index.
	Version string `toml:"version"`
	// IndexURL lists runtime releases (GitHub releases JSON).
	IndexURL string `toml:"index_url"`
	// BundleURL, when set, is downloaded directly and the index is skipped.
	BundleURL string `toml:"bundle_url"`
	// AllowEnv names extra host variables ("VAR" or "VAR=value") passed to
	// the interpreter.
	AllowEnv []string `toml:"allow_env"`
}

type Execution struct {
	Timeout Duration `toml:"timeout"`
}

// Config is the complete snipx configuration.
type Config struct {
	Server    Server    `toml:"server"`
	Database  Database  `toml:"database"`
	Python    Python    `toml:"python"`
	Execution Execution `toml:"execution"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() (*Config, error) {
	dbPath, err := cache.DatabasePath()
	if err != nil {
		return nil, err
	}
	return &Config{
		Server:    Server{Addr: DefaultAddr},
		Database:  Database{Path: dbPath},
		Python:    Python{Version: DefaultPythonVersion, IndexURL: DefaultIndexURL},
		Execution: Execution{Timeout: Duration{DefaultTimeout}},
	}, nil
}

// Load reads the config file at path over the defaults, then applies
// environment overrides. An empty path means ~/.snipx/config.toml, which may
// be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		if path, err = cache.ConfigPath(); err != nil {
			return nil, err
		}
	}

	md, err := toml.DecodeFile(path, cfg)
	switch {
	case err == nil:
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SNIPX_ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup("SNIPX_DB"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("SNIPX_PYTHON"); ok && v != "" {
		c.Python.Version = v
	}
	if v, ok := lookup("SNIPX_TIMEOUT"); ok && v != "" {
		if err := c.Execution.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("SNIPX_TIMEOUT: %w", err)
		}
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr must not be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Python.BundleURL == "" && c.Python.IndexURL == "" {
		return errors.New("python.index_url or python.bundle_url is required")
	}
	return nil
}
