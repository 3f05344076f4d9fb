package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "SNIPX_HOME"

// Targets are the values accepted by Clean.
var Targets = []string{"python", "index", "compiled", "all"}

// Dir returns the base cache directory ($SNIPX_HOME or ~/.snipx).
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".snipx"), nil
}

func subdir(name string) (string, error) {
	base, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, name), nil
}

// IndexDir returns the path to the release index cache directory.
func IndexDir() (string, error) {
	return subdir("index")
}

// PythonDir returns the path to the extracted Python runtimes.
func PythonDir() (string, error) {
	return subdir("python")
}

// PythonPath returns the root of a specific extracted Python runtime.
func PythonPath(version string) (string, error) {
	dir, err := PythonDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, version), nil
}

// CompileCacheDir returns the path where compiled wasm modules are kept.
func CompileCacheDir() (string, error) {
	return subdir("wazero")
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	return subdir("config.toml")
}

// DatabasePath returns the default snippet database path.
func DatabasePath() (string, error) {
	return subdir("snippets.db")
}

// InstalledPythons lists the versions extracted under PythonDir, sorted.
func InstalledPythons() ([]string, error) {
	dir, err := PythonDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Exists checks if a path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Clean removes cache items based on the specified target.
// Valid targets: "python", "index", "compiled", "all". "all" keeps the
// config file and snippet database.
func Clean(target string) error {
	base, err := Dir()
	if err != nil {
		return err
	}

	switch target {
	case "python":
		return os.RemoveAll(filepath.Join(base, "python"))
	case "index":
		return os.RemoveAll(filepath.Join(base, "index"))
	case "compiled":
		return os.RemoveAll(filepath.Join(base, "wazero"))
	case "all":
		for _, name := range []string{"python", "index", "wazero"} {
			if err := os.RemoveAll(filepath.Join(base, name)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown cache target %q (want one of %v)", target, Targets)
	}
}
