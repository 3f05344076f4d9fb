package pyruntime

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/snipx-dev/snipx/internal/cache"
	"github.com/snipx-dev/snipx/internal/index"
)

// Resolution contains the result of resolving a Python requirement.
type Resolution struct {
	Version *semver.Version
	Release index.Release
	Path    string
	Cached  bool
}

// Resolve picks the Python release for constraint ("" or "latest" for the
// newest) and reports whether it is already extracted.
func Resolve(idx *index.Index, constraint string) (*Resolution, error) {
	versions := idx.Versions()

	var (
		version *semver.Version
		err     error
	)
	if constraint == "" || constraint == "latest" {
		version = index.LatestVersion(versions)
		if version == nil {
			return nil, fmt.Errorf("no Python versions available")
		}
	} else {
		version, err = index.MatchingVersion(versions, constraint)
		if err != nil {
			return nil, err
		}
	}

	release, ok := idx.Find(version)
	if !ok {
		return nil, fmt.Errorf("no release for Python %s", version)
	}

	path, err := cache.PythonPath(version.String())
	if err != nil {
		return nil, err
	}

	return &Resolution{
		Version: version,
		Release: release,
		Path:    path,
		Cached:  cache.Exists(path),
	}, nil
}
