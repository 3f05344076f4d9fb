package pyruntime

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// ErrNoBundle is returned when an extracted runtime contains no Python
// wasm module.
var ErrNoBundle = errors.New("no python wasm module in runtime bundle")

// Download fetches a runtime tarball from url and extracts it to destDir.
// Extraction goes through a sibling temporary directory so a failed
// download never leaves a half-populated destDir behind.
func Download(ctx context.Context, url, destDir, label string, showProgress bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to download Python: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download Python: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download Python: HTTP %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp(filepath.Dir(destDir), ".download-")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	var reader io.Reader = resp.Body
	if showProgress {
		bar := progressbar.DefaultBytes(
			resp.ContentLength,
			fmt.Sprintf("Downloading %s", label),
		)
		reader = io.TeeReader(resp.Body, bar)
	}

	if err := extractTarGz(reader, tmpDir); err != nil {
		return fmt.Errorf("failed to extract Python: %w", err)
	}

	if _, err := FindModule(tmpDir); err != nil {
		return err
	}

	if err := os.RemoveAll(destDir); err != nil {
		return err
	}
	return os.Rename(tmpDir, destDir)
}

// FindModule returns the Python wasm module inside an extracted runtime,
// preferring one under a bin directory.
func FindModule(root string) (string, error) {
	var candidates []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, "python") && strings.HasSuffix(name, ".wasm") {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan runtime bundle: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoBundle, root)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return inBin(candidates[i]) && !inBin(candidates[j])
	})
	return candidates[0], nil
}

func inBin(path string) bool {
	return filepath.Base(filepath.Dir(path)) == "bin"
}

// isPathWithinDir checks if target path is safely within the base directory.
// This prevents path traversal attacks where malicious tar entries could
// write files outside the intended extraction directory.
func isPathWithinDir(target, baseDir string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func extractTarGz(r io.Reader, destDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() { _ = gzr.Close() }()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, header.Name)

		if !isPathWithinDir(target, destDir) {
			return fmt.Errorf("invalid tar entry path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}

			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)|0600)
			if err != nil {
				return err
			}

			if _, err := io.Copy(f, tr); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			linkTarget := filepath.Join(filepath.Dir(target), header.Linkname)
			if filepath.IsAbs(header.Linkname) || !isPathWithinDir(linkTarget, destDir) {
				return fmt.Errorf("invalid symlink target: %s -> %s", header.Name, header.Linkname)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}

	return nil
}

// EnsurePython ensures the resolved runtime is extracted, downloading it if
// necessary.
func EnsurePython(ctx context.Context, res *Resolution, showProgress bool) error {
	if res.Cached {
		return nil
	}

	return Download(ctx, res.Release.URL, res.Path, "Python "+res.Version.String(), showProgress)
}
