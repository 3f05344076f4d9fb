package index

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/snipx-dev/snipx/internal/cache"
)

const (
	CacheTTL = 24 * time.Hour

	releasesFile  = "python-releases.json"
	fetchedAtFile = "fetched_at"
	userAgent     = "snipx"
)

// Index holds the Python WASI runtime releases, newest first.
type Index struct {
	Source    string    `json:"source"`
	Releases  []Release `json:"releases"`
	FetchedAt time.Time `json:"-"`
}

// Release is one downloadable runtime bundle.
type Release struct {
	Version string `json:"version"`
	Asset   string `json:"asset"`
	URL     string `json:"url"`
}

// githubRelease is the subset of the GitHub releases API we read.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name        string `json:"name"`
		DownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

var assetRegex = regexp.MustCompile(`^python-(\d+\.\d+\.\d+)-wasi-sdk-[\d.]+\.tar\.gz$`)

// Load retrieves the index for source, using the cache if fresh or fetching
// if stale.
func Load(ctx context.Context, source string) (*Index, error) {
	indexDir, err := cache.IndexDir()
	if err != nil {
		return nil, err
	}

	fetchedAtPath := filepath.Join(indexDir, fetchedAtFile)
	if data, err := os.ReadFile(fetchedAtPath); err == nil {
		if t, err := time.Parse(time.RFC3339, string(data)); err == nil {
			if time.Since(t) < CacheTTL {
				if idx, err := loadFromCache(indexDir); err == nil && idx.Source == source {
					idx.FetchedAt = t
					return idx, nil
				}
			}
		}
	}

	return Refresh(ctx, source)
}

// Refresh fetches fresh index data from source and caches it.
func Refresh(ctx context.Context, source string) (*Index, error) {
	indexDir, err := cache.IndexDir()
	if err != nil {
		return nil, err
	}

	if err := cache.EnsureDir(indexDir); err != nil {
		return nil, err
	}

	releases, err := fetchReleases(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch python releases: %w", err)
	}

	idx := &Index{Source: source, Releases: releases, FetchedAt: time.Now()}
	if err := saveToCache(indexDir, idx); err != nil {
		return nil, fmt.Errorf("save cache: %w", err)
	}

	return idx, nil
}

func fetchReleases(ctx context.Context, source string) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var entries []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}

	return collectReleases(entries), nil
}

// collectReleases keeps one bundle per version, newest first.
func collectReleases(entries []githubRelease) []Release {
	seen := make(map[string]bool)
	var releases []Release
	versions := make(map[string]*semver.Version)

	for _, e := range entries {
		if e.Draft || e.Prerelease {
			continue
		}
		for _, a := range e.Assets {
			matches := assetRegex.FindStringSubmatch(a.Name)
			if len(matches) < 2 {
				continue
			}

			vStr := matches[1]
			if seen[vStr] {
				continue
			}

			v, err := semver.NewVersion(vStr)
			if err != nil {
				continue
			}
			seen[vStr] = true
			versions[vStr] = v
			releases = append(releases, Release{Version: vStr, Asset: a.Name, URL: a.DownloadURL})
		}
	}

	sort.Slice(releases, func(i, j int) bool {
		return versions[releases[i].Version].GreaterThan(versions[releases[j].Version])
	})

	return releases
}

func loadFromCache(indexDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, releasesFile))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func saveToCache(indexDir string, idx *Index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(indexDir, releasesFile), data, 0644); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(indexDir, fetchedAtFile), []byte(idx.FetchedAt.Format(time.RFC3339)), 0644)
}

// Versions returns the release versions, newest first.
func (idx *Index) Versions() []*semver.Version {
	versions := make([]*semver.Version, 0, len(idx.Releases))
	for _, r := range idx.Releases {
		if v, err := semver.NewVersion(r.Version); err == nil {
			versions = append(versions, v)
		}
	}
	return versions
}

// Find returns the release for an exact version.
func (idx *Index) Find(version *semver.Version) (Release, bool) {
	for _, r := range idx.Releases {
		if v, err := semver.NewVersion(r.Version); err == nil && v.Equal(version) {
			return r, true
		}
	}
	return Release{}, false
}

// LatestVersion returns the highest version from a list.
func LatestVersion(versions []*semver.Version) *semver.Version {
	if len(versions) == 0 {
		return nil
	}
	return versions[0] // Already sorted descending
}

// MatchingVersion returns the highest version satisfying a constraint.
func MatchingVersion(versions []*semver.Version, constraint string) (*semver.Version, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint %q: %w", constraint, err)
	}

	for _, v := range versions {
		if c.Check(v) {
			return v, nil
		}
	}

	return nil, fmt.Errorf("no Python version satisfies '%s'", constraint)
}
