// Package feed projects registry state into the wire formats consumed
// by publishing tools and the browser app. All projections are
// read-only; the only state here is a TTL cache of synthesized npm
// documents, busted whenever the owning package mutates.
package feed

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	cache "github.com/patrickmn/go-cache"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/store"
)

type Synthesizer struct {
	st      *store.Store
	baseURL string
	npm     *cache.Cache
}

func New(st *store.Store, baseURL string, ttl time.Duration) *Synthesizer {
	return &Synthesizer{st: st, baseURL: baseURL, npm: cache.New(ttl, 2*ttl)}
}

// Invalidate drops any cached projection for the package. Call after
// every mutation that touches it.
func (s *Synthesizer) Invalidate(name string) {
	s.npm.Delete(name)
}

// CompactItem is one row of the discovery feed used by publishing CLIs.
type CompactItem struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Link    string `json:"link"`
}

func (s *Synthesizer) Compact(viewerID int64, admin bool) ([]CompactItem, error) {
	pkgs, err := s.st.ListVisible(viewerID, admin)
	if err != nil {
		return nil, err
	}
	items := make([]CompactItem, 0, len(pkgs))
	for _, p := range pkgs {
		item := CompactItem{Name: p.Name, Link: fmt.Sprintf("%s/api/v1/feed/%s", s.baseURL, p.Name)}
		if latest, err := s.st.GetLatest(p.ID); err == nil {
			item.Version = latest.Version
		}
		items = append(items, item)
	}
	return items, nil
}

type DetailedVersion struct {
	ID          int64     `json:"id"`
	Version     string    `json:"version"`
	Latest      bool      `json:"latest"`
	Deprecated  bool      `json:"deprecated"`
	Changelog   string    `json:"changelog"`
	FileSize    int64     `json:"file_size"`
	Digest      string    `json:"digest"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type Detailed struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Author      string            `json:"author"`
	Versions    []DetailedVersion `json:"versions"`
}

// Detailed lists every version of a package sorted by semantic
// precedence descending, not creation time.
func (s *Synthesizer) Detailed(pkg *models.Package) (*Detailed, error) {
	vs, err := s.st.ListVersions(pkg.ID)
	if err != nil {
		return nil, err
	}
	SortVersionsDesc(vs)
	out := &Detailed{Name: pkg.Name, Description: pkg.Description, Author: pkg.Author, Versions: make([]DetailedVersion, 0, len(vs))}
	for _, v := range vs {
		out.Versions = append(out.Versions, DetailedVersion{
			ID:          v.ID,
			Version:     v.Version,
			Latest:      v.IsLatest,
			Deprecated:  v.IsDeprecated,
			Changelog:   v.Changelog,
			FileSize:    v.FileSize,
			Digest:      v.Digest,
			DownloadURL: s.downloadURL(pkg.Name, v.Version),
			CreatedAt:   v.CreatedAt,
		})
	}
	return out, nil
}

func (s *Synthesizer) downloadURL(name, version string) string {
	return fmt.Sprintf("%s/files/%s/%s", s.baseURL, name, version)
}

// SortVersionsDesc orders by semantic precedence, highest first. A
// version with a prerelease label sorts below the same bare version.
// Strings that fail to parse sort last, between themselves lexically.
func SortVersionsDesc(vs []models.Version) {
	sort.SliceStable(vs, func(i, j int) bool {
		return CompareVersions(vs[i].Version, vs[j].Version) > 0
	})
}

// CompareVersions returns -1, 0 or 1 per semantic precedence.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.Compare(vb)
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
}
