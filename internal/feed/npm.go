package feed

import (
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/he1237596/feed-service/internal/models"
)

// NPMDoc is the registry-compatible metadata document. Shape matters
// here: npm-style clients consume it, they do not just display it.
type NPMDoc struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	DistTags    map[string]string     `json:"dist-tags"`
	Versions    map[string]NPMVersion `json:"versions"`
	Time        map[string]string     `json:"time"`
}

type NPMVersion struct {
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description,omitempty"`
	Deprecated  string  `json:"deprecated,omitempty"`
	Dist        NPMDist `json:"dist"`
}

type NPMDist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum"`
	Integrity string `json:"integrity,omitempty"`
	FileSize  int64  `json:"fileSize,omitempty"`
}

// NPM synthesizes the document for a package, serving from cache when a
// fresh copy exists.
func (s *Synthesizer) NPM(pkg *models.Package) (*NPMDoc, error) {
	if cached, ok := s.npm.Get(pkg.Name); ok {
		return cached.(*NPMDoc), nil
	}
	vs, err := s.st.ListVersions(pkg.ID)
	if err != nil {
		return nil, err
	}
	SortVersionsDesc(vs)

	doc := &NPMDoc{
		Name:        pkg.Name,
		Description: pkg.Description,
		DistTags:    map[string]string{},
		Versions:    make(map[string]NPMVersion, len(vs)),
		Time: map[string]string{
			"created": pkg.CreatedAt.UTC().Format(time.RFC3339),
		},
	}
	modified := pkg.UpdatedAt
	for _, v := range vs {
		if v.IsLatest {
			doc.DistTags["latest"] = v.Version
		}
		nv := NPMVersion{
			Name:        pkg.Name,
			Version:     v.Version,
			Description: pkg.Description,
			Dist: NPMDist{
				Tarball:   s.downloadURL(pkg.Name, v.Version),
				Shasum:    v.Digest,
				Integrity: sriFromHex(v.Digest),
				FileSize:  v.FileSize,
			},
		}
		if v.IsDeprecated {
			nv.Deprecated = "deprecated"
		}
		doc.Versions[v.Version] = nv
		doc.Time[v.Version] = v.CreatedAt.UTC().Format(time.RFC3339)
		if v.UpdatedAt.After(modified) {
			modified = v.UpdatedAt
		}
	}
	doc.Time["modified"] = modified.UTC().Format(time.RFC3339)
	s.npm.SetDefault(pkg.Name, doc)
	return doc, nil
}

// sriFromHex converts a hex sha256 digest to the SRI form npm clients
// verify against.
func sriFromHex(digest string) string {
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return ""
	}
	return "sha256-" + base64.StdEncoding.EncodeToString(raw)
}
