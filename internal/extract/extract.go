// Package extract pulls identifying metadata out of an uploaded pilet
// archive. The archive is unpacked into a uniquely named scratch
// directory which is removed on every exit path.
package extract

import (
	"archive/tar"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/he1237596/feed-service/internal/regerr"
)

// Mode selects how a missing manifest is treated. Strict fails; Lenient
// synthesizes a placeholder name and version "1.0.0" for the
// zero-metadata CLI upload path. A malformed manifest is fatal in both
// modes.
type Mode int

const (
	Strict Mode = iota
	Lenient
)

const manifestName = "package.json"

type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Extract unpacks archivePath and locates a package.json at the archive
// root or in exactly one immediate subdirectory, first match winning.
func Extract(archivePath string, mode Mode) (Manifest, error) {
	scratch, err := os.MkdirTemp("", "pilet-extract-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return Manifest{}, regerr.Wrap(regerr.KindStorage, err, "create scratch dir")
	}
	defer os.RemoveAll(scratch)

	if err := unpack(archivePath, scratch); err != nil {
		return Manifest{}, err
	}

	manifestPath, found, err := locateManifest(scratch)
	if err != nil {
		return Manifest{}, err
	}
	if !found {
		if mode == Lenient {
			return Manifest{Name: "pilet-" + uuid.NewString()[:8], Version: "1.0.0"}, nil
		}
		return Manifest{}, regerr.New(regerr.KindExtraction, "no %s found in archive", manifestName)
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return Manifest{}, regerr.Wrap(regerr.KindStorage, err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, regerr.Wrap(regerr.KindExtraction, err, "parse %s", manifestName)
	}
	if m.Name == "" || m.Version == "" {
		return Manifest{}, regerr.New(regerr.KindExtraction, "%s missing name or version", manifestName)
	}
	return m, nil
}

func unpack(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "open archive")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return regerr.Wrap(regerr.KindExtraction, err, "not a gzip archive")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return regerr.Wrap(regerr.KindExtraction, err, "corrupt tar archive")
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return regerr.Wrap(regerr.KindStorage, err, "unpack dir")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return regerr.Wrap(regerr.KindStorage, err, "unpack dir")
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
			if err != nil {
				return regerr.Wrap(regerr.KindStorage, err, "unpack file")
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return regerr.Wrap(regerr.KindExtraction, err, "unpack %s", hdr.Name)
			}
			out.Close()
		default:
			// symlinks and the rest are skipped, nothing in a pilet
			// tarball legitimately needs them
		}
	}
	return nil
}

// safeJoin rejects entries that would escape the scratch directory.
func safeJoin(dest, name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", regerr.New(regerr.KindExtraction, "archive entry %q escapes extraction root", name)
	}
	return filepath.Join(dest, clean), nil
}

func locateManifest(root string) (string, bool, error) {
	direct := filepath.Join(root, manifestName)
	if _, err := os.Stat(direct); err == nil {
		return direct, true, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false, regerr.Wrap(regerr.KindStorage, err, "scan scratch dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		p := filepath.Join(root, n, manifestName)
		if _, err := os.Stat(p); err == nil {
			return p, true, nil
		}
	}
	return "", false, nil
}
