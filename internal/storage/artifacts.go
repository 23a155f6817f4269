// Package storage persists uploaded pilet archives on the local
// filesystem. Files are written under a temp name and renamed into place
// once fully flushed, so a concurrent reader never sees a partial
// artifact. The database row owns the file: whoever deletes the row is
// responsible for calling Remove.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/he1237596/feed-service/internal/regerr"
)

type Store struct {
	dir      string
	maxBytes int64
	allowed  []string
}

func New(dir string, maxBytes int64, allowedExts []string) (*Store, error) {
	for _, sub := range []string{"pilets", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, regerr.Wrap(regerr.KindStorage, err, "create artifact dir")
		}
	}
	return &Store{dir: dir, maxBytes: maxBytes, allowed: allowedExts}, nil
}

// Ext returns the allowed extension matching filename, longest match
// first so "a.tar.gz" resolves to ".tar.gz" rather than ".gz".
func (s *Store) Ext(filename string) (string, error) {
	lower := strings.ToLower(filename)
	best := ""
	for _, ext := range s.allowed {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best == "" {
		return "", regerr.New(regerr.KindValidation, "file extension not allowed, want one of %v", s.allowed)
	}
	return best, nil
}

// Store writes r to a durable location and returns the absolute path,
// byte count and hex sha256 digest. The byte ceiling is enforced while
// copying; an oversized payload is rejected and the partial temp file
// removed before returning.
func (s *Store) Store(r io.Reader, ext string) (path string, size int64, digest string, err error) {
	ok := false
	for _, a := range s.allowed {
		if a == ext {
			ok = true
			break
		}
	}
	if !ok {
		return "", 0, "", regerr.New(regerr.KindValidation, "extension %q not allowed", ext)
	}

	name := uuid.NewString() + ext
	tmpPath := filepath.Join(s.dir, "tmp", name)
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, "", regerr.Wrap(regerr.KindStorage, err, "create temp artifact")
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	h := sha256.New()
	size, err = io.Copy(io.MultiWriter(f, h), io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", 0, "", regerr.Wrap(regerr.KindStorage, err, "write artifact")
	}
	if size > s.maxBytes {
		err = regerr.New(regerr.KindValidation, "artifact exceeds limit of %d bytes", s.maxBytes)
		return "", 0, "", err
	}
	if err = f.Sync(); err != nil {
		return "", 0, "", regerr.Wrap(regerr.KindStorage, err, "sync artifact")
	}
	if err = f.Close(); err != nil {
		return "", 0, "", regerr.Wrap(regerr.KindStorage, err, "close artifact")
	}

	finalPath := filepath.Join(s.dir, "pilets", name)
	if err = os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", 0, "", regerr.Wrap(regerr.KindStorage, err, "finalize artifact")
	}
	return finalPath, size, hex.EncodeToString(h.Sum(nil)), nil
}

// Digest re-hashes a stored artifact, used to verify integrity before
// serving a download.
func (s *Store) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", regerr.Wrap(regerr.KindStorage, err, "open artifact %s", filepath.Base(path))
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", regerr.Wrap(regerr.KindStorage, err, "hash artifact %s", filepath.Base(path))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Open returns the artifact for streaming along with its size.
func (s *Store) Open(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, regerr.New(regerr.KindStorage, "artifact %s missing from disk", filepath.Base(path))
		}
		return nil, 0, regerr.Wrap(regerr.KindStorage, err, "open artifact")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, regerr.Wrap(regerr.KindStorage, err, "stat artifact")
	}
	return f, info.Size(), nil
}

// Remove deletes an artifact. A missing file is not an error so rollback
// paths can call it unconditionally.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return regerr.Wrap(regerr.KindStorage, err, "remove artifact %s", filepath.Base(path))
	}
	return nil
}

// Filename derives the attachment name for a download response.
func Filename(pkg, version string) string {
	safe := strings.NewReplacer("@", "", "/", "-").Replace(pkg)
	return fmt.Sprintf("%s-%s.tgz", safe, version)
}
