package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/he1237596/feed-service/internal/regerr"
)

func testArtifacts(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	s, err := New(t.TempDir(), maxBytes, []string{".tgz", ".tar.gz"})
	require.NoError(t, err, "init artifact store")
	return s
}

func TestStore_RoundTripDigest(t *testing.T) {
	s := testArtifacts(t, 1<<20)
	payload := []byte("not really a tarball but bytes are bytes")

	path, size, digest, err := s.Store(bytes.NewReader(payload), ".tgz")
	require.NoError(t, err)
	require.EqualValues(t, len(payload), size)

	want := sha256.Sum256(payload)
	require.Equal(t, hex.EncodeToString(want[:]), digest, "digest recorded at upload")

	// Download-time digest matches the one recorded at upload.
	again, err := s.Digest(path)
	require.NoError(t, err)
	require.Equal(t, digest, again)

	rc, n, err := s.Open(path)
	require.NoError(t, err)
	defer rc.Close()
	require.EqualValues(t, len(payload), n)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestStore_RejectsOversizedPayload(t *testing.T) {
	s := testArtifacts(t, 16)
	_, _, _, err := s.Store(strings.NewReader(strings.Repeat("x", 17)), ".tgz")
	require.Error(t, err)
	require.True(t, regerr.IsKind(err, regerr.KindValidation), "oversize is a validation failure")
}

func TestStore_OversizeLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 16, []string{".tgz"})
	require.NoError(t, err)

	_, _, _, err = s.Store(strings.NewReader(strings.Repeat("x", 100)), ".tgz")
	require.Error(t, err)

	for _, sub := range []string{"tmp", "pilets"} {
		entries, err := os.ReadDir(filepath.Join(dir, sub))
		require.NoError(t, err)
		require.Empty(t, entries, "%s must hold no leftovers after rejection", sub)
	}
}

func TestStore_RejectsDisallowedExtension(t *testing.T) {
	s := testArtifacts(t, 1<<20)
	_, _, _, err := s.Store(strings.NewReader("zip bytes"), ".zip")
	require.True(t, regerr.IsKind(err, regerr.KindValidation))
}

func TestExt(t *testing.T) {
	s := testArtifacts(t, 1<<20)

	ext, err := s.Ext("bundle.tgz")
	require.NoError(t, err)
	require.Equal(t, ".tgz", ext)

	ext, err = s.Ext("Bundle.TAR.GZ")
	require.NoError(t, err)
	require.Equal(t, ".tar.gz", ext, "longest allowed suffix wins")

	_, err = s.Ext("bundle.zip")
	require.True(t, regerr.IsKind(err, regerr.KindValidation))
}

func TestRemove_Idempotent(t *testing.T) {
	s := testArtifacts(t, 1<<20)
	path, _, _, err := s.Store(strings.NewReader("abc"), ".tgz")
	require.NoError(t, err)

	require.NoError(t, s.Remove(path))
	require.NoError(t, s.Remove(path), "removing a missing file is not an error")
	require.NoError(t, s.Remove(""))
}

func TestFilename(t *testing.T) {
	require.Equal(t, "my-pilet-1.2.3.tgz", Filename("my-pilet", "1.2.3"))
	require.Equal(t, "scope-widget-1.0.0.tgz", Filename("@scope/widget", "1.0.0"))
}
