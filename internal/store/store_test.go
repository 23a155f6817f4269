package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/he1237596/feed-service/internal/models"
)

// fakeRemover records which artifact paths the ledger asked to delete.
type fakeRemover struct {
	removed []string
}

func (f *fakeRemover) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func testStore(t *testing.T) (*Store, *fakeRemover) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { db.Close() })
	fr := &fakeRemover{}
	return New(db, fr), fr
}

func testUser(t *testing.T, s *Store) int64 {
	t.Helper()
	res, err := s.DB.Exec(`INSERT INTO users (username, display_name, password_hash, role) VALUES ('alice', 'Alice', 'x', 'publisher')`)
	require.NoError(t, err, "insert user")
	id, _ := res.LastInsertId()
	return id
}

func testPackage(t *testing.T, s *Store, owner int64, name string) *models.Package {
	t.Helper()
	p := &models.Package{Name: name, Author: "Alice", CreatedBy: owner, Public: true}
	require.NoError(t, s.CreatePackage(p), "create package %s", name)
	return p
}

func addVersion(t *testing.T, s *Store, pkgID int64, version string) *models.Version {
	t.Helper()
	v := &models.Version{PackageID: pkgID, Version: version, ArtifactPath: "/art/" + version, FileSize: 1, Digest: "d-" + version}
	require.NoError(t, s.CreateVersion(v), "create version %s", version)
	// Keep creation timestamps strictly ordered even on coarse clocks.
	time.Sleep(2 * time.Millisecond)
	return v
}

func latestCount(t *testing.T, s *Store, pkgID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB.Get(&n, `SELECT COUNT(*) FROM versions WHERE package_id = ? AND is_latest = 1`, pkgID))
	return n
}
