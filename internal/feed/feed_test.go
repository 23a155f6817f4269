package feed

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/store"
)

type noopRemover struct{}

func (noopRemover) Remove(string) error { return nil }

func testSetup(t *testing.T) (*store.Store, *Synthesizer) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(db, noopRemover{})
	return st, New(st, "https://feed.example.com", time.Minute)
}

func seedPackage(t *testing.T, st *store.Store, name string, versions ...string) *models.Package {
	t.Helper()
	res, err := st.DB.Exec(`INSERT INTO users (username, display_name, password_hash, role) VALUES (?, ?, 'x', 'publisher')`, name+"-owner", name)
	require.NoError(t, err)
	owner, _ := res.LastInsertId()
	pkg := &models.Package{Name: name, CreatedBy: owner, Public: true}
	require.NoError(t, st.CreatePackage(pkg))
	for _, ver := range versions {
		v := &models.Version{PackageID: pkg.ID, Version: ver, ArtifactPath: "/art/" + ver, FileSize: 10, Digest: "00ff", Changelog: "notes for " + ver}
		require.NoError(t, st.CreateVersion(v))
		time.Sleep(2 * time.Millisecond)
	}
	return pkg
}

func TestCompareVersions(t *testing.T) {
	require.Negative(t, CompareVersions("1.2.3", "1.2.4"))
	require.Positive(t, CompareVersions("2.0.0", "1.9.9"))
	require.Negative(t, CompareVersions("1.0.0-alpha", "1.0.0"), "prerelease sorts below release")
	require.Zero(t, CompareVersions("1.0.0", "1.0.0"))
	require.Positive(t, CompareVersions("1.0.0", "not-semver"), "parsable sorts above unparsable")
}

func TestSortVersionsDesc_SemanticNotChronological(t *testing.T) {
	vs := []models.Version{
		{Version: "1.0.0"},
		{Version: "2.0.0-beta.1"},
		{Version: "10.0.0"},
		{Version: "2.0.0"},
	}
	SortVersionsDesc(vs)
	got := make([]string, len(vs))
	for i, v := range vs {
		got[i] = v.Version
	}
	require.Equal(t, []string{"10.0.0", "2.0.0", "2.0.0-beta.1", "1.0.0"}, got)
}

func TestCompact(t *testing.T) {
	st, syn := testSetup(t)
	seedPackage(t, st, "alpha", "1.0.0", "1.1.0")
	seedPackage(t, st, "beta", "0.4.2")

	items, err := syn.Compact(0, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "alpha", items[0].Name)
	require.Equal(t, "1.1.0", items[0].Version, "compact feed reports the latest version")
	require.Equal(t, "https://feed.example.com/api/v1/feed/alpha", items[0].Link)
}

func TestDetailed_SortedBySemverDesc(t *testing.T) {
	st, syn := testSetup(t)
	// Published out of semantic order on purpose.
	pkg := seedPackage(t, st, "alpha", "1.1.0", "0.9.0", "1.0.0")

	d, err := syn.Detailed(pkg)
	require.NoError(t, err)
	require.Len(t, d.Versions, 3)
	require.Equal(t, "1.1.0", d.Versions[0].Version)
	require.Equal(t, "1.0.0", d.Versions[1].Version)
	require.Equal(t, "0.9.0", d.Versions[2].Version)

	// Latest tracks creation order, not semantic order.
	require.False(t, d.Versions[0].Latest)
	require.Equal(t, "https://feed.example.com/files/alpha/1.1.0", d.Versions[0].DownloadURL)
	require.Equal(t, "00ff", d.Versions[0].Digest)
}

func TestNPM_DocShape(t *testing.T) {
	st, syn := testSetup(t)
	pkg := seedPackage(t, st, "alpha", "1.0.0", "1.1.0")

	doc, err := syn.NPM(pkg)
	require.NoError(t, err)
	require.Equal(t, "alpha", doc.Name)
	require.Equal(t, "1.1.0", doc.DistTags["latest"])
	require.Len(t, doc.Versions, 2, "exactly one entry per version")

	v := doc.Versions["1.0.0"]
	require.Equal(t, "alpha", v.Name)
	require.Equal(t, "https://feed.example.com/files/alpha/1.0.0", v.Dist.Tarball)
	require.Equal(t, "00ff", v.Dist.Shasum)
	require.Equal(t, "sha256-AP8=", v.Dist.Integrity)
	require.EqualValues(t, 10, v.Dist.FileSize)

	require.Contains(t, doc.Time, "created")
	require.Contains(t, doc.Time, "modified")
	require.Contains(t, doc.Time, "1.0.0")
	require.Contains(t, doc.Time, "1.1.0")
}

func TestNPM_CacheInvalidation(t *testing.T) {
	st, syn := testSetup(t)
	pkg := seedPackage(t, st, "alpha", "1.0.0")

	doc, err := syn.NPM(pkg)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", doc.DistTags["latest"])

	v := &models.Version{PackageID: pkg.ID, Version: "1.1.0", ArtifactPath: "/art/1.1.0", Digest: "00ff"}
	require.NoError(t, st.CreateVersion(v))

	// Stale until invalidated.
	doc, err = syn.NPM(pkg)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", doc.DistTags["latest"])

	syn.Invalidate(pkg.Name)
	doc, err = syn.NPM(pkg)
	require.NoError(t, err)
	require.Equal(t, "1.1.0", doc.DistTags["latest"])
	require.Len(t, doc.Versions, 2)
}

func TestNPM_ModifiedIsNewestUpdate(t *testing.T) {
	st, syn := testSetup(t)
	pkg := seedPackage(t, st, "alpha", "1.0.0", "1.1.0")

	// The semantically newer version carries the newest update; the
	// older one was also touched later than the package row. The doc
	// must report the maximum, not whichever version iterates last.
	newest := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	older := newest.Add(-time.Hour)
	_, err := st.DB.Exec(`UPDATE versions SET updated_at = ? WHERE package_id = ? AND version = '1.1.0'`, newest, pkg.ID)
	require.NoError(t, err)
	_, err = st.DB.Exec(`UPDATE versions SET updated_at = ? WHERE package_id = ? AND version = '1.0.0'`, older, pkg.ID)
	require.NoError(t, err)

	doc, err := syn.NPM(pkg)
	require.NoError(t, err)
	require.Equal(t, newest.Format(time.RFC3339), doc.Time["modified"])
}

func TestNPM_DeprecatedFlagSurfaces(t *testing.T) {
	st, syn := testSetup(t)
	pkg := seedPackage(t, st, "alpha", "1.0.0")
	v, err := st.GetVersion(pkg.ID, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, st.SetDeprecated(v.ID, true))

	doc, err := syn.NPM(pkg)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Versions["1.0.0"].Deprecated)
}
