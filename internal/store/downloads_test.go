package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordDownloadAndCounts(t *testing.T) {
	s, _ := testStore(t)
	pkg := testPackage(t, s, testUser(t, s), "alpha")
	v1 := addVersion(t, s, pkg.ID, "1.0.0")
	v2 := addVersion(t, s, pkg.ID, "1.1.0")

	s.RecordDownload(v1.ID, pkg.ID, v1.Version, "10.0.0.1", "pilet-cli/1.0")
	s.RecordDownload(v1.ID, pkg.ID, v1.Version, "10.0.0.2", "pilet-cli/1.0")
	s.RecordDownload(v2.ID, pkg.ID, v2.Version, "10.0.0.1", "browser")

	n, err := s.VersionDownloadCount(v1.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	total, err := s.TotalDownloads()
	require.NoError(t, err)
	require.EqualValues(t, 3, total)

	stats, err := s.PackageStats(pkg.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Total)
	require.EqualValues(t, 3, stats.Today, "fresh events fall into every window")
}

func TestPackageStats_WindowsFilterByTimestamp(t *testing.T) {
	s, _ := testStore(t)
	pkg := testPackage(t, s, testUser(t, s), "alpha")
	v1 := addVersion(t, s, pkg.ID, "1.0.0")

	insertAt := func(ts time.Time) {
		_, err := s.DB.Exec(`INSERT INTO downloads (version_id, package_id, version, client_addr, client_agent, created_at) VALUES (?, ?, ?, '', '', ?)`,
			v1.ID, pkg.ID, v1.Version, ts)
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	insertAt(now)                     // today
	insertAt(now.AddDate(0, -2, 0))   // outside month
	insertAt(now.AddDate(-1, 0, 0))   // outside everything but total
	insertAt(now.Add(-15 * 24 * time.Hour)) // outside week, maybe month

	stats, err := s.PackageStats(pkg.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, stats.Total)
	require.EqualValues(t, 1, stats.Today)
	require.EqualValues(t, 1, stats.ThisWeek)
	require.GreaterOrEqual(t, stats.ThisMonth, int64(1))
	require.Less(t, stats.ThisMonth, stats.Total)
}

func TestPruneDownloads(t *testing.T) {
	s, _ := testStore(t)
	pkg := testPackage(t, s, testUser(t, s), "alpha")
	v1 := addVersion(t, s, pkg.ID, "1.0.0")

	old := time.Now().UTC().AddDate(-1, 0, 0)
	_, err := s.DB.Exec(`INSERT INTO downloads (version_id, package_id, version, client_addr, client_agent, created_at) VALUES (?, ?, ?, '', '', ?)`,
		v1.ID, pkg.ID, v1.Version, old)
	require.NoError(t, err)
	s.RecordDownload(v1.ID, pkg.ID, v1.Version, "", "")

	n, err := s.PruneDownloads(time.Now().UTC().AddDate(0, -6, 0))
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "only events past retention are aged out")

	total, err := s.TotalDownloads()
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
