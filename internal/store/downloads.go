package store

import (
	"log"
	"time"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
)

// RecordDownload appends one event. It never fails the download it is
// attached to: errors are logged and swallowed, delivery wins over
// accounting.
func (s *Store) RecordDownload(versionID, packageID int64, version, clientAddr, clientAgent string) {
	_, err := s.DB.Exec(`INSERT INTO downloads (version_id, package_id, version, client_addr, client_agent, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		versionID, packageID, version, clientAddr, clientAgent, time.Now().UTC())
	if err != nil {
		log.Printf("record download for version %d: %v", versionID, err)
	}
}

// DownloadStats are computed by filtering the event log at query time.
// No running counters exist anywhere, so there is nothing to drift.
type DownloadStats struct {
	Total     int64 `json:"total"`
	Today     int64 `json:"today"`
	ThisWeek  int64 `json:"this_week"`
	ThisMonth int64 `json:"this_month"`
}

func (s *Store) PackageStats(packageID int64) (*DownloadStats, error) {
	day, week, month := windowStarts(time.Now().UTC())
	var st DownloadStats
	row := s.DB.QueryRow(`SELECT
		COUNT(*),
		COUNT(CASE WHEN created_at >= ? THEN 1 END),
		COUNT(CASE WHEN created_at >= ? THEN 1 END),
		COUNT(CASE WHEN created_at >= ? THEN 1 END)
		FROM downloads WHERE package_id = ?`, day, week, month, packageID)
	if err := row.Scan(&st.Total, &st.Today, &st.ThisWeek, &st.ThisMonth); err != nil {
		return nil, regerr.Wrap(regerr.KindStorage, err, "package stats")
	}
	return &st, nil
}

func (s *Store) VersionDownloadCount(versionID int64) (int64, error) {
	var n int64
	if err := s.DB.Get(&n, `SELECT COUNT(*) FROM downloads WHERE version_id = ?`, versionID); err != nil {
		return 0, regerr.Wrap(regerr.KindStorage, err, "version downloads")
	}
	return n, nil
}

func (s *Store) TotalDownloads() (int64, error) {
	var n int64
	if err := s.DB.Get(&n, `SELECT COUNT(*) FROM downloads`); err != nil {
		return 0, regerr.Wrap(regerr.KindStorage, err, "total downloads")
	}
	return n, nil
}

func (s *Store) ListDownloads(packageID int64, limit int) ([]models.Download, error) {
	var ds []models.Download
	if err := s.DB.Select(&ds, `SELECT * FROM downloads WHERE package_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, packageID, limit); err != nil {
		return nil, regerr.Wrap(regerr.KindStorage, err, "list downloads")
	}
	return ds, nil
}

// PruneDownloads bulk-ages-out events older than the retention cutoff.
func (s *Store) PruneDownloads(olderThan time.Time) (int64, error) {
	res, err := s.DB.Exec(`DELETE FROM downloads WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, regerr.Wrap(regerr.KindStorage, err, "prune downloads")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// windowStarts returns midnight today, the Monday of the current ISO
// week and the first of the current month, all UTC.
func windowStarts(now time.Time) (day, week, month time.Time) {
	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week = day.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return
}
