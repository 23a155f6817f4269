package store

import (
	"database/sql"
	"log"
	"time"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
)

// CreateVersion inserts a new version and makes it latest. Clearing the
// old latest flag and setting the new one happen in one transaction so
// no reader ever sees a package with versions but no latest.
func (s *Store) CreateVersion(v *models.Version) error {
	l := s.pkgLock(v.PackageID)
	l.Lock()
	defer l.Unlock()
	return s.insertLatest(v, 0)
}

// FreshPublish overwrites an existing version: the old row and artifact
// are dropped, then the new version is inserted with create semantics,
// so it ends up latest either way. If the version does not exist yet it
// behaves exactly like CreateVersion.
func (s *Store) FreshPublish(v *models.Version) error {
	l := s.pkgLock(v.PackageID)
	l.Lock()
	defer l.Unlock()

	var old models.Version
	err := s.DB.Get(&old, `SELECT * FROM versions WHERE package_id = ? AND version = ?`, v.PackageID, v.Version)
	if err != nil && err != sql.ErrNoRows {
		return regerr.Wrap(regerr.KindStorage, err, "lookup version")
	}
	if err := s.insertLatest(v, old.ID); err != nil {
		return err
	}
	if old.ID != 0 {
		// Old row is gone and committed; a failed file delete just leaves
		// an orphan for the sweep to collect.
		if err := s.remove.Remove(old.ArtifactPath); err != nil {
			log.Printf("fresh publish: remove old artifact: %v", err)
		}
	}
	return nil
}

// insertLatest is the shared clear-then-set transaction. replaceID, when
// nonzero, is an existing row to drop in the same transaction (fresh
// publish). Callers hold the package lock.
func (s *Store) insertLatest(v *models.Version, replaceID int64) error {
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now
	v.IsLatest = true

	tx, err := s.DB.Beginx()
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "begin tx")
	}
	defer tx.Rollback()

	if replaceID != 0 {
		if _, err := tx.Exec(`DELETE FROM versions WHERE id = ?`, replaceID); err != nil {
			return regerr.Wrap(regerr.KindStorage, err, "drop replaced version")
		}
	}

	var existing string
	err = tx.Get(&existing, `SELECT version FROM versions WHERE package_id = ? AND version = ?`, v.PackageID, v.Version)
	if err == nil {
		return regerr.Conflict(existing)
	}
	if err != sql.ErrNoRows {
		return regerr.Wrap(regerr.KindStorage, err, "check version")
	}

	if _, err := tx.Exec(`UPDATE versions SET is_latest = 0 WHERE package_id = ?`, v.PackageID); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "clear latest")
	}
	res, err := tx.Exec(`INSERT INTO versions (package_id, version, changelog, is_latest, is_deprecated, artifact_path, file_size, digest, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?, ?)`,
		v.PackageID, v.Version, v.Changelog, v.IsDeprecated, v.ArtifactPath, v.FileSize, v.Digest, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return regerr.Conflict(v.Version)
		}
		return regerr.Wrap(regerr.KindStorage, err, "insert version")
	}
	if err := tx.Commit(); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "commit version")
	}
	v.ID, _ = res.LastInsertId()
	return nil
}

// PromoteToLatest flips the latest flag to the given version within its
// package, clear-then-set in one transaction. The pre-lock read only
// picks the lock key; whether the version still exists is decided inside
// the transaction, since a sibling writer may have deleted it while we
// waited for the lock.
func (s *Store) PromoteToLatest(versionID int64) error {
	ref, err := s.GetVersionByID(versionID)
	if err != nil {
		return err
	}
	l := s.pkgLock(ref.PackageID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.DB.Beginx()
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "begin tx")
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE versions SET is_latest = 0 WHERE package_id = ?`, ref.PackageID); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "clear latest")
	}
	res, err := tx.Exec(`UPDATE versions SET is_latest = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), versionID)
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "set latest")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Version vanished between the read and the lock; roll the clear
		// back rather than commit a package with no latest.
		return regerr.New(regerr.KindNotFound, "version %d not found", versionID)
	}
	if err := tx.Commit(); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "commit promote")
	}
	return nil
}

func (s *Store) SetDeprecated(versionID int64, deprecated bool) error {
	res, err := s.DB.Exec(`UPDATE versions SET is_deprecated = ?, updated_at = ? WHERE id = ?`, deprecated, time.Now().UTC(), versionID)
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "set deprecated")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return regerr.New(regerr.KindNotFound, "version %d not found", versionID)
	}
	return nil
}

// DeleteVersion removes a version and its artifact. When the deleted
// version was latest and siblings remain, the most recently created one
// is promoted in the same transaction. Deleting the only version leaves
// the package empty but alive. The latest flag is re-read inside the
// transaction: a sibling writer may have promoted or deleted this
// version while we waited for the lock, and acting on a pre-lock
// snapshot could commit a package with versions but no latest.
func (s *Store) DeleteVersion(versionID int64) error {
	ref, err := s.GetVersionByID(versionID)
	if err != nil {
		return err
	}
	l := s.pkgLock(ref.PackageID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.DB.Beginx()
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "begin tx")
	}
	defer tx.Rollback()

	var v models.Version
	if err := tx.Get(&v, `SELECT * FROM versions WHERE id = ?`, versionID); err != nil {
		if err == sql.ErrNoRows {
			return regerr.New(regerr.KindNotFound, "version %d not found", versionID)
		}
		return regerr.Wrap(regerr.KindStorage, err, "get version")
	}

	if _, err := tx.Exec(`DELETE FROM versions WHERE id = ?`, versionID); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "delete version")
	}
	if v.IsLatest {
		var next int64
		err := tx.Get(&next, `SELECT id FROM versions WHERE package_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, v.PackageID)
		if err == nil {
			if _, err := tx.Exec(`UPDATE versions SET is_latest = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), next); err != nil {
				return regerr.Wrap(regerr.KindStorage, err, "promote successor")
			}
		} else if err != sql.ErrNoRows {
			return regerr.Wrap(regerr.KindStorage, err, "find successor")
		}
	}
	if err := tx.Commit(); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "commit delete")
	}

	if err := s.remove.Remove(v.ArtifactPath); err != nil {
		log.Printf("delete version: remove artifact: %v", err)
	}
	return nil
}

func (s *Store) GetVersionByID(id int64) (*models.Version, error) {
	var v models.Version
	if err := s.DB.Get(&v, `SELECT * FROM versions WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, regerr.New(regerr.KindNotFound, "version %d not found", id)
		}
		return nil, regerr.Wrap(regerr.KindStorage, err, "get version")
	}
	return &v, nil
}

func (s *Store) GetVersion(packageID int64, version string) (*models.Version, error) {
	var v models.Version
	if err := s.DB.Get(&v, `SELECT * FROM versions WHERE package_id = ? AND version = ?`, packageID, version); err != nil {
		if err == sql.ErrNoRows {
			return nil, regerr.New(regerr.KindNotFound, "version %s not found", version)
		}
		return nil, regerr.Wrap(regerr.KindStorage, err, "get version")
	}
	return &v, nil
}

func (s *Store) GetLatest(packageID int64) (*models.Version, error) {
	var v models.Version
	if err := s.DB.Get(&v, `SELECT * FROM versions WHERE package_id = ? AND is_latest = 1`, packageID); err != nil {
		if err == sql.ErrNoRows {
			return nil, regerr.New(regerr.KindNotFound, "package %d has no versions", packageID)
		}
		return nil, regerr.Wrap(regerr.KindStorage, err, "get latest")
	}
	return &v, nil
}

func (s *Store) ListVersions(packageID int64) ([]models.Version, error) {
	var vs []models.Version
	if err := s.DB.Select(&vs, `SELECT * FROM versions WHERE package_id = ? ORDER BY created_at DESC, id DESC`, packageID); err != nil {
		return nil, regerr.Wrap(regerr.KindStorage, err, "list versions")
	}
	return vs, nil
}
