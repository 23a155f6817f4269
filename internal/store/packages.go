package store

import (
	"database/sql"
	"regexp"
	"strings"
	"time"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
)

var nameRe = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._-]*/)?[a-z0-9][a-z0-9._-]*$`)

// NormalizeName lowercases a package name and validates it against the
// restricted charset, scoped names (@scope/name) included.
func NormalizeName(name string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || !nameRe.MatchString(n) {
		return "", regerr.New(regerr.KindValidation, "invalid package name %q", name)
	}
	return n, nil
}

func (s *Store) CreatePackage(p *models.Package) error {
	name, err := NormalizeName(p.Name)
	if err != nil {
		return err
	}
	p.Name = name
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	res, err := s.DB.Exec(`INSERT INTO packages (name, description, author, created_by, public, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.Author, p.CreatedBy, p.Public, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return regerr.New(regerr.KindConflict, "package %s already exists", p.Name)
		}
		return regerr.Wrap(regerr.KindStorage, err, "insert package")
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) GetPackageByID(id int64) (*models.Package, error) {
	var p models.Package
	if err := s.DB.Get(&p, `SELECT * FROM packages WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, regerr.New(regerr.KindNotFound, "package %d not found", id)
		}
		return nil, regerr.Wrap(regerr.KindStorage, err, "get package")
	}
	return &p, nil
}

func (s *Store) GetPackageByName(name string) (*models.Package, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	var p models.Package
	if err := s.DB.Get(&p, `SELECT * FROM packages WHERE name = ?`, n); err != nil {
		if err == sql.ErrNoRows {
			return nil, regerr.New(regerr.KindNotFound, "package %s not found", n)
		}
		return nil, regerr.Wrap(regerr.KindStorage, err, "get package")
	}
	return &p, nil
}

// ListVisible returns packages the viewer may see: all public ones plus
// any they own. Admins see everything. viewerID 0 means anonymous.
func (s *Store) ListVisible(viewerID int64, admin bool) ([]models.Package, error) {
	var pkgs []models.Package
	var err error
	if admin {
		err = s.DB.Select(&pkgs, `SELECT * FROM packages ORDER BY name`)
	} else {
		err = s.DB.Select(&pkgs, `SELECT * FROM packages WHERE public = 1 OR created_by = ? ORDER BY name`, viewerID)
	}
	if err != nil {
		return nil, regerr.Wrap(regerr.KindStorage, err, "list packages")
	}
	return pkgs, nil
}

func (s *Store) UpdatePackage(id int64, description *string, public *bool) error {
	pkg, err := s.GetPackageByID(id)
	if err != nil {
		return err
	}
	if description != nil {
		pkg.Description = *description
	}
	if public != nil {
		pkg.Public = *public
	}
	_, err = s.DB.Exec(`UPDATE packages SET description = ?, public = ?, updated_at = ? WHERE id = ?`,
		pkg.Description, pkg.Public, time.Now().UTC(), id)
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "update package")
	}
	return nil
}

// DeletePackage removes the package and everything it owns. Artifact
// files go first since the row cascade cannot touch the filesystem; a
// file that fails to delete aborts before any rows are lost.
func (s *Store) DeletePackage(id int64) error {
	l := s.pkgLock(id)
	l.Lock()
	defer l.Unlock()

	var paths []string
	if err := s.DB.Select(&paths, `SELECT artifact_path FROM versions WHERE package_id = ?`, id); err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "list version artifacts")
	}
	for _, p := range paths {
		if err := s.remove.Remove(p); err != nil {
			return err
		}
	}
	res, err := s.DB.Exec(`DELETE FROM packages WHERE id = ?`, id)
	if err != nil {
		return regerr.Wrap(regerr.KindStorage, err, "delete package")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return regerr.New(regerr.KindNotFound, "package %d not found", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
