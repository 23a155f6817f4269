package models

import "time"

type Role string

const (
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
)

type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       string    `db:"email" json:"email"`
	Password    string    `db:"password_hash" json:"-"`
	Role        Role      `db:"role" json:"role"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Package struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Author      string    `db:"author" json:"author"`
	CreatedBy   int64     `db:"created_by" json:"created_by"`
	Public      bool      `db:"public" json:"public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Version struct {
	ID           int64     `db:"id" json:"id"`
	PackageID    int64     `db:"package_id" json:"package_id"`
	Version      string    `db:"version" json:"version"`
	Changelog    string    `db:"changelog" json:"changelog"`
	IsLatest     bool      `db:"is_latest" json:"is_latest"`
	IsDeprecated bool      `db:"is_deprecated" json:"is_deprecated"`
	ArtifactPath string    `db:"artifact_path" json:"-"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	Digest       string    `db:"digest" json:"digest"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Download is an immutable event row. It is only ever inserted and
// aggregated, never updated or deleted one at a time.
type Download struct {
	ID          int64     `db:"id" json:"id"`
	VersionID   int64     `db:"version_id" json:"version_id"`
	PackageID   int64     `db:"package_id" json:"package_id"`
	Version     string    `db:"version" json:"version"`
	ClientAddr  string    `db:"client_addr" json:"client_addr"`
	ClientAgent string    `db:"client_agent" json:"client_agent"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
