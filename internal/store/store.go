// Package store is the single source of truth for registry state. All
// mutations that touch the latest-version invariant run inside a DB
// transaction and under a per-package lock, so writers on different
// packages never block each other.
package store

import (
	"sync"

	"github.com/jmoiron/sqlx"
)

// ArtifactRemover is the slice of the artifact store the ledger needs:
// version rows own their files, so deleting a row deletes the file.
type ArtifactRemover interface {
	Remove(path string) error
}

type Store struct {
	DB     *sqlx.DB
	remove ArtifactRemover

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(db *sqlx.DB, artifacts ArtifactRemover) *Store {
	return &Store{DB: db, remove: artifacts, locks: make(map[int64]*sync.Mutex)}
}

// pkgLock returns the mutex serializing latest-invariant writers for one
// package. Locks are never evicted; a *sync.Mutex per live package name
// is a few dozen bytes and packages number in the hundreds.
func (s *Store) pkgLock(packageID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[packageID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[packageID] = l
	}
	return l
}
