// Package regerr defines the error taxonomy shared by the registry core.
// Every error that crosses a component boundary carries a stable Kind so
// the API layer can map it to a transport status without string matching.
package regerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindPermission Kind = "permission_denied"
	KindValidation Kind = "validation"
	KindExtraction Kind = "extraction"
	KindStorage    Kind = "storage"
)

type Error struct {
	Kind Kind
	Msg  string
	// ConflictingVersion names the already-existing version on KindConflict
	// so callers can decide whether to retry with fresh-publish.
	ConflictingVersion string
	Err                error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Conflict(version string) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf("version %s already exists", version), ConflictingVersion: version}
}

// KindOf returns the Kind carried by err, or KindStorage for errors that
// never got classified. Unclassified errors are always internal faults.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
