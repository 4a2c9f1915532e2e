// Package common defines the error taxonomy shared by the vault store, the
// sync engine and the purge manager. Callers branch on the error kind with
// errors.Is against the sentinel values or with KindOf, never by parsing
// messages.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindCrypto
	KindKeyLength
	KindNotFound
	KindPasswordRequired
	KindInvalidPassword
	KindMigration
	KindSyncFormat
	KindSyncFolderUnavailable
	KindIO
	KindStorage
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindCrypto:                "crypto failure",
	KindKeyLength:             "invalid key length",
	KindNotFound:              "not found",
	KindPasswordRequired:      "password required",
	KindInvalidPassword:       "invalid password",
	KindMigration:             "schema migration failure",
	KindSyncFormat:            "sync format mismatch",
	KindSyncFolderUnavailable: "sync folder unavailable",
	KindIO:                    "io failure",
	KindStorage:               "storage failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels, one per kind. errors.Is(err, ErrNotFound) holds for any *Error
// of KindNotFound.
var (
	ErrCrypto                = &Error{Kind: KindCrypto}
	ErrKeyLength             = &Error{Kind: KindKeyLength}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrPasswordRequired      = &Error{Kind: KindPasswordRequired}
	ErrInvalidPassword       = &Error{Kind: KindInvalidPassword}
	ErrMigration             = &Error{Kind: KindMigration}
	ErrSyncFormat            = &Error{Kind: KindSyncFormat}
	ErrSyncFolderUnavailable = &Error{Kind: KindSyncFolderUnavailable}
	ErrIO                    = &Error{Kind: KindIO}
	ErrStorage               = &Error{Kind: KindStorage}
)

// Error is a classified failure carrying the failing operation and, when
// known, the entity it was acting on.
type Error struct {
	Kind   Kind
	Op     string
	Entity string
	ID     string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Entity != "" {
		b.WriteString(" (")
		b.WriteString(e.Entity)
		if e.ID != "" {
			b.WriteString(" ")
			b.WriteString(e.ID)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality, so sentinels match any error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Entity == "" && t.Err == nil
}

// E builds a classified error for operation op.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// EntityE is E with the entity name and identifier attached.
func EntityE(kind Kind, op, entity string, id any, err error) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, ID: fmt.Sprint(id), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Lift tags err with op, keeping its kind when already classified and
// falling back to fallback otherwise. A nil err stays nil.
func Lift(err error, fallback Kind, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return E(fallback, op, err)
}
