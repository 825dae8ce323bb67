// Package errx tags errors with the operation that failed and a Kind the
// callers switch on. The admin API turns kinds into status codes; the public
// download route collapses every kind into one not-found page.
package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown     Kind = iota
	Invalid          // malformed, unknown or expired input
	NotFound         // a looked-up row or file is absent
	NotEnabled       // web downloads are switched off
	Unavailable      // storage or another backing service failed
	Internal
)

var kindNames = [...]string{
	Unknown:     "Unknown",
	Invalid:     "Invalid",
	NotFound:    "NotFound",
	NotEnabled:  "NotEnabled",
	Unavailable: "Unavailable",
	Internal:    "Internal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ServerFault reports whether the kind blames this process or its backends
// rather than the caller.
func (k Kind) ServerFault() bool {
	return k == Unavailable || k == Internal || k == Unknown
}

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E wraps err. A nil err stays nil so call sites can wrap unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op
	case e.Op == "":
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the outermost kind on err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether the outermost kind recorded on err is kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// OpOf returns the outermost operation on err's chain.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
