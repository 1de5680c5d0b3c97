// Package models provides the core data structures and error vocabulary
// shared by the object store's storage engine and its HTTP API.
package models

import (
	"errors"
)

// Kind classifies an error into one of the handful of categories the API
// layer maps to HTTP status codes. It deliberately mirrors the five error
// kinds of the service's error-handling contract rather than exposing
// concrete Go error types, so callers switch on ClassOf(err), not on a type
// assertion against a specific struct.
type Kind int

const (
	// KindInternal covers storage failures and unexpected exceptions.
	KindInternal Kind = iota
	KindInvalidArgument
	KindUnauthenticated
	KindNotFound
	KindConflict
)

// Standard sentinel errors. Wrap one of these with fmt.Errorf("...: %w", ErrX)
// to add detail while preserving classification via errors.Is.
var (
	// ErrInvalidArgument is returned for missing required fields, malformed
	// tags or JSON, or a missing confirm=true on a destructive operation.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnauthenticated is returned when the client/token pair is missing
	// or does not match the configured authentication map.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is returned when an object, revision, namespace, or
	// mapping does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is reserved; content-addressed writes make it
	// unreachable in steady state.
	ErrConflict = errors.New("conflict")

	// ErrInternal covers storage failures and unexpected exceptions. The
	// message returned to clients for this kind must never include the
	// wrapped detail; log it instead.
	ErrInternal = errors.New("internal error")
)

// ClassOf returns the Kind of err by walking its wrap chain against the
// sentinel errors above. An err that matches none of them is classified
// KindInternal, the safe default for "something went wrong we didn't
// anticipate."
func ClassOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}
