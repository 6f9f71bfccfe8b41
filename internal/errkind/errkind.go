// Package errkind defines the closed set of error kinds carried through the
// core, independent of transport, and the CoreError type that carries them.
package errkind

import "fmt"

// Kind is a tagged error classification.
type Kind string

const (
	Timeout             Kind = "timeout"
	CircuitOpen         Kind = "circuit_open"
	NotFound            Kind = "not_found"
	Delisted            Kind = "delisted"
	UnitMismatch        Kind = "unit_mismatch"
	ParseError          Kind = "parse_error"
	ValidationError     Kind = "validation_error"
	UpstreamUnavailable Kind = "upstream_unavailable"
	GovernanceDenied    Kind = "governance_denied"
	SandboxDenied       Kind = "sandbox_denied"
	FatalInternal       Kind = "fatal_internal"
)

// Retryable reports whether the core's resilience primitives should retry an
// error of this kind. not_found/delisted trigger the Tier-2 recovery ladder
// instead of a bare retry; sandbox_denied and validation_error never retry.
func (k Kind) Retryable() bool {
	switch k {
	case Timeout, UpstreamUnavailable, CircuitOpen:
		return true
	default:
		return false
	}
}

// CoreError wraps an underlying error with a Kind classification.
type CoreError struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *CoreError {
	return &CoreError{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *CoreError {
	return &CoreError{Kind: kind, Msg: msg, Err: err}
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err if it is (or wraps) a *CoreError, else
// returns FatalInternal — an error escaping a typed classification should
// never happen per the envelope's catch-all contract.
func KindOf(err error) Kind {
	var ce *CoreError
	if ok := asCoreError(err, &ce); ok {
		return ce.Kind
	}
	return FatalInternal
}

func asCoreError(err error, target **CoreError) bool {
	for err != nil {
		if ce, ok := err.(*CoreError); ok {
			*target = ce
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
