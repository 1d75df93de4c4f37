package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoActiveMatch = errors.New("no active match")
	ErrSecretMissing = errors.New("reveal secret missing")
	ErrContextDone   = errors.New("context cancelled")
)

// ErrorKind classifies every failure the orchestrator can surface, so the
// caller always knows whether to retry, fix the selection, or run recovery.
type ErrorKind int

const (
	// KindTransient marks network or timeout failures on a ledger call.
	// Local state is unchanged and the call is safe to retry.
	KindTransient ErrorKind = iota
	// KindRejected marks a protocol-level refusal by the ledger (wrong
	// phase, commitment mismatch, unauthorized caller). Never retried
	// automatically.
	KindRejected
	// KindInconsistent marks local persisted state contradicting the
	// ledger snapshot. Always routed to recovery.
	KindInconsistent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Error is a classified orchestrator failure. Reason carries the ledger's
// verbatim refusal when one is available.
type Error struct {
	Kind   ErrorKind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure of op.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Rejected records a ledger refusal of op with the ledger's reason.
func Rejected(op, reason string) *Error {
	return &Error{Kind: KindRejected, Op: op, Reason: reason}
}

// Inconsistent records a contradiction between local state and the ledger.
func Inconsistent(op, reason string) *Error {
	return &Error{Kind: KindInconsistent, Op: op, Reason: reason}
}

func kindOf(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// IsTransient reports whether err is safe to retry unchanged.
func IsTransient(err error) bool { return kindOf(err, KindTransient) }

// IsRejected reports whether the ledger declined the call.
func IsRejected(err error) bool { return kindOf(err, KindRejected) }

// IsInconsistent reports whether local and ledger state disagree.
func IsInconsistent(err error) bool { return kindOf(err, KindInconsistent) }
