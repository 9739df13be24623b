package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the ledger could not be reached or no signer is connected.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrNotFound indicates a record index outside the ledger's current range.
	ErrNotFound = errors.New("ledger record not found")
	// ErrReverted indicates the ledger rejected a write.
	ErrReverted = errors.New("ledger write reverted")
	// ErrTimeout indicates a write was not settled before its deadline.
	ErrTimeout = errors.New("ledger settlement timed out")
	// ErrAmountMismatch indicates an escrow value that differs from the record amount.
	ErrAmountMismatch = errors.New("escrow amount mismatch")
	// ErrAlreadyInProgress indicates an identical write is still in flight.
	ErrAlreadyInProgress = errors.New("action already in progress")
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)

// RevertError carries the ledger's revert reason verbatim.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrReverted.Error(), e.Reason)
}

// Is makes errors.Is(err, ErrReverted) hold for any RevertError.
func (e *RevertError) Is(target error) bool {
	return target == ErrReverted
}

// Revert builds a RevertError with the given reason.
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

// RevertReason extracts the revert reason, if err is a revert.
func RevertReason(err error) (string, bool) {
	var rev *RevertError
	if errors.As(err, &rev) {
		return rev.Reason, true
	}
	return "", false
}

// FailureKind is the stable classification of an error surfaced to callers.
type FailureKind string

const (
	KindNone              FailureKind = ""
	KindUnavailable       FailureKind = "UNAVAILABLE"
	KindNotFound          FailureKind = "NOT_FOUND"
	KindReverted          FailureKind = "REVERTED"
	KindTimeout           FailureKind = "TIMEOUT"
	KindAmountMismatch    FailureKind = "AMOUNT_MISMATCH"
	KindAlreadyInProgress FailureKind = "ALREADY_IN_PROGRESS"
	KindIntegrity         FailureKind = "INTEGRITY"
	KindInvalidInput      FailureKind = "INVALID_INPUT"
	KindInternal          FailureKind = "INTERNAL"
)

// KindOf classifies err. Errors from other layers may report their own kind
// by implementing FailureKind() FailureKind.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var classified interface{ FailureKind() FailureKind }
	if errors.As(err, &classified) {
		return classified.FailureKind()
	}
	switch {
	case errors.Is(err, ErrAlreadyInProgress):
		return KindAlreadyInProgress
	case errors.Is(err, ErrAmountMismatch):
		return KindAmountMismatch
	case errors.Is(err, ErrReverted):
		return KindReverted
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
