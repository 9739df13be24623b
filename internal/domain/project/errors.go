package project

import (
	"errors"
	"fmt"

	"github.com/rpggio/gigboard/internal/ledger"
)

var (
	// ErrIntegrity indicates a ledger record in a state the lifecycle forbids.
	ErrIntegrity = errors.New("ledger integrity violation")
	// ErrInvalidAmount indicates an amount that cannot be represented in minor units.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ledger.ErrInvalidInput)
)

// IntegrityError names the offending record and the violated rule.
type IntegrityError struct {
	ID     uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: record %d: %s", ErrIntegrity.Error(), e.ID, e.Reason)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// FailureKind classifies integrity failures for callers.
func (e *IntegrityError) FailureKind() ledger.FailureKind {
	return ledger.KindIntegrity
}
