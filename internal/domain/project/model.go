package project

import (
	"math/big"

	"github.com/rpggio/gigboard/internal/ledger"
)

// LifecycleState is the derived state of a project record.
type LifecycleState string

const (
	StateOpen      LifecycleState = "OPEN"
	StateAccepted  LifecycleState = "ACCEPTED"
	StateCompleted LifecycleState = "COMPLETED"
)

// Project is a ledger record normalized for presentation.
type Project struct {
	ID              uint64         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Amount          *big.Int       `json:"-"`
	FormattedAmount string         `json:"amount"`
	Creator         ledger.Account `json:"creator"`
	Counterparty    ledger.Account `json:"counterparty,omitempty"`
	Deadline        uint64         `json:"deadline"`
	AgeLabel        string         `json:"age_label"`
	IsAccepted      bool           `json:"is_accepted"`
	IsCompleted     bool           `json:"is_completed"`
	State           LifecycleState `json:"state"`
}

// Clone returns a copy that shares no mutable state with p.
func (p Project) Clone() Project {
	out := p
	if p.Amount != nil {
		out.Amount = new(big.Int).Set(p.Amount)
	}
	return out
}
