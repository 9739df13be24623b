package action

import (
	"math/big"
	"time"

	"github.com/rpggio/gigboard/internal/ledger"
)

// Kind names a user-initiated ledger write.
type Kind string

const (
	KindCreate        Kind = "create"
	KindAccept        Kind = "accept"
	KindComplete      Kind = "complete"
	KindUpdateProfile Kind = "update_profile"
)

// State is a step in an action's lifecycle.
type State string

const (
	StateIdle               State = "IDLE"
	StateSubmitting         State = "SUBMITTING"
	StateAwaitingSettlement State = "AWAITING_SETTLEMENT"
	StateSettled            State = "SETTLED"
	StateRebuildTriggered   State = "REBUILD_TRIGGERED"
	StateFailed             State = "FAILED"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateRebuildTriggered || s == StateFailed
}

// Transition records when an action entered a state.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// Action is the tracked lifecycle of one ledger write.
type Action struct {
	ID          string             `json:"id"`
	Kind        Kind               `json:"kind"`
	Account     ledger.Account     `json:"account"`
	ProjectID   *uint64            `json:"project_id,omitempty"`
	State       State              `json:"state"`
	Handle      ledger.Handle      `json:"handle,omitempty"`
	FailureKind ledger.FailureKind `json:"failure_kind,omitempty"`
	Error       string             `json:"error,omitempty"`
	// RevertReason is the ledger's rejection reason, verbatim.
	RevertReason string `json:"revert_reason,omitempty"`
	// RebuildError is set when the write settled but the follow-up rebuild failed.
	RebuildError string       `json:"rebuild_error,omitempty"`
	Transitions  []Transition `json:"transitions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (a Action) clone() Action {
	out := a
	out.Transitions = append([]Transition(nil), a.Transitions...)
	if a.ProjectID != nil {
		id := *a.ProjectID
		out.ProjectID = &id
	}
	return out
}

// CreateRequest defines project creation inputs. Amount is in minor units.
type CreateRequest struct {
	Name        string
	Description string
	Amount      *big.Int
}

// ProfileRequest defines profile update inputs.
type ProfileRequest struct {
	Name   string
	Bio    string
	Avatar string
}

// Observer is notified after every state transition.
type Observer func(Action)
