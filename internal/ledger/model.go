package ledger

import (
	"math/big"
	"strings"
	"time"
)

// Account identifies a ledger participant by its hex address.
type Account string

// ZeroAccount is the ledger's representation of an unset participant.
const ZeroAccount Account = "0x0000000000000000000000000000000000000000"

// IsUnset reports whether the account is empty or the zero address.
func (a Account) IsUnset() bool {
	s := strings.TrimSpace(string(a))
	return s == "" || strings.EqualFold(s, string(ZeroAccount))
}

// Equal compares accounts case-insensitively. All unset accounts are equal.
func (a Account) Equal(other Account) bool {
	if a.IsUnset() || other.IsUnset() {
		return a.IsUnset() && other.IsUnset()
	}
	return strings.EqualFold(strings.TrimSpace(string(a)), strings.TrimSpace(string(other)))
}

// Key returns the canonical lowercase form used for indexing.
func (a Account) Key() string {
	if a.IsUnset() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(string(a)))
}

func (a Account) String() string {
	return string(a)
}

// ProjectRecord is a single entry as stored on the ledger.
// Amount is in minor units (18 decimals). Deadline is seconds since epoch.
type ProjectRecord struct {
	ID           uint64
	Name         string
	Description  string
	Amount       *big.Int
	Creator      Account
	Counterparty Account
	Deadline     uint64
	IsAccepted   bool
	IsCompleted  bool
}

// Clone returns a copy that shares no mutable state with r.
func (r ProjectRecord) Clone() ProjectRecord {
	out := r
	if r.Amount != nil {
		out.Amount = new(big.Int).Set(r.Amount)
	}
	return out
}

// Profile is the public profile an account publishes on the ledger.
type Profile struct {
	Account Account `json:"account"`
	Name    string  `json:"name"`
	Bio     string  `json:"bio"`
	Avatar  string  `json:"avatar"`
}

// IsEmpty reports whether the account never published a profile.
func (p Profile) IsEmpty() bool {
	return p.Name == "" && p.Bio == "" && p.Avatar == ""
}

// Handle identifies a submitted transaction.
type Handle string

// Receipt describes a settled transaction.
type Receipt struct {
	Handle    Handle
	Block     uint64
	SettledAt time.Time
	// ProjectID is set when the transaction created a record.
	ProjectID *uint64
}
