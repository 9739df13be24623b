package ledger

import (
	"context"
	"math/big"
)

// Reader exposes the ledger's indexed record collection.
type Reader interface {
	// Count returns the number of records. Valid indices are [0, Count).
	Count(ctx context.Context) (uint64, error)
	// RecordAt returns the record at index. Indices at or past Count yield ErrNotFound.
	RecordAt(ctx context.Context, index uint64) (ProjectRecord, error)
}

// ProfileReader reads published account profiles.
type ProfileReader interface {
	ProfileOf(ctx context.Context, account Account) (Profile, error)
}

// Writer submits state-changing transactions and waits for their settlement.
type Writer interface {
	SubmitCreate(ctx context.Context, from Account, name, description string, amount *big.Int) (Handle, error)
	SubmitAccept(ctx context.Context, from Account, id uint64, escrow *big.Int) (Handle, error)
	SubmitComplete(ctx context.Context, from Account, id uint64) (Handle, error)
	SubmitProfile(ctx context.Context, from Account, profile Profile) (Handle, error)
	// AwaitSettlement blocks until the transaction settles, reverts, or ctx ends.
	AwaitSettlement(ctx context.Context, handle Handle) (Receipt, error)
}

// Ledger is the full read and write surface of a ledger backend.
type Ledger interface {
	Reader
	ProfileReader
	Writer
}

// IdentityProvider resolves the account that signs writes.
type IdentityProvider interface {
	ActiveAccount(ctx context.Context) (Account, error)
}

// StaticIdentity is an IdentityProvider bound to a fixed account.
type StaticIdentity Account

// ActiveAccount returns the bound account, or ErrUnavailable when unset.
func (s StaticIdentity) ActiveAccount(ctx context.Context) (Account, error) {
	acct := Account(s)
	if acct.IsUnset() {
		return "", ErrUnavailable
	}
	return acct, nil
}
