package sqlite

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/stretchr/testify/require"
)

const (
	alice = ledger.Account("0xA11CE00000000000000000000000000000000001")
	bob   = ledger.Account("0xB0B0000000000000000000000000000000000002")
	carol = ledger.Account("0xCA20100000000000000000000000000000000003")
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, opts ...LedgerOption) *Ledger {
	t.Helper()
	opts = append([]LedgerOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewLedger(NewTestDB(t), opts...)
}

func tenth() *big.Int { return big.NewInt(100000000000000000) }

func settle(t *testing.T, l *Ledger, h ledger.Handle, err error) (ledger.Receipt, error) {
	t.Helper()
	require.NoError(t, err)
	return l.AwaitSettlement(context.Background(), h)
}

func TestLedger_CreateAcceptComplete(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	h, err := l.SubmitCreate(ctx, alice, "Logo", "Design a logo", tenth())
	receipt, err := settle(t, l, h, err)
	require.NoError(t, err)
	require.NotNil(t, receipt.ProjectID)
	require.Equal(t, uint64(0), *receipt.ProjectID)

	count, err := l.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	rec, err := l.RecordAt(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, "Logo", rec.Name)
	require.Equal(t, tenth(), rec.Amount)
	require.True(t, rec.Creator.Equal(alice))
	require.True(t, rec.Counterparty.IsUnset())
	require.Equal(t, uint64(fixedNow.Unix()), rec.Deadline)

	h, err = l.SubmitAccept(ctx, bob, 0, tenth())
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	rec, err = l.RecordAt(ctx, 0)
	require.NoError(t, err)
	require.True(t, rec.IsAccepted)
	require.True(t, rec.Counterparty.Equal(bob))

	h, err = l.SubmitComplete(ctx, alice, 0)
	_, err = settle(t, l, h, err)
	reason, ok := ledger.RevertReason(err)
	require.True(t, ok)
	require.Equal(t, ReasonNotClient, reason)

	h, err = l.SubmitComplete(ctx, bob, 0)
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	rec, err = l.RecordAt(ctx, 0)
	require.NoError(t, err)
	require.True(t, rec.IsCompleted)

	recipient, amount, err := l.Payout(ctx, 0)
	require.NoError(t, err)
	require.True(t, recipient.Equal(alice))
	require.Equal(t, tenth(), amount)
}

func TestLedger_AcceptReverts(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	h, err := l.SubmitCreate(ctx, alice, "Logo", "Design a logo", tenth())
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	cases := []struct {
		from   ledger.Account
		id     uint64
		escrow *big.Int
		reason string
	}{
		{bob, 0, big.NewInt(1), ReasonEscrowMismatch},
		{alice, 0, tenth(), ReasonSelfAccept},
		{bob, 7, tenth(), ReasonInvalidProject},
	}
	for _, tc := range cases {
		h, err := l.SubmitAccept(ctx, tc.from, tc.id, tc.escrow)
		_, err = settle(t, l, h, err)
		require.ErrorIs(t, err, ledger.ErrReverted)
		reason, _ := ledger.RevertReason(err)
		require.Equal(t, tc.reason, reason)
	}

	h, err = l.SubmitAccept(ctx, bob, 0, tenth())
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	h, err = l.SubmitAccept(ctx, carol, 0, tenth())
	_, err = settle(t, l, h, err)
	reason, _ := ledger.RevertReason(err)
	require.Equal(t, ReasonAlreadyAccepted, reason)

	// awaiting a finished transaction replays its outcome
	_, err = l.AwaitSettlement(ctx, h)
	reason, _ = ledger.RevertReason(err)
	require.Equal(t, ReasonAlreadyAccepted, reason)
}

func TestLedger_SettledReceiptIsReplayed(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	h, err := l.SubmitCreate(ctx, alice, "Logo", "Design a logo", tenth())
	first, err := settle(t, l, h, err)
	require.NoError(t, err)

	again, err := l.AwaitSettlement(ctx, h)
	require.NoError(t, err)
	require.Equal(t, first.Block, again.Block)
	require.Equal(t, *first.ProjectID, *again.ProjectID)

	count, err := l.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestLedger_NotFound(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	_, err := l.RecordAt(ctx, 0)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = l.AwaitSettlement(ctx, "0xmissing")
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedger_SubmitRequiresSender(t *testing.T) {
	_, err := newTestLedger(t).SubmitComplete(context.Background(), ledger.ZeroAccount, 0)
	require.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestLedger_BlockDelayHonorsDeadline(t *testing.T) {
	l := newTestLedger(t, WithBlockDelay(time.Second))

	h, err := l.SubmitCreate(context.Background(), alice, "Logo", "Design a logo", tenth())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.AwaitSettlement(ctx, h)
	require.ErrorIs(t, err, ledger.ErrTimeout)

	count, err := l.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), count)
}

func TestLedger_Profiles(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	p, err := l.ProfileOf(ctx, bob)
	require.NoError(t, err)
	require.True(t, p.IsEmpty())

	h, err := l.SubmitProfile(ctx, bob, ledger.Profile{Name: "Bob", Bio: "builder", Avatar: "b.png"})
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	h, err = l.SubmitProfile(ctx, bob, ledger.Profile{Name: "Robert", Bio: "builder", Avatar: "b.png"})
	_, err = settle(t, l, h, err)
	require.NoError(t, err)

	p, err = l.ProfileOf(ctx, "0xb0b0000000000000000000000000000000000002")
	require.NoError(t, err)
	require.Equal(t, "Robert", p.Name)
}

func TestLedger_Seed(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	id, err := l.Seed(ctx, ledger.ProjectRecord{
		Name: "Old", Description: "done", Amount: tenth(),
		Creator: alice, Counterparty: bob, Deadline: 1700000000,
		IsAccepted: true, IsCompleted: true,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	rec, err := l.RecordAt(ctx, id)
	require.NoError(t, err)
	require.True(t, rec.IsCompleted)
	require.True(t, rec.Counterparty.Equal(bob))
}
