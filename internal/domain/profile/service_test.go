package profile_test

import (
	"context"
	"testing"

	"github.com/rpggio/gigboard/internal/domain/profile"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/ledger/mocks"
	"github.com/stretchr/testify/require"
)

func TestProfileService_Get(t *testing.T) {
	ctx := context.Background()
	acct := ledger.Account("0xb0b")

	l := &mocks.Ledger{}
	l.On("ProfileOf", ctx, acct).Return(ledger.Profile{Name: "Bob", Bio: "builder"}, nil)

	p, err := profile.NewService(l, nil).Get(ctx, acct)
	require.NoError(t, err)
	require.Equal(t, acct, p.Account)
	require.Equal(t, "Bob", p.Name)
}

func TestProfileService_Errors(t *testing.T) {
	ctx := context.Background()

	l := &mocks.Ledger{}
	l.On("ProfileOf", ctx, ledger.Account("0xdead")).Return(nil, ledger.ErrUnavailable)
	svc := profile.NewService(l, nil)

	_, err := svc.Get(ctx, ledger.ZeroAccount)
	require.ErrorIs(t, err, profile.ErrInvalidAccount)

	_, err = svc.Get(ctx, "0xdead")
	require.ErrorIs(t, err, ledger.ErrUnavailable)
}
