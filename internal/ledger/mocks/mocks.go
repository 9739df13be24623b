package mocks

import (
	"context"
	"math/big"

	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/stretchr/testify/mock"
)

// Ledger is a mock for ledger.Ledger.
type Ledger struct {
	mock.Mock
}

func (m *Ledger) Count(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	if n, ok := args.Get(0).(uint64); ok {
		return n, args.Error(1)
	}
	return 0, args.Error(1)
}

func (m *Ledger) RecordAt(ctx context.Context, index uint64) (ledger.ProjectRecord, error) {
	args := m.Called(ctx, index)
	if rec, ok := args.Get(0).(ledger.ProjectRecord); ok {
		return rec, args.Error(1)
	}
	return ledger.ProjectRecord{}, args.Error(1)
}

func (m *Ledger) ProfileOf(ctx context.Context, account ledger.Account) (ledger.Profile, error) {
	args := m.Called(ctx, account)
	if p, ok := args.Get(0).(ledger.Profile); ok {
		return p, args.Error(1)
	}
	return ledger.Profile{}, args.Error(1)
}

func (m *Ledger) SubmitCreate(ctx context.Context, from ledger.Account, name, description string, amount *big.Int) (ledger.Handle, error) {
	args := m.Called(ctx, from, name, description, amount)
	return handleArg(args)
}

func (m *Ledger) SubmitAccept(ctx context.Context, from ledger.Account, id uint64, escrow *big.Int) (ledger.Handle, error) {
	args := m.Called(ctx, from, id, escrow)
	return handleArg(args)
}

func (m *Ledger) SubmitComplete(ctx context.Context, from ledger.Account, id uint64) (ledger.Handle, error) {
	args := m.Called(ctx, from, id)
	return handleArg(args)
}

func (m *Ledger) SubmitProfile(ctx context.Context, from ledger.Account, profile ledger.Profile) (ledger.Handle, error) {
	args := m.Called(ctx, from, profile)
	return handleArg(args)
}

func (m *Ledger) AwaitSettlement(ctx context.Context, handle ledger.Handle) (ledger.Receipt, error) {
	args := m.Called(ctx, handle)
	if r, ok := args.Get(0).(ledger.Receipt); ok {
		return r, args.Error(1)
	}
	return ledger.Receipt{}, args.Error(1)
}

func handleArg(args mock.Arguments) (ledger.Handle, error) {
	if h, ok := args.Get(0).(ledger.Handle); ok {
		return h, args.Error(1)
	}
	return "", args.Error(1)
}

// IdentityProvider is a mock for ledger.IdentityProvider.
type IdentityProvider struct {
	mock.Mock
}

func (m *IdentityProvider) ActiveAccount(ctx context.Context) (ledger.Account, error) {
	args := m.Called(ctx)
	if acct, ok := args.Get(0).(ledger.Account); ok {
		return acct, args.Error(1)
	}
	return "", args.Error(1)
}
