package action_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/ledger/mocks"
	"github.com/rpggio/gigboard/internal/readmodel"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	alice = ledger.Account("0xa11ce00000000000000000000000000000000001")
	bob   = ledger.Account("0xb0b0000000000000000000000000000000000002")
)

type rebuilderMock struct {
	mock.Mock
}

func (m *rebuilderMock) Invalidate() {
	m.Called()
}

func (m *rebuilderMock) Rebuild(ctx context.Context) (readmodel.View, error) {
	args := m.Called(ctx)
	return readmodel.View{}, args.Error(0)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []action.State
}

func (r *stateRecorder) observe(a action.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, a.State)
}

func (r *stateRecorder) seen() []action.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]action.State(nil), r.states...)
}

func tenth() *big.Int { return big.NewInt(100000000000000000) }

func openRecord(amount *big.Int) ledger.ProjectRecord {
	return ledger.ProjectRecord{
		ID:           1,
		Name:         "Logo",
		Description:  "Design a logo",
		Amount:       amount,
		Creator:      alice,
		Counterparty: ledger.ZeroAccount,
		Deadline:     1700000000,
	}
}

func newCoordinator(l *mocks.Ledger, rb *rebuilderMock, rec *stateRecorder, timeout time.Duration) *action.Coordinator {
	cfg := action.Config{SettlementTimeout: timeout}
	if rec != nil {
		cfg.Observer = rec.observe
	}
	return action.NewCoordinator(l, rb, cfg)
}

func TestAccept_SettlesAndRebuildsOnce(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}
	rec := &stateRecorder{}

	l.On("RecordAt", mock.Anything, uint64(1)).Return(openRecord(tenth()), nil)
	l.On("SubmitAccept", mock.Anything, bob, uint64(1), mock.Anything).Return(ledger.Handle("0xh1"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh1")).Return(ledger.Receipt{Handle: "0xh1", Block: 7}, nil)
	rb.On("Invalidate").Return().Once()
	rb.On("Rebuild", mock.Anything).Return(nil).Once()

	coord := newCoordinator(l, rb, rec, time.Second)
	a, err := coord.Accept(context.Background(), bob, 1, tenth())
	require.NoError(t, err)
	require.Equal(t, action.StateRebuildTriggered, a.State)
	require.Equal(t, ledger.Handle("0xh1"), a.Handle)
	require.Equal(t, []action.State{
		action.StateSubmitting,
		action.StateAwaitingSettlement,
		action.StateSettled,
		action.StateRebuildTriggered,
	}, rec.seen())

	stored, ok := coord.Get(a.ID)
	require.True(t, ok)
	require.Len(t, stored.Transitions, 5)
	require.Equal(t, 0, coord.InFlight())

	l.AssertExpectations(t)
	rb.AssertExpectations(t)
}

func TestAccept_AmountMismatchBeforeAnyWrite(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}

	l.On("RecordAt", mock.Anything, uint64(1)).Return(openRecord(tenth()), nil)

	a, err := newCoordinator(l, rb, nil, time.Second).Accept(context.Background(), bob, 1, big.NewInt(90000000000000000))
	require.ErrorIs(t, err, ledger.ErrAmountMismatch)
	require.Equal(t, action.StateFailed, a.State)
	require.Equal(t, ledger.KindAmountMismatch, a.FailureKind)

	l.AssertNotCalled(t, "SubmitAccept", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	rb.AssertNotCalled(t, "Rebuild", mock.Anything)
}

func TestAccept_DuplicateWhileInFlight(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}
	release := make(chan time.Time)
	awaiting := make(chan struct{})

	l.On("RecordAt", mock.Anything, uint64(1)).Return(openRecord(tenth()), nil)
	l.On("SubmitAccept", mock.Anything, bob, uint64(1), mock.Anything).Return(ledger.Handle("0xh1"), nil).Once()
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh1")).WaitUntil(release).Return(ledger.Receipt{Handle: "0xh1"}, nil)
	rb.On("Invalidate").Return()
	rb.On("Rebuild", mock.Anything).Return(nil).Once()

	var once sync.Once
	coord := action.NewCoordinator(l, rb, action.Config{Observer: func(a action.Action) {
		if a.State == action.StateAwaitingSettlement {
			once.Do(func() { close(awaiting) })
		}
	}})

	done := make(chan error, 1)
	go func() {
		_, err := coord.Accept(context.Background(), bob, 1, tenth())
		done <- err
	}()
	<-awaiting

	_, err := coord.Accept(context.Background(), bob, 1, tenth())
	require.ErrorIs(t, err, ledger.ErrAlreadyInProgress)
	require.Equal(t, ledger.KindAlreadyInProgress, ledger.KindOf(err))

	close(release)
	require.NoError(t, <-done)
	l.AssertNumberOfCalls(t, "SubmitAccept", 1)
	rb.AssertNumberOfCalls(t, "Rebuild", 1)
}

func TestAccept_RevertSurfacesReasonAndLeavesReadModel(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}

	l.On("RecordAt", mock.Anything, uint64(1)).Return(openRecord(tenth()), nil)
	l.On("SubmitAccept", mock.Anything, bob, uint64(1), mock.Anything).Return(ledger.Handle("0xh1"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh1")).Return(nil, ledger.Revert("project already accepted"))

	a, err := newCoordinator(l, rb, nil, time.Second).Accept(context.Background(), bob, 1, tenth())
	require.ErrorIs(t, err, ledger.ErrReverted)
	require.Equal(t, action.StateFailed, a.State)
	require.Equal(t, ledger.KindReverted, a.FailureKind)
	require.Equal(t, "project already accepted", a.RevertReason)
	rb.AssertNotCalled(t, "Invalidate")
	rb.AssertNotCalled(t, "Rebuild", mock.Anything)
}

func TestComplete_SettlementTimeout(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}

	l.On("SubmitComplete", mock.Anything, bob, uint64(1)).Return(ledger.Handle("0xh2"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh2")).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	}).Return(nil, context.DeadlineExceeded)

	coord := newCoordinator(l, rb, nil, 20*time.Millisecond)
	a, err := coord.Complete(context.Background(), bob, 1)
	require.ErrorIs(t, err, ledger.ErrTimeout)
	require.Equal(t, ledger.KindTimeout, a.FailureKind)
	require.Equal(t, 0, coord.InFlight())
	rb.AssertNotCalled(t, "Rebuild", mock.Anything)
}

func TestCreate_RecordsNewProjectID(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}
	newID := uint64(3)

	l.On("SubmitCreate", mock.Anything, alice, "Logo", "Design a logo", mock.Anything).Return(ledger.Handle("0xh3"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh3")).Return(ledger.Receipt{Handle: "0xh3", ProjectID: &newID}, nil)
	rb.On("Invalidate").Return()
	rb.On("Rebuild", mock.Anything).Return(nil)

	coord := newCoordinator(l, rb, nil, time.Second)
	a, err := coord.Create(context.Background(), alice, action.CreateRequest{
		Name:        " Logo ",
		Description: "Design a logo",
		Amount:      tenth(),
	})
	require.NoError(t, err)
	require.NotNil(t, a.ProjectID)
	require.Equal(t, newID, *a.ProjectID)
	require.Len(t, coord.List(), 1)
}

func TestCreate_RebuildFailureKeepsSettledOutcome(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}

	l.On("SubmitCreate", mock.Anything, alice, "Logo", "Design a logo", mock.Anything).Return(ledger.Handle("0xh4"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh4")).Return(ledger.Receipt{Handle: "0xh4"}, nil)
	rb.On("Invalidate").Return()
	rb.On("Rebuild", mock.Anything).Return(ledger.ErrUnavailable)

	a, err := newCoordinator(l, rb, nil, time.Second).Create(context.Background(), alice, action.CreateRequest{
		Name: "Logo", Description: "Design a logo", Amount: tenth(),
	})
	require.NoError(t, err)
	require.Equal(t, action.StateRebuildTriggered, a.State)
	require.Contains(t, a.RebuildError, "ledger unavailable")
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	coord := newCoordinator(&mocks.Ledger{}, &rebuilderMock{}, nil, time.Second)

	_, err := coord.Create(context.Background(), alice, action.CreateRequest{Name: " ", Description: "d", Amount: tenth()})
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	_, err = coord.Create(context.Background(), alice, action.CreateRequest{Name: "n", Description: "d", Amount: big.NewInt(0)})
	require.ErrorIs(t, err, ledger.ErrInvalidInput)
	require.Empty(t, coord.List())
}

func TestRun_RequiresSigningAccount(t *testing.T) {
	coord := newCoordinator(&mocks.Ledger{}, &rebuilderMock{}, nil, time.Second)

	_, err := coord.Complete(context.Background(), ledger.ZeroAccount, 1)
	require.ErrorIs(t, err, ledger.ErrUnavailable)
}

func TestUpdateProfile_Settles(t *testing.T) {
	l := &mocks.Ledger{}
	rb := &rebuilderMock{}
	want := ledger.Profile{Account: bob, Name: "Bob", Bio: "builder", Avatar: "https://example.com/b.png"}

	l.On("SubmitProfile", mock.Anything, bob, want).Return(ledger.Handle("0xh5"), nil)
	l.On("AwaitSettlement", mock.Anything, ledger.Handle("0xh5")).Return(ledger.Receipt{Handle: "0xh5"}, nil)
	rb.On("Invalidate").Return()
	rb.On("Rebuild", mock.Anything).Return(nil)

	a, err := newCoordinator(l, rb, nil, time.Second).UpdateProfile(context.Background(), bob, action.ProfileRequest{
		Name: "Bob", Bio: "builder", Avatar: "https://example.com/b.png",
	})
	require.NoError(t, err)
	require.Equal(t, action.KindUpdateProfile, a.Kind)
	l.AssertExpectations(t)
}

func TestPayloadHash_Stable(t *testing.T) {
	require.Equal(t, action.PayloadHash("a", "b", "1"), action.PayloadHash("a", "b", "1"))
	require.NotEqual(t, action.PayloadHash("a", "b", "1"), action.PayloadHash("a", "b", "2"))
}
