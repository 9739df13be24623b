package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type repoMock struct {
	mock.Mock
}

func (m *repoMock) Log(ctx context.Context, account string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, account, entry)
	return args.Error(0)
}

func (m *repoMock) List(ctx context.Context, account string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, account, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()
	account := "0xabc"

	repo := &repoMock{}
	entry := &activity.ActivityEntry{
		ActivityType: activity.TypeActionTransition,
		Summary:      "accept settled",
	}

	repo.On("Log", ctx, account, entry).Return(nil)
	repo.On("List", ctx, account, activity.ListActivityOptions{Limit: activity.DefaultListLimit}).Return([]activity.ActivityEntry{*entry}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, account, entry))
	require.False(t, entry.CreatedAt.IsZero())

	entries, err := svc.GetRecentActivity(ctx, account, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsInvalidEntry(t *testing.T) {
	svc := activity.NewService(&repoMock{}, nil)

	require.ErrorIs(t, svc.LogActivity(context.Background(), "0xabc", nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), "0xabc", &activity.ActivityEntry{}), activity.ErrInvalidInput)
}

func TestActivityService_WrapsRepositoryErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	repo := &repoMock{}
	repo.On("List", ctx, "0xabc", mock.Anything).Return(nil, boom)

	_, err := activity.NewService(repo, nil).GetRecentActivity(ctx, "0xabc", activity.ListActivityOptions{Limit: 5})
	require.ErrorIs(t, err, boom)
}
