package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/profile"
	"github.com/rpggio/gigboard/internal/domain/project"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/query"
	"github.com/rpggio/gigboard/internal/readmodel"
)

// Session is the context of one connected account: its read model, its
// action coordinator, and its activity log. Switching accounts replaces it.
type Session struct {
	id        string
	account   ledger.Account
	startedAt time.Time

	store       *readmodel.Store
	coordinator *action.Coordinator
	profiles    *profile.Service
	activity    *activity.Service
	logger      *slog.Logger
	stop        context.CancelFunc

	mu     sync.Mutex
	status SessionStatus
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Account returns the connected account, unset for read-only sessions.
func (s *Session) Account() ledger.Account {
	return s.account
}

// Info reports the session state and read-model freshness.
func (s *Session) Info() Info {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	v := s.store.View()
	info := Info{
		ID:          s.id,
		Account:     s.account,
		ReadOnly:    s.account.IsUnset(),
		Status:      status,
		StartedAt:   s.startedAt,
		Ready:       v.Ready(),
		Stale:       v.Stale,
		RefreshedAt: v.RefreshedAt,
		Generation:  v.Generation,
		InFlight:    s.coordinator.InFlight(),
	}
	if v.LastError != nil {
		info.LastError = v.LastError.Error()
	}
	return info
}

// View returns the published read-model view.
func (s *Session) View() readmodel.View {
	return s.store.View()
}

// Refresh rebuilds the read model.
func (s *Session) Refresh(ctx context.Context) (readmodel.View, error) {
	if err := s.checkOpen(); err != nil {
		return readmodel.View{}, err
	}
	v, err := s.store.Refresh(ctx)
	if err != nil {
		s.log(ctx, &activity.ActivityEntry{
			ActivityType: activity.TypeSnapshotFailed,
			Summary:      "Refresh failed",
			Details:      err.Error(),
		})
		return v, err
	}
	s.log(ctx, &activity.ActivityEntry{
		ActivityType: activity.TypeSnapshotRebuilt,
		Summary:      fmt.Sprintf("Refreshed %d projects", v.Snapshot.Len()),
	})
	return v, nil
}

// Marketplace returns open projects filtered and sorted by params.
func (s *Session) Marketplace(params query.Params) (Listing, error) {
	if err := params.Validate(); err != nil {
		return Listing{}, err
	}
	return s.list(func(snap *readmodel.Snapshot) []project.Project {
		return query.Apply(snap.Marketplace(), params)
	})
}

// Created returns projects created by account, or by the session's account when unset.
// Read-only sessions fail with ErrNoAccount.
func (s *Session) Created(account ledger.Account) (Listing, error) {
	acct, err := s.resolve(account)
	if err != nil {
		return Listing{}, err
	}
	return s.list(func(snap *readmodel.Snapshot) []project.Project {
		return snap.CreatedBy(acct)
	})
}

// Purchased returns projects accepted by account, or by the session's account when unset.
func (s *Session) Purchased(account ledger.Account) (Listing, error) {
	acct, err := s.resolve(account)
	if err != nil {
		return Listing{}, err
	}
	return s.list(func(snap *readmodel.Snapshot) []project.Project {
		return snap.PurchasedBy(acct)
	})
}

// Statistics returns account statistics, defaulting to the session's account.
func (s *Session) Statistics(account ledger.Account) (readmodel.AccountStatistics, error) {
	acct, err := s.resolve(account)
	if err != nil {
		return readmodel.AccountStatistics{}, err
	}
	snap, err := s.snapshot()
	if err != nil {
		return readmodel.AccountStatistics{}, err
	}
	return snap.Statistics(acct), nil
}

// Overview returns ledger-wide totals.
func (s *Session) Overview() (readmodel.Overview, error) {
	snap, err := s.snapshot()
	if err != nil {
		return readmodel.Overview{}, err
	}
	return snap.Overview(), nil
}

// Project returns one project from the current snapshot.
func (s *Session) Project(id uint64) (project.Project, error) {
	snap, err := s.snapshot()
	if err != nil {
		return project.Project{}, err
	}
	p, ok := snap.Project(id)
	if !ok {
		return project.Project{}, fmt.Errorf("%w %d", ErrProjectNotFound, id)
	}
	return p, nil
}

// Profile returns the published profile and statistics of account.
func (s *Session) Profile(ctx context.Context, account ledger.Account) (ProfileSummary, error) {
	acct, err := s.resolve(account)
	if err != nil {
		return ProfileSummary{}, err
	}
	p, err := s.profiles.Get(ctx, acct)
	if err != nil {
		return ProfileSummary{}, err
	}
	summary := ProfileSummary{Profile: p, Statistics: readmodel.AccountStatistics{Account: acct, Earnings: "0"}}
	if snap, err := s.snapshot(); err == nil {
		summary.Statistics = snap.Statistics(acct)
	}
	return summary, nil
}

// Create publishes a project. amount is in major units.
func (s *Session) Create(ctx context.Context, name, description, amount string) (action.Action, error) {
	if err := s.checkWritable(); err != nil {
		return action.Action{}, err
	}
	minor, err := project.ParseAmount(amount)
	if err != nil {
		return action.Action{}, err
	}
	return s.coordinator.Create(ctx, s.account, action.CreateRequest{
		Name:        name,
		Description: description,
		Amount:      minor,
	})
}

// Accept accepts a project. An empty escrow uses the amount shown in the snapshot.
func (s *Session) Accept(ctx context.Context, id uint64, escrow string) (action.Action, error) {
	if err := s.checkWritable(); err != nil {
		return action.Action{}, err
	}
	var value *big.Int
	if escrow == "" {
		p, err := s.Project(id)
		if err != nil {
			return action.Action{}, err
		}
		value = p.Amount
	} else {
		v, err := project.ParseEscrow(escrow)
		if err != nil {
			return action.Action{}, err
		}
		value = v
	}
	return s.coordinator.Accept(ctx, s.account, id, value)
}

// Complete completes an accepted project.
func (s *Session) Complete(ctx context.Context, id uint64) (action.Action, error) {
	if err := s.checkWritable(); err != nil {
		return action.Action{}, err
	}
	return s.coordinator.Complete(ctx, s.account, id)
}

// UpdateProfile publishes the session account's profile.
func (s *Session) UpdateProfile(ctx context.Context, req action.ProfileRequest) (action.Action, error) {
	if err := s.checkWritable(); err != nil {
		return action.Action{}, err
	}
	return s.coordinator.UpdateProfile(ctx, s.account, req)
}

// Action returns a tracked action.
func (s *Session) Action(id string) (action.Action, bool) {
	return s.coordinator.Get(id)
}

// Actions returns tracked actions, newest first.
func (s *Session) Actions() []action.Action {
	return s.coordinator.List()
}

// Activity returns the session account's recent activity.
func (s *Session) Activity(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	return s.activity.GetRecentActivity(ctx, s.activityKey(), opts)
}

func (s *Session) close() {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return
	}
	s.status = StatusClosed
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	s.log(context.Background(), &activity.ActivityEntry{
		ActivityType: activity.TypeSessionClosed,
		Summary:      "Session closed",
	})
	s.logger.Info("session closed")
}

func (s *Session) list(pick func(*readmodel.Snapshot) []project.Project) (Listing, error) {
	v := s.store.View()
	if !v.Ready() {
		return Listing{}, notReady(v)
	}
	return Listing{
		Projects:    pick(v.Snapshot),
		Stale:       v.Stale,
		LastError:   v.LastError,
		RefreshedAt: v.RefreshedAt,
	}, nil
}

func (s *Session) snapshot() (*readmodel.Snapshot, error) {
	v := s.store.View()
	if !v.Ready() {
		return nil, notReady(v)
	}
	return v.Snapshot, nil
}

// resolve picks the account a per-account read is about. Read-only sessions
// serve no per-account partitions, even for a named account.
func (s *Session) resolve(account ledger.Account) (ledger.Account, error) {
	if s.account.IsUnset() {
		return "", ErrNoAccount
	}
	if account.IsUnset() {
		return s.account, nil
	}
	return account, nil
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusClosed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) checkWritable() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.account.IsUnset() {
		return ErrNoAccount
	}
	return nil
}

func (s *Session) activityKey() string {
	if s.account.IsUnset() {
		return "anonymous"
	}
	return s.account.Key()
}

func (s *Session) log(ctx context.Context, entry *activity.ActivityEntry) {
	entry.SessionID = s.id
	if err := s.activity.LogActivity(ctx, s.activityKey(), entry); err != nil {
		s.logger.Warn("failed to log activity", "type", entry.ActivityType, "error", err)
	}
}

func notReady(v readmodel.View) error {
	if v.LastError != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, v.LastError)
	}
	return ErrNotReady
}
