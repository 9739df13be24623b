package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/gigboard/internal/domain/action"
	"github.com/rpggio/gigboard/internal/domain/activity"
	"github.com/rpggio/gigboard/internal/domain/profile"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/readmodel"
)

const activityWriteTimeout = 2 * time.Second

// Config configures sessions created by a Manager.
type Config struct {
	SettlementTimeout time.Duration
	// AutoRefresh rebuilds the read model periodically when positive.
	AutoRefresh time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Manager owns the current session and replaces it on account changes.
type Manager struct {
	ledger   ledger.Ledger
	identity ledger.IdentityProvider
	activity *activity.Service
	cfg      Config

	mu      sync.Mutex
	current *Session
}

// NewManager creates a Manager.
func NewManager(l ledger.Ledger, identity ledger.IdentityProvider, activitySvc *activity.Service, cfg Config) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{ledger: l, identity: identity, activity: activitySvc, cfg: cfg}
}

// Start opens a session for the identity provider's account. Without a
// connected account the session is read-only.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	account, err := m.identity.ActiveAccount(ctx)
	if err != nil {
		if !errors.Is(err, ledger.ErrUnavailable) {
			return nil, fmt.Errorf("resolving account: %w", err)
		}
		m.cfg.Logger.Warn("no account connected, starting read-only session", "error", err)
		account = ""
	}
	return m.open(ctx, account, activity.TypeSessionStarted)
}

// SwitchAccount replaces the current session with one for account.
func (m *Manager) SwitchAccount(ctx context.Context, account ledger.Account) (*Session, error) {
	if account.IsUnset() {
		return nil, fmt.Errorf("%w: account is required", ledger.ErrInvalidInput)
	}
	return m.open(ctx, account, activity.TypeAccountSwitched)
}

// Disconnect closes the current session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur != nil {
		cur.close()
	}
}

// Current returns the open session.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

func (m *Manager) open(ctx context.Context, account ledger.Account, reason activity.ActivityType) (*Session, error) {
	s := m.newSession(account)
	var refreshCtx context.Context
	if m.cfg.AutoRefresh > 0 {
		refreshCtx, s.stop = context.WithCancel(context.Background())
	}

	m.mu.Lock()
	prev := m.current
	m.current = s
	m.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	summary := "Session started"
	if reason == activity.TypeAccountSwitched {
		summary = "Switched account"
	}
	s.log(ctx, &activity.ActivityEntry{ActivityType: reason, Summary: summary})

	if _, err := s.store.Refresh(ctx); err != nil {
		s.logger.Warn("initial snapshot build failed", "error", err, "kind", ledger.KindOf(err))
	}

	if refreshCtx != nil {
		go s.store.RunAutoRefresh(refreshCtx, m.cfg.AutoRefresh)
	}

	s.logger.Info("session started", "read_only", account.IsUnset())
	return s, nil
}

func (m *Manager) newSession(account ledger.Account) *Session {
	id := uuid.NewString()
	logger := m.cfg.Logger.With("session_id", id, "account", account)

	store := readmodel.NewStore(readmodel.NewBuilder(m.ledger, m.cfg.Now, logger), logger)
	s := &Session{
		id:        id,
		account:   account,
		startedAt: m.cfg.Now(),
		store:     store,
		profiles:  profile.NewService(m.ledger, logger),
		activity:  m.activity,
		logger:    logger,
		status:    StatusActive,
	}
	s.coordinator = action.NewCoordinator(m.ledger, store, action.Config{
		SettlementTimeout: m.cfg.SettlementTimeout,
		Now:               m.cfg.Now,
		Logger:            logger,
		Observer:          s.recordTransition,
	})
	return s
}

type transitionDetails struct {
	State        action.State       `json:"state"`
	Handle       ledger.Handle      `json:"handle,omitempty"`
	FailureKind  ledger.FailureKind `json:"failure_kind,omitempty"`
	RevertReason string             `json:"revert_reason,omitempty"`
	RebuildError string             `json:"rebuild_error,omitempty"`
}

func (s *Session) recordTransition(a action.Action) {
	details, _ := json.Marshal(transitionDetails{
		State:        a.State,
		Handle:       a.Handle,
		FailureKind:  a.FailureKind,
		RevertReason: a.RevertReason,
		RebuildError: a.RebuildError,
	})
	actionID := a.ID

	ctx, cancel := context.WithTimeout(context.Background(), activityWriteTimeout)
	defer cancel()
	s.log(ctx, &activity.ActivityEntry{
		ActionID:     &actionID,
		ProjectID:    a.ProjectID,
		ActivityType: activity.TypeActionTransition,
		Summary:      fmt.Sprintf("%s %s", a.Kind, a.State),
		Details:      string(details),
	})
}
