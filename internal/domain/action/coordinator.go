package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/readmodel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rpggio/gigboard/internal/domain/action"

// maxHistory bounds the number of terminal actions kept for lookup.
const maxHistory = 256

// Rebuilder is the read-model surface the coordinator drives after a settled write.
type Rebuilder interface {
	Invalidate()
	Rebuild(ctx context.Context) (readmodel.View, error)
}

// Config configures a Coordinator.
type Config struct {
	// SettlementTimeout bounds AwaitSettlement. Zero means the caller's context decides.
	SettlementTimeout time.Duration
	Now               func() time.Time
	Logger            *slog.Logger
	Observer          Observer
}

// Coordinator drives writes through submit, settlement, and rebuild.
type Coordinator struct {
	ledger    ledger.Ledger
	readModel Rebuilder
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer
	tracer    trace.Tracer
	inFlight  *inFlightSet

	mu      sync.Mutex
	actions map[string]*Action
	order   []string
}

// NewCoordinator creates a Coordinator writing to l and rebuilding rm.
func NewCoordinator(l ledger.Ledger, rm Rebuilder, cfg Config) *Coordinator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		ledger:    l,
		readModel: rm,
		timeout:   cfg.SettlementTimeout,
		now:       cfg.Now,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
		tracer:    otel.Tracer(tracerName),
		inFlight:  newInFlightSet(),
		actions:   make(map[string]*Action),
	}
}

type operation struct {
	kind      Kind
	from      ledger.Account
	projectID *uint64
	target    string
	precheck  func(ctx context.Context) error
	submit    func(ctx context.Context) (ledger.Handle, error)
}

// Create publishes a new project owned by from.
func (c *Coordinator) Create(ctx context.Context, from ledger.Account, req CreateRequest) (Action, error) {
	name := strings.TrimSpace(req.Name)
	desc := strings.TrimSpace(req.Description)
	if name == "" || desc == "" {
		return Action{}, fmt.Errorf("%w: name and description are required", ledger.ErrInvalidInput)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return Action{}, fmt.Errorf("%w: amount must be positive", ledger.ErrInvalidInput)
	}
	amount := new(big.Int).Set(req.Amount)

	return c.run(ctx, operation{
		kind:   KindCreate,
		from:   from,
		target: PayloadHash(name, desc, amount.String()),
		submit: func(ctx context.Context) (ledger.Handle, error) {
			return c.ledger.SubmitCreate(ctx, from, name, desc, amount)
		},
	})
}

// Accept takes an open project, escrowing exactly its amount.
// The record is re-read from the ledger so a stale snapshot cannot cause a mismatched escrow.
func (c *Coordinator) Accept(ctx context.Context, from ledger.Account, id uint64, escrow *big.Int) (Action, error) {
	if escrow == nil || escrow.Sign() < 0 {
		return Action{}, fmt.Errorf("%w: escrow is required", ledger.ErrInvalidInput)
	}
	value := new(big.Int).Set(escrow)

	return c.run(ctx, operation{
		kind:      KindAccept,
		from:      from,
		projectID: &id,
		target:    strconv.FormatUint(id, 10),
		precheck: func(ctx context.Context) error {
			rec, err := c.ledger.RecordAt(ctx, id)
			if err != nil {
				return fmt.Errorf("reading project %d: %w", id, err)
			}
			if rec.Amount == nil || rec.Amount.Cmp(value) != 0 {
				return fmt.Errorf("%w: escrow %s does not equal amount %s", ledger.ErrAmountMismatch, value, rec.Amount)
			}
			return nil
		},
		submit: func(ctx context.Context) (ledger.Handle, error) {
			return c.ledger.SubmitAccept(ctx, from, id, value)
		},
	})
}

// Complete marks an accepted project done.
func (c *Coordinator) Complete(ctx context.Context, from ledger.Account, id uint64) (Action, error) {
	return c.run(ctx, operation{
		kind:      KindComplete,
		from:      from,
		projectID: &id,
		target:    strconv.FormatUint(id, 10),
		submit: func(ctx context.Context) (ledger.Handle, error) {
			return c.ledger.SubmitComplete(ctx, from, id)
		},
	})
}

// UpdateProfile publishes from's profile.
func (c *Coordinator) UpdateProfile(ctx context.Context, from ledger.Account, req ProfileRequest) (Action, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Action{}, fmt.Errorf("%w: profile name is required", ledger.ErrInvalidInput)
	}
	profile := ledger.Profile{
		Account: from,
		Name:    strings.TrimSpace(req.Name),
		Bio:     strings.TrimSpace(req.Bio),
		Avatar:  strings.TrimSpace(req.Avatar),
	}
	return c.run(ctx, operation{
		kind:   KindUpdateProfile,
		from:   from,
		target: "self",
		submit: func(ctx context.Context) (ledger.Handle, error) {
			return c.ledger.SubmitProfile(ctx, from, profile)
		},
	})
}

// Get returns a tracked action by ID.
func (c *Coordinator) Get(id string) (Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actions[id]
	if !ok {
		return Action{}, false
	}
	return a.clone(), true
}

// List returns tracked actions, newest first.
func (c *Coordinator) List() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Action, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		out = append(out, c.actions[c.order[i]].clone())
	}
	return out
}

// InFlight returns the number of writes that have not reached a terminal state.
func (c *Coordinator) InFlight() int {
	return c.inFlight.size()
}

func (c *Coordinator) run(ctx context.Context, op operation) (Action, error) {
	if op.from.IsUnset() {
		return Action{}, fmt.Errorf("%w: no signing account", ledger.ErrUnavailable)
	}

	key := InFlightKey{Account: op.from, Kind: op.kind, Target: op.target}
	id := uuid.NewString()
	if holder, ok := c.inFlight.acquire(key, id); !ok {
		return Action{}, fmt.Errorf("%w: %s %s held by action %s", ledger.ErrAlreadyInProgress, op.kind, op.target, holder)
	}
	defer c.inFlight.release(key)

	ctx, span := c.tracer.Start(ctx, "action."+string(op.kind), trace.WithAttributes(
		attribute.String("action.id", id),
		attribute.String("action.account", op.from.Key()),
	))
	defer span.End()

	c.begin(id, op)
	logger := c.logger.With("action_id", id, "kind", op.kind, "account", op.from)

	c.transition(id, StateSubmitting, nil)
	if op.precheck != nil {
		if err := op.precheck(ctx); err != nil {
			return c.fail(span, logger, id, err)
		}
	}
	handle, err := op.submit(ctx)
	if err != nil {
		return c.fail(span, logger, id, fmt.Errorf("submitting %s: %w", op.kind, err))
	}

	c.transition(id, StateAwaitingSettlement, func(a *Action) { a.Handle = handle })
	logger.Info("action submitted", "handle", handle)

	receipt, err := c.await(ctx, handle)
	if err != nil {
		return c.fail(span, logger, id, err)
	}
	c.transition(id, StateSettled, func(a *Action) {
		if receipt.ProjectID != nil && a.ProjectID == nil {
			pid := *receipt.ProjectID
			a.ProjectID = &pid
		}
	})
	logger.Info("action settled", "handle", handle, "block", receipt.Block)

	c.readModel.Invalidate()
	_, rebuildErr := c.readModel.Rebuild(ctx)
	final := c.transition(id, StateRebuildTriggered, func(a *Action) {
		if rebuildErr != nil {
			a.RebuildError = rebuildErr.Error()
		}
	})
	if rebuildErr != nil {
		logger.Warn("rebuild after settlement failed", "error", rebuildErr)
	}
	return final, nil
}

func (c *Coordinator) await(ctx context.Context, handle ledger.Handle) (ledger.Receipt, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	receipt, err := c.ledger.AwaitSettlement(ctx, handle)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ledger.ErrTimeout) {
			err = fmt.Errorf("%w: %w", ledger.ErrTimeout, err)
		}
		return ledger.Receipt{}, fmt.Errorf("awaiting settlement of %s: %w", handle, err)
	}
	return receipt, nil
}

func (c *Coordinator) fail(span trace.Span, logger *slog.Logger, id string, err error) (Action, error) {
	kind := ledger.KindOf(err)
	reason, _ := ledger.RevertReason(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	logger.Warn("action failed", "failure_kind", kind, "error", err)

	a := c.transition(id, StateFailed, func(a *Action) {
		a.FailureKind = kind
		a.Error = err.Error()
		a.RevertReason = reason
	})
	return a, err
}

func (c *Coordinator) begin(id string, op operation) {
	now := c.now()
	a := &Action{
		ID:          id,
		Kind:        op.kind,
		Account:     op.from,
		State:       StateIdle,
		Transitions: []Transition{{State: StateIdle, At: now}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if op.projectID != nil {
		pid := *op.projectID
		a.ProjectID = &pid
	}

	c.mu.Lock()
	c.actions[id] = a
	c.order = append(c.order, id)
	c.pruneLocked()
	c.mu.Unlock()
}

func (c *Coordinator) transition(id string, state State, mutate func(*Action)) Action {
	now := c.now()

	c.mu.Lock()
	a := c.actions[id]
	a.State = state
	a.UpdatedAt = now
	a.Transitions = append(a.Transitions, Transition{State: state, At: now})
	if mutate != nil {
		mutate(a)
	}
	snapshot := a.clone()
	c.mu.Unlock()

	if c.observer != nil {
		c.observer(snapshot)
	}
	return snapshot
}

// pruneLocked drops the oldest terminal actions beyond maxHistory.
func (c *Coordinator) pruneLocked() {
	for len(c.order) > maxHistory {
		dropped := false
		for i, id := range c.order {
			if c.actions[id].State.Terminal() {
				delete(c.actions, id)
				c.order = append(c.order[:i], c.order[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			return
		}
	}
}
