package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/gigboard/internal/ledger"
)

// Revert reasons raised by the emulated escrow contract.
const (
	ReasonInvalidProject   = "project does not exist"
	ReasonAlreadyAccepted  = "project already accepted"
	ReasonSelfAccept       = "creator cannot accept own project"
	ReasonEscrowMismatch   = "escrow must equal project amount"
	ReasonNotAccepted      = "project not accepted"
	ReasonAlreadyCompleted = "project already completed"
	ReasonNotClient        = "only the client can complete"
	ReasonEmptyField       = "name and description are required"
	ReasonZeroAmount       = "amount must be positive"
)

type txKind string

const (
	txCreate   txKind = "create"
	txAccept   txKind = "accept"
	txComplete txKind = "complete"
	txProfile  txKind = "profile"
)

type txPayload struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Amount      string `json:"amount,omitempty"`
	ProjectID   uint64 `json:"project_id,omitempty"`
	Value       string `json:"value,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Ledger emulates the escrow contract on SQLite. Writes are recorded as
// pending transactions and applied when their settlement is awaited.
type Ledger struct {
	db         *DB
	now        func() time.Time
	blockDelay time.Duration
	logger     *slog.Logger
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock sets the clock used for deadlines and settlement times.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithBlockDelay makes every settlement wait d before applying.
func WithBlockDelay(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.blockDelay = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

// NewLedger creates a Ledger over a migrated database.
func NewLedger(db *DB, opts ...LedgerOption) *Ledger {
	l := &Ledger{db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Count returns the number of project records.
func (l *Ledger) Count(ctx context.Context) (uint64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting projects: %w", mapDBError(err))
	}
	return uint64(n), nil
}

// RecordAt returns the record at index.
func (l *Ledger) RecordAt(ctx context.Context, index uint64) (ledger.ProjectRecord, error) {
	if index > math.MaxInt64 {
		return ledger.ProjectRecord{}, fmt.Errorf("%w: index %d", ledger.ErrNotFound, index)
	}
	rec, err := loadProject(ctx, l.db, index)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ProjectRecord{}, fmt.Errorf("%w: index %d", ledger.ErrNotFound, index)
	}
	if err != nil {
		return ledger.ProjectRecord{}, fmt.Errorf("reading project %d: %w", index, mapDBError(err))
	}
	return rec, nil
}

// ProfileOf returns the published profile, or an empty one.
func (l *Ledger) ProfileOf(ctx context.Context, account ledger.Account) (ledger.Profile, error) {
	p := ledger.Profile{Account: account}
	err := l.db.QueryRowContext(ctx,
		`SELECT name, bio, avatar FROM profiles WHERE account = ?`, account.Key(),
	).Scan(&p.Name, &p.Bio, &p.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return ledger.Profile{}, fmt.Errorf("reading profile: %w", mapDBError(err))
	}
	return p, nil
}

// SubmitCreate records a pending create.
func (l *Ledger) SubmitCreate(ctx context.Context, from ledger.Account, name, description string, amount *big.Int) (ledger.Handle, error) {
	return l.submit(ctx, from, txCreate, txPayload{Name: name, Description: description, Amount: bigString(amount)})
}

// SubmitAccept records a pending accept carrying escrow.
func (l *Ledger) SubmitAccept(ctx context.Context, from ledger.Account, id uint64, escrow *big.Int) (ledger.Handle, error) {
	return l.submit(ctx, from, txAccept, txPayload{ProjectID: id, Value: bigString(escrow)})
}

// SubmitComplete records a pending complete.
func (l *Ledger) SubmitComplete(ctx context.Context, from ledger.Account, id uint64) (ledger.Handle, error) {
	return l.submit(ctx, from, txComplete, txPayload{ProjectID: id})
}

// SubmitProfile records a pending profile update.
func (l *Ledger) SubmitProfile(ctx context.Context, from ledger.Account, profile ledger.Profile) (ledger.Handle, error) {
	return l.submit(ctx, from, txProfile, txPayload{Name: profile.Name, Bio: profile.Bio, Avatar: profile.Avatar})
}

func (l *Ledger) submit(ctx context.Context, from ledger.Account, kind txKind, payload txPayload) (ledger.Handle, error) {
	if from.IsUnset() {
		return "", fmt.Errorf("%w: no sender", ledger.ErrUnavailable)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", kind, err)
	}

	handle := ledger.Handle("0x" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO transactions (hash, sender, kind, payload, status, submitted_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
	`, string(handle), from.Key(), string(kind), string(data), l.now())
	if err != nil {
		return "", fmt.Errorf("submitting %s: %w", kind, mapDBError(err))
	}

	l.logger.Debug("transaction submitted", "hash", handle, "kind", kind, "sender", from)
	return handle, nil
}

// AwaitSettlement applies a pending transaction under the contract rules.
// Awaiting an already settled or reverted transaction returns its outcome.
func (l *Ledger) AwaitSettlement(ctx context.Context, handle ledger.Handle) (ledger.Receipt, error) {
	if l.blockDelay > 0 {
		timer := time.NewTimer(l.blockDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ledger.Receipt{}, settlementContextError(ctx.Err())
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, settlementContextError(err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("beginning settlement: %w", mapDBError(err))
	}
	defer tx.Rollback()

	var (
		sender, kind, payload, status string
		reason                        sql.NullString
		projectID, block              sql.NullInt64
		settledAt                     sql.NullTime
	)
	err = tx.QueryRowContext(ctx, `
		SELECT sender, kind, payload, status, revert_reason, project_id, block, settled_at
		FROM transactions WHERE hash = ?
	`, string(handle)).Scan(&sender, &kind, &payload, &status, &reason, &projectID, &block, &settledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Receipt{}, fmt.Errorf("%w: unknown transaction %s", ledger.ErrNotFound, handle)
	}
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("loading transaction: %w", mapDBError(err))
	}

	switch status {
	case "settled":
		receipt := ledger.Receipt{Handle: handle, Block: uint64(block.Int64), SettledAt: settledAt.Time}
		if projectID.Valid {
			id := uint64(projectID.Int64)
			receipt.ProjectID = &id
		}
		return receipt, nil
	case "reverted":
		return ledger.Receipt{}, ledger.Revert(reason.String)
	}

	var p txPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ledger.Receipt{}, fmt.Errorf("decoding %s payload: %w", kind, err)
	}

	var nextBlock int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(block), 0) + 1 FROM transactions`).Scan(&nextBlock); err != nil {
		return ledger.Receipt{}, fmt.Errorf("allocating block: %w", mapDBError(err))
	}
	now := l.now()

	created, execErr := l.execute(ctx, tx, handle, ledger.Account(sender), txKind(kind), p, now)
	if reason, reverted := ledger.RevertReason(execErr); reverted {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET status = 'reverted', revert_reason = ?, block = ?, settled_at = ?
			WHERE hash = ?
		`, reason, nextBlock, now, string(handle)); err != nil {
			return ledger.Receipt{}, fmt.Errorf("recording revert: %w", mapDBError(err))
		}
		if err := tx.Commit(); err != nil {
			return ledger.Receipt{}, fmt.Errorf("committing revert: %w", mapDBError(err))
		}
		l.logger.Info("transaction reverted", "hash", handle, "kind", kind, "reason", reason)
		return ledger.Receipt{}, execErr
	}
	if execErr != nil {
		return ledger.Receipt{}, execErr
	}

	var createdID sql.NullInt64
	if created != nil {
		createdID = sql.NullInt64{Int64: int64(*created), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = 'settled', project_id = ?, block = ?, settled_at = ?
		WHERE hash = ?
	`, createdID, nextBlock, now, string(handle)); err != nil {
		return ledger.Receipt{}, fmt.Errorf("recording settlement: %w", mapDBError(err))
	}
	if err := tx.Commit(); err != nil {
		return ledger.Receipt{}, fmt.Errorf("committing settlement: %w", mapDBError(err))
	}

	l.logger.Info("transaction settled", "hash", handle, "kind", kind, "block", nextBlock)
	return ledger.Receipt{Handle: handle, Block: uint64(nextBlock), SettledAt: now, ProjectID: created}, nil
}

func (l *Ledger) execute(ctx context.Context, tx *sql.Tx, handle ledger.Handle, sender ledger.Account, kind txKind, p txPayload, now time.Time) (*uint64, error) {
	switch kind {
	case txCreate:
		return l.executeCreate(ctx, tx, sender, p, now)
	case txAccept:
		return nil, l.executeAccept(ctx, tx, sender, p)
	case txComplete:
		return nil, l.executeComplete(ctx, tx, handle, sender, p)
	case txProfile:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (account, name, bio, avatar, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(account) DO UPDATE SET
				name = excluded.name, bio = excluded.bio, avatar = excluded.avatar, updated_at = excluded.updated_at
		`, sender.Key(), p.Name, p.Bio, p.Avatar, now)
		if err != nil {
			return nil, fmt.Errorf("writing profile: %w", mapDBError(err))
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
}

func (l *Ledger) executeCreate(ctx context.Context, tx *sql.Tx, sender ledger.Account, p txPayload, now time.Time) (*uint64, error) {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Description) == "" {
		return nil, ledger.Revert(ReasonEmptyField)
	}
	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, ledger.Revert(ReasonZeroAmount)
	}

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&next); err != nil {
		return nil, fmt.Errorf("allocating project id: %w", mapDBError(err))
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, amount, creator, counterparty, deadline)
		VALUES (?, ?, ?, ?, ?, '', ?)
	`, next, p.Name, p.Description, amount.String(), sender.Key(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", mapDBError(err))
	}
	id := uint64(next)
	return &id, nil
}

func (l *Ledger) executeAccept(ctx context.Context, tx *sql.Tx, sender ledger.Account, p txPayload) error {
	rec, err := loadProject(ctx, tx, p.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Revert(ReasonInvalidProject)
	}
	if err != nil {
		return fmt.Errorf("loading project: %w", mapDBError(err))
	}
	if !rec.Counterparty.IsUnset() {
		return ledger.Revert(ReasonAlreadyAccepted)
	}
	if rec.Creator.Equal(sender) {
		return ledger.Revert(ReasonSelfAccept)
	}
	value, ok := new(big.Int).SetString(p.Value, 10)
	if !ok || value.Cmp(rec.Amount) != 0 {
		return ledger.Revert(ReasonEscrowMismatch)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET counterparty = ?, is_accepted = 1 WHERE id = ?`,
		sender.Key(), int64(p.ProjectID),
	); err != nil {
		return fmt.Errorf("accepting project: %w", mapDBError(err))
	}
	return nil
}

func (l *Ledger) executeComplete(ctx context.Context, tx *sql.Tx, handle ledger.Handle, sender ledger.Account, p txPayload) error {
	rec, err := loadProject(ctx, tx, p.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Revert(ReasonInvalidProject)
	}
	if err != nil {
		return fmt.Errorf("loading project: %w", mapDBError(err))
	}
	if !rec.IsAccepted {
		return ledger.Revert(ReasonNotAccepted)
	}
	if rec.IsCompleted {
		return ledger.Revert(ReasonAlreadyCompleted)
	}
	if !rec.Counterparty.Equal(sender) {
		return ledger.Revert(ReasonNotClient)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE projects SET is_completed = 1 WHERE id = ?`, int64(p.ProjectID),
	); err != nil {
		return fmt.Errorf("completing project: %w", mapDBError(err))
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payouts (project_id, recipient, amount, tx_hash) VALUES (?, ?, ?, ?)`,
		int64(p.ProjectID), rec.Creator.Key(), rec.Amount.String(), string(handle),
	); err != nil {
		return fmt.Errorf("releasing escrow: %w", mapDBError(err))
	}
	return nil
}

// Seed inserts a record directly at the next index, bypassing transactions.
func (l *Ledger) Seed(ctx context.Context, rec ledger.ProjectRecord) (uint64, error) {
	var next int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocating project id: %w", mapDBError(err))
	}
	counterparty := ""
	if !rec.Counterparty.IsUnset() {
		counterparty = rec.Counterparty.Key()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, amount, creator, counterparty, deadline, is_accepted, is_completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, next, rec.Name, rec.Description, bigString(rec.Amount), rec.Creator.Key(), counterparty,
		int64(rec.Deadline), rec.IsAccepted, rec.IsCompleted)
	if err != nil {
		return 0, fmt.Errorf("seeding project: %w", mapDBError(err))
	}
	return uint64(next), nil
}

// Payout returns the escrow released for a completed project.
func (l *Ledger) Payout(ctx context.Context, id uint64) (ledger.Account, *big.Int, error) {
	var recipient, amount string
	err := l.db.QueryRowContext(ctx,
		`SELECT recipient, amount FROM payouts WHERE project_id = ?`, int64(id),
	).Scan(&recipient, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: no payout for project %d", ledger.ErrNotFound, id)
	}
	if err != nil {
		return "", nil, fmt.Errorf("reading payout: %w", mapDBError(err))
	}
	v, _ := new(big.Int).SetString(amount, 10)
	return ledger.Account(recipient), v, nil
}

func loadProject(ctx context.Context, q queryRower, id uint64) (ledger.ProjectRecord, error) {
	var (
		rec                   ledger.ProjectRecord
		amount, counterparty  string
		creator               string
		deadline              int64
		isAccepted, completed bool
	)
	err := q.QueryRowContext(ctx, `
		SELECT name, description, amount, creator, counterparty, deadline, is_accepted, is_completed
		FROM projects WHERE id = ?
	`, int64(id)).Scan(&rec.Name, &rec.Description, &amount, &creator, &counterparty, &deadline, &isAccepted, &completed)
	if err != nil {
		return ledger.ProjectRecord{}, err
	}

	rec.ID = id
	rec.Amount, _ = new(big.Int).SetString(amount, 10)
	if rec.Amount == nil {
		rec.Amount = new(big.Int)
	}
	rec.Creator = ledger.Account(creator)
	rec.Counterparty = ledger.ZeroAccount
	if counterparty != "" {
		rec.Counterparty = ledger.Account(counterparty)
	}
	rec.Deadline = uint64(deadline)
	rec.IsAccepted = isAccepted
	rec.IsCompleted = completed
	return rec, nil
}

func settlementContextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ledger.ErrTimeout, err)
	}
	return err
}

func mapDBError(err error) error {
	switch {
	case isBusy(err):
		return fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: duplicate key: %v", ledger.ErrInvalidInput, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: dangling reference: %v", ledger.ErrNotFound, err)
	default:
		return err
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
