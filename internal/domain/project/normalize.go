package project

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/shopspring/decimal"
)

// Decimals is the fixed scale between major and minor amount units.
const Decimals = 18

const (
	msPerHour = int64(time.Hour / time.Millisecond)
	msPerDay  = 24 * msPerHour
)

// Normalize converts a raw ledger record into a Project observed at now.
func Normalize(rec ledger.ProjectRecord, now time.Time) (Project, error) {
	state, err := Classify(rec)
	if err != nil {
		return Project{}, err
	}

	amount := new(big.Int)
	if rec.Amount != nil {
		amount.Set(rec.Amount)
	}

	p := Project{
		ID:              rec.ID,
		Name:            rec.Name,
		Description:     rec.Description,
		Amount:          amount,
		FormattedAmount: FormatAmount(amount),
		Creator:         rec.Creator,
		Deadline:        rec.Deadline,
		AgeLabel:        AgeLabel(rec.Deadline, now),
		IsAccepted:      rec.IsAccepted,
		IsCompleted:     rec.IsCompleted,
		State:           state,
	}
	if !rec.Counterparty.IsUnset() {
		p.Counterparty = rec.Counterparty
	}
	return p, nil
}

// Classify derives the lifecycle state of rec.
func Classify(rec ledger.ProjectRecord) (LifecycleState, error) {
	if rec.IsCompleted {
		if rec.Counterparty.IsUnset() {
			return "", &IntegrityError{ID: rec.ID, Reason: "completed without a counterparty"}
		}
		if !rec.IsAccepted {
			return "", &IntegrityError{ID: rec.ID, Reason: "completed without being accepted"}
		}
		return StateCompleted, nil
	}
	if rec.Counterparty.IsUnset() {
		return StateOpen, nil
	}
	return StateAccepted, nil
}

// FormatAmount renders minor units as a major-unit decimal string.
func FormatAmount(minor *big.Int) string {
	if minor == nil {
		return "0"
	}
	return decimal.NewFromBigInt(minor, -Decimals).String()
}

// ParseAmount converts a positive major-unit decimal string into minor units.
func ParseAmount(major string) (*big.Int, error) {
	minor, err := parseMajor(major)
	if err != nil {
		return nil, err
	}
	if minor.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return minor, nil
}

// ParseEscrow converts a non-negative major-unit decimal string into minor
// units. Whether it matches the project amount is checked against the ledger.
func ParseEscrow(major string) (*big.Int, error) {
	return parseMajor(major)
}

func parseMajor(major string) (*big.Int, error) {
	s := strings.TrimSpace(major)
	if s == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, major)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	}
	minor := d.Shift(Decimals)
	if !minor.Equal(minor.Truncate(0)) {
		return nil, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, Decimals)
	}
	return minor.BigInt(), nil
}

// AgeLabel describes how long ago deadline (seconds) was, relative to now.
// Deadlines in the future read as "Just now".
func AgeLabel(deadline uint64, now time.Time) string {
	if deadline > uint64(math.MaxInt64/1000) {
		return "Just now"
	}
	diff := now.UnixMilli() - int64(deadline)*1000
	days := diff / msPerDay
	hours := (diff % msPerDay) / msPerHour

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	default:
		return "Just now"
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
