package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpggio/gigboard/internal/ledger"
)

// ErrInvalidAccount indicates a lookup for an unset account.
var ErrInvalidAccount = fmt.Errorf("%w: account is required", ledger.ErrInvalidInput)

// Service reads published profiles.
type Service struct {
	reader ledger.ProfileReader
	logger *slog.Logger
}

// NewService creates a new profile service.
func NewService(reader ledger.ProfileReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, logger: logger}
}

// Get returns the profile of account. Accounts that never published get an empty profile.
func (s *Service) Get(ctx context.Context, account ledger.Account) (ledger.Profile, error) {
	if account.IsUnset() {
		return ledger.Profile{}, ErrInvalidAccount
	}
	p, err := s.reader.ProfileOf(ctx, account)
	if err != nil {
		return ledger.Profile{}, fmt.Errorf("getting profile: %w", err)
	}
	p.Account = account
	return p, nil
}
