package session

import (
	"fmt"

	"github.com/rpggio/gigboard/internal/ledger"
)

var (
	// ErrNoSession indicates no session has been started.
	ErrNoSession = fmt.Errorf("%w: no active session", ledger.ErrUnavailable)
	// ErrSessionClosed indicates the session was disconnected or replaced.
	ErrSessionClosed = fmt.Errorf("%w: session closed", ledger.ErrUnavailable)
	// ErrNoAccount indicates an operation that needs a connected account.
	ErrNoAccount = fmt.Errorf("%w: no account connected", ledger.ErrUnavailable)
	// ErrNotReady indicates no snapshot has been built yet.
	ErrNotReady = fmt.Errorf("%w: marketplace not loaded yet", ledger.ErrUnavailable)
	// ErrProjectNotFound indicates an ID outside the current snapshot.
	ErrProjectNotFound = fmt.Errorf("%w: project", ledger.ErrNotFound)
)
