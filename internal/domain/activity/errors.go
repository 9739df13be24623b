package activity

import (
	"fmt"

	"github.com/rpggio/gigboard/internal/ledger"
)

// ErrInvalidInput indicates a nil or malformed activity entry.
var ErrInvalidInput = fmt.Errorf("%w: invalid activity entry", ledger.ErrInvalidInput)
