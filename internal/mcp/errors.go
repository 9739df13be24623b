package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/query"
)

// APIError represents an MCP tool error.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionClosed):
		return &APIError{Code: "NO_SESSION", Message: err.Error(), RecoveryHint: "Call switch_account to open a session"}
	case errors.Is(err, session.ErrNoAccount):
		return &APIError{Code: "NO_ACCOUNT", Message: err.Error(), RecoveryHint: "Connect an account with switch_account"}
	case errors.Is(err, session.ErrNotReady):
		return &APIError{Code: "NOT_READY", Message: err.Error(), RecoveryHint: "Call refresh_marketplace once the ledger is reachable"}
	case errors.Is(err, query.ErrInvalidParams):
		return &APIError{Code: "INVALID_PARAMS", Message: err.Error(), RecoveryHint: "Check filter_by and sort_by values"}
	}

	kind := ledger.KindOf(err)
	e := &APIError{Code: string(kind), Message: err.Error()}
	switch kind {
	case ledger.KindUnavailable:
		e.RecoveryHint = "Check the ledger connection and retry"
	case ledger.KindNotFound:
		e.RecoveryHint = "Refresh and check the project ID"
	case ledger.KindReverted:
		if reason, ok := ledger.RevertReason(err); ok {
			e.Details = map[string]string{"revert_reason": reason}
		}
		e.RecoveryHint = "Refresh; the project state may have changed"
	case ledger.KindTimeout:
		e.RecoveryHint = "The write may still settle; check get_action and refresh later"
	case ledger.KindAmountMismatch:
		e.RecoveryHint = "Escrow must equal the project amount exactly"
	case ledger.KindAlreadyInProgress:
		e.RecoveryHint = "Wait for the pending action to finish"
	case ledger.KindIntegrity:
		e.RecoveryHint = "The ledger returned an inconsistent record; the previous snapshot is kept"
	case ledger.KindInvalidInput:
		e.RecoveryHint = "Check the arguments"
	}
	return e
}

// toolFailure renders an APIError as JSON tool-error content.
type toolFailure struct {
	*APIError
}

func (f toolFailure) Error() string {
	data, err := json.Marshal(f.APIError)
	if err != nil {
		return f.APIError.Error()
	}
	return string(data)
}

func (f toolFailure) Unwrap() error {
	return f.APIError
}

func toolError(err error) error {
	if err == nil {
		return nil
	}
	return toolFailure{MapError(err)}
}
