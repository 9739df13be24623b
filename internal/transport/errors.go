package transport

import (
	"errors"
	"net/http"

	"github.com/rpggio/gigboard/internal/domain/session"
	"github.com/rpggio/gigboard/internal/ledger"
	"github.com/rpggio/gigboard/internal/query"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// MapErrorToHTTP maps domain errors to HTTP status codes and error responses.
func MapErrorToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusOK, ErrorResponse{}
	}

	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionClosed):
		return http.StatusServiceUnavailable, ErrorResponse{Code: "NO_SESSION", Message: err.Error()}
	case errors.Is(err, session.ErrNoAccount):
		return http.StatusForbidden, ErrorResponse{Code: "NO_ACCOUNT", Message: err.Error()}
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable, ErrorResponse{Code: "NOT_READY", Message: err.Error()}
	case errors.Is(err, query.ErrInvalidParams):
		return http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: err.Error()}
	}

	kind := ledger.KindOf(err)
	resp := ErrorResponse{Code: string(kind), Message: err.Error()}
	switch kind {
	case ledger.KindUnavailable:
		return http.StatusServiceUnavailable, resp
	case ledger.KindNotFound:
		return http.StatusNotFound, resp
	case ledger.KindReverted:
		if reason, ok := ledger.RevertReason(err); ok {
			resp.Details = map[string]string{"revert_reason": reason}
		}
		return http.StatusConflict, resp
	case ledger.KindTimeout:
		return http.StatusGatewayTimeout, resp
	case ledger.KindAmountMismatch:
		return http.StatusUnprocessableEntity, resp
	case ledger.KindAlreadyInProgress:
		return http.StatusConflict, resp
	case ledger.KindInvalidInput:
		return http.StatusBadRequest, resp
	case ledger.KindIntegrity:
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}
