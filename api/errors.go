package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
)

// ErrUnauthenticated is returned when no user id reached the handler.
var ErrUnauthenticated = errors.New("no authenticated user on the request")

// Error codes written in the "error" field of ErrorResponse.
const (
	CodeNotLinked         = "not_linked"
	CodeReconnectRequired = "reconnect_required"
	CodeRefreshFailed     = "refresh_failed"
	CodeLastProvider      = "last_provider"
	CodeUnknownProvider   = "unknown_provider"
	CodeUserNotFound      = "user_not_found"
	CodeUnauthenticated   = "unauthenticated"
	CodeServerError       = "server_error"
)

// ErrorResponse is the JSON error body of every endpoint.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewErrorResponse maps an error from the core onto a status code and body.
// Internal failures get a generic description so store details stay in the logs.
func NewErrorResponse(err error) (int, *ErrorResponse) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, &ErrorResponse{Code: CodeUnauthenticated, Description: "missing user identity"}
	case errors.Is(err, domain.ErrNotLinked):
		return http.StatusConflict, &ErrorResponse{Code: CodeNotLinked, Description: "provider is not linked, connect it first"}
	case errors.Is(err, domain.ErrUnrefreshable):
		return http.StatusConflict, &ErrorResponse{Code: CodeReconnectRequired, Description: "provider session expired, reconnect it"}
	case errors.Is(err, domain.ErrRefreshFailed):
		return http.StatusServiceUnavailable, &ErrorResponse{Code: CodeRefreshFailed, Description: "provider did not accept the token refresh, try again later"}
	case errors.Is(err, domain.ErrLastProviderInvariant):
		return http.StatusConflict, &ErrorResponse{Code: CodeLastProvider, Description: "link another provider before removing this one"}
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, &ErrorResponse{Code: CodeUnknownProvider, Description: err.Error()}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusBadRequest, &ErrorResponse{Code: CodeUserNotFound, Description: "user not found"}
	}
	return http.StatusInternalServerError, &ErrorResponse{Code: CodeServerError, Description: "internal error"}
}
