package dto

import (
	"net/http"

	"github.com/erp/profitledger/internal/domain/shared"
)

// Transport-level error codes. Domain errors keep their own codes.
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeValidation is used when request fields fail validation
	ErrCodeValidation = shared.CodeValidation
	// ErrCodeUnauthorized is used when the API key is missing or wrong
	ErrCodeUnauthorized = "UNAUTHORIZED"
	// ErrCodeNotFound is used for unknown resources and routes
	ErrCodeNotFound = shared.CodeNotFound
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeUnavailable is used when a dependency such as the database is down
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,

	// Caller errors -> 400 Bad Request
	shared.CodeInvalidRange:    http.StatusBadRequest,
	shared.CodeInvalidArgument: http.StatusBadRequest,

	// Well-formed but unacceptable payloads -> 422 Unprocessable Entity
	ErrCodeValidation:          http.StatusUnprocessableEntity,
	shared.CodeInvalidQuantity: http.StatusUnprocessableEntity,

	ErrCodeNotFound:        http.StatusNotFound,
	shared.CodeRangeLocked: http.StatusConflict,

	shared.CodePersistence:   http.StatusInternalServerError,
	shared.CodeConfiguration: http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
