package shared

import "fmt"

// Error codes surfaced by the ledger and reporting engine.
const (
	CodeConfiguration   = "CONFIGURATION_ERROR"
	CodeInvalidRange    = "INVALID_RANGE"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodePersistence     = "PERSISTENCE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_FAILED"
	CodeRangeLocked     = "RANGE_LOCKED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code, so that
// errors.Is(err, shared.ErrInvalidRange) matches any invalid-range error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause in its chain.
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrConfiguration   = NewDomainError(CodeConfiguration, "Invalid configuration")
	ErrInvalidRange    = NewDomainError(CodeInvalidRange, "date_from must not be after date_to")
	ErrInvalidArgument = NewDomainError(CodeInvalidArgument, "Invalid argument")
	ErrInvalidQuantity = NewDomainError(CodeInvalidQuantity, "Sale line quantity must be positive")
	ErrPersistence     = NewDomainError(CodePersistence, "Storage operation failed")
	ErrNotFound        = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation      = NewDomainError(CodeValidation, "Validation failed")
	ErrRangeLocked     = NewDomainError(CodeRangeLocked, "A rebuild for an overlapping range is already running")
)

// ConfigurationError reports a malformed timezone or business-day offset.
func ConfigurationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeConfiguration, fmt.Sprintf(format, args...))
}

// InvalidArgumentError reports a bad group_by, limit or similar parameter.
func InvalidArgumentError(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// InvalidQuantityError reports a non-positive sale line quantity.
func InvalidQuantityError(saleItemID int64, quantity int64) *DomainError {
	return NewDomainError(CodeInvalidQuantity,
		fmt.Sprintf("sale item %d has non-positive quantity %d", saleItemID, quantity))
}

// PersistenceError wraps a storage failure.
func PersistenceError(op string, cause error) *DomainError {
	return WrapDomainError(CodePersistence, op, cause)
}
