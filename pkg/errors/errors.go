package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates insufficient permissions
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Price oracle errors

var (
	// ErrPriceFeedNotConfigured indicates no feed config exists for the asset
	ErrPriceFeedNotConfigured = errors.New("price feed not configured")

	// ErrPriceStale indicates the quote is older than the allowed staleness
	ErrPriceStale = errors.New("price is stale")

	// ErrPriceLowConfidence indicates the quote confidence is below threshold
	ErrPriceLowConfidence = errors.New("price confidence too low")

	// ErrPriceInvalid indicates the quote failed validation
	ErrPriceInvalid = errors.New("price failed validation")

	// ErrStaleVersion indicates a mutating write carried an outdated feed version
	ErrStaleVersion = errors.New("stale feed version")
)

// Risk and circuit breaker errors

var (
	// ErrCircuitBreakerTripped indicates the per-asset circuit breaker is active
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")

	// ErrEmergencyModeActive indicates the global emergency flag is set
	ErrEmergencyModeActive = errors.New("emergency mode active")

	// ErrExchangeRateOutOfBounds indicates the vault share price failed sanity checks
	ErrExchangeRateOutOfBounds = errors.New("exchange rate out of bounds")

	// ErrArithmeticOverflow indicates a checked arithmetic operation overflowed
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrArithmeticUnderflow indicates a checked arithmetic operation underflowed
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	// ErrDivisionByZero indicates a valuation divided by a zero collateral value
	ErrDivisionByZero = errors.New("division by zero")
)

// Liquidation errors

var (
	// ErrLiquidationNotEnabled indicates liquidation is disabled for the pool
	ErrLiquidationNotEnabled = errors.New("liquidation not enabled")

	// ErrPositionNotLiquidatable indicates the position is not in liquidatable state
	ErrPositionNotLiquidatable = errors.New("position not liquidatable")

	// ErrNoLiquidationNeeded indicates the planner produced a zero amount
	ErrNoLiquidationNeeded = errors.New("no liquidation needed")

	// ErrInsufficientCollateral indicates the position holds less collateral than required
	ErrInsufficientCollateral = errors.New("insufficient collateral")

	// ErrCollateralHolderMismatch indicates the holder record does not belong to the position
	ErrCollateralHolderMismatch = errors.New("collateral holder mismatch")

	// ErrInsufficientLiquidity indicates the vault cannot cover the withdrawal
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrVaultInactive indicates the custody vault is not accepting operations
	ErrVaultInactive = errors.New("vault inactive")

	// ErrSwapNotSupported indicates cross-asset debt repayment is not implemented
	ErrSwapNotSupported = errors.New("cross-asset swap not supported")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
