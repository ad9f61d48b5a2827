package models

import (
	"errors"
	"fmt"
)

// ErrorKind groups error codes by recovery policy.
type ErrorKind string

const (
	KindData      ErrorKind = "DATA"
	KindExecution ErrorKind = "EXECUTION"
	KindRisk      ErrorKind = "RISK"
	KindState     ErrorKind = "STATE"
)

type ErrorCode string

const (
	CodeInsufficientData     ErrorCode = "INSUFFICIENT_DATA"
	CodeStaleCandle          ErrorCode = "STALE_CANDLE"
	CodeRejected             ErrorCode = "REJECTED"
	CodeTimeout              ErrorCode = "TIMEOUT"
	CodePartialFill          ErrorCode = "PARTIAL_FILL"
	CodeInsufficientFunds    ErrorCode = "INSUFFICIENT_FUNDS"
	CodeCircuitBreakerActive ErrorCode = "CIRCUIT_BREAKER_ACTIVE"
	CodeDailyLossLimit       ErrorCode = "DAILY_LOSS_LIMIT"
	CodeDuplicateEntry       ErrorCode = "DUPLICATE_ENTRY"
	CodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
)

var codeKinds = map[ErrorCode]ErrorKind{
	CodeInsufficientData:     KindData,
	CodeStaleCandle:          KindData,
	CodeRejected:             KindExecution,
	CodeTimeout:              KindExecution,
	CodePartialFill:          KindExecution,
	CodeInsufficientFunds:    KindExecution,
	CodeCircuitBreakerActive: KindRisk,
	CodeDailyLossLimit:       KindRisk,
	CodeDuplicateEntry:       KindState,
	CodeInvalidTransition:    KindState,
}

// Sentinels for errors.Is matching by code.
var (
	ErrInsufficientData     = &EngineError{Code: CodeInsufficientData}
	ErrStaleCandle          = &EngineError{Code: CodeStaleCandle}
	ErrRejected             = &EngineError{Code: CodeRejected}
	ErrTimeout              = &EngineError{Code: CodeTimeout}
	ErrPartialFill          = &EngineError{Code: CodePartialFill}
	ErrInsufficientFunds    = &EngineError{Code: CodeInsufficientFunds}
	ErrCircuitBreakerActive = &EngineError{Code: CodeCircuitBreakerActive}
	ErrDailyLossLimit       = &EngineError{Code: CodeDailyLossLimit}
	ErrDuplicateEntry       = &EngineError{Code: CodeDuplicateEntry}
	ErrInvalidTransition    = &EngineError{Code: CodeInvalidTransition}
)

// EngineError is a classified engine failure.
type EngineError struct {
	Code     ErrorCode
	Symbol   string
	Strategy Strategy
	Message  string
	Err      error
}

// NewError creates a classified error.
func NewError(code ErrorCode, symbol string, strategy Strategy, format string, a ...interface{}) *EngineError {
	return &EngineError{Code: code, Symbol: symbol, Strategy: strategy, Message: fmt.Sprintf(format, a...)}
}

// Kind returns the recovery class of the error code.
func (e *EngineError) Kind() ErrorKind { return codeKinds[e.Code] }

func (e *EngineError) Error() string {
	msg := string(e.Code)
	if e.Symbol != "" {
		msg += " " + e.Symbol
		if e.Strategy != "" {
			msg += "/" + string(e.Strategy)
		}
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns underlying error.
func (e *EngineError) Unwrap() error { return e.Err }

// Is matches any EngineError with the same code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithError wraps an underlying error.
func (e *EngineError) WithError(err error) *EngineError {
	e.Err = err
	return e
}

// CodeOf extracts the error code from a wrapped error, or "".
func CodeOf(err error) ErrorCode {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the error kind from a wrapped error, or "".
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind()
	}
	return ""
}
