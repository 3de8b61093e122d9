package walletbridge

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable numeric provider error code. The values follow
// EIP-1193 and the JSON-RPC reserved range so they can travel over the wire
// unchanged.
type ErrorCode int

const (
	// CodeUserRejected indicates the user declined the request or closed the wallet window.
	CodeUserRejected ErrorCode = 4001
	// CodeUnauthorized indicates the requested account or transaction is not authorized.
	CodeUnauthorized ErrorCode = 4100
	// CodeUnsupportedMethod indicates the method is not supported by the provider.
	CodeUnsupportedMethod ErrorCode = 4200
	// CodeDisconnected indicates the provider has no connected session.
	CodeDisconnected ErrorCode = 4900
	// CodeInvalidParams indicates the request parameters are malformed.
	CodeInvalidParams ErrorCode = -32602
	// CodeInternalError indicates a local failure such as a blocked popup.
	CodeInternalError ErrorCode = -32603
	// CodeTransactionRejected indicates the wallet refused the transaction.
	CodeTransactionRejected ErrorCode = -32003
	// CodeUnknownError is used for remote failures without a recognizable code.
	CodeUnknownError ErrorCode = -32000
)

// Standard walletbridge error definitions, one per error code.
var (
	// ErrUserRejected is matched by every error carrying CodeUserRejected.
	ErrUserRejected = errors.New("walletbridge: user rejected the request")

	// ErrUnauthorized is matched by every error carrying CodeUnauthorized.
	ErrUnauthorized = errors.New("walletbridge: unauthorized")

	// ErrUnsupportedMethod is matched by every error carrying CodeUnsupportedMethod.
	ErrUnsupportedMethod = errors.New("walletbridge: unsupported method")

	// ErrDisconnected is matched by every error carrying CodeDisconnected.
	ErrDisconnected = errors.New("walletbridge: provider is disconnected")

	// ErrInvalidParams is matched by every error carrying CodeInvalidParams.
	ErrInvalidParams = errors.New("walletbridge: invalid params")

	// ErrInternal is matched by every error carrying CodeInternalError.
	ErrInternal = errors.New("walletbridge: internal error")

	// ErrTransactionRejected is matched by every error carrying CodeTransactionRejected.
	ErrTransactionRejected = errors.New("walletbridge: transaction rejected")

	// ErrUnknown is matched by every error carrying CodeUnknownError.
	ErrUnknown = errors.New("walletbridge: unknown error")
)

var codeSentinels = map[ErrorCode]error{
	CodeUserRejected:        ErrUserRejected,
	CodeUnauthorized:        ErrUnauthorized,
	CodeUnsupportedMethod:   ErrUnsupportedMethod,
	CodeDisconnected:        ErrDisconnected,
	CodeInvalidParams:       ErrInvalidParams,
	CodeInternalError:       ErrInternal,
	CodeTransactionRejected: ErrTransactionRejected,
	CodeUnknownError:        ErrUnknown,
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case CodeUserRejected:
		return "UserRejected"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeUnsupportedMethod:
		return "UnsupportedMethod"
	case CodeDisconnected:
		return "Disconnected"
	case CodeInvalidParams:
		return "InvalidParams"
	case CodeInternalError:
		return "InternalError"
	case CodeTransactionRejected:
		return "TransactionRejected"
	case CodeUnknownError:
		return "UnknownError"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// ProviderError is the error returned by every provider operation.
type ProviderError struct {
	// Code is the stable numeric error code.
	Code ErrorCode

	// Message is a human-readable description of the failure.
	Message string

	// Err is the underlying cause, if any.
	Err error

	// Details carries structured context such as a failing batch index.
	Details map[string]any
}

// NewProviderError creates a ProviderError with an initialized Details map.
func NewProviderError(code ErrorCode, message string, err error) *ProviderError {
	return &ProviderError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]any),
	}
}

// WithDetails adds a detail entry and returns the error for chaining.
func (e *ProviderError) WithDetails(key string, value any) *ProviderError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("walletbridge: %s (code %d): %v", e.Message, int(e.Code), e.Err)
	}
	return fmt.Sprintf("walletbridge: %s (code %d)", e.Message, int(e.Code))
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's code or another
// ProviderError with the same code.
func (e *ProviderError) Is(target error) bool {
	if sentinel, ok := codeSentinels[e.Code]; ok && sentinel == target {
		return true
	}
	var other *ProviderError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Wire converts the error to its message-envelope form.
func (e *ProviderError) Wire() *WireError {
	return &WireError{Code: e.Code, Message: e.Message}
}

// WireError is the error object carried in a response envelope.
type WireError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FromWire converts a remote-reported error into a ProviderError. The remote
// code is preserved even when it is not one of the known codes.
func FromWire(w *WireError) *ProviderError {
	if w == nil {
		return nil
	}
	code := w.Code
	if code == 0 {
		code = CodeUnknownError
	}
	msg := w.Message
	if msg == "" {
		msg = "wallet reported an error"
	}
	return NewProviderError(code, msg, nil)
}

// CodeOf returns the error code carried by err. Errors without a code are
// reported as CodeInternalError; nil yields 0.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return 0
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return CodeInternalError
}

// AsProviderError returns err as a ProviderError, wrapping uncoded errors
// with the given fallback code.
func AsProviderError(err error, fallback ErrorCode, message string) *ProviderError {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	return NewProviderError(fallback, message, err)
}
