package channels

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed chat-platform operation for logs and metrics.
type ErrorCode string

const (
	ErrCodeConnection     ErrorCode = "CONNECTION_ERROR"
	ErrCodeAuthentication ErrorCode = "AUTH_ERROR"
	ErrCodeRateLimit      ErrorCode = "RATE_LIMIT_ERROR"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeTimeout        ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConfig         ErrorCode = "CONFIG_ERROR"

	// ErrCodeNotFound covers a channel, role, guild or member that does not
	// exist. Callers treat it as a standing condition, not a failure to retry.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// transient codes may succeed if the same call is repeated.
var transient = map[ErrorCode]bool{
	ErrCodeConnection:  true,
	ErrCodeRateLimit:   true,
	ErrCodeTimeout:     true,
	ErrCodeUnavailable: true,
}

// Error is a chat-platform failure tagged with a code and the operation
// that produced it.
type Error struct {
	Code ErrorCode

	// Op names the failed operation ("send_announcement", "add_role", ...).
	Op string

	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", msg, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (%s)", msg, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithOp records the failed operation and returns e.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// IsRetryable reports whether the failure is transient.
func (e *Error) IsRetryable() bool {
	return transient[e.Code]
}

// NewError creates an Error with the given code.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func ErrConnection(message string, err error) *Error {
	return NewError(ErrCodeConnection, message, err)
}

func ErrAuthentication(message string, err error) *Error {
	return NewError(ErrCodeAuthentication, message, err)
}

func ErrRateLimit(message string, err error) *Error {
	return NewError(ErrCodeRateLimit, message, err)
}

func ErrInvalidInput(message string, err error) *Error {
	return NewError(ErrCodeInvalidInput, message, err)
}

func ErrNotFound(message string, err error) *Error {
	return NewError(ErrCodeNotFound, message, err)
}

func ErrTimeout(message string, err error) *Error {
	return NewError(ErrCodeTimeout, message, err)
}

func ErrInternal(message string, err error) *Error {
	return NewError(ErrCodeInternal, message, err)
}

func ErrUnavailable(message string, err error) *Error {
	return NewError(ErrCodeUnavailable, message, err)
}

func ErrConfig(message string, err error) *Error {
	return NewError(ErrCodeConfig, message, err)
}

// GetErrorCode returns the code of the first Error in err's chain,
// or ErrCodeInternal when there is none.
func GetErrorCode(err error) ErrorCode {
	if chErr, ok := asError(err); ok {
		return chErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound reports whether err is a not-found Error.
func IsNotFound(err error) bool {
	chErr, ok := asError(err)
	return ok && chErr.Code == ErrCodeNotFound
}

// IsRetryable reports whether err is a transient Error. Plain errors are not.
func IsRetryable(err error) bool {
	chErr, ok := asError(err)
	return ok && chErr.IsRetryable()
}

func asError(err error) (*Error, bool) {
	var chErr *Error
	if err == nil || !errors.As(err, &chErr) {
		return nil, false
	}
	return chErr, true
}
