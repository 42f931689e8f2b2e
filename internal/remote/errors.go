package remote

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes gateway failures.
type ErrorCode string

const (
	// ErrCodeNotConfigured indicates no backend credentials are available.
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// ErrCodeConnectionFailed indicates the backend could not be reached.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"

	// ErrCodeRequestFailed indicates the backend rejected the request.
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"

	// ErrCodeDecodeFailed indicates the backend response could not be decoded.
	ErrCodeDecodeFailed ErrorCode = "DECODE_FAILED"
)

// Error is returned by every Gateway operation. It names the table and
// operation that failed.
type Error struct {
	Code    ErrorCode
	Op      string
	Table   string
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Table != "" && e.Status != 0:
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Op, e.Table, e.Code, e.Status, msg)
	case e.Table != "":
		return fmt.Sprintf("%s %s: %s: %s", e.Op, e.Table, e.Code, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotConfigured reports whether err means the backend has no credentials.
func IsNotConfigured(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeNotConfigured
	}
	return false
}

// IsConnectionError reports whether err means the backend was unreachable.
func IsConnectionError(err error) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == ErrCodeConnectionFailed
	}
	return false
}

// ErrNotConfigured is returned by the Factory when no credentials resolve.
var ErrNotConfigured = &Error{
	Code:    ErrCodeNotConfigured,
	Message: "backend is not configured: set backend url and key in the config file, environment or kiosk settings",
}

func connectionError(op, table string, err error) *Error {
	return &Error{Code: ErrCodeConnectionFailed, Op: op, Table: table, Err: err}
}

func requestError(op, table string, status int, message string, err error) *Error {
	return &Error{Code: ErrCodeRequestFailed, Op: op, Table: table, Status: status, Message: message, Err: err}
}

func decodeError(op, table string, err error) *Error {
	return &Error{Code: ErrCodeDecodeFailed, Op: op, Table: table, Err: err}
}
