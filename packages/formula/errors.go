package formula

import (
	"errors"
	"fmt"
)

// ErrorCode classifies formula failures, rendered the way spreadsheet error
// values are.
type ErrorCode uint8

const (
	ErrorCodeSyntax         ErrorCode = 1 // #SYNTAX! - malformed formula text
	ErrorCodeName           ErrorCode = 2 // #NAME? - unresolved property, method or constant
	ErrorCodeValue          ErrorCode = 3 // #VALUE! - operator or argument of the wrong kind
	ErrorCodeDiv0           ErrorCode = 4 // #DIV/0! - division by zero
	ErrorCodeCircular       ErrorCode = 5 // #CIRC! - property read while it is being evaluated
	ErrorCodeNotImplemented ErrorCode = 6 // #N/IMPL - parsed but without evaluation semantics
	ErrorCodeNoOwner        ErrorCode = 7 // #OWNER! - owner object no longer exists
)

// ErrorMapper maps error codes to their display form
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeSyntax:         "#SYNTAX!",
	ErrorCodeName:           "#NAME?",
	ErrorCodeValue:          "#VALUE!",
	ErrorCodeDiv0:           "#DIV/0!",
	ErrorCodeCircular:       "#CIRC!",
	ErrorCodeNotImplemented: "#N/IMPL",
	ErrorCodeNoOwner:        "#OWNER!",
}

// NoPosition marks an error that is not tied to a place in the formula text.
const NoPosition = -1

// Error is a compile or evaluation failure of a formula.
type Error struct {
	Code    ErrorCode
	Pos     int // rune offset into the formula text, or NoPosition
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = ErrorMapper[e.Code]
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d", msg, e.Pos)
	}
	return msg
}

// NewError creates an error that is not tied to a position
func NewError(code ErrorCode, message string) *Error {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &Error{Code: code, Pos: NoPosition, Message: message}
}

// NewSyntaxError creates a syntax error at the given rune offset
func NewSyntaxError(pos int, message string) *Error {
	return &Error{Code: ErrorCodeSyntax, Pos: pos, Message: message}
}

func errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// AppErrorCode represents gRPC-style codes for application-level failures
// (as opposed to formula errors).
type AppErrorCode int

const (
	OK                 AppErrorCode = 0
	Unknown            AppErrorCode = 2
	InvalidArgument    AppErrorCode = 3
	NotFound           AppErrorCode = 5
	AlreadyExists      AppErrorCode = 6
	FailedPrecondition AppErrorCode = 9
	Internal           AppErrorCode = 13
)

// AppError represents errors at the application level, such as a formula
// change rejected by a veto handler.
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf returns the formula error code carried by err, or 0.
func CodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

func IsSyntaxError(err error) bool { return CodeOf(err) == ErrorCodeSyntax }
func IsNameError(err error) bool   { return CodeOf(err) == ErrorCodeName }
func IsValueError(err error) bool  { return CodeOf(err) == ErrorCodeValue }

// IsVetoError reports whether err is a formula change rejected by a
// FormulaChanging handler.
func IsVetoError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Code == FailedPrecondition
}
