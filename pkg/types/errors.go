package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a CEL error code.
//
// The leading letter classifies the error: S for syntax, T for type,
// U for unresolved references and D for dynamic (runtime) failures.
type ErrorCode string

// Error codes.
const (
	// S0xxx: Parser/Syntax errors
	ErrStringNotClosed    ErrorCode = "S0101"
	ErrNumberOutOfRange   ErrorCode = "S0102"
	ErrUnsupportedEscape  ErrorCode = "S0103"
	ErrUnexpectedEnd      ErrorCode = "S0104"
	ErrInvalidNumber      ErrorCode = "S0105"
	ErrInvalidCharacter   ErrorCode = "S0106"
	ErrSyntaxError        ErrorCode = "S0201"
	ErrExpectedToken      ErrorCode = "S0202"
	ErrReservedIdentifier ErrorCode = "S0203"
	ErrInvalidMacro       ErrorCode = "S0204"
	ErrNestingTooDeep     ErrorCode = "S0205"
	ErrEmptyExpression    ErrorCode = "S0206"
	ErrExpressionTooLong  ErrorCode = "S0207"

	// T1xxx: Type errors
	ErrNoSuchOverload       ErrorCode = "T1001"
	ErrMixedSignedness      ErrorCode = "T1002"
	ErrInvalidTypeOperation ErrorCode = "T1003"
	ErrNonBoolCondition     ErrorCode = "T1004"
	ErrUnsupportedKey       ErrorCode = "T1005"

	// U1xxx: Unresolved references
	ErrUndefinedVariable  ErrorCode = "U1001"
	ErrUndefinedFunction  ErrorCode = "U1002"
	ErrNoMatchingOverload ErrorCode = "U1003"
	ErrAmbiguousOverload  ErrorCode = "U1004"

	// D1xxx: Dynamic errors
	ErrOverflow        ErrorCode = "D1001"
	ErrDivisionByZero  ErrorCode = "D1002"
	ErrModulusByZero   ErrorCode = "D1003"
	ErrIndexOutOfRange ErrorCode = "D1004"
	ErrNoSuchKey       ErrorCode = "D1005"
	ErrConversion      ErrorCode = "D1006"
	ErrFunctionFailed  ErrorCode = "D1007"
	ErrDuplicateKey    ErrorCode = "D1008"
	ErrOptionalNone    ErrorCode = "D1009"
	ErrInvalidRegex    ErrorCode = "D1010"
	ErrTimestampRange  ErrorCode = "D1011"
	ErrStackOverflow   ErrorCode = "D1012"
	ErrInvalidArgument ErrorCode = "D1013"
	ErrEvalCancelled   ErrorCode = "D1014"
)

// ErrorKind is the coarse classification exposed to embedders.
type ErrorKind uint8

const (
	RuntimeErrorKind ErrorKind = iota
	SyntaxErrorKind
	TypeErrorKind
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case SyntaxErrorKind:
		return "SyntaxError"
	case TypeErrorKind:
		return "TypeError"
	default:
		return "RuntimeError"
	}
}

// Error represents a structured CEL error.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	// Line and Column are 1-based and set once the source is known.
	Line     int
	Column   int
	Token    string
	Function string
	Err      error
}

// NewError creates a new CEL error. Use a negative position when the
// error has no meaningful source location.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// Errorf creates a new CEL error without position information.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), -1)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", e.Code, e.Line, e.Column, e.Message)
	}
	if e.Position >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Code, e.Position, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Kind classifies the error by its code prefix.
func (e *Error) Kind() ErrorKind {
	if e.Code == "" {
		return RuntimeErrorKind
	}
	switch e.Code[0] {
	case 'S':
		return SyntaxErrorKind
	case 'T':
		return TypeErrorKind
	default:
		return RuntimeErrorKind
	}
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// WithPosition sets the source position when the error does not carry one yet.
func (e *Error) WithPosition(position int) *Error {
	if e.Position < 0 {
		e.Position = position
	}
	return e
}

// WithLocation sets the 1-based line and column of the error.
func (e *Error) WithLocation(line, column int) *Error {
	e.Line = line
	e.Column = column
	return e
}

// IsSyntaxError reports whether err is, or wraps, a syntax error.
func IsSyntaxError(err error) bool {
	return hasKind(err, SyntaxErrorKind)
}

// IsTypeError reports whether err is, or wraps, a type error.
func IsTypeError(err error) bool {
	return hasKind(err, TypeErrorKind)
}

// IsRuntimeError reports whether err is, or wraps, a runtime error.
func IsRuntimeError(err error) bool {
	return hasKind(err, RuntimeErrorKind)
}

// IsIncomplete reports whether err is a syntax error caused by input that
// ended too early, e.g. an unclosed bracket or triple-quoted string.
func IsIncomplete(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == ErrUnexpectedEnd || (e.Code == ErrStringNotClosed && e.Token == "eof")
}

// CodeOf returns the code of err, or "" when err is not a CEL error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func hasKind(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind() == kind
}
