package stack

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes stack errors.
type ErrorCode string

const (
	// CodeConfiguration indicates the stack could not be set up: missing
	// names, an unloadable model or an unopenable store.
	CodeConfiguration ErrorCode = "CONFIGURATION"

	// CodeQuery indicates a fetch failed: invalid request or backend error.
	CodeQuery ErrorCode = "QUERY"

	// CodeSave indicates a save failed to reach the parent or the store.
	CodeSave ErrorCode = "SAVE"

	// CodeValidation indicates pending changes do not fit the model.
	CodeValidation ErrorCode = "VALIDATION"
)

// ErrClosed is returned when work is scheduled on a closed stack.
var ErrClosed = errors.New("stack closed")

// Error represents a failure detected by the stack.
//
// Error includes structured fields for diagnostics. Use the IsXError
// helpers rather than comparing codes directly: they see through wrapping
// and through nested stack errors (a validation failure during a save is a
// CodeSave error wrapping a CodeValidation one).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the stack operation that failed (new, fetch, save, insert...).
	Op string

	// Entity is the affected entity, when there is one.
	Entity string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Code, e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: c})
// finds a code anywhere in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && errors.Is(err, &Error{Code: code})
}

// IsConfigurationError returns true if the error is a configuration error.
func IsConfigurationError(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsQueryError returns true if the error is a query error.
func IsQueryError(err error) bool {
	return hasCode(err, CodeQuery)
}

// IsSaveError returns true if the error is a save error.
func IsSaveError(err error) bool {
	return hasCode(err, CodeSave)
}

// IsValidationError returns true if the error is a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, CodeValidation)
}

func configurationError(err error) *Error {
	return &Error{Code: CodeConfiguration, Op: "new", Err: err}
}

func queryError(entity string, err error) *Error {
	return &Error{Code: CodeQuery, Op: "fetch", Entity: entity, Err: err}
}

func validationError(op, entity string, err error) *Error {
	return &Error{Code: CodeValidation, Op: op, Entity: entity, Err: err}
}

func saveError(err error) *Error {
	return &Error{Code: CodeSave, Op: "save", Err: err}
}
