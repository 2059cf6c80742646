package room

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes why the engine rejected an operation. Rejections are
// applied at the boundary with no state change; the rest of the room is
// unaffected.
type ErrorCode string

const (
	// CodeValidation covers malformed payloads and wrong ballot cardinality.
	CodeValidation ErrorCode = "validation_error"
	// CodeIdentity covers unknown rooms and user ids; the client must re-join.
	CodeIdentity ErrorCode = "identity_error"
	// CodeConflict covers operations issued outside the state they are valid
	// in, e.g. a vote when no round is open. Safe to retry.
	CodeConflict ErrorCode = "conflict_error"
)

// Error is a categorized engine error.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func validationf(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func identityf(format string, args ...any) error {
	return &Error{Code: CodeIdentity, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code from an engine error. Returns CodeValidation
// for errors the engine did not categorize.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeValidation
}
