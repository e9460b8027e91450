package flow

import (
	"errors"
	"fmt"
)

// Error codes carried by *Error.
const (
	CodeNoProviderConfigured       = "NO_PROVIDER_CONFIGURED"
	CodeConfiguration              = "CONFIGURATION"
	CodeStepExecution              = "STEP_EXECUTION"
	CodeStepTimeout                = "STEP_TIMEOUT"
	CodeProviderInvocation         = "PROVIDER_INVOCATION"
	CodePersistence                = "PERSISTENCE"
	CodeCredentialStoreUnavailable = "CREDENTIAL_STORE_UNAVAILABLE"
	CodeInvalidState               = "INVALID_STATE"
	CodeConcurrentExecution        = "CONCURRENT_EXECUTION"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrNoProviderConfigured       = &Error{Code: CodeNoProviderConfigured}
	ErrConfiguration              = &Error{Code: CodeConfiguration}
	ErrStepExecution              = &Error{Code: CodeStepExecution}
	ErrStepTimeout                = &Error{Code: CodeStepTimeout}
	ErrProviderInvocation         = &Error{Code: CodeProviderInvocation}
	ErrPersistence                = &Error{Code: CodePersistence}
	ErrCredentialStoreUnavailable = &Error{Code: CodeCredentialStoreUnavailable}
	ErrInvalidState               = &Error{Code: CodeInvalidState}
	ErrConcurrentExecution        = &Error{Code: CodeConcurrentExecution}
)

// Error is the error type returned by routing and workflow operations.
//
// Category is set for routing failures, StepID for failures recorded against
// a step. Cause holds the underlying error and is reachable through
// errors.Unwrap, so a CONFIGURATION error raised because routing failed also
// matches ErrNoProviderConfigured.
type Error struct {
	Code     string
	Message  string
	Category TaskCategory
	StepID   string
	Cause    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Code != "" {
		return e.Code + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code. A step timeout
// is also a step execution failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Code == CodeStepTimeout && t.Code == CodeStepExecution {
		return true
	}
	return t.Code == e.Code
}

// ErrorCode returns the Code of the first *Error in err's chain, or "".
func ErrorCode(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func noProviderError(category TaskCategory) *Error {
	return &Error{
		Code:     CodeNoProviderConfigured,
		Message:  fmt.Sprintf("no provider configured for task category %q", category),
		Category: category,
	}
}

func persistenceError(op string, err error) *Error {
	return &Error{Code: CodePersistence, Message: op, Cause: err}
}

func stepError(code, stepID, msg string, cause error) *Error {
	return &Error{Code: code, StepID: stepID, Message: msg, Cause: cause}
}
