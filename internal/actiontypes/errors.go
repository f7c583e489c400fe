package actiontypes

import (
	"fmt"
)

// Kind classifies failures by where they arise in a run.
type Kind string

const (
	KindLaunch             Kind = "launch"              // no usable browser, pre-flight
	KindCredentialsMissing Kind = "credentials_missing" // pre-flight
	KindLoginFlow          Kind = "login_flow"
	KindAction             Kind = "action"
	KindValidation         Kind = "validation"
	KindUnknownAction      Kind = "unknown_action"
)

// Error carries a caller-facing message. Error() returns Message verbatim so
// outcomes keep the exact wording callers match on; the cause stays reachable
// through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when target carries no message,
// which is how the sentinels below are built.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

var (
	ErrLaunch             = &Error{Kind: KindLaunch}
	ErrCredentialsMissing = &Error{Kind: KindCredentialsMissing}
	ErrLoginFlow          = &Error{Kind: KindLoginFlow}
	ErrAction             = &Error{Kind: KindAction}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrUnknownAction      = &Error{Kind: KindUnknownAction}
)

// Newf builds an *Error of the given kind wrapping cause.
func Newf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}
