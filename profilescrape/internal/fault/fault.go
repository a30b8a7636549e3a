// Package fault defines the failure kinds surfaced by the scrape engine.
//
// Every engine failure is an *Error carrying one Kind sentinel and the
// underlying cause. Both are reachable through errors.Is, so callers can test
// for the kind (errors.Is(err, fault.ErrNavigation)) and for the cause
// (errors.Is(err, context.DeadlineExceeded)) on the same value.
package fault

import (
	"errors"
	"fmt"
)

// Kind sentinels.
var (
	ErrInvalidTarget           = errors.New("invalid target url")
	ErrMissingCredentials      = errors.New("missing credentials")
	ErrFormNotFound            = errors.New("login form not found")
	ErrNavigation              = errors.New("navigation failed")
	ErrAuthenticationExhausted = errors.New("authentication exhausted")
	ErrIO                      = errors.New("cookie store i/o failure")
)

var kindNames = map[error]string{
	ErrInvalidTarget:           "invalid_target",
	ErrMissingCredentials:      "missing_credentials",
	ErrFormNotFound:            "form_not_found",
	ErrNavigation:              "navigation_failure",
	ErrAuthenticationExhausted: "authentication_exhausted",
	ErrIO:                      "io_failure",
}

// Error is a typed engine failure.
type Error struct {
	Kind error  // one of the sentinels above
	Op   string // "navigator.goto", "authn.authenticate", ...
	Err  error  // cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New builds an *Error of the given kind.
func New(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf builds an *Error whose cause is a formatted message.
func Newf(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the stable name of the first kind found in err's chain, or
// "internal" when err carries no engine kind.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		if name, ok := kindNames[fe.Kind]; ok {
			return name
		}
	}
	for sentinel, name := range kindNames {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return "internal"
}
