// Package domainerrors provides coded errors for the session engine. Services
// translate infrastructure sentinels and provider wire codes into these at
// their boundary so transport and UI layers can branch on a stable category
// instead of provider-specific strings.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, UI-displayable error category.
type Code string

const (
	// CodeOffline is the pre-flight guard: the device is offline and no
	// remote call was attempted.
	CodeOffline Code = "offline"

	// Provider rejections.
	CodeInvalidCredentials Code = "invalid-credentials"
	CodeUnknownEmail       Code = "unknown-email"
	CodeRateLimited        Code = "rate-limited"
	CodeEmailInUse         Code = "email-in-use"
	CodeWeakPassword       Code = "weak-password"

	// CodeNetworkUnavailable covers transport-level failures reaching a
	// remote collaborator.
	CodeNetworkUnavailable Code = "network-unavailable"

	// CodeResolutionTimeout is surfaced when neither a basic nor an enriched
	// session could be published before the global resolution deadline.
	CodeResolutionTimeout Code = "resolution-timeout"

	CodeBadRequest Code = "bad-request"
	CodeUnexpected Code = "unexpected"
)

// Error couples a Code with a message and an optional cause.
type Error struct {
	code  Code
	msg   string
	cause error
}

func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

func Wrap(err error, code Code, msg string) error {
	return &Error{code: code, msg: msg, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Code() Code { return e.code }

// CodeOf returns the code of the outermost coded error in err's chain, or
// CodeUnexpected when no coded error is present.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeUnexpected
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.code == code {
			return true
		}
		err = de.cause
	}
	return false
}
