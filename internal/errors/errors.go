package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the OAuth bridge. Callers match with Is; the wrapped
// chain carries the detail.
var (
	// Startup
	ErrConfig = errors.New("configuration error")

	// Session store
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrSessionNotFound  = errors.New("session not found or expired")
	ErrSessionClosed    = errors.New("session is no longer awaiting a callback")

	// OAuth handshake
	ErrStateMismatch = errors.New("state parameter mismatch")
	ErrAuthorization = errors.New("authorization denied by provider")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrVerification  = errors.New("identity token verification failed")
	ErrTimeout       = errors.New("authorization window elapsed")

	// Platform
	ErrIdentityExchangeFailed = errors.New("platform identity exchange failed")
)

// Machine readable codes returned to tool callers.
const (
	CodeConfig                 = "CONFIG_ERROR"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
	CodeSessionNotFound        = "SESSION_NOT_FOUND"
	CodeSessionClosed          = "SESSION_CLOSED"
	CodeStateMismatch          = "STATE_MISMATCH"
	CodeAuthorization          = "AUTHORIZATION_ERROR"
	CodeTokenExchange          = "TOKEN_EXCHANGE_FAILED"
	CodeVerification           = "VERIFICATION_ERROR"
	CodeTimeout                = "TIMEOUT"
	CodeIdentityExchangeFailed = "IDENTITY_EXCHANGE_FAILED"
	CodeInternal               = "INTERNAL_ERROR"
)

var codes = []struct {
	err  error
	code string
}{
	// ErrStateMismatch is checked before ErrAuthorization since a mismatch is
	// recorded as an authorization failure too.
	{ErrStateMismatch, CodeStateMismatch},
	{ErrConfig, CodeConfig},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrSessionClosed, CodeSessionClosed},
	{ErrAuthorization, CodeAuthorization},
	{ErrTokenExchange, CodeTokenExchange},
	{ErrVerification, CodeVerification},
	{ErrTimeout, CodeTimeout},
	{ErrIdentityExchangeFailed, CodeIdentityExchangeFailed},
}

// Code maps an error chain onto its taxonomy code. Unknown errors map to
// CodeInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import.
func New(text string) error {
	return errors.New(text)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
