package idtoken

import (
	"errors"

	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
)

// Verification failure kinds. Every error returned by Verify matches
// ierrors.ErrVerification and exactly one of these.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrMissingKeyID     = errors.New("token header has no key id")
	ErrKeysUnavailable  = errors.New("signing keys unavailable")
	ErrUnknownKey       = errors.New("signing key not found in key set")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrExpired          = errors.New("token expired")
	ErrIssuedInFuture   = errors.New("token issued in the future")
	ErrInvalidIssuedAt  = errors.New("token has no valid issued-at")
	ErrInvalidAudience  = errors.New("invalid audience")
	ErrInvalidIssuer    = errors.New("invalid issuer")
)

// VerificationError carries the failure kind and the underlying cause.
type VerificationError struct {
	Kind  error
	Cause error
}

func (e *VerificationError) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *VerificationError) Unwrap() []error {
	errs := []error{ierrors.ErrVerification, e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func fail(kind, cause error) error {
	return &VerificationError{Kind: kind, Cause: cause}
}

// kindLabel is the metrics label for a failure kind.
func kindLabel(err error) string {
	var verr *VerificationError
	if !errors.As(err, &verr) {
		return "error"
	}
	switch verr.Kind {
	case ErrMalformedToken:
		return "malformed"
	case ErrMissingKeyID:
		return "missing_kid"
	case ErrKeysUnavailable:
		return "keys_unavailable"
	case ErrUnknownKey:
		return "unknown_key"
	case ErrInvalidSignature:
		return "invalid_signature"
	case ErrExpired:
		return "expired"
	case ErrIssuedInFuture:
		return "issued_in_future"
	case ErrInvalidIssuedAt:
		return "invalid_iat"
	case ErrInvalidAudience:
		return "invalid_audience"
	case ErrInvalidIssuer:
		return "invalid_issuer"
	}
	return "error"
}
