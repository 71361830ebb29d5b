package idtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/token/keys"
)

// Leeway is the clock skew tolerated on exp and iat.
const Leeway = 60 * time.Second

// KeySource supplies the provider's current signing keys. A nil set means
// none are available.
type KeySource interface {
	GetKeys(ctx context.Context) *keys.JWKS
}

// Verifier checks ID tokens against a key source. Apart from the key fetch it
// is a pure signature and clock check.
type Verifier struct {
	keys    KeySource
	issuer  string
	nowTime func() time.Time
	metrics *metrics.Metrics
}

type Option func(*Verifier)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(v *Verifier) {
		v.nowTime = nowFunc
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Verifier) {
		v.metrics = m
	}
}

func NewVerifier(source KeySource, issuer string, opts ...Option) (*Verifier, error) {
	if source == nil {
		return nil, errors.New("[NewVerifier] key source is required")
	}
	if issuer == "" {
		return nil, errors.New("[NewVerifier] issuer is required")
	}
	v := &Verifier{
		keys:    source,
		issuer:  issuer,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates rawToken's signature, issuer, audience and time bounds and
// returns its claims. Failures are *VerificationError.
func (v *Verifier) Verify(ctx context.Context, rawToken, audience string) (*Claims, error) {
	claims, err := v.verify(ctx, rawToken, audience)
	if err != nil {
		v.metrics.IncVerification(kindLabel(err))
		return nil, err
	}
	v.metrics.IncVerification("ok")
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, rawToken, audience string) (*Claims, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, fail(ErrMalformedToken, err)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, fail(ErrMissingKeyID, nil)
	}

	set := v.keys.GetKeys(ctx)
	if set == nil {
		return nil, fail(ErrKeysUnavailable, nil)
	}
	jwk := set.FindKey(kid)
	if jwk == nil {
		return nil, fail(ErrUnknownKey, fmt.Errorf("kid %s", kid))
	}
	publicKey, err := jwk.RSAPublicKey()
	if err != nil {
		return nil, fail(ErrUnknownKey, err)
	}

	var claims googleClaims
	_, err = jwt.ParseWithClaims(rawToken, &claims,
		func(*jwt.Token) (any, error) { return publicKey, nil },
		jwt.WithValidMethods([]string{jwk.Algorithm()}),
		jwt.WithLeeway(Leeway),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowTime),
	)
	if err != nil {
		return nil, classify(err)
	}
	if claims.IssuedAt == nil {
		return nil, fail(ErrInvalidIssuedAt, nil)
	}

	return claims.toClaims(audience), nil
}

// classify maps jwt validation errors onto the failure kinds. Signature
// problems are checked first since claims are meaningless without them.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fail(ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fail(ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fail(ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return fail(ErrIssuedInFuture, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fail(ErrInvalidAudience, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fail(ErrInvalidIssuer, err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fail(ErrMalformedToken, err)
	}
	return fail(ErrInvalidSignature, err)
}
