package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/jrsteele09/ave-oauth-bridge/token/idtoken"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks TokenVerifier,IdentityExchange

const (
	// completionTimeout bounds one code exchange, token verification and
	// platform login. It is detached from the caller so a dropped browser
	// connection cannot abandon a half finished completion.
	completionTimeout = 30 * time.Second

	// handshakeGrace is how long a pending record outlives its handshake
	// window.
	handshakeGrace = 5 * time.Second

	StateMismatchMessage = "state parameter mismatch"
	NoCodeMessage        = "no authorization code received"
	timeoutMessage       = "authorization window elapsed before the callback arrived"
)

// TokenVerifier validates a provider ID token for an audience.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken, audience string) (*idtoken.Claims, error)
}

// IdentityExchange trades a verified email for platform credentials.
type IdentityExchange interface {
	LoginWithEmail(ctx context.Context, email string) (*sessions.PlatformCredentials, error)
}

// Config is the slice of configuration the flow needs.
type Config interface {
	config.OAuthConfig
	GetCallbackBaseURL() string
}

// Deps holds the collaborators of the OAuthService. Provider is optional and
// only used for userinfo enrichment.
type Deps struct {
	Sessions sessions.Repo
	Verifier TokenVerifier
	Exchange IdentityExchange
	Provider *oidc.Provider
}

// OAuthService drives the PKCE handshake: it creates correlated sessions,
// records callbacks and turns a completed callback into platform credentials.
type OAuthService struct {
	sessions sessions.Repo
	verifier TokenVerifier
	exchange IdentityExchange
	provider *oidc.Provider

	clientID         string
	clientSecret     string
	endpoint         oauth2.Endpoint
	scopes           []string
	callbackBaseURL  string
	handshakeTimeout time.Duration
	pollInterval     time.Duration

	httpClient *http.Client
	metrics    *metrics.Metrics
	nowTime    func() time.Time
	inflight   singleflight.Group
}

type Option func(*OAuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *OAuthService) {
		s.nowTime = nowFunc
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(s *OAuthService) {
		s.pollInterval = d
	}
}

// WithHandshakeTimeout overrides the handshake window. The pending session
// TTL is derived from it.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *OAuthService) {
		s.handshakeTimeout = d
	}
}

// WithHTTPClient is used for the token endpoint and userinfo calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *OAuthService) {
		s.httpClient = client
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *OAuthService) {
		s.metrics = m
	}
}

func NewOAuthService(deps Deps, cfg Config, opts ...Option) (*OAuthService, error) {
	if deps.Sessions == nil {
		return nil, errors.New("[NewOAuthService] Sessions repo is required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("[NewOAuthService] Verifier is required")
	}
	if deps.Exchange == nil {
		return nil, errors.New("[NewOAuthService] Exchange is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewOAuthService] config is required")
	}
	if cfg.GetClientID() == "" {
		return nil, errors.New("[NewOAuthService] client id is required")
	}

	s := &OAuthService{
		sessions:     deps.Sessions,
		verifier:     deps.Verifier,
		exchange:     deps.Exchange,
		provider:     deps.Provider,
		clientID:     cfg.GetClientID(),
		clientSecret: cfg.GetClientSecret(),
		endpoint: oauth2.Endpoint{
			AuthURL:   cfg.GetAuthURL(),
			TokenURL:  cfg.GetTokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes:           cfg.GetScopes(),
		callbackBaseURL:  cfg.GetCallbackBaseURL(),
		handshakeTimeout: cfg.GetHandshakeTimeout(),
		pollInterval:     cfg.GetPollInterval(),
		nowTime:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handshakeTimeout <= 0 {
		return nil, errors.New("[NewOAuthService] handshake timeout must be positive")
	}
	if s.pollInterval <= 0 {
		return nil, errors.New("[NewOAuthService] poll interval must be positive")
	}
	return s, nil
}

// HandshakeTimeout is the window a caller has to finish consent.
func (s *OAuthService) HandshakeTimeout() time.Duration {
	return s.handshakeTimeout
}

func (s *OAuthService) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     s.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       s.scopes,
	}
}

// clientContext hands the configured HTTP client to x/oauth2 and go-oidc,
// which both read it from the oauth2.HTTPClient context key.
func (s *OAuthService) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, s.httpClient)
}

// NewGoogleProvider builds the provider from configured endpoints without a
// discovery round trip.
func NewGoogleProvider(ctx context.Context, cfg config.OAuthConfig) *oidc.Provider {
	pc := &oidc.ProviderConfig{
		IssuerURL:   cfg.GetIssuer(),
		AuthURL:     cfg.GetAuthURL(),
		TokenURL:    cfg.GetTokenURL(),
		UserInfoURL: cfg.GetUserInfoURL(),
		JWKSURL:     cfg.GetJWKSURL(),
		Algorithms:  []string{oidc.RS256},
	}
	return pc.NewProvider(ctx)
}
