package config

import "time"

// Google endpoints. Overridable so tests can point the flow at local stubs.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	GoogleIssuer      = "https://accounts.google.com"
)

type OAuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetAuthURL() string
	GetTokenURL() string
	GetJWKSURL() string
	GetUserInfoURL() string
	GetIssuer() string
	GetScopes() []string
	GetHandshakeTimeout() time.Duration
	GetPollInterval() time.Duration
	GetJWKSRefreshInterval() time.Duration
	GetJWKSFetchTimeout() time.Duration
	GetCallbackCompletesFlow() bool
}

type OAuth struct {
	ClientID             string        `env:"CLIENT_ID"`
	ClientSecret         string        `env:"CLIENT_SECRET"`
	AuthURL              string        `env:"GOOGLE_AUTH_URL" envDefault:"https://accounts.google.com/o/oauth2/v2/auth"`
	TokenURL             string        `env:"GOOGLE_TOKEN_URL" envDefault:"https://oauth2.googleapis.com/token"`
	JWKSURL              string        `env:"GOOGLE_JWKS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	UserInfoURL          string        `env:"GOOGLE_USERINFO_URL" envDefault:"https://openidconnect.googleapis.com/v1/userinfo"`
	Issuer               string        `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	HandshakeTimeout     time.Duration `env:"OAUTH_HANDSHAKE_TIMEOUT" envDefault:"300s"`
	PollInterval         time.Duration `env:"OAUTH_POLL_INTERVAL" envDefault:"1s"`
	JWKSRefreshInterval  time.Duration `env:"JWKS_REFRESH_INTERVAL" envDefault:"1h"`
	JWKSFetchTimeout     time.Duration `env:"JWKS_FETCH_TIMEOUT" envDefault:"10s"`
	CallbackCompleteFlow bool          `env:"CALLBACK_COMPLETES_FLOW" envDefault:"true"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetClientID() string {
	return o.ClientID
}

func (o OAuth) GetClientSecret() string {
	return o.ClientSecret
}

func (o OAuth) GetAuthURL() string {
	return o.AuthURL
}

func (o OAuth) GetTokenURL() string {
	return o.TokenURL
}

func (o OAuth) GetJWKSURL() string {
	return o.JWKSURL
}

func (o OAuth) GetUserInfoURL() string {
	return o.UserInfoURL
}

func (o OAuth) GetIssuer() string {
	return o.Issuer
}

func (OAuth) GetScopes() []string {
	return []string{"openid", "email", "profile"}
}

// GetHandshakeTimeout bounds both the pending session TTL and the verify wait.
func (o OAuth) GetHandshakeTimeout() time.Duration {
	return o.HandshakeTimeout
}

func (o OAuth) GetPollInterval() time.Duration {
	return o.PollInterval
}

func (o OAuth) GetJWKSRefreshInterval() time.Duration {
	return o.JWKSRefreshInterval
}

func (o OAuth) GetJWKSFetchTimeout() time.Duration {
	return o.JWKSFetchTimeout
}

func (o OAuth) GetCallbackCompletesFlow() bool {
	return o.CallbackCompleteFlow
}
