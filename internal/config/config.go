package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/ave-oauth-bridge/internal/errors"
)

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	StoreConfig
	PlatformConfig
	SecurityConfig
	Validate() error
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Store
	Platform
	Security
}

// New reads the configuration from the environment and validates it.
func New() (Config, error) {
	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config New] %w: %w", errors.ErrConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the cross-field rules env tags cannot express.
func (c mainConfig) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.ClientID != "", "CLIENT_ID is required"},
		{c.ClientSecret != "", "CLIENT_SECRET is required"},
		{c.CallbackPort > 0 && c.CallbackPort < 65536, "CALLBACK_SERVER_PORT must be a valid port"},
		{c.HandshakeTimeout > 0, "OAUTH_HANDSHAKE_TIMEOUT must be positive"},
		{c.PollInterval > 0, "OAUTH_POLL_INTERVAL must be positive"},
		{c.SessionTimeoutSeconds > 0, "SESSION_TIMEOUT must be positive"},
		{c.TokenLifetimeHours > 0, "TOKEN_LIFE_TIME_HOURS must be positive"},
		{c.RetryAttempts > 0, "STORE_RETRY_ATTEMPTS must be positive"},
		{c.RetryInitialDelay > 0, "STORE_RETRY_INITIAL_DELAY must be positive"},
		{c.SweepInterval > 0, "SESSION_SWEEP_INTERVAL must be positive"},
		{c.JWKSRefreshInterval > 0, "JWKS_REFRESH_INTERVAL must be positive"},
		{c.SecretKey != "" && c.SecretIV != "", "SECRET_KEY and SECRET_IV are required"},
		{validTransport(c.MCPTransport), "MCP_TRANSPORT must be one of stdio, http, none"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("[config Validate] %w: %s", errors.ErrConfig, check.msg)
		}
	}
	return nil
}

func validTransport(t string) bool {
	switch t {
	case MCPTransportStdio, MCPTransportHTTP, MCPTransportNone:
		return true
	}
	return false
}
