package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLIENT_ID", "client-1.apps.googleusercontent.com")
	t.Setenv("CLIENT_SECRET", "secret-1")
	t.Setenv("SECRET_KEY", "platform-key")
	t.Setenv("SECRET_IV", "platform-iv")
}

func TestNewDefaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "0.0.0.0:3030", c.GetCallbackAddr())
	require.Equal(t, "http://localhost:3030", c.GetCallbackBaseURL())
	require.Equal(t, config.GoogleAuthURL, c.GetAuthURL())
	require.Equal(t, config.GoogleTokenURL, c.GetTokenURL())
	require.Equal(t, config.GoogleJWKSURL, c.GetJWKSURL())
	require.Equal(t, config.GoogleIssuer, c.GetIssuer())
	require.Equal(t, []string{"openid", "email", "profile"}, c.GetScopes())
	require.Equal(t, 300*time.Second, c.GetHandshakeTimeout())
	require.Equal(t, time.Second, c.GetPollInterval())
	require.Equal(t, time.Hour, c.GetJWKSRefreshInterval())
	require.Equal(t, time.Hour, c.GetDefaultSessionTTL())
	require.Equal(t, 48*time.Hour, c.GetSessionLifetime())
	require.Equal(t, 5, c.GetRetryAttempts())
	require.Equal(t, 2*time.Second, c.GetRetryInitialDelay())
	require.Equal(t, "localhost:6379", c.GetRedisAddr())
	require.Equal(t, config.MCPTransportStdio, c.GetMCPTransport())
	require.True(t, c.GetCallbackCompletesFlow())
	require.False(t, c.IsDebug())
	require.Empty(t, c.GetAllowedOrigins())
}

func TestNewOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIRECT_URI", "https://auth.example.com:8443")
	t.Setenv("SESSION_TIMEOUT", "120")
	t.Setenv("TOKEN_LIFE_TIME_HOURS", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")

	c, err := config.New()
	require.NoError(t, err)

	require.True(t, c.IsDebug())
	require.Equal(t, "https://auth.example.com:8443", c.GetCallbackBaseURL())
	require.Equal(t, 2*time.Minute, c.GetDefaultSessionTTL())
	require.Equal(t, 2*time.Hour, c.GetSessionLifetime())
	require.Equal(t, "redis:6380", c.GetRedisAddr())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example.com"))
}

func TestNewMissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"client id", "CLIENT_ID"},
		{"client secret", "CLIENT_SECRET"},
		{"platform secret", "SECRET_KEY"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")

			_, err := config.New()
			require.Error(t, err)
			require.ErrorIs(t, err, errors.ErrConfig)
			require.Contains(t, err.Error(), tc.unset)
		})
	}
}

func TestNewInvalidValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MCP_TRANSPORT", "websocket")

	_, err := config.New()
	require.ErrorIs(t, err, errors.ErrConfig)

	t.Setenv("MCP_TRANSPORT", "none")
	t.Setenv("CALLBACK_SERVER_PORT", "not-a-port")
	_, err = config.New()
	require.ErrorIs(t, err, errors.ErrConfig)
}

func TestNewRejectsNonPositiveIntervals(t *testing.T) {
	for _, name := range []string{"SESSION_SWEEP_INTERVAL", "JWKS_REFRESH_INTERVAL", "STORE_RETRY_INITIAL_DELAY"} {
		for _, value := range []string{"0s", "-1m"} {
			t.Run(name+"="+value, func(t *testing.T) {
				setRequiredEnv(t)
				t.Setenv(name, value)

				_, err := config.New()
				require.ErrorIs(t, err, errors.ErrConfig)
			})
		}
	}
}
