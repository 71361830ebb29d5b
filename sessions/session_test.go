package sessions_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/internal/utils"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testSessionID = "0b8a3f5e-7c1d-4c59-9a57-2f1f0c1a9e11"
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testRedirect  = "http://localhost:3030/callback/" + testSessionID
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *sessions.Session {
	t.Helper()
	return sessions.New(testSessionID, sessions.Seed{CodeVerifier: testVerifier, RedirectURI: testRedirect}, testNow, 5*time.Minute)
}

func TestNew(t *testing.T) {
	s := newPending(t)

	require.Equal(t, sessions.StatusPending, s.Status)
	require.Equal(t, testNow, s.CreatedAt)
	require.Equal(t, testNow.Add(5*time.Minute), s.ExpiresAt)
	require.Equal(t, int64(300), s.TTL.Seconds)
	require.True(t, s.TTL.Valid)
}

func TestApplyKeepsCodeAndErrorExclusive(t *testing.T) {
	s := newPending(t)

	s.Apply(sessions.StatusUpdate(sessions.StatusCompleted, "abc", ""), testNow.Add(time.Second), false, 48*time.Hour)
	require.Equal(t, "abc", s.Code)
	require.Empty(t, s.Error)

	s.Apply(sessions.StatusUpdate(sessions.StatusError, "", "access_denied"), testNow.Add(2*time.Second), false, 48*time.Hour)
	require.Empty(t, s.Code)
	require.Equal(t, "access_denied", s.Error)
	require.Equal(t, testNow.Add(2*time.Second), s.UpdatedAt)

	s.Apply(sessions.Update{Code: utils.Ptr("def")}, testNow.Add(3*time.Second), false, 48*time.Hour)
	require.Equal(t, "def", s.Code)
	require.Empty(t, s.Error)
}

func TestApplyPlatformSessionOnlyWhenAuthenticated(t *testing.T) {
	creds := &sessions.PlatformCredentials{ID: 7, IDEnterprise: 99, Token: "t", TokenBody: "tb"}

	t.Run("authenticated keeps credentials and extends", func(t *testing.T) {
		s := newPending(t)
		at := testNow.Add(time.Minute)
		s.Apply(sessions.Update{Status: utils.Ptr(sessions.StatusAuthenticated), PlatformSession: creds}, at, true, 48*time.Hour)

		require.Equal(t, *creds, *s.PlatformSession)
		require.Equal(t, at.Add(48*time.Hour), s.ExpiresAt)
		require.Equal(t, int64(48*3600), s.TTL.Seconds)
	})

	t.Run("credentials dropped on other statuses", func(t *testing.T) {
		s := newPending(t)
		s.Apply(sessions.Update{Status: utils.Ptr(sessions.StatusCompleted), PlatformSession: creds}, testNow, false, 48*time.Hour)
		require.Nil(t, s.PlatformSession)
		require.Equal(t, testNow.Add(5*time.Minute), s.ExpiresAt)
	})
}

func TestIsExpired(t *testing.T) {
	s := newPending(t)
	require.False(t, s.IsExpired(testNow))
	require.True(t, s.IsExpired(testNow.Add(5*time.Minute)))

	s.ExpiresAt = time.Time{}
	require.False(t, s.IsExpired(testNow.Add(time.Hour)))
}

func TestUnmarshalToleratesTTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     string
		seconds int64
		valid   bool
	}{
		{"number", `300`, 300, true},
		{"float", `300.0`, 300, true},
		{"numeric string", `"120"`, 120, true},
		{"garbage string", `"soon"`, 0, false},
		{"null", `null`, 0, false},
		{"object", `{"a":1}`, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := `{"session_id":"x","status":"pending","ttl":` + tc.ttl + `}`
			s, err := sessions.Unmarshal([]byte(raw))
			require.NoError(t, err)
			require.Equal(t, tc.valid, s.TTL.Valid)
			require.Equal(t, tc.seconds, s.TTL.Seconds)
		})
	}
}

func TestStatus(t *testing.T) {
	require.True(t, sessions.StatusPending.IsAwaitingCallback())
	require.True(t, sessions.StatusUpdated.IsAwaitingCallback())
	require.False(t, sessions.StatusCompleted.IsAwaitingCallback())

	for _, s := range []sessions.Status{sessions.StatusError, sessions.StatusExpired, sessions.StatusAuthenticated} {
		require.True(t, s.IsTerminal(), s)
	}
	require.False(t, sessions.StatusCompleted.IsTerminal())
}
