package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/ave-oauth-bridge/auth"
	"github.com/jrsteele09/ave-oauth-bridge/auth/mocks"
	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	fakesessionrepo "github.com/jrsteele09/ave-oauth-bridge/sessions/repofakes"
	"github.com/jrsteele09/ave-oauth-bridge/token/idtoken"
	"github.com/jrsteele09/ave-oauth-bridge/token/keys"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testClientID     = "client-1.apps.googleusercontent.com"
	testClientSecret = "shhh"
	testIssuer       = "https://accounts.google.com"
	testBaseURL      = "http://localhost:3030"
	testEmail        = "jane.doe@example.com"
	testSubject      = "1100223344"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

var testCredentials = &sessions.PlatformCredentials{
	ID:             4512,
	Document:       "900123456",
	User:           "jdoe",
	Name:           "Jane Doe",
	Email:          testEmail,
	Razon:          "Doe Logistics SAS",
	IDEnterprise:   8821,
	AccessRedirect: "https://app.aveonline.co/app/home",
	Token:          "bearer-token",
	TokenBody:      "body-token",
}

type testConfig struct {
	config.OAuth
}

func (testConfig) GetCallbackBaseURL() string {
	return testBaseURL
}

type staticKeys struct {
	set *keys.JWKS
}

func (s staticKeys) GetKeys(context.Context) *keys.JWKS {
	return s.set
}

// tokenEndpoint stands in for the provider token endpoint and records the
// last form it received.
type tokenEndpoint struct {
	server *httptest.Server
	hits   atomic.Int32

	mu          sync.Mutex
	form        url.Values
	idToken     string
	omitIDToken bool
	rejectGrant bool
}

func (te *tokenEndpoint) lastForm() url.Values {
	te.mu.Lock()
	defer te.mu.Unlock()
	return te.form
}

type testFixture struct {
	repo     *fakesessionrepo.FakeSessionRepo
	signer   *keys.KeyPairSigner
	exchange *mocks.MockIdentityExchange
	tokens   *tokenEndpoint
	service  *auth.OAuthService
	cfg      testConfig
}

func setupTestFixture(t *testing.T, opts ...auth.Option) *testFixture {
	t.Helper()

	kp, err := keys.GenerateRSAKeyPair("test-key", 2048)
	require.NoError(t, err)
	signer := keys.NewKeyPairSigner(kp)
	verifier, err := idtoken.NewVerifier(staticKeys{set: signer.GetJWKS()}, testIssuer,
		idtoken.WithNowTime(func() time.Time { return testNow }))
	require.NoError(t, err)

	te := &tokenEndpoint{}
	te.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		te.hits.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		te.mu.Lock()
		te.form = r.PostForm
		idToken, omit, reject := te.idToken, te.omitIDToken, te.rejectGrant
		te.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		body := map[string]any{
			"access_token": "ya29.access",
			"token_type":   "Bearer",
			"expires_in":   3599,
		}
		if !omit {
			body["id_token"] = idToken
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(te.server.Close)

	f := &testFixture{
		repo:     fakesessionrepo.NewFakeSessionRepo(fakesessionrepo.WithNowTime(func() time.Time { return testNow })),
		signer:   signer,
		exchange: mocks.NewMockIdentityExchange(gomock.NewController(t)),
		tokens:   te,
	}
	te.idToken = f.idToken(t, nil)

	f.cfg = testConfig{OAuth: config.OAuth{
		ClientID:         testClientID,
		ClientSecret:     testClientSecret,
		AuthURL:          config.GoogleAuthURL,
		TokenURL:         te.server.URL,
		Issuer:           testIssuer,
		HandshakeTimeout: 2 * time.Second,
		PollInterval:     5 * time.Millisecond,
	}}

	f.service, err = auth.NewOAuthService(auth.Deps{
		Sessions: f.repo,
		Verifier: verifier,
		Exchange: f.exchange,
	}, f.cfg, append([]auth.Option{
		auth.WithNowTime(func() time.Time { return testNow }),
		auth.WithHTTPClient(te.server.Client()),
	}, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *testFixture) idToken(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            testSubject,
		"email":          testEmail,
		"email_verified": true,
		"name":           "Jane Doe",
		"iat":            testNow.Add(-time.Minute).Unix(),
		"exp":            testNow.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	raw, err := f.signer.Sign(claims)
	require.NoError(t, err)
	return raw
}

func (f *testFixture) setIDToken(raw string) {
	f.tokens.mu.Lock()
	defer f.tokens.mu.Unlock()
	f.tokens.idToken = raw
}

func (f *testFixture) newSession(t *testing.T) *auth.AuthorizationRequest {
	t.Helper()
	req, err := f.service.CreateAuthorizationRequest(context.Background())
	require.NoError(t, err)
	return req
}

func (f *testFixture) session(t *testing.T, id string) *sessions.Session {
	t.Helper()
	sess, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return sess
}

func TestNewOAuthServiceValidation(t *testing.T) {
	f := setupTestFixture(t)
	deps := auth.Deps{Sessions: f.repo, Verifier: staticVerifier{}, Exchange: f.exchange}

	_, err := auth.NewOAuthService(auth.Deps{Verifier: deps.Verifier, Exchange: deps.Exchange}, f.cfg)
	require.Error(t, err)
	_, err = auth.NewOAuthService(auth.Deps{Sessions: deps.Sessions, Exchange: deps.Exchange}, f.cfg)
	require.Error(t, err)
	_, err = auth.NewOAuthService(auth.Deps{Sessions: deps.Sessions, Verifier: deps.Verifier}, f.cfg)
	require.Error(t, err)
	_, err = auth.NewOAuthService(deps, nil)
	require.Error(t, err)

	noClient := f.cfg
	noClient.ClientID = ""
	_, err = auth.NewOAuthService(deps, noClient)
	require.Error(t, err)

	_, err = auth.NewOAuthService(deps, f.cfg, auth.WithPollInterval(0))
	require.Error(t, err)

	_, err = auth.NewOAuthService(deps, f.cfg)
	require.NoError(t, err)
}

type staticVerifier struct{}

func (staticVerifier) Verify(context.Context, string, string) (*idtoken.Claims, error) {
	return &idtoken.Claims{Subject: testSubject, Email: testEmail, EmailVerified: true}, nil
}
