package aveonline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/rs/zerolog/log"
)

const (
	loginType    = "OauthProduct"
	cryptoMethod = "AES"
	userAgent    = "AveMCP/1.0"

	maxResponseBytes = 1 << 20
)

// Client performs the platform's login-by-email exchange.
type Client struct {
	url        string
	tokenHours int
	crypter    *Crypter
	httpClient *http.Client
	nowTime    func() time.Time
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithNowTime sets the clock stamped into the encrypted request time.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

func NewClient(cfg config.PlatformConfig, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[aveonline NewClient] config is required")
	}
	if cfg.GetPlatformAuthURL() == "" {
		return nil, errors.New("[aveonline NewClient] auth url is required")
	}
	crypter, err := NewCrypter(cfg.GetSecretKey(), cfg.GetSecretIV())
	if err != nil {
		return nil, fmt.Errorf("[aveonline NewClient] %w", err)
	}
	c := &Client{
		url:        cfg.GetPlatformAuthURL(),
		tokenHours: cfg.GetPlatformTokenHours(),
		crypter:    crypter,
		httpClient: &http.Client{Timeout: cfg.GetPlatformTimeout()},
		nowTime:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Type         string `json:"tipo"`
	EmailEncrypt string `json:"emailEncrypt"`
	TimeEncrypt  string `json:"timeEncript"`
	TokenTime    int    `json:"tokenTime"`
	Method       string `json:"method"`
}

type loginResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Data    *loginSession `json:"data"`
}

// loginSession mirrors the data block. The platform is loose with types, so
// numeric ids may arrive as strings and strings as numbers.
type loginSession struct {
	ID                           flexInt    `json:"id"`
	Document                     flexString `json:"document"`
	User                         flexString `json:"user"`
	Name                         flexString `json:"name"`
	Email                        flexString `json:"email"`
	Razon                        flexString `json:"razon"`
	IDEnterprise                 flexInt    `json:"idEnterprise"`
	AccessRedirect               flexString `json:"accessRedirect"`
	Token                        flexString `json:"token"`
	TokenBody                    flexString `json:"tokenBody"`
	LogisticAdvisorContactNumber flexString `json:"logisticAdvisorContactNumber"`
}

func (s *loginSession) credentials() *sessions.PlatformCredentials {
	return &sessions.PlatformCredentials{
		ID:                           int64(s.ID),
		Document:                     string(s.Document),
		User:                         string(s.User),
		Name:                         string(s.Name),
		Email:                        string(s.Email),
		Razon:                        string(s.Razon),
		IDEnterprise:                 int64(s.IDEnterprise),
		AccessRedirect:               string(s.AccessRedirect),
		Token:                        string(s.Token),
		TokenBody:                    string(s.TokenBody),
		LogisticAdvisorContactNumber: string(s.LogisticAdvisorContactNumber),
	}
}

// LoginWithEmail exchanges a verified email for platform credentials. Every
// failure wraps ErrIdentityExchangeFailed.
func (c *Client) LoginWithEmail(ctx context.Context, email string) (*sessions.PlatformCredentials, error) {
	if email == "" {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: email is required", ierrors.ErrIdentityExchangeFailed)
	}

	body, err := c.loginBody(email)
	if err != nil {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: %w", ierrors.ErrIdentityExchangeFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: %w", ierrors.ErrIdentityExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: %w", ierrors.ErrIdentityExchangeFailed, err)
	}
	defer resp.Body.Close()

	var out loginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: http %d: decode response: %w", ierrors.ErrIdentityExchangeFailed, resp.StatusCode, err)
	}
	log.Debug().Int("status", resp.StatusCode).Str("result", out.Status).Dur("elapsed", time.Since(start)).Msg("platform login response")

	if out.Status != "ok" || out.Data == nil {
		msg := out.Message
		if msg == "" {
			msg = "login rejected"
		}
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: %s", ierrors.ErrIdentityExchangeFailed, msg)
	}
	creds := out.Data.credentials()
	if creds.Token == "" {
		return nil, fmt.Errorf("[aveonline LoginWithEmail] %w: response carried no token", ierrors.ErrIdentityExchangeFailed)
	}
	return creds, nil
}

func (c *Client) loginBody(email string) ([]byte, error) {
	encEmail, err := c.crypter.Encrypt(email)
	if err != nil {
		return nil, err
	}
	now := c.nowTime()
	encTime, err := c.crypter.Encrypt(strconv.FormatFloat(float64(now.UnixMicro())/1e6, 'f', -1, 64))
	if err != nil {
		return nil, err
	}
	return json.Marshal(loginRequest{
		Type:         loginType,
		EmailEncrypt: encEmail,
		TimeEncrypt:  encTime,
		TokenTime:    c.tokenHours,
		Method:       cryptoMethod,
	})
}

type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", s)
	}
	*f = flexInt(n)
	return nil
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}
