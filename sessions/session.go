package sessions

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Session is the correlation record for one OAuth handshake. The ID doubles
// as the OAuth state parameter and as the token business tools present.
type Session struct {
	ID              string               `json:"session_id"`
	Status          Status               `json:"status"`
	CodeVerifier    string               `json:"code_verifier"`
	RedirectURI     string               `json:"redirect_uri"`
	Code            string               `json:"code,omitempty"`
	Error           string               `json:"error,omitempty"`
	PlatformSession *PlatformCredentials `json:"ave_session,omitempty"`
	Metadata        map[string]string    `json:"metadata,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ExpiresAt       time.Time            `json:"expires_at"`
	TTL             TTL                  `json:"ttl"`

	// RemainingTTL is the store-native expiry left, filled in by scans.
	RemainingTTL time.Duration `json:"-"`
}

// PlatformCredentials are the AveOnline session values returned by the
// login-by-email exchange.
type PlatformCredentials struct {
	ID                           int64  `json:"id"`
	Document                     string `json:"document"`
	User                         string `json:"user"`
	Name                         string `json:"name"`
	Email                        string `json:"email"`
	Razon                        string `json:"razon"`
	IDEnterprise                 int64  `json:"idEnterprise"`
	AccessRedirect               string `json:"accessRedirect"`
	Token                        string `json:"token"`
	TokenBody                    string `json:"tokenBody"`
	LogisticAdvisorContactNumber string `json:"logisticAdvisorContactNumber"`
}

// Seed carries the caller supplied fields of a new session. ID is optional;
// callers that derive other fields from the ID generate it themselves.
type Seed struct {
	ID           string
	CodeVerifier string
	RedirectURI  string
	Metadata     map[string]string
}

// New builds a pending session. ttl must already be resolved by the store.
// The seed ID wins over id when set.
func New(id string, seed Seed, now time.Time, ttl time.Duration) *Session {
	if seed.ID != "" {
		id = seed.ID
	}
	return &Session{
		ID:           id,
		Status:       StatusPending,
		CodeVerifier: seed.CodeVerifier,
		RedirectURI:  seed.RedirectURI,
		Metadata:     seed.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		TTL:          TTL{Seconds: int64(ttl / time.Second), Valid: true},
	}
}

// IsExpired reports whether expires_at has passed. Records without an
// expires_at rely on the store's native expiry alone.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Update is a partial patch. Nil fields are left untouched; an empty string
// clears Code or Error.
type Update struct {
	Status          *Status
	Code            *string
	Error           *string
	RedirectURI     *string
	PlatformSession *PlatformCredentials
	Metadata        map[string]string
}

// Apply merges u into the session. The patch wins on conflicts. Code and
// Error are kept mutually exclusive and platform credentials only survive on
// an authenticated session. With extend set, expires_at moves to now+lifetime.
func (s *Session) Apply(u Update, now time.Time, extend bool, lifetime time.Duration) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.RedirectURI != nil {
		s.RedirectURI = *u.RedirectURI
	}
	if u.Code != nil {
		s.Code = *u.Code
		if s.Code != "" {
			s.Error = ""
		}
	}
	if u.Error != nil {
		s.Error = *u.Error
		if s.Error != "" {
			s.Code = ""
		}
	}
	if u.PlatformSession != nil {
		creds := *u.PlatformSession
		s.PlatformSession = &creds
	}
	if s.Status != StatusAuthenticated {
		s.PlatformSession = nil
	}
	for k, v := range u.Metadata {
		if s.Metadata == nil {
			s.Metadata = make(map[string]string, len(u.Metadata))
		}
		s.Metadata[k] = v
	}
	s.UpdatedAt = now
	if extend {
		s.ExpiresAt = now.Add(lifetime)
		s.TTL = TTL{Seconds: int64(lifetime / time.Second), Valid: true}
	}
}

// Marshal encodes the stored form.
func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes a stored record.
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TTL is the ttl field of a stored record. Records written by other clients
// may carry a string or garbage here, which decodes as Valid=false rather
// than failing the whole record.
type TTL struct {
	Seconds int64
	Valid   bool
}

func (t TTL) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.Seconds, 10), nil
}

func (t *TTL) UnmarshalJSON(data []byte) error {
	*t = TTL{}
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		data = data[1 : len(data)-1]
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	*t = TTL{Seconds: int64(f), Valid: true}
	return nil
}

func (t TTL) Duration() time.Duration {
	return time.Duration(t.Seconds) * time.Second
}
