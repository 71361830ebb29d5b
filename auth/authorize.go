package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// AuthorizationRequest is what a caller needs to send the user to consent.
type AuthorizationRequest struct {
	URL           string
	SessionID     string
	CodeChallenge string
}

// CreateAuthorizationRequest creates a pending session holding a fresh PKCE
// verifier and returns the provider URL. The session id is the OAuth state.
func (s *OAuthService) CreateAuthorizationRequest(ctx context.Context) (*AuthorizationRequest, error) {
	verifier := oauth2.GenerateVerifier()
	sessionID := uuid.NewString()
	redirectURI := s.RedirectURI(sessionID)

	seed := sessions.Seed{ID: sessionID, CodeVerifier: verifier, RedirectURI: redirectURI}
	if _, err := s.sessions.Create(ctx, seed, s.pendingTTL()); err != nil {
		return nil, fmt.Errorf("[OAuthService CreateAuthorizationRequest] create session: %w", err)
	}
	s.metrics.IncTransition(sessions.StatusPending.String())

	authURL := s.oauthConfig(redirectURI).AuthCodeURL(sessionID,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	log.Info().Str("session_id", sessionID).Dur("expires_in", s.handshakeTimeout).Msg("authorization request created")
	return &AuthorizationRequest{
		URL:           authURL,
		SessionID:     sessionID,
		CodeChallenge: DeriveCodeChallenge(verifier),
	}, nil
}

// pendingTTL keeps the record readable past the handshake window so the
// waiting caller can still observe it and mark it EXPIRED.
func (s *OAuthService) pendingTTL() time.Duration {
	return s.handshakeTimeout + s.pollInterval + handshakeGrace
}

// RedirectURI is the callback address registered for a session.
func (s *OAuthService) RedirectURI(sessionID string) string {
	return strings.TrimRight(s.callbackBaseURL, "/") + "/callback/" + url.PathEscape(sessionID)
}
