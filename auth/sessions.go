package auth

import (
	"context"
	"errors"
	"fmt"

	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
)

// CompleteSession stores platform credentials on a session, marks it
// authenticated and extends it to the long lived session lifetime.
func (s *OAuthService) CompleteSession(ctx context.Context, sessionID string, creds *sessions.PlatformCredentials) error {
	if creds == nil {
		return errors.New("[OAuthService CompleteSession] credentials are required")
	}
	status := sessions.StatusAuthenticated
	noCode := ""
	ok, err := s.sessions.Update(ctx, sessionID, sessions.Update{
		Status:          &status,
		Code:            &noCode,
		PlatformSession: creds,
	}, true)
	if err != nil {
		return fmt.Errorf("[OAuthService CompleteSession] %w", err)
	}
	if !ok {
		return ierrors.Wrapf(ierrors.ErrSessionNotFound, "[OAuthService CompleteSession] session %s", sessionID)
	}
	s.metrics.IncTransition(status.String())
	return nil
}

// GetActiveSession returns the platform credentials behind a session token,
// or ErrSessionNotFound unless the session is authenticated and unexpired.
func (s *OAuthService) GetActiveSession(ctx context.Context, sessionToken string) (*sessions.PlatformCredentials, error) {
	if sessionToken == "" {
		return nil, ierrors.Wrapf(ierrors.ErrSessionNotFound, "[OAuthService GetActiveSession] empty session token")
	}
	sess, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService GetActiveSession] %w", err)
	}
	if sess.Status != sessions.StatusAuthenticated || sess.PlatformSession == nil || sess.IsExpired(s.nowTime()) {
		return nil, ierrors.Wrapf(ierrors.ErrSessionNotFound, "[OAuthService GetActiveSession] session %s is %s", sessionToken, sess.Status)
	}
	return sess.PlatformSession, nil
}

func (s *OAuthService) GetSession(ctx context.Context, sessionID string) (*sessions.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService GetSession] %w", err)
	}
	return sess, nil
}

// ListActiveSessions is for diagnostics; the records are unredacted.
func (s *OAuthService) ListActiveSessions(ctx context.Context) (map[string]*sessions.Session, error) {
	active, err := s.sessions.ScanActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService ListActiveSessions] %w", err)
	}
	return active, nil
}
