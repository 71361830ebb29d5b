package auth

import (
	"context"
	"fmt"

	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/rs/zerolog/log"
)

// CallbackParams are the values the provider redirect carries.
type CallbackParams struct {
	SessionID        string
	Code             string
	Error            string
	ErrorDescription string
	State            string
}

// HandleCallback records the outcome of the browser leg on the session. Only
// a session still awaiting its callback accepts one, checked atomically with
// the write so a concurrent EXPIRED is never overwritten. A callback that
// arrives after the handshake window expires the session instead. The
// returned session is the stored record after the call, also on the error
// paths.
func (s *OAuthService) HandleCallback(ctx context.Context, p CallbackParams) (*sessions.Session, error) {
	sess, err := s.sessions.Get(ctx, p.SessionID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService HandleCallback] %w", err)
	}
	if !sess.Status.IsAwaitingCallback() {
		return sess, ierrors.Wrapf(ierrors.ErrSessionClosed, "[OAuthService HandleCallback] session %s is %s", p.SessionID, sess.Status)
	}
	if s.windowRemaining(sess) <= 0 {
		log.Info().Str("session_id", p.SessionID).Msg("callback arrived after the authorization window")
		sess, expired, err := s.expireSession(ctx, p.SessionID)
		if err != nil {
			return nil, fmt.Errorf("[OAuthService HandleCallback] %w", err)
		}
		if !expired {
			return sess, ierrors.Wrapf(ierrors.ErrSessionClosed, "[OAuthService HandleCallback] session %s is %s", p.SessionID, sess.Status)
		}
		return sess, ierrors.Wrapf(ierrors.ErrTimeout, "[OAuthService HandleCallback] session %s", p.SessionID)
	}

	switch {
	case p.State != "" && p.State != p.SessionID:
		log.Warn().Str("session_id", p.SessionID).Msg("callback state does not match session, rejecting code")
		sess, err = s.recordCallback(ctx, p.SessionID, sessions.StatusError, "", StateMismatchMessage)
		if err != nil {
			return sess, err
		}
		return sess, fmt.Errorf("[OAuthService HandleCallback] %w", ierrors.Join(ierrors.ErrStateMismatch, ierrors.ErrAuthorization))

	case p.Error != "":
		msg := p.Error
		if p.ErrorDescription != "" {
			msg = p.Error + ": " + p.ErrorDescription
		}
		log.Info().Str("session_id", p.SessionID).Str("error", msg).Msg("provider returned an authorization error")
		sess, err = s.recordCallback(ctx, p.SessionID, sessions.StatusError, "", msg)
		if err != nil {
			return sess, err
		}
		return sess, fmt.Errorf("[OAuthService HandleCallback] %w: %s", ierrors.ErrAuthorization, msg)

	case p.Code == "":
		sess, err = s.recordCallback(ctx, p.SessionID, sessions.StatusError, "", NoCodeMessage)
		if err != nil {
			return sess, err
		}
		return sess, fmt.Errorf("[OAuthService HandleCallback] %w: %s", ierrors.ErrAuthorization, NoCodeMessage)
	}

	sess, err = s.recordCallback(ctx, p.SessionID, sessions.StatusCompleted, p.Code, "")
	if err != nil {
		return sess, err
	}
	log.Info().Str("session_id", p.SessionID).Msg("authorization code received")
	return sess, nil
}

// recordCallback moves an awaiting session to status. When the session left
// the awaiting states in the meantime it is returned with ErrSessionClosed.
func (s *OAuthService) recordCallback(ctx context.Context, sessionID string, status sessions.Status, code, errMsg string) (*sessions.Session, error) {
	sess, ok, err := s.sessions.UpdateIf(ctx, sessionID, sessions.AwaitingCallback, sessions.StatusUpdate(status, code, errMsg), false)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService HandleCallback] record %s: %w", status, err)
	}
	if sess == nil {
		return nil, ierrors.Wrapf(ierrors.ErrSessionNotFound, "[OAuthService HandleCallback] session %s", sessionID)
	}
	if !ok {
		log.Warn().Str("session_id", sessionID).Str("status", sess.Status.String()).Msg("session closed before the callback was recorded")
		return sess, ierrors.Wrapf(ierrors.ErrSessionClosed, "[OAuthService HandleCallback] session %s is %s", sessionID, sess.Status)
	}
	s.metrics.IncTransition(status.String())
	return sess, nil
}
