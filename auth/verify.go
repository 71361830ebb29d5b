package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/internal/utils"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/jrsteele09/ave-oauth-bridge/token/idtoken"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// VerifyResult is the outcome of a finished handshake. Claims is nil when the
// session had already been authenticated by an earlier call.
type VerifyResult struct {
	SessionID   string
	Credentials *sessions.PlatformCredentials
	Claims      *idtoken.Claims
}

// VerifySession waits for the callback of a session and completes it. The
// wait is bounded by the handshake timeout and by ctx; on timeout the session
// is marked EXPIRED so a late callback cannot revive it.
func (s *OAuthService) VerifySession(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sess, err := s.awaitCallback(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, sess)
}

func (s *OAuthService) awaitCallback(ctx context.Context, sessionID string) (*sessions.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
	}
	if !sess.Status.IsAwaitingCallback() {
		return sess, nil
	}
	remaining := s.windowRemaining(sess)
	if remaining <= 0 {
		return s.expire(ctx, sessionID)
	}

	deadline := time.NewTimer(remaining)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("[OAuthService VerifySession] waiting for session %s: %w", sessionID, ctx.Err())
		case <-deadline.C:
			return s.expire(ctx, sessionID)
		case <-ticker.C:
		}

		sess, err = s.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
		}
		if !sess.Status.IsAwaitingCallback() {
			return sess, nil
		}
	}
}

// windowRemaining is what is left of the handshake window, which opens when
// the session is created rather than when a caller starts waiting.
func (s *OAuthService) windowRemaining(sess *sessions.Session) time.Duration {
	if sess.CreatedAt.IsZero() {
		return s.handshakeTimeout
	}
	return sess.CreatedAt.Add(s.handshakeTimeout).Sub(s.nowTime())
}

// expire marks a session that is still awaiting its callback as EXPIRED. A
// callback that landed first wins and its session is returned.
func (s *OAuthService) expire(ctx context.Context, sessionID string) (*sessions.Session, error) {
	sess, expired, err := s.expireSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
	}
	if !expired {
		return sess, nil
	}
	return nil, ierrors.Wrapf(ierrors.ErrTimeout, "[OAuthService VerifySession] session %s", sessionID)
}

// expireSession moves an awaiting session to EXPIRED atomically. It reports
// false with the current session when the session had already moved on.
func (s *OAuthService) expireSession(ctx context.Context, sessionID string) (*sessions.Session, bool, error) {
	patch := sessions.StatusUpdate(sessions.StatusExpired, "", timeoutMessage)
	sess, ok, err := s.sessions.UpdateIf(ctx, sessionID, sessions.AwaitingCallback, patch, false)
	if err != nil {
		return nil, false, fmt.Errorf("mark session %s expired: %w", sessionID, err)
	}
	if sess == nil {
		return nil, false, ierrors.Wrapf(ierrors.ErrSessionNotFound, "session %s", sessionID)
	}
	if !ok {
		return sess, false, nil
	}
	s.metrics.IncTransition(sessions.StatusExpired.String())
	log.Info().Str("session_id", sessionID).Dur("timeout", s.handshakeTimeout).Msg("authorization window elapsed")
	return sess, true, nil
}

// resolve turns a session that has left the awaiting states into a result.
func (s *OAuthService) resolve(ctx context.Context, sess *sessions.Session) (*VerifyResult, error) {
	switch sess.Status {
	case sessions.StatusAuthenticated:
		if sess.PlatformSession == nil {
			return nil, ierrors.Wrapf(ierrors.ErrSessionNotFound, "[OAuthService VerifySession] session %s has no credentials", sess.ID)
		}
		return &VerifyResult{SessionID: sess.ID, Credentials: sess.PlatformSession}, nil
	case sessions.StatusError:
		return nil, callbackError(sess)
	case sessions.StatusExpired:
		return nil, ierrors.Wrapf(ierrors.ErrTimeout, "[OAuthService VerifySession] session %s", sess.ID)
	case sessions.StatusCompleted:
		return s.completeOnce(ctx, sess.ID)
	}
	return nil, fmt.Errorf("[OAuthService VerifySession] session %s has unknown status %q", sess.ID, sess.Status)
}

// callbackError rebuilds the typed error for a session stored in ERROR.
func callbackError(sess *sessions.Session) error {
	msg := utils.FirstNonEmpty(sess.Error, "authorization failed")
	if msg == StateMismatchMessage {
		return fmt.Errorf("[OAuthService VerifySession] %w", ierrors.Join(ierrors.ErrStateMismatch, ierrors.ErrAuthorization))
	}
	return fmt.Errorf("[OAuthService VerifySession] %w: %s", ierrors.ErrAuthorization, msg)
}

// completeOnce collapses concurrent completions of one session in this
// process, e.g. the callback handler and a polling tool call.
func (s *OAuthService) completeOnce(ctx context.Context, sessionID string) (*VerifyResult, error) {
	ch := s.inflight.DoChan(sessionID, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), completionTimeout)
		defer cancel()
		return s.complete(cctx, sessionID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("[OAuthService VerifySession] completing session %s: %w", sessionID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VerifyResult), nil
	}
}

func (s *OAuthService) complete(ctx context.Context, sessionID string) (*VerifyResult, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
	}
	if sess.Status != sessions.StatusCompleted {
		// Another completion finished between the poll and this flight.
		return s.resolve(ctx, sess)
	}

	result, err := s.redeem(ctx, sess)
	if err != nil {
		s.markFailed(ctx, sessionID, err)
		return nil, err
	}
	return result, nil
}

// redeem exchanges the code, verifies the ID token and logs the verified
// email into the platform.
func (s *OAuthService) redeem(ctx context.Context, sess *sessions.Session) (*VerifyResult, error) {
	token, err := s.oauthConfig(sess.RedirectURI).Exchange(s.clientContext(ctx), sess.Code, oauth2.VerifierOption(sess.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w: %w", ierrors.ErrTokenExchange, err)
	}
	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w: response carried no id_token", ierrors.ErrTokenExchange)
	}

	claims, err := s.verifier.Verify(ctx, rawIDToken, s.clientID)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w: email %q is not verified", ierrors.ErrVerification, claims.Email)
	}
	addr, err := mail.ParseAddress(claims.Email)
	if err != nil {
		return nil, fmt.Errorf("[OAuthService VerifySession] %w: token carries no usable email: %w", ierrors.ErrVerification, err)
	}
	s.enrich(ctx, token, claims)

	creds, err := s.exchange.LoginWithEmail(ctx, addr.Address)
	if err != nil {
		if !errors.Is(err, ierrors.ErrIdentityExchangeFailed) {
			err = fmt.Errorf("%w: %w", ierrors.ErrIdentityExchangeFailed, err)
		}
		return nil, fmt.Errorf("[OAuthService VerifySession] %w", err)
	}

	if err := s.CompleteSession(ctx, sess.ID, creds); err != nil {
		return nil, err
	}
	log.Info().Str("session_id", sess.ID).Str("email", addr.Address).Int64("ave_id", creds.ID).Msg("session authenticated")
	return &VerifyResult{SessionID: sess.ID, Credentials: creds, Claims: claims}, nil
}

// enrich fills profile fields the ID token left out from the userinfo
// endpoint. Failures only cost the extra fields.
func (s *OAuthService) enrich(ctx context.Context, token *oauth2.Token, claims *idtoken.Claims) {
	if s.provider == nil || (claims.Name != "" && claims.Picture != "") {
		return
	}
	info, err := s.provider.UserInfo(s.clientContext(ctx), oauth2.StaticTokenSource(token))
	if err != nil {
		log.Warn().Err(err).Str("sub", claims.Subject).Msg("userinfo lookup failed")
		return
	}
	if info.Subject != claims.Subject {
		log.Warn().Str("sub", claims.Subject).Str("userinfo_sub", info.Subject).Msg("userinfo subject mismatch, ignoring")
		return
	}

	var profile struct {
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
		Locale     string `json:"locale"`
	}
	if err := info.Claims(&profile); err != nil {
		log.Warn().Err(err).Msg("userinfo claims unreadable")
		return
	}
	claims.Name = utils.FirstNonEmpty(claims.Name, profile.Name, strings.TrimSpace(profile.GivenName+" "+profile.FamilyName))
	claims.GivenName = utils.FirstNonEmpty(claims.GivenName, profile.GivenName)
	claims.FamilyName = utils.FirstNonEmpty(claims.FamilyName, profile.FamilyName)
	claims.Picture = utils.FirstNonEmpty(claims.Picture, profile.Picture)
	claims.Locale = utils.FirstNonEmpty(claims.Locale, profile.Locale)
}

// markFailed records a completion failure, but only while the session is
// still COMPLETED so it never clobbers a concurrent success.
func (s *OAuthService) markFailed(ctx context.Context, sessionID string, cause error) {
	patch := sessions.StatusUpdate(sessions.StatusError, "", failureMessage(cause))
	_, ok, err := s.sessions.UpdateIf(ctx, sessionID, []sessions.Status{sessions.StatusCompleted}, patch, false)
	if err != nil {
		log.Err(err).Str("session_id", sessionID).Msg("failed to record completion failure")
		return
	}
	if !ok {
		return
	}
	s.metrics.IncTransition(sessions.StatusError.String())
	log.Warn().Err(cause).Str("session_id", sessionID).Msg("session completion failed")
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ierrors.ErrTokenExchange):
		return ierrors.ErrTokenExchange.Error()
	case errors.Is(err, ierrors.ErrVerification):
		return ierrors.ErrVerification.Error()
	case errors.Is(err, ierrors.ErrIdentityExchangeFailed):
		return ierrors.ErrIdentityExchangeFailed.Error()
	}
	return "session completion failed"
}
