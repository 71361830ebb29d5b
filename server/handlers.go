package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/auth"
	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/rs/zerolog/log"
)

const healthServerName = "oauth-callback"

var callbackTemplate = template.Must(ParseTemplate("callback.html"))

type callbackPage struct {
	Success bool
	Title   string
	Message string
	User    string
}

func successPage(creds *sessions.PlatformCredentials) callbackPage {
	p := callbackPage{
		Success: true,
		Title:   "¡Autorización exitosa!",
		Message: "Tu cuenta ha sido autenticada correctamente.",
	}
	if creds != nil {
		p.User = creds.Name
		if creds.Email != "" {
			p.User += " (" + creds.Email + ")"
		}
	}
	return p
}

func failurePage(message string) callbackPage {
	return callbackPage{Title: "Error de autorización", Message: message}
}

func (s *Server) renderCallback(w http.ResponseWriter, status int, page callbackPage) {
	var buf bytes.Buffer
	if err := callbackTemplate.Execute(&buf, page); err != nil {
		log.Err(err).Msg("failed to render callback page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// CallbackHandler receives the provider redirect. It always answers with a
// terminal HTML page since a browser tab is the only consumer.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := auth.CallbackParams{
			SessionID:        r.PathValue("session_id"),
			Code:             q.Get("code"),
			Error:            q.Get("error"),
			ErrorDescription: q.Get("error_description"),
			State:            q.Get("state"),
		}

		sess, err := s.flow.HandleCallback(r.Context(), params)
		if err != nil {
			// A reload after the flow finished still shows the outcome.
			if errors.Is(err, ierrors.ErrSessionClosed) && sess != nil && sess.Status == sessions.StatusAuthenticated {
				s.renderCallback(w, http.StatusOK, successPage(sess.PlatformSession))
				return
			}
			s.callbackFailed(w, err)
			return
		}

		if !s.config.GetCallbackCompletesFlow() {
			s.renderCallback(w, http.StatusOK, callbackPage{
				Success: true,
				Title:   "¡Autorización recibida!",
				Message: "Vuelve a tu asistente para terminar el inicio de sesión.",
			})
			return
		}

		result, err := s.flow.VerifySession(r.Context(), params.SessionID)
		if err != nil {
			s.callbackFailed(w, err)
			return
		}
		s.renderCallback(w, http.StatusOK, successPage(result.Credentials))
	}
}

func (s *Server) callbackFailed(w http.ResponseWriter, err error) {
	status, message := describeFailure(err)
	if status >= http.StatusInternalServerError {
		log.Err(err).Str("code", ierrors.Code(err)).Msg("callback failed")
	} else {
		log.Info().Err(err).Str("code", ierrors.Code(err)).Msg("callback rejected")
	}
	s.renderCallback(w, status, failurePage(message))
}

// describeFailure maps a flow error onto a status and a message fit for the
// browser. Provider payloads are never echoed beyond the OAuth error code.
func describeFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ierrors.ErrSessionNotFound):
		return http.StatusNotFound, "Sesión no encontrada o expirada."
	case errors.Is(err, ierrors.ErrTimeout):
		return http.StatusNotFound, "La sesión expiró antes de completar la autorización."
	case errors.Is(err, ierrors.ErrStateMismatch):
		return http.StatusBadRequest, "Error de validación de estado."
	case errors.Is(err, ierrors.ErrSessionClosed):
		return http.StatusBadRequest, "Esta autorización ya fue procesada."
	case errors.Is(err, ierrors.ErrAuthorization):
		return http.StatusBadRequest, "Google no autorizó el acceso."
	case errors.Is(err, ierrors.ErrIdentityExchangeFailed):
		return http.StatusBadGateway, "No se pudo iniciar sesión en AveOnline con este correo."
	case errors.Is(err, ierrors.ErrVerification):
		return http.StatusBadGateway, "No se pudo verificar la identidad de Google."
	case errors.Is(err, ierrors.ErrTokenExchange):
		return http.StatusBadGateway, "No se pudo completar el intercambio con Google."
	case errors.Is(err, ierrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Servicio temporalmente no disponible."
	}
	return http.StatusInternalServerError, "Error interno del servidor."
}

type sessionSummary struct {
	Status    sessions.Status `json:"status"`
	HasCode   bool            `json:"has_code"`
	HasError  bool            `json:"has_error"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	IsExpired bool            `json:"is_expired"`
	AveID     *int64          `json:"ave_id"`
}

type sessionsResponse struct {
	Timestamp      float64                   `json:"timestamp"`
	DateTime       string                    `json:"date_time"`
	ActiveSessions int                       `json:"active_sessions"`
	Sessions       map[string]sessionSummary `json:"sessions"`
}

// SessionsHandler lists active sessions in debug mode only. Codes, verifiers
// and platform tokens are never included.
func (s *Server) SessionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.IsDebug() {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Endpoint no disponible"})
			return
		}

		active, err := s.flow.ListActiveSessions(r.Context())
		if err != nil {
			log.Err(err).Msg("failed to list sessions")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "Error interno"})
			return
		}

		now := s.nowTime()
		resp := sessionsResponse{
			Timestamp:      float64(now.UnixMilli()) / 1e3,
			DateTime:       now.UTC().Format(time.RFC3339Nano),
			ActiveSessions: len(active),
			Sessions:       make(map[string]sessionSummary, len(active)),
		}
		for id, sess := range active {
			summary := sessionSummary{
				Status:    sess.Status,
				HasCode:   sess.Code != "",
				HasError:  sess.Error != "",
				CreatedAt: sess.CreatedAt,
				ExpiresAt: sess.ExpiresAt,
				IsExpired: sess.IsExpired(now),
			}
			if sess.PlatformSession != nil {
				aveID := sess.PlatformSession.ID
				summary.AveID = &aveID
			}
			resp.Sessions[id] = summary
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	payload := map[string]string{
		"status":  "healthy",
		"server":  healthServerName,
		"version": s.config.GetVersion(),
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.renderCallback(w, http.StatusNotFound, failurePage("Página no encontrada."))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to write json response")
	}
}
