package mcptools

import (
	"context"
	"strings"

	"github.com/jrsteele09/ave-oauth-bridge/auth"
	ierrors "github.com/jrsteele09/ave-oauth-bridge/internal/errors"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const (
	ToolOAuthLogin    = "oauth_login"
	ToolVerifySession = "verify_oauth_session"
	ToolSessionStatus = "session_status"

	openLinkMessage  = "Abre este enlace en tu navegador para iniciar el flujo de autenticación OAuth"
	retryLinkMessage = "Abre este enlace en tu navegador para iniciar el flujo de autenticación OAuth y vuelve a intentarlo cuando se complete el flujo"
)

// Flow is the part of the OAuth flow the tools expose.
type Flow interface {
	CreateAuthorizationRequest(ctx context.Context) (*auth.AuthorizationRequest, error)
	VerifySession(ctx context.Context, sessionID string) (*auth.VerifyResult, error)
	GetActiveSession(ctx context.Context, sessionToken string) (*sessions.PlatformCredentials, error)
}

var _ Flow = (*auth.OAuthService)(nil)

// Result is the structured payload every tool returns. Failures are reported
// in-band with Error set, never as protocol errors.
type Result struct {
	Error        bool   `json:"error" jsonschema:"true when the call failed"`
	Message      string `json:"message" jsonschema:"human readable outcome"`
	Code         string `json:"code,omitempty" jsonschema:"machine readable error code"`
	SessionToken string `json:"session_token,omitempty" jsonschema:"session token to present to authenticated tools"`
	OAuthURL     string `json:"oauth_url,omitempty" jsonschema:"URL to open in a browser to sign in with Google"`
	User         *User  `json:"user,omitempty" jsonschema:"authenticated AveOnline user"`
}

type User struct {
	Email        string `json:"email" jsonschema:"user email"`
	Name         string `json:"name" jsonschema:"user display name"`
	AveID        int64  `json:"ave_id" jsonschema:"AveOnline user id"`
	EnterpriseID int64  `json:"enterprise_id" jsonschema:"AveOnline enterprise id"`
}

type LoginInput struct{}

type SessionInput struct {
	SessionToken string `json:"session_token" jsonschema:"session token returned by oauth_login"`
}

func newUser(creds *sessions.PlatformCredentials) *User {
	if creds == nil {
		return nil
	}
	return &User{
		Email:        creds.Email,
		Name:         creds.Name,
		AveID:        creds.ID,
		EnterpriseID: creds.IDEnterprise,
	}
}

func failure(err error, sessionToken string) Result {
	return Result{
		Error:        true,
		Message:      failureMessage(err),
		Code:         ierrors.Code(err),
		SessionToken: sessionToken,
	}
}

// failureMessage keeps provider and platform payloads out of tool results.
func failureMessage(err error) string {
	switch {
	case ierrors.Is(err, ierrors.ErrSessionNotFound):
		return "La sesión no existe o ha expirado. Usa oauth_login para iniciar una nueva."
	case ierrors.Is(err, ierrors.ErrTimeout):
		return "Tiempo de espera agotado esperando la autorización."
	case ierrors.Is(err, ierrors.ErrStateMismatch):
		return "Error de validación de estado en la autorización."
	case ierrors.Is(err, ierrors.ErrSessionClosed):
		return "La sesión ya fue procesada."
	case ierrors.Is(err, ierrors.ErrAuthorization):
		return "Google no autorizó el acceso."
	case ierrors.Is(err, ierrors.ErrTokenExchange):
		return "No se pudo completar el intercambio con Google."
	case ierrors.Is(err, ierrors.ErrVerification):
		return "No se pudo verificar la identidad de Google."
	case ierrors.Is(err, ierrors.ErrIdentityExchangeFailed):
		return "No se pudo iniciar sesión en AveOnline con este correo."
	case ierrors.Is(err, ierrors.ErrStoreUnavailable):
		return "Servicio temporalmente no disponible."
	}
	return "Error interno del servidor."
}

func LoginTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolOAuthLogin,
		Description: "Genera una URL para autenticarse con Google y un session_token. " +
			"Abre la URL en el navegador y luego usa verify_oauth_session con el session_token.",
	}
}

func LoginHandler(flow Flow) mcp.ToolHandlerFor[LoginInput, Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ LoginInput) (*mcp.CallToolResult, Result, error) {
		req, err := flow.CreateAuthorizationRequest(ctx)
		if err != nil {
			log.Err(err).Msg("oauth_login failed")
			return nil, failure(err, ""), nil
		}
		return nil, Result{
			Message:      openLinkMessage,
			SessionToken: req.SessionID,
			OAuthURL:     req.URL,
		}, nil
	}
}

func VerifyTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolVerifySession,
		Description: "Espera a que el usuario complete la autorización de Google para el session_token " +
			"y devuelve el usuario de AveOnline autenticado.",
	}
}

func VerifyHandler(flow Flow) mcp.ToolHandlerFor[SessionInput, Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SessionInput) (*mcp.CallToolResult, Result, error) {
		token := strings.TrimSpace(in.SessionToken)
		if token == "" {
			return nil, failure(ierrors.ErrSessionNotFound, ""), nil
		}
		res, err := flow.VerifySession(ctx, token)
		if err != nil {
			log.Info().Err(err).Str("session_id", token).Str("code", ierrors.Code(err)).Msg("verify_oauth_session failed")
			return nil, failure(err, token), nil
		}
		return nil, Result{
			Message:      "Autenticación completada",
			SessionToken: token,
			User:         newUser(res.Credentials),
		}, nil
	}
}

func StatusTool() *mcp.Tool {
	return &mcp.Tool{
		Name: ToolSessionStatus,
		Description: "Consulta si el session_token tiene una sesión de AveOnline activa. " +
			"Si no la tiene devuelve una nueva URL de autenticación.",
	}
}

// StatusHandler answers with the active user, or starts a new handshake when
// the token has no authenticated session behind it.
func StatusHandler(flow Flow) mcp.ToolHandlerFor[SessionInput, Result] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in SessionInput) (*mcp.CallToolResult, Result, error) {
		token := strings.TrimSpace(in.SessionToken)
		creds, err := flow.GetActiveSession(ctx, token)
		if err == nil {
			return nil, Result{
				Message:      "Sesión activa",
				SessionToken: token,
				User:         newUser(creds),
			}, nil
		}
		if !ierrors.Is(err, ierrors.ErrSessionNotFound) {
			log.Err(err).Str("session_id", token).Msg("session_status failed")
			return nil, failure(err, token), nil
		}

		req, err := flow.CreateAuthorizationRequest(ctx)
		if err != nil {
			log.Err(err).Msg("session_status could not start a new handshake")
			return nil, failure(err, ""), nil
		}
		return nil, Result{
			Error:        true,
			Message:      retryLinkMessage,
			Code:         ierrors.CodeSessionNotFound,
			SessionToken: req.SessionID,
			OAuthURL:     req.URL,
		}, nil
	}
}
