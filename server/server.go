package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/auth"
	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Config is what the callback server reads from the process configuration.
type Config interface {
	config.EnvConfig
	config.CorsConfig
	config.SecurityConfig
	GetCallbackCompletesFlow() bool
}

// FlowController is the part of the OAuth flow the callback server drives.
type FlowController interface {
	HandleCallback(ctx context.Context, p auth.CallbackParams) (*sessions.Session, error)
	VerifySession(ctx context.Context, sessionID string) (*auth.VerifyResult, error)
	ListActiveSessions(ctx context.Context) (map[string]*sessions.Session, error)
}

var _ FlowController = (*auth.OAuthService)(nil)

type Server struct {
	env      string
	mux      *http.ServeMux
	routes   []string
	config   Config
	flow     FlowController
	limiter  *ipRateLimiter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	nowTime  func() time.Time
}

type Option func(*Server)

// WithMetrics records callback metrics and exposes gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(cfg Config, flow FlowController, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[Server New] config is required")
	}
	if flow == nil {
		return nil, errors.New("[Server New] flow controller is required")
	}

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		flow:    flow,
		nowTime: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = newIPRateLimiter(cfg.GetCallbackRateLimit(), cfg.GetCallbackRateBurst(), s.nowTime)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// ListenAndServe serves on addr until ctx is done, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("callback server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("[Server ListenAndServe] %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[Server ListenAndServe] shutdown: %w", err)
	}
	log.Info().Msg("callback server stopped")
	return nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
