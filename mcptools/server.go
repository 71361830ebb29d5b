package mcptools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the OAuth tools over MCP.
type Server struct {
	server *mcp.Server
}

func New(flow Flow, name, version string) (*Server, error) {
	if flow == nil {
		return nil, errors.New("[mcptools New] flow is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	mcp.AddTool(server, LoginTool(), LoginHandler(flow))
	mcp.AddTool(server, VerifyTool(), VerifyHandler(flow))
	mcp.AddTool(server, StatusTool(), StatusHandler(flow))
	return &Server{server: server}, nil
}

// MCPServer returns the underlying server, e.g. to connect custom transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// Run serves on the configured transport until ctx is done or the client
// disconnects. The "none" transport returns immediately.
func (s *Server) Run(ctx context.Context, transport, httpAddr string) error {
	switch transport {
	case config.MCPTransportNone:
		log.Info().Msg("mcp server disabled")
		return nil
	case config.MCPTransportStdio:
		log.Info().Msg("mcp server listening on stdio")
		err := s.server.Run(ctx, &mcp.StdioTransport{})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("[mcptools Run] %w", err)
		}
		return nil
	case config.MCPTransportHTTP:
		return s.serveHTTP(ctx, httpAddr)
	}
	return fmt.Errorf("[mcptools Run] transport %q is not supported", transport)
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("mcp server listening on streamable http")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("[mcptools Run] %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("[mcptools Run] shutdown: %w", err)
	}
	log.Info().Msg("mcp server stopped")
	return nil
}
