package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/ave-oauth-bridge/auth"
	"github.com/jrsteele09/ave-oauth-bridge/internal/config"
	"github.com/jrsteele09/ave-oauth-bridge/internal/metrics"
	"github.com/jrsteele09/ave-oauth-bridge/mcptools"
	"github.com/jrsteele09/ave-oauth-bridge/platform/aveonline"
	"github.com/jrsteele09/ave-oauth-bridge/server"
	"github.com/jrsteele09/ave-oauth-bridge/sessions"
	"github.com/jrsteele09/ave-oauth-bridge/sessions/redisstore"
	"github.com/jrsteele09/ave-oauth-bridge/token/idtoken"
	"github.com/jrsteele09/ave-oauth-bridge/token/jwks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	policy := redisstore.RetryPolicy{
		Attempts:     c.GetRetryAttempts(),
		InitialDelay: c.GetRetryInitialDelay(),
		Multiplier:   redisstore.DefaultRetryPolicy.Multiplier,
	}
	redisClient, err := redisstore.NewClient(ctx, c, policy)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	store, err := redisstore.New(redisClient,
		redisstore.WithDefaultTTL(c.GetDefaultSessionTTL()),
		redisstore.WithSessionLifetime(c.GetSessionLifetime()),
		redisstore.WithRetryPolicy(policy),
		redisstore.WithMetrics(m),
	)
	if err != nil {
		_ = redisClient.Close()
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Err(err).Msg("failed to close redis client")
		}
	}()

	keyCache := jwks.New(c.GetJWKSURL(),
		jwks.WithRefreshInterval(c.GetJWKSRefreshInterval()),
		jwks.WithFetchTimeout(c.GetJWKSFetchTimeout()),
		jwks.WithMetrics(m),
	)
	defer keyCache.Close()
	if err := keyCache.Warm(ctx); err != nil {
		// Verification refetches lazily, so a cold start is not fatal.
		log.Warn().Err(err).Msg("jwks warm up failed")
	}

	verifier, err := idtoken.NewVerifier(keyCache, c.GetIssuer(), idtoken.WithMetrics(m))
	if err != nil {
		return err
	}
	platform, err := aveonline.NewClient(c)
	if err != nil {
		return err
	}
	flow, err := auth.NewOAuthService(auth.Deps{
		Sessions: store,
		Verifier: verifier,
		Exchange: platform,
		Provider: auth.NewGoogleProvider(ctx, c),
	}, c, auth.WithMetrics(m))
	if err != nil {
		return err
	}

	callbackServer, err := server.New(c, flow, server.WithMetrics(m, registry))
	if err != nil {
		return err
	}
	mcpServer, err := mcptools.New(flow, c.GetAppName(), c.GetVersion())
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return callbackServer.ListenAndServe(gctx, c.GetCallbackAddr(), shutdownTimeout)
	})
	g.Go(func() error {
		err := mcpServer.Run(gctx, c.GetMCPTransport(), c.GetMCPHTTPAddr())
		if err == nil && c.GetMCPTransport() == config.MCPTransportStdio && gctx.Err() == nil {
			// The client closed stdin; nothing is left to serve.
			log.Info().Msg("mcp client disconnected, shutting down")
			stop()
		}
		return err
	})
	g.Go(func() error {
		return sessions.NewSweeper(store, c.GetSweepInterval()).Run(gctx)
	})

	log.Info().
		Str("callback_addr", c.GetCallbackAddr()).
		Str("redirect_base", c.GetCallbackBaseURL()).
		Str("mcp_transport", c.GetMCPTransport()).
		Msg("ave oauth bridge started")

	returnError = g.Wait()
	return returnError
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// Stdout belongs to the MCP stdio transport.
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", c.GetAppName()).Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	figure.Write(os.Stderr, myFigure)
	fmt.Fprintln(os.Stderr)
}
