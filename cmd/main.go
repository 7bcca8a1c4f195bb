package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meetwire/signal-service/config"
	"github.com/meetwire/signal-service/internal/metrics"
	"github.com/meetwire/signal-service/internal/postgres"
	"github.com/meetwire/signal-service/internal/service"
	httpx "github.com/meetwire/signal-service/internal/transport/http"
	"github.com/meetwire/signal-service/internal/transport/ws"
	"github.com/meetwire/signal-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting signal-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- persistence sink (optional) ---
	var (
		sessionSink service.SessionSink
		streamSink  service.StreamSink
	)
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		sessionSink = postgres.NewSessionRepository(pool)
		streamSink = postgres.NewStreamRepository(pool)
	} else {
		slog.Warn("no postgres dsn configured, running in-memory only")
	}

	// --- metrics ---
	met := metrics.New()

	// --- services ---
	streamSvc := service.NewStreamService(streamSink, met, cfg.StreamRetention())
	sessionSvc := service.NewSessionService(sessionSink, met, cfg.Sessions.DefaultMaxParticipants)
	sessionSvc.SetStreamStopper(streamSvc)

	go streamSvc.Run(ctx, cfg.SweepInterval())

	// --- WS hub, registry & server ---
	hub := ws.NewHub()
	reg := ws.NewRegistry()
	wsServer := ws.NewServer(hub, reg, sessionSvc, streamSvc, met)
	wsServer.SetPingInterval(cfg.PingInterval())

	// --- HTTP ---
	handler := httpx.NewHandler(sessionSvc, streamSvc)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
