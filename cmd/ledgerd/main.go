// Command ledgerd serves the provenance ledger over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainlogistics/provenance/pkg/api"
	"github.com/chainlogistics/provenance/pkg/audit"
	"github.com/chainlogistics/provenance/pkg/config"
	"github.com/chainlogistics/provenance/pkg/identity"
	"github.com/chainlogistics/provenance/pkg/ledger"
	"github.com/chainlogistics/provenance/pkg/observability"
	"github.com/chainlogistics/provenance/pkg/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("ledgerd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "ledgerd",
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	opts := []ledger.Option{ledger.WithAuditLogger(audit.NewLogger())}
	if cfg.BatchCap > 0 {
		opts = append(opts, ledger.WithBatchCap(cfg.BatchCap))
	}
	svc := ledger.NewService(st, opts...)

	var verifier identity.Verifier
	switch cfg.AuthMode {
	case "jwt":
		verifier = identity.NewTokenVerifier([]byte(cfg.AuthSecret), cfg.AuthIssuer, "ledger")
	default:
		logger.Warn("static auth mode: credentials are not verified cryptographically")
		verifier = identity.StaticVerifier{}
	}

	var limiter api.LimiterStore
	if cfg.RedisAddr != "" {
		limiter = api.NewRedisLimiter(cfg.RedisAddr, cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	} else {
		limiter = api.NewLocalLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	}

	handler := api.NewServer(svc, verifier, limiter, logger).Handler()
	if cfg.OTelEnabled {
		handler = obs.HTTPMiddleware(handler)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return store.OpenPostgres(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
