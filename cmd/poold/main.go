package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pooledger/config"
	"pooledger/observability/logging"
	telemetry "pooledger/observability/otel"
)

func main() {
	configFile := flag.String("config", "./poold.toml", "Path to the configuration file (.toml or .yaml)")
	listen := flag.String("listen", "", "Override the HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if addr := strings.TrimSpace(*listen); addr != "" {
		cfg.Node.ListenAddress = addr
	}

	env := cfg.Env
	if override := strings.TrimSpace(os.Getenv("POOLEDGER_ENV")); override != "" {
		env = override
	}
	logger := logging.SetupWithOptions("poold", env, cfg.Logging)
	logger.Info("configuration loaded", startupAttrs(cfg)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "poold", env, cfg.Telemetry)
	if err != nil {
		logger.Error("telemetry init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("poold exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// startupAttrs summarizes the loaded configuration. Credentials, keystore
// paths and exporter headers are masked.
func startupAttrs(cfg *config.Config) []any {
	headers := make([]any, 0, len(cfg.Telemetry.Headers))
	for key, value := range cfg.Telemetry.Headers {
		headers = append(headers, slog.String(key, logging.MaskValue(value)))
	}
	return []any{
		slog.String("env", cfg.Env),
		slog.String("listen", cfg.Node.ListenAddress),
		slog.String("database", cfg.Node.Database),
		slog.String("journal_driver", cfg.Journal.Driver),
		logging.MaskField("journal_dsn", cfg.Journal.DSN),
		logging.MaskField("mint_keystore", cfg.Token.MintKeystore),
		slog.Bool("auth", cfg.API.Auth.Enabled),
		logging.MaskField("auth_secret", cfg.API.Auth.HMACSecret),
		slog.Bool("telemetry", cfg.Telemetry.Enabled),
		slog.String("telemetry_endpoint", cfg.Telemetry.Endpoint),
		slog.Group("telemetry_headers", headers...),
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	n, err := buildNode(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := n.Close(); err != nil {
			logger.Warn("shutdown cleanup failed", slog.Any("error", err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Node.ListenAddress,
		Handler:           n.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening",
			slog.String("addr", cfg.Node.ListenAddress),
			slog.String("program", n.exec.LendingProgram().String()),
			slog.String("vault", n.exec.VaultSigner().Key().String()),
			slog.String("airdrop_vault", n.exec.AirdropVaultSigner().Key().String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Node.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
