// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/reqguard/internal/api"
	"github.com/tomtom215/reqguard/internal/config"
	"github.com/tomtom215/reqguard/internal/logging"
	"github.com/tomtom215/reqguard/internal/middleware"
	"github.com/tomtom215/reqguard/internal/supervisor"
	"github.com/tomtom215/reqguard/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Service:   "reqguard",
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Guard stopped with error")
	}
}

func run(cfg *config.Config) error {
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("upstream", cfg.Server.UpstreamURL).
		Str("ratelimit_backend", cfg.RateLimit.Backend).
		Bool("audit", cfg.Audit.Enabled).
		Msg("Starting reqguard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	resolver, err := middleware.NewClientIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	upstream, err := api.NewUpstreamHandler(cfg.Server.UpstreamURL)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.RouterConfig{
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	}, c.validator, resolver, upstream, c.events, c.checks...)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if c.auditLog != nil {
		tree.Add(supervisor.StateLayer, c.auditLog)
	}
	tree.Add(supervisor.StateLayer, services.NewSweeperService(c.validator, cfg.Guard.State.SweepInterval))
	tree.Add(supervisor.APILayer, services.NewGuardServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout))

	rl := newReloader(config.ConfigFile(), c.settings)
	rl.watchSIGHUP(ctx)
	if cfg.Server.WatchConfig {
		rl.watchFile()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground delivers exactly one result and does not close errCh.
	var runErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		runErr = <-errCh
	case runErr = <-errCh:
		cancel()
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		logging.Error().Err(runErr).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Guard stopped")
	return runErr
}
