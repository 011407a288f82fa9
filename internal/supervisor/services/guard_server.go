// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/reqguard/internal/logging"
)

// Server is the part of *http.Server the service drives.
type Server interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// GuardServerService binds the guard's listen address and serves on it
// until the context is canceled, then drains in-flight requests.
type GuardServerService struct {
	server Server
	addr   string
	drain  time.Duration
	bound  atomic.Value // string
}

// NewGuardServerService serves server on addr. A non-positive drain means 10s.
func NewGuardServerService(server Server, addr string, drain time.Duration) *GuardServerService {
	if drain <= 0 {
		drain = 10 * time.Second
	}
	return &GuardServerService{server: server, addr: addr, drain: drain}
}

// Serve implements suture.Service. A bind failure is returned so the
// supervisor can retry with backoff.
func (s *GuardServerService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.bound.Store(ln.Addr().String())
	logging.Info().Str("addr", ln.Addr().String()).Msg("Guard listening")

	done := make(chan error, 1)
	go func() { done <- s.server.Serve(ln) }()

	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("guard server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
	defer cancel()
	if err := s.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain guard server: %w", err)
	}
	<-done
	logging.Info().Msg("Guard server drained")
	return ctx.Err()
}

// Addr is the bound address, "" before the first successful bind.
func (s *GuardServerService) Addr() string {
	a, _ := s.bound.Load().(string)
	return a
}

// String implements fmt.Stringer for suture's logs.
func (s *GuardServerService) String() string {
	return "guard-server"
}
