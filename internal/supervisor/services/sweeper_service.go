// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package services

import (
	"context"
	"time"

	"github.com/tomtom215/reqguard/internal/logging"
)

// Sweeper removes idle per-identifier state. Satisfied by *guard.Validator.
type Sweeper interface {
	Sweep() int
}

// SweeperService calls Sweep on a fixed interval.
type SweeperService struct {
	sweeper  Sweeper
	interval time.Duration
	name     string
}

// NewSweeperService creates the service. A non-positive interval means 1m.
func NewSweeperService(sweeper Sweeper, interval time.Duration) *SweeperService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweeperService{
		sweeper:  sweeper,
		interval: interval,
		name:     "state-sweeper",
	}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.sweeper.Sweep(); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("Swept idle identifiers")
			}
		}
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *SweeperService) String() string {
	return s.name
}
