// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tomtom215/reqguard/internal/config"
	"github.com/tomtom215/reqguard/internal/guard"
	"github.com/tomtom215/reqguard/internal/logging"
)

// reloader swaps guard settings from the config file. Only the guard
// section is reloaded; listener, backend and audit settings need a restart.
type reloader struct {
	mu       sync.Mutex
	path     string
	settings *guard.AtomicSettings
	load     func(path string) (*config.Config, error)
}

func newReloader(path string, settings *guard.AtomicSettings) *reloader {
	return &reloader{path: path, settings: settings, load: config.LoadFile}
}

// Reload reads the config again. A config that fails to load or validate
// keeps the current settings.
func (r *reloader) Reload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := r.load(r.path)
	if err != nil {
		logging.Error().Err(err).Str("path", r.path).Msg("Config reload failed, keeping current guard settings")
		return
	}
	r.settings.Store(guard.SettingsFromConfig(cfg.Guard))
	logging.Info().Str("path", r.path).Msg("Guard settings reloaded")
}

// watchSIGHUP reloads on every SIGHUP until ctx is done.
func (r *reloader) watchSIGHUP(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logging.Info().Msg("Received SIGHUP")
				r.Reload()
			}
		}
	}()
}

// watchFile reloads whenever the config file changes.
func (r *reloader) watchFile() {
	if r.path == "" {
		logging.Warn().Msg("Config watching enabled but no config file was found")
		return
	}
	if err := config.WatchConfigFile(r.path, r.Reload); err != nil {
		logging.Warn().Err(err).Str("path", r.path).Msg("Failed to watch config file")
		return
	}
	logging.Info().Str("path", r.path).Msg("Watching config file for guard settings")
}
