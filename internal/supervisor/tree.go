// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer selects the child supervisor a service runs under. Layers restart
// independently, so a crashing audit writer never drops the listener.
type Layer int

const (
	// StateLayer holds the audit writer and the idle-state sweeper.
	StateLayer Layer = iota
	// APILayer holds the guard server.
	APILayer

	layerCount
)

func (l Layer) String() string {
	switch l {
	case StateLayer:
		return "state-layer"
	case APILayer:
		return "api-layer"
	default:
		return "unknown-layer"
	}
}

// TreeConfig tunes suture's restart backoff. Zero fields take suture's defaults.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64 // seconds
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultTreeConfig returns suture's own defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) spec() suture.Spec {
	d := DefaultTreeConfig()
	pick := func(v, def float64) float64 {
		if v <= 0 {
			return def
		}
		return v
	}
	pickDur := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return suture.Spec{
		FailureThreshold: pick(c.FailureThreshold, d.FailureThreshold),
		FailureDecay:     pick(c.FailureDecay, d.FailureDecay),
		FailureBackoff:   pickDur(c.FailureBackoff, d.FailureBackoff),
		Timeout:          pickDur(c.ShutdownTimeout, d.ShutdownTimeout),
	}
}

// Tree is the guard's supervision tree: a root named "reqguard" with one
// child supervisor per Layer.
type Tree struct {
	root   *suture.Supervisor
	layers [layerCount]*suture.Supervisor
	spec   suture.Spec
}

// NewTree builds the tree. Supervisor events are logged through sutureslog.
func NewTree(logger *slog.Logger, cfg TreeConfig) *Tree {
	t := &Tree{spec: cfg.spec()}

	// MustHook has a pointer receiver.
	hook := &sutureslog.Handler{Logger: logger}
	rootSpec := t.spec
	rootSpec.EventHook = hook.MustHook()
	t.root = suture.New("reqguard", rootSpec)

	// Children inherit the root's EventHook when added.
	for l := range layerCount {
		t.layers[l] = suture.New(l.String(), t.spec)
		t.root.Add(t.layers[l])
	}
	return t
}

// Add runs svc under the given layer.
func (t *Tree) Add(l Layer, svc suture.Service) suture.ServiceToken {
	return t.layers[l].Add(svc)
}

// Serve blocks until ctx is canceled or the root gives up.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree. The channel receives exactly one value
// and is never closed.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
