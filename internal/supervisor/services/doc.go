// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package services provides suture.Service wrappers for guard components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern:

  - GuardServerService: binds the listen address, Serve/Shutdown
  - SweeperService: a ticker calling Sweep on the validator

Serve returns ctx.Err() on normal shutdown so that suture does not restart
the service.
*/
package services
