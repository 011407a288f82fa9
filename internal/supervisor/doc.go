// Reqguard - HTTP Request Validation and Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reqguard

/*
Package supervisor runs the guard's long-running services under suture v4.

# Overview

	RootSupervisor ("reqguard")
	├── StateSupervisor ("state-layer")
	│   ├── audit.Logger ("audit-logger")
	│   └── SweeperService ("state-sweeper")
	└── APISupervisor ("api-layer")
	    └── GuardServerService ("guard-server")

Failed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog on the slog adapter of the zerolog logger.

# Usage

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.Add(supervisor.StateLayer, auditLogger)
	tree.Add(supervisor.StateLayer, services.NewSweeperService(validator, time.Minute))
	tree.Add(supervisor.APILayer, services.NewGuardServerService(server, ":8080", 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
