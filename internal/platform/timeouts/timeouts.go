// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// HealthProbe caps one collaborator health check issued by the coordinator.
const HealthProbe = 3 * time.Second

// CollaboratorRequest caps one HTTP call between a collaborator and the coordinator.
const CollaboratorRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebSocketWrite caps a single frame write to a live connection.
const WebSocketWrite = 10 * time.Second
