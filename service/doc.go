// Package service is the host of the matching engine. It is the only
// write entry point: it serializes operations, runs each one in a single
// pebble batch, journals it and stages its events for the broadcaster.
//
// Transports (gRPC, CLI) and background jobs (crank, snapshots) sit on top
// of it and never touch the store directly.
package service
