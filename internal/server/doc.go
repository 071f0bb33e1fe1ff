// Package server provides the local status API for watched jobs.
//
// This package is internal to jobpoll and handles all HTTP concerns of
// the `jobpoll watch --listen` mode:
//
//   - REST API: JSON snapshot of all tracked jobs at "/api/jobs" and a
//     single job at "/api/jobs/{handle}"
//   - Server-Sent Events: real-time observation stream at "/api/events"
//   - Liveness: "/healthz"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the jobpoll library should not need to interact with this
// package directly.
package server
