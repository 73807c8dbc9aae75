// Package server provides the HTTP server for the Pulsewatch dashboard and API.
//
// This package is internal to Pulsewatch and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML dashboard at "/"
//   - REST API: the status document at "/api/status"
//   - Server-Sent Events: a pulse event after every saved cycle at "/api/sse"
//   - Metrics: Prometheus exposition at "/metrics" when a handler is configured
//
// API routes are wrapped in CORS and Sentry middleware. The server supports
// graceful shutdown via context cancellation, with a 5-second timeout for
// in-flight requests.
//
// Users of the pulsewatch library should not need to interact with this
// package directly. The server is started by [pulsewatch.Pulsewatch.Start].
package server
