// Package api implements the operations HTTP surface of SkyRoute.
//
// This package provides:
//   - Health and status endpoints reporting the broker connection
//   - A paginated view of the delivery-failure journal
//   - An ad-hoc publish endpoint for operators
//   - The Prometheus scrape endpoint
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Endpoints
//
//	GET  /api/v1/health    200 while connected, 503 otherwise
//	GET  /api/v1/status    runtime and router counters
//	GET  /api/v1/failures  journal entries (404 when the journal is disabled)
//	POST /api/v1/publish   publish a text payload
//	GET  /metrics          Prometheus exposition (when metrics are wired)
//
// The server has no authentication; bind it to a loopback or management
// interface.
package api
