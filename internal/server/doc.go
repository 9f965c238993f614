// Package server hosts the clipriver API from a single HTTP server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// security headers, CORS, audit, metrics, and auth so handlers all share
// common protections and instrumentation behind one multiplexer.
package server
