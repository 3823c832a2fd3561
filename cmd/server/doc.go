// Package main is the entry point for the Porthole proxy backend.
//
// The server hosts the embedding reverse proxy (fetch, rewrite, shim
// injection) and the reader extraction endpoint, fronted by the host
// application's window chrome.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8090
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
