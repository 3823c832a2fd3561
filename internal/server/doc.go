// Package server provides HTTP server setup and initialization for the
// Porthole backend.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, request IDs, logging, metrics, rate limiting)
//   - The embedding proxy route family
//   - The reader extraction endpoint
//   - Health and metrics endpoints
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Setup HTTP routes and middleware
//  4. Start HTTP server
//  5. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv := server.New(cfg, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
