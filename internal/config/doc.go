// Package config provides 12-factor configuration management for the
// Porthole backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Proxy: embedding proxy settings (mount prefix, upstream timeout, rewrite cap)
//   - Reader: article extraction settings (timeout, body cap, retries)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - PROXY_PREFIX, PROXY_UPSTREAM_TIMEOUT, PROXY_MAX_REWRITE_BYTES, PROXY_SSRF_GUARD
//   - READER_TIMEOUT, READER_MAX_BODY_BYTES, READER_RETRY_MAX
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
