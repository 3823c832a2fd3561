// Package middleware provides HTTP middleware for the Gin router:
// CORS for the host-app surface, per-IP rate limiting, and request
// correlation IDs.
package middleware
