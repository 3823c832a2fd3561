/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the proxy
backend, tracking inbound HTTP requests, upstream origin fetches, rewrite
throughput, WebSocket relays, and reader extractions.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

Metrics are exported on /metrics in Prometheus text format.
*/
package monitoring
