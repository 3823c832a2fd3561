/*
Package proxy implements the embedding reverse proxy: it fetches an
arbitrary third-party page or resource, rewrites every resource
reference it contains to route back through the proxy mount point, and
injects a runtime shim into HTML responses that keeps dynamic traffic
(fetch, XHR, WebSocket, media APIs, late DOM mutations) proxied after
the initial page load.

The package is stateless per request: decode target, fetch upstream,
classify by content type, rewrite or stream, respond. Nothing is shared
across requests beyond read-only constants.
*/
package proxy
