package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Porthole/backend/internal/config"
	"github.com/GriffinCanCode/Porthole/backend/internal/logging"
	"github.com/GriffinCanCode/Porthole/backend/internal/monitoring"
)

// allowedMethods is the verb set advertised and accepted on the proxy
// route family.
const allowedMethods = "GET, HEAD, POST, PUT, PATCH, DELETE, OPTIONS"

// allowedHeaders is the fixed header allow-list advertised on preflight.
const allowedHeaders = "Content-Type, Authorization, Accept, Accept-Language, Origin, Cache-Control, X-Requested-With"

// dropHeaders are upstream headers that never reach the client:
// cookies stay same-site relative to the proxy rather than the
// impersonated origin, and frame-busting policy headers would defeat
// the embedding entirely. Hop-by-hop and length headers are recomputed.
var dropHeaders = map[string]bool{
	"Set-Cookie":                true,
	"Content-Security-Policy":   true,
	"X-Frame-Options":           true,
	"Content-Length":            true,
	"Content-Encoding":          true,
	"Transfer-Encoding":         true,
	"Connection":                true,
	"Keep-Alive":                true,
	"Strict-Transport-Security": true,
}

// Handler serves the proxy route family.
type Handler struct {
	cfg     config.ProxyConfig
	fetcher *Fetcher
	relay   *Relay
	metrics *monitoring.Metrics
	log     *logging.Logger
	guard   func(target string) error
}

// NewHandler wires the proxy endpoint. guard may be nil.
func NewHandler(cfg config.ProxyConfig, metrics *monitoring.Metrics, log *logging.Logger, guard func(string) error) *Handler {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Handler{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.UpstreamTimeout, cfg.UserAgent),
		relay:   NewRelay(metrics, log),
		metrics: metrics,
		log:     log,
		guard:   guard,
	}
}

// Register mounts the route family on the router.
func (h *Handler) Register(r gin.IRouter) {
	grp := r.Group(h.cfg.Prefix)
	grp.Use(h.recoverToJSON())
	grp.Any("/*target", h.Handle)
}

// Handle is the single entry point for every proxied verb.
func (h *Handler) Handle(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		h.preflight(c)
		return
	}

	// The router's wildcard param is already percent-decoded; the
	// escaped path carries the single-encoded remainder, so exactly one
	// decode happens, inside DecodeTarget.
	target, err := DecodeTarget(strings.TrimPrefix(c.Request.URL.EscapedPath(), h.cfg.Prefix))
	switch err {
	case nil:
	case ErrMissingTarget:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing URL"})
		return
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL"})
		return
	}
	target = AppendQuery(target, c.Request.URL.RawQuery)

	if h.guard != nil {
		if err := h.guard(target); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Blocked address", "message": err.Error()})
			return
		}
	}

	if websocket.IsWebSocketUpgrade(c.Request) {
		h.relay.Relay(c, target)
		return
	}

	res, err := h.fetcher.Do(c.Request.Context(), c.Request.Method, target, c.Request.Header, c.Request.Body)
	if err != nil {
		h.metrics.UpstreamErrors.Inc()
		h.log.Warn("upstream fetch failed", zap.String("target", target), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	defer res.Body.Close()
	h.metrics.RecordUpstream(c.Request.Method, fmt.Sprintf("%d", res.Status), res.Duration)

	h.assemble(c, target, res)
}

// assemble sanitizes headers, picks the rewrite path by content type,
// and emits the final response. Non-2xx upstream statuses pass through
// transparently.
func (h *Handler) assemble(c *gin.Context, target string, res *UpstreamResponse) {
	writeCORS(c)
	for key, values := range res.Header {
		if dropHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	c.Header("X-Content-Type-Options", "nosniff")

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", res.ContentType)
		// No body follows and no rewrite changes the size, so the
		// upstream length survives the sanitizing strip.
		if cl := res.Header.Get("Content-Length"); cl != "" {
			c.Header("Content-Length", cl)
		}
		c.Status(res.Status)
		return
	}

	ct := strings.ToLower(res.ContentType)
	switch {
	case strings.HasPrefix(ct, "text/html"):
		h.assembleHTML(c, target, res)
	case strings.HasPrefix(ct, "text/css"):
		h.assembleCSS(c, target, res)
	default:
		// Passthrough streams in constant memory.
		c.Writer.Header().Set("Content-Type", res.ContentType)
		c.Status(res.Status)
		if _, err := io.Copy(c.Writer, res.Body); err != nil {
			h.log.Debug("passthrough aborted", zap.String("target", target), zap.Error(err))
		}
	}
}

func (h *Handler) assembleHTML(c *gin.Context, target string, res *UpstreamResponse) {
	body, err := io.ReadAll(io.LimitReader(res.Body, h.cfg.MaxRewriteBytes))
	if err != nil {
		h.metrics.RewriteErrors.Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	rc, err := NewRewriteContext(target, h.cfg.Prefix)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	out := RewriteHTML(body, rc, BuildShim(h.cfg.Prefix, target))
	h.metrics.RewrittenBytes.WithLabelValues("html").Observe(float64(len(out)))
	c.Data(res.Status, res.ContentType, out)
}

func (h *Handler) assembleCSS(c *gin.Context, target string, res *UpstreamResponse) {
	body, err := io.ReadAll(io.LimitReader(res.Body, h.cfg.MaxRewriteBytes))
	if err != nil {
		h.metrics.RewriteErrors.Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	rc, err := NewRewriteContext(target, h.cfg.Prefix)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	out := rc.RewriteCSS(string(body))
	h.metrics.RewrittenBytes.WithLabelValues("css").Observe(float64(len(out)))
	c.Data(res.Status, res.ContentType, []byte(out))
}

// preflight short-circuits OPTIONS before any upstream call.
func (h *Handler) preflight(c *gin.Context) {
	writeCORS(c)
	c.Header("Access-Control-Max-Age", "86400")
	c.Status(http.StatusNoContent)
}

// writeCORS reflects the caller's origin; the embedded page fetches
// with credentials, which a wildcard origin would break.
func writeCORS(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = "*"
	}
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Methods", allowedMethods)
	c.Header("Access-Control-Allow-Headers", allowedHeaders)
}

// recoverToJSON converts any panic in the route family into the
// generic 502 JSON error; the endpoint never surfaces a raw 500 with
// no body.
func (h *Handler) recoverToJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				h.log.Error("proxy handler panic", zap.Any("panic", r))
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
					"error":   "Proxy error",
					"message": fmt.Sprint(r),
				})
			}
		}()
		c.Next()
	}
}
