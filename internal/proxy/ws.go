package proxy

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Porthole/backend/internal/logging"
	"github.com/GriffinCanCode/Porthole/backend/internal/monitoring"
)

// Relay terminates a browser WebSocket upgrade on the proxy path and
// relays frames to the real origin. The shim rewrites ws:// and wss://
// endpoints onto the proxy path with the http(s) form of the target
// encoded inside, so the relay flips the scheme back before dialing.
type Relay struct {
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	metrics  *monitoring.Metrics
	log      *logging.Logger
}

// NewRelay creates a relay with permissive origin checking; the proxy
// endpoint reflects origins rather than restricting them.
func NewRelay(metrics *monitoring.Metrics, log *logging.Logger) *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialer:  websocket.DefaultDialer,
		metrics: metrics,
		log:     log,
	}
}

// Relay bridges the inbound upgrade to the upstream socket and pumps
// frames in both directions until either side closes.
func (r *Relay) Relay(c *gin.Context, target string) {
	wsTarget := flipScheme(target)

	header := http.Header{}
	if u, err := url.Parse(target); err == nil {
		header.Set("Origin", u.Scheme+"://"+u.Host)
	}

	upstream, resp, err := r.dialer.DialContext(c.Request.Context(), wsTarget, header)
	if err != nil {
		status := http.StatusBadGateway
		if resp != nil && resp.StatusCode > 0 {
			status = resp.StatusCode
		}
		c.JSON(status, gin.H{"error": "Proxy error", "message": err.Error()})
		return
	}
	defer upstream.Close()

	client, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", zap.String("target", target), zap.Error(err))
		return
	}
	defer client.Close()

	r.metrics.RelaysTotal.Inc()
	r.metrics.RelaysActive.Inc()
	defer r.metrics.RelaysActive.Dec()

	errc := make(chan error, 2)
	go pump(client, upstream, errc)
	go pump(upstream, client, errc)
	<-errc
}

// pump copies messages from src to dst until one side fails.
func pump(dst, src *websocket.Conn, errc chan<- error) {
	for {
		kind, payload, err := src.ReadMessage()
		if err != nil {
			dst.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			errc <- err
			return
		}
		if err := dst.WriteMessage(kind, payload); err != nil {
			errc <- err
			return
		}
	}
}

// flipScheme maps the encoded http(s) target back to ws(s).
func flipScheme(target string) string {
	if strings.HasPrefix(target, "https://") {
		return "wss://" + strings.TrimPrefix(target, "https://")
	}
	if strings.HasPrefix(target, "http://") {
		return "ws://" + strings.TrimPrefix(target, "http://")
	}
	return target
}
