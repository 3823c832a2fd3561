package proxy

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
)

// defaultUserAgent is sent when the caller did not supply one; some
// origins refuse or degrade responses for non-browser agents.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// sniffLimit bounds how many bytes are buffered for content-type sniffing.
const sniffLimit = 3072

// Fetcher issues the single outbound request for a proxied call. There
// is no retry: a failed upstream call surfaces directly as a 502.
type Fetcher struct {
	client    *resty.Client
	userAgent string
}

// UpstreamResponse is the corrected upstream result consumed exactly
// once by the response assembler.
type UpstreamResponse struct {
	Status      int
	Header      http.Header
	Body        io.ReadCloser
	ContentType string
	Duration    time.Duration
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetDoNotParseResponse(true).
		SetRetryCount(0)
	return &Fetcher{client: client, userAgent: userAgent}
}

// Do forwards the inbound request to the real origin. The method and
// body pass through verbatim; headers are curated: the caller's own
// User-Agent wins over the browser-like default, Accept and
// Accept-Language are forwarded when present, and Origin/Referer are
// set to the target's own origin and URL, never the host app's.
// Cancellation follows ctx, so an aborted browser request tears down
// the upstream connection promptly.
func (f *Fetcher) Do(ctx context.Context, method, target string, inbound http.Header, body io.Reader) (*UpstreamResponse, error) {
	req := f.client.R().SetContext(ctx)

	ua := inbound.Get("User-Agent")
	if ua == "" {
		ua = f.userAgent
	}
	req.SetHeader("User-Agent", ua)
	for _, h := range []string{"Accept", "Accept-Language", "Content-Type"} {
		if v := inbound.Get(h); v != "" {
			req.SetHeader(h, v)
		}
	}
	if u, err := url.Parse(target); err == nil {
		req.SetHeader("Origin", u.Scheme+"://"+u.Host)
		req.SetHeader("Referer", target)
	}

	if body != nil && method != http.MethodGet && method != http.MethodHead {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, target)
	if err != nil {
		return nil, err
	}

	header := resp.Header().Clone()
	rc := io.ReadCloser(resp.RawBody())
	if method == http.MethodHead || rc == nil {
		rc = io.NopCloser(strings.NewReader(""))
	}

	// The transport only auto-inflates when it negotiated the encoding
	// itself; origins that force gzip regardless are inflated here so
	// the rewriter always sees plain text.
	if strings.EqualFold(header.Get("Content-Encoding"), "gzip") {
		if zr, zerr := gzip.NewReader(rc); zerr == nil {
			rc = &wrappedBody{Reader: zr, closer: rc}
			header.Del("Content-Encoding")
			header.Del("Content-Length")
		}
	}

	res := &UpstreamResponse{
		Status:   resp.StatusCode(),
		Header:   header,
		Body:     rc,
		Duration: time.Since(start),
	}
	res.ContentType = correctContentType(header.Get("Content-Type"), target, res)
	return res, nil
}

// correctContentType fixes missing or generic upstream content types.
// Some origins serve CSS/JS through dynamic endpoints with absent or
// binary content-type headers; the kind is recovered from (a) bare
// css/js query keys, (b) the path extension, (c) sniffing the first
// bytes of the body.
func correctContentType(declared, target string, res *UpstreamResponse) string {
	base := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if base != "" && base != "application/octet-stream" {
		return declared
	}

	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		if _, ok := q["css"]; ok {
			return "text/css"
		}
		if _, ok := q["js"]; ok {
			return "application/javascript"
		}
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".css":
			return "text/css"
		case ".js", ".mjs":
			return "application/javascript"
		}
	}

	buf := make([]byte, sniffLimit)
	n, _ := io.ReadFull(res.Body, buf)
	res.Body = &wrappedBody{
		Reader: io.MultiReader(strings.NewReader(string(buf[:n])), res.Body),
		closer: res.Body,
	}
	if n > 0 {
		return mimetype.Detect(buf[:n]).String()
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

// wrappedBody pairs a replacement reader with the original closer.
type wrappedBody struct {
	io.Reader
	closer io.Closer
}

func (w *wrappedBody) Close() error { return w.closer.Close() }
