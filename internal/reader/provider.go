package reader

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/Porthole/backend/internal/config"
	"github.com/GriffinCanCode/Porthole/backend/internal/logging"
	"github.com/GriffinCanCode/Porthole/backend/internal/monitoring"
)

const readerUserAgent = "Mozilla/5.0 (compatible; PortholeReader/1.0)"

// noiseSelector matches elements removed before extraction.
const noiseSelector = "script, style, nav, header, footer, aside, iframe, form, .ad, .advertisement, .sidebar"

// Provider implements the read-extraction endpoint.
type Provider struct {
	cfg       config.ReaderConfig
	client    *retryablehttp.Client
	guard     *Guard
	sanitizer *bluemonday.Policy
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// NewProvider wires the extraction endpoint. The guard's dial-time
// hook rides on the transport so redirect hops are validated too.
func NewProvider(cfg config.ReaderConfig, metrics *monitoring.Metrics, log *logging.Logger) *Provider {
	guard := NewGuard()

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = nil
	client.HTTPClient.Transport = &http.Transport{
		DialContext: (&net.Dialer{Control: guard.Control}).DialContext,
	}

	return &Provider{
		cfg:       cfg,
		client:    client,
		guard:     guard,
		sanitizer: bluemonday.UGCPolicy(),
		metrics:   metrics,
		log:       log,
	}
}

type readRequest struct {
	URL string `json:"url" binding:"required"`
}

// Handle serves POST /reader: guard, fetch, extract, respond.
func (p *Provider) Handle(c *gin.Context) {
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "message": err.Error()})
		return
	}

	if err := p.guard.Check(c.Request.Context(), req.URL); err != nil {
		p.metrics.ReaderBlocked.Inc()
		c.JSON(http.StatusForbidden, gin.H{"error": "Blocked address", "message": err.Error()})
		return
	}

	body, err := p.fetch(c, req.URL)
	if err != nil {
		p.log.Warn("reader fetch failed", zap.String("url", req.URL), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Fetch failed", "message": err.Error()})
		return
	}

	article, err := p.extract(body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Extraction failed", "message": err.Error()})
		return
	}
	article["url"] = req.URL

	p.metrics.ReaderExtracts.Inc()
	c.JSON(http.StatusOK, article)
}

func (p *Provider) fetch(c *gin.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(c.Request.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", readerUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
}

// extract pulls the main article content with the same heuristics the
// scraping stack uses: semantic tags first, then landmark roles, then
// common content containers, then the whole body.
func (p *Provider) extract(raw []byte) (gin.H, error) {
	utf8Body := decodeCharset(raw)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8Body))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	meta := extractMetadata(utf8Body)

	doc.Find(noiseSelector).Remove()

	var main *goquery.Selection
	if sel := doc.Find("main, article").First(); sel.Length() > 0 {
		main = sel
	} else if sel := doc.Find("[role='main'], [role='article']").First(); sel.Length() > 0 {
		main = sel
	} else if sel := doc.Find("#content, #main, .content, .main, .article").First(); sel.Length() > 0 {
		main = sel
	} else {
		main = doc.Find("body")
	}

	text := normalizeWhitespace(main.Text())
	htmlContent, _ := main.Html()

	return gin.H{
		"title":      title,
		"text":       text,
		"html":       p.sanitizer.Sanitize(htmlContent),
		"word_count": len(strings.Fields(text)),
		"metadata":   meta,
	}, nil
}

// extractMetadata collects OpenGraph properties and raw JSON-LD blocks
// via XPath.
func extractMetadata(utf8Body []byte) gin.H {
	meta := gin.H{}

	doc, err := htmlquery.Parse(bytes.NewReader(utf8Body))
	if err != nil {
		return meta
	}

	og := gin.H{}
	for _, node := range htmlquery.Find(doc, "//meta[starts-with(@property, 'og:')]") {
		prop := htmlquery.SelectAttr(node, "property")
		if content := htmlquery.SelectAttr(node, "content"); content != "" {
			og[strings.TrimPrefix(prop, "og:")] = content
		}
	}
	if len(og) > 0 {
		meta["open_graph"] = og
	}

	if node := htmlquery.FindOne(doc, "//meta[@name='description']"); node != nil {
		if content := htmlquery.SelectAttr(node, "content"); content != "" {
			meta["description"] = content
		}
	}

	var jsonld []string
	for _, node := range htmlquery.Find(doc, "//script[@type='application/ld+json']") {
		if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
			jsonld = append(jsonld, text)
		}
	}
	if len(jsonld) > 0 {
		meta["json_ld"] = jsonld
	}

	return meta
}

// decodeCharset converts the payload to UTF-8 using detection; on any
// failure the original bytes are used as-is.
func decodeCharset(raw []byte) []byte {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(raw)
	if err != nil || result == nil {
		return raw
	}
	reader, err := charset.NewReaderLabel(strings.ToLower(result.Charset), bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return raw
	}
	return decoded
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
