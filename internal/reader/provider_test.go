package reader

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/Porthole/backend/internal/config"
	"github.com/GriffinCanCode/Porthole/backend/internal/logging"
	"github.com/GriffinCanCode/Porthole/backend/internal/monitoring"
)

// Registered once: promauto metrics bind to the default registry.
var testMetrics = monitoring.NewMetrics()

const sampleArticle = `<!DOCTYPE html>
<html>
<head>
<title>Go Concurrency Patterns</title>
<meta name="description" content="Pipelines and cancellation.">
<meta property="og:title" content="Go Concurrency Patterns">
<meta property="og:type" content="article">
<script type="application/ld+json">{"@type":"Article","headline":"Go Concurrency Patterns"}</script>
</head>
<body>
<nav>Home | Blog | About</nav>
<header>Site header</header>
<article>
<h1>Go Concurrency Patterns</h1>
<p>Goroutines are lightweight threads managed by the Go runtime.</p>
<p>Channels connect goroutines so they can communicate safely.</p>
</article>
<aside class="sidebar">Trending posts</aside>
<script>trackPageView();</script>
<footer>Copyright notice</footer>
</body>
</html>`

func newTestProvider() *Provider {
	return NewProvider(config.ReaderConfig{
		Timeout:      5 * time.Second,
		MaxBodyBytes: 1 << 20,
		RetryMax:     0,
	}, testMetrics, &logging.Logger{Logger: zap.NewNop()})
}

func TestExtractArticle(t *testing.T) {
	p := newTestProvider()
	article, err := p.extract([]byte(sampleArticle))
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency Patterns", article["title"])

	text, ok := article["text"].(string)
	require.True(t, ok)
	assert.Contains(t, text, "Goroutines are lightweight threads")
	assert.Contains(t, text, "Channels connect goroutines")

	// Navigation, chrome, and scripts never reach the extracted text.
	assert.NotContains(t, text, "Home | Blog")
	assert.NotContains(t, text, "Site header")
	assert.NotContains(t, text, "Trending posts")
	assert.NotContains(t, text, "trackPageView")
	assert.NotContains(t, text, "Copyright")

	wc, ok := article["word_count"].(int)
	require.True(t, ok)
	assert.Greater(t, wc, 10)
}

func TestExtractMetadata(t *testing.T) {
	p := newTestProvider()
	article, err := p.extract([]byte(sampleArticle))
	require.NoError(t, err)

	meta, ok := article["metadata"].(gin.H)
	require.True(t, ok)
	assert.Equal(t, "Pipelines and cancellation.", meta["description"])

	og, ok := meta["open_graph"].(gin.H)
	require.True(t, ok)
	assert.Equal(t, "Go Concurrency Patterns", og["title"])
	assert.Equal(t, "article", og["type"])

	jsonld, ok := meta["json_ld"].([]string)
	require.True(t, ok)
	require.Len(t, jsonld, 1)
	assert.Contains(t, jsonld[0], `"headline"`)
}

func TestExtractFallbackToBody(t *testing.T) {
	p := newTestProvider()
	article, err := p.extract([]byte(`<html><body><p>plain page with no landmarks</p></body></html>`))
	require.NoError(t, err)

	assert.Contains(t, article["text"], "plain page with no landmarks")
}

func TestExtractContentContainer(t *testing.T) {
	p := newTestProvider()
	article, err := p.extract([]byte(`<html><body>
<div id="content"><p>container content</p></div>
<div>outside</div>
</body></html>`))
	require.NoError(t, err)

	text, _ := article["text"].(string)
	assert.Contains(t, text, "container content")
	assert.NotContains(t, text, "outside")
}

func TestExtractSanitizesHTML(t *testing.T) {
	p := newTestProvider()
	article, err := p.extract([]byte(`<html><body><article>
<p onclick="steal()">safe text</p>
<p><a href="javascript:alert(1)">link</a></p>
</article></body></html>`))
	require.NoError(t, err)

	sanitized, ok := article["html"].(string)
	require.True(t, ok)
	assert.Contains(t, sanitized, "safe text")
	assert.NotContains(t, sanitized, "onclick")
	assert.NotContains(t, sanitized, "javascript:alert")
}

func newReaderEngine(p *Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/reader", p.Handle)
	return r
}

func TestHandleInvalidRequest(t *testing.T) {
	engine := newReaderEngine(newTestProvider())

	req := httptest.NewRequest(http.MethodPost, "/reader", strings.NewReader(`{"nope":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid request", body["error"])
}

func TestHandleBlockedAddress(t *testing.T) {
	// A loopback test server trips the guard before any fetch happens.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("guard must block before the request reaches the origin")
	}))
	defer ts.Close()

	engine := newReaderEngine(newTestProvider())

	req := httptest.NewRequest(http.MethodPost, "/reader", strings.NewReader(`{"url":"`+ts.URL+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Blocked address", body["error"])
}
