package proxy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Sample</title>
<link rel="stylesheet" href="/css/site.css">
</head>
<body>
<img src="/logo.png" alt="logo">
<a href="about.html">About</a>
<script src="https://cdn.example.net/lib.js"></script>
</body>
</html>`

func testContext(t *testing.T) *RewriteContext {
	t.Helper()
	rc, err := NewRewriteContext("https://example.com/page", "/proxy")
	require.NoError(t, err)
	return rc
}

func TestRewriteRelative(t *testing.T) {
	rc := testContext(t)

	v, ok := rc.Rewrite("/logo.png")
	assert.True(t, ok)
	assert.Equal(t, "/proxy/https%3A%2F%2Fexample.com%2Flogo.png", v)

	v, ok = rc.Rewrite("about.html")
	assert.True(t, ok)
	assert.Equal(t, "/proxy/https%3A%2F%2Fexample.com%2Fabout.html", v)
}

func TestRewriteAbsolute(t *testing.T) {
	rc := testContext(t)

	v, ok := rc.Rewrite("https://cdn.example.net/lib.js")
	assert.True(t, ok)
	assert.Equal(t, "/proxy/https%3A%2F%2Fcdn.example.net%2Flib.js", v)

	// Protocol-relative references inherit the target's scheme.
	v, ok = rc.Rewrite("//cdn.example.net/lib.js")
	assert.True(t, ok)
	assert.Equal(t, "/proxy/https%3A%2F%2Fcdn.example.net%2Flib.js", v)
}

func TestRewriteExclusions(t *testing.T) {
	rc := testContext(t)

	for _, raw := range []string{
		"#section",
		"mailto:user@example.com",
		"tel:+15551234567",
		"javascript:void(0)",
		"data:image/png;base64,iVBORw0KGgo=",
		"MAILTO:USER@EXAMPLE.COM",
		"",
	} {
		v, ok := rc.Rewrite(raw)
		assert.False(t, ok, "raw: %q", raw)
		assert.Equal(t, raw, v)
	}
}

func TestRewriteIdempotent(t *testing.T) {
	rc := testContext(t)

	once, ok := rc.Rewrite("/logo.png")
	require.True(t, ok)

	twice, ok := rc.Rewrite(once)
	assert.False(t, ok)
	assert.Equal(t, once, twice)
}

func TestRewriteSrcset(t *testing.T) {
	rc := testContext(t)

	got := rc.RewriteSrcset("img1.png 1x, img2.png 2x")
	want := "/proxy/https%3A%2F%2Fexample.com%2Fimg1.png 1x, /proxy/https%3A%2F%2Fexample.com%2Fimg2.png 2x"
	assert.Equal(t, want, got)

	got = rc.RewriteSrcset("/hero-400.jpg 400w, /hero-800.jpg 800w")
	assert.Contains(t, got, "hero-400.jpg 400w")
	assert.Contains(t, got, "hero-800.jpg 800w")
	assert.Contains(t, got, "/proxy/https%3A%2F%2Fexample.com%2Fhero-400.jpg")
}

func TestRewriteSrcsetKeepsSeparators(t *testing.T) {
	rc := testContext(t)
	a := "/proxy/https%3A%2F%2Fexample.com%2Fa.png"
	b := "/proxy/https%3A%2F%2Fexample.com%2Fb.png"

	// Separators and surrounding whitespace survive byte-for-byte.
	assert.Equal(t, a+" 1x,"+b+" 2x", rc.RewriteSrcset("/a.png 1x,/b.png 2x"))
	assert.Equal(t, a+" 1x ,  "+b+" 2x", rc.RewriteSrcset("/a.png 1x ,  /b.png 2x"))
	assert.Equal(t, "  "+a+"  1x", rc.RewriteSrcset("  /a.png  1x"))
}

func TestRewriteHTMLAttributes(t *testing.T) {
	rc := testContext(t)
	out := string(RewriteHTML([]byte(samplePage), rc, BuildShim("/proxy", "https://example.com/page")))

	assert.Contains(t, out, `<img src="/proxy/https%3A%2F%2Fexample.com%2Flogo.png"`)
	assert.Contains(t, out, `<a href="/proxy/https%3A%2F%2Fexample.com%2Fabout.html"`)
	assert.Contains(t, out, `<link rel="stylesheet" href="/proxy/https%3A%2F%2Fexample.com%2Fcss%2Fsite.css"`)
	assert.Contains(t, out, `<script src="/proxy/https%3A%2F%2Fcdn.example.net%2Flib.js"`)
	assert.NotContains(t, out, `src="/logo.png"`)
}

func TestRewriteHTMLShimAfterHead(t *testing.T) {
	rc := testContext(t)
	shim := BuildShim("/proxy", "https://example.com/page")
	out := string(RewriteHTML([]byte(samplePage), rc, shim))

	assert.Equal(t, 1, strings.Count(out, shim))
	headIdx := strings.Index(out, "<head>")
	shimIdx := strings.Index(out, shim)
	require.GreaterOrEqual(t, headIdx, 0)
	assert.Equal(t, headIdx+len("<head>"), shimIdx)
}

func TestRewriteHTMLShimFallbacks(t *testing.T) {
	rc := testContext(t)
	shim := BuildShim("/proxy", "https://example.com/page")

	// No <head>: the shim goes before </body>.
	out := string(RewriteHTML([]byte(`<html><body><p>x</p></body></html>`), rc, shim))
	assert.Equal(t, 1, strings.Count(out, shim))
	assert.Less(t, strings.Index(out, shim), strings.Index(out, "</body>")+len("</body>"))
	assert.Contains(t, out, shim+"</body>")

	// Fragment with no structure at all: appended at the end.
	out = string(RewriteHTML([]byte(`<p>fragment</p>`), rc, shim))
	assert.True(t, strings.HasSuffix(out, shim))
}

func TestRewriteHTMLStripsFrameBustingMeta(t *testing.T) {
	rc := testContext(t)
	doc := `<html><head>
<meta http-equiv="X-Frame-Options" content="DENY">
<meta http-equiv="Content-Security-Policy" content="frame-ancestors 'none'">
<meta charset="utf-8">
</head><body></body></html>`
	out := string(RewriteHTML([]byte(doc), rc, ""))

	assert.NotContains(t, out, "X-Frame-Options")
	assert.NotContains(t, out, "Content-Security-Policy")
	assert.Contains(t, out, `<meta charset="utf-8">`)
}

func TestRewriteHTMLStyleBlockAndAttr(t *testing.T) {
	rc := testContext(t)
	doc := `<html><head><style>body { background: url('/bg.png'); }</style></head>
<body><div style="background-image: url(/tile.png)">x</div></body></html>`
	out := string(RewriteHTML([]byte(doc), rc, ""))

	assert.Contains(t, out, "/proxy/https%3A%2F%2Fexample.com%2Fbg.png")
	assert.Contains(t, out, "/proxy/https%3A%2F%2Fexample.com%2Ftile.png")
}

func TestRewriteHTMLScriptBodyUntouched(t *testing.T) {
	rc := testContext(t)
	doc := `<html><body><script>var u = "/api/data"; fetch(u);</script></body></html>`
	out := string(RewriteHTML([]byte(doc), rc, ""))

	// Inline code is the shim's job at runtime, not the server's.
	assert.Contains(t, out, `var u = "/api/data"; fetch(u);`)
}

func TestRewriteHTMLUnknownMarkupVerbatim(t *testing.T) {
	rc := testContext(t)
	doc := `<html><body><!-- keep --><custom-el data-x="/raw">text &amp; more</custom-el></body></html>`
	out := string(RewriteHTML([]byte(doc), rc, ""))

	assert.Contains(t, out, "<!-- keep -->")
	assert.Contains(t, out, `data-x="/raw"`)
	assert.Contains(t, out, "text &amp; more")
}
