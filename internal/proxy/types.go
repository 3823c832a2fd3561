package proxy

import (
	"net/url"
	"strings"
)

// rewriteTags is the element set whose URL attributes are rewritten.
var rewriteTags = map[string]bool{
	"a": true, "link": true, "img": true, "script": true, "iframe": true,
	"source": true, "video": true, "audio": true, "form": true,
}

// urlAttrs is the attribute set resolved and re-encoded per element.
var urlAttrs = map[string]bool{
	"href": true, "src": true, "action": true, "poster": true, "data": true,
}

// excludedPrefixes are reference forms that must never be rewritten.
var excludedPrefixes = []string{"#", "mailto:", "tel:", "javascript:", "data:"}

// RewriteContext is the immutable per-request value shared by the
// rewriter and the shim builder: the target page's own URL (never the
// proxy's) and the proxy mount prefix. Relative references resolve
// identically server-side and client-side because both sides derive
// from the same pair.
type RewriteContext struct {
	Base   *url.URL
	Prefix string
}

// NewRewriteContext builds a context for one request.
func NewRewriteContext(target, prefix string) (*RewriteContext, error) {
	base, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, ErrInvalidTarget
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RewriteContext{Base: base, Prefix: prefix}, nil
}

// Rewrite resolves a raw reference against the base URL and maps it
// onto the proxy path. It reports whether the value was rewritten.
// Fragments, mailto:, tel:, javascript:, and data: URIs pass through
// untouched, as do references already routed through the proxy and
// anything that fails to parse (a broken reference should degrade to
// pointing at the original host, not to an invalid document).
func (rc *RewriteContext) Rewrite(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return raw, false
	}
	if strings.HasPrefix(v, rc.Prefix+"/") {
		return raw, false
	}
	lower := strings.ToLower(v)
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(lower, p) {
			return raw, false
		}
	}
	abs, err := rc.Base.Parse(v)
	if err != nil {
		return raw, false
	}
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return raw, false
	}
	return EncodeTarget(rc.Prefix, abs.String()), true
}

// RewriteSrcset tokenizes a srcset value on commas into (url,
// descriptor) candidates and rewrites each URL in place. Descriptors,
// separators, and surrounding whitespace are preserved verbatim.
func (rc *RewriteContext) RewriteSrcset(srcset string) string {
	candidates := strings.Split(srcset, ",")
	for i, cand := range candidates {
		fields := strings.Fields(cand)
		if len(fields) == 0 {
			continue
		}
		v, ok := rc.Rewrite(fields[0])
		if !ok {
			continue
		}
		at := strings.Index(cand, fields[0])
		candidates[i] = cand[:at] + v + cand[at+len(fields[0]):]
	}
	return strings.Join(candidates, ",")
}
