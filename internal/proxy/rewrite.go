package proxy

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// RewriteHTML makes a single streaming pass over an HTML document,
// rewriting URL attributes on the target element set, routing style
// attributes and <style> blocks through the CSS path, stripping
// frame-busting meta tags, and injecting the runtime shim. Script
// bodies and all other markup pass through verbatim.
//
// The shim lands immediately after the opening <head> tag; failing
// that, before </head>, then before </body>, then appended to the end
// of the document.
func RewriteHTML(doc []byte, rc *RewriteContext, shim string) []byte {
	z := html.NewTokenizer(bytes.NewReader(doc))

	var out bytes.Buffer
	out.Grow(len(doc) + len(shim) + 1024)

	injected := false
	inStyle := false

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// Reading from memory, the only error is EOF.
			if !injected {
				out.WriteString(shim)
			}
			return out.Bytes()

		case html.StartTagToken, html.SelfClosingTagToken:
			raw := z.Raw()
			t := z.Token()

			if t.Data == "meta" && isFrameBustingMeta(t) {
				continue
			}

			if (rewriteTags[t.Data] || hasStyleAttr(t)) && rewriteToken(&t, rc) {
				out.WriteString(t.String())
			} else {
				out.Write(raw)
			}

			if tt == html.StartTagToken {
				switch t.Data {
				case "head":
					if !injected {
						out.WriteString(shim)
						injected = true
					}
				case "style":
					inStyle = true
				}
			}

		case html.EndTagToken:
			raw := z.Raw()
			t := z.Token()
			switch t.Data {
			case "style":
				inStyle = false
			case "head", "body":
				if !injected {
					out.WriteString(shim)
					injected = true
				}
			}
			out.Write(raw)

		case html.TextToken:
			raw := z.Raw()
			if inStyle {
				out.WriteString(rc.RewriteCSS(string(raw)))
			} else {
				out.Write(raw)
			}

		default:
			out.Write(z.Raw())
		}
	}
}

// rewriteToken rewrites the URL-bearing attributes of a start tag in
// place and reports whether anything changed. Unchanged tags are
// emitted from their raw bytes so formatting survives.
func rewriteToken(t *html.Token, rc *RewriteContext) bool {
	changed := false
	inSet := rewriteTags[t.Data]
	for i := range t.Attr {
		a := &t.Attr[i]
		switch {
		case a.Key == "style":
			if v := rc.RewriteCSS(a.Val); v != a.Val {
				a.Val = v
				changed = true
			}
		case !inSet:
			// style attributes are rewritten on any element; URL
			// attributes only on the target set.
		case urlAttrs[a.Key]:
			if v, ok := rc.Rewrite(a.Val); ok {
				a.Val = v
				changed = true
			}
		case a.Key == "srcset":
			if v := rc.RewriteSrcset(a.Val); v != a.Val {
				a.Val = v
				changed = true
			}
		}
	}
	return changed
}

// isFrameBustingMeta reports whether a meta tag exists purely to
// prevent embedding and must not survive into the rewritten document.
func isFrameBustingMeta(t html.Token) bool {
	for _, a := range t.Attr {
		if a.Key == "http-equiv" {
			v := strings.ToLower(strings.TrimSpace(a.Val))
			return v == "x-frame-options" || v == "content-security-policy"
		}
	}
	return false
}

func hasStyleAttr(t html.Token) bool {
	for _, a := range t.Attr {
		if a.Key == "style" {
			return true
		}
	}
	return false
}
