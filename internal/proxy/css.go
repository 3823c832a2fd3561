package proxy

import (
	"regexp"
	"strings"
)

var (
	// url(...) with optional single or double quotes.
	cssURLPattern = regexp.MustCompile(`(?i)url\(\s*(?:'([^')]*)'|"([^")]*)"|([^'")\s][^)]*))\s*\)`)
	// @import '...' / "..." without a url() wrapper; the wrapped form
	// is already covered by cssURLPattern. The media clause after the
	// URL is untouched.
	cssImportPattern = regexp.MustCompile(`(?i)@import\s+(?:'([^']+)'|"([^"]+)")`)
)

// RewriteCSS rewrites every url(...) token and @import statement in a
// stylesheet (or inline style value) against the request's base URL.
// data: and javascript: URIs are skipped, and the original quoting and
// any trailing media query clause are preserved.
func (rc *RewriteContext) RewriteCSS(css string) string {
	out := replaceSubmatch(css, cssURLPattern, rc)
	return replaceSubmatch(out, cssImportPattern, rc)
}

// replaceSubmatch rewrites the first non-empty capture group of every
// match in place, leaving all surrounding bytes exactly as they were.
func replaceSubmatch(s string, re *regexp.Regexp, rc *RewriteContext) string {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/4)
	last := 0
	for _, idx := range matches {
		start, end := -1, -1
		for g := 1; g < len(idx)/2; g++ {
			if idx[2*g] >= 0 {
				start, end = idx[2*g], idx[2*g+1]
				break
			}
		}
		if start < 0 {
			continue
		}
		raw := strings.TrimSpace(s[start:end])
		v, ok := rc.Rewrite(raw)
		if !ok {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(v)
		last = end
	}
	b.WriteString(s[last:])
	return b.String()
}
