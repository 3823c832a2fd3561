package proxy

import (
	"errors"
	"html"
	"net/url"
	"regexp"
	"strings"
)

// DefaultPrefix is the path segment the proxy route family mounts under.
const DefaultPrefix = "/proxy"

var (
	// ErrMissingTarget reports an empty proxy path.
	ErrMissingTarget = errors.New("missing target URL")
	// ErrInvalidTarget reports a target that is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target URL")
)

var absoluteHTTP = regexp.MustCompile(`^https?://`)

// DecodeTarget recovers the absolute target URL carried in the proxy
// path remainder (everything after the mount prefix). The remainder is
// percent-decoded and HTML-entity-decoded; entity escaping shows up
// when URLs are lifted straight out of markup attributes.
func DecodeTarget(rawPath string) (string, error) {
	raw := strings.TrimPrefix(rawPath, "/")
	if raw == "" {
		return "", ErrMissingTarget
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	raw = html.UnescapeString(raw)
	if !absoluteHTTP.MatchString(raw) {
		return "", ErrInvalidTarget
	}
	return raw, nil
}

// EncodeTarget maps an absolute URL onto the proxy path. It is the
// exact inverse of DecodeTarget for any URL DecodeTarget accepts.
func EncodeTarget(prefix, target string) string {
	return prefix + "/" + url.QueryEscape(target)
}

// AppendQuery attaches an inbound query string to a decoded target.
// Relative sub-resource requests issued by the embedded page keep
// their query outside the encoded blob.
func AppendQuery(target, rawQuery string) string {
	if rawQuery == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + rawQuery
	}
	return target + "?" + rawQuery
}
