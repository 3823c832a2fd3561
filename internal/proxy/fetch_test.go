package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(5*time.Second, "")
}

func TestFetcherDefaultUserAgent(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	target := ts.URL + "/page"
	res, err := newTestFetcher().Do(context.Background(), http.MethodGet, target, http.Header{}, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, defaultUserAgent, got.Get("User-Agent"))
	assert.Equal(t, ts.URL, got.Get("Origin"))
	assert.Equal(t, target, got.Get("Referer"))
}

func TestFetcherForwardsCallerHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	inbound := http.Header{}
	inbound.Set("User-Agent", "caller-agent/1.0")
	inbound.Set("Accept", "text/html")
	inbound.Set("Accept-Language", "de-DE")
	// Host-app headers must not leak upstream.
	inbound.Set("Origin", "http://localhost:8090")
	inbound.Set("Cookie", "session=secret")

	res, err := newTestFetcher().Do(context.Background(), http.MethodGet, ts.URL, inbound, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "caller-agent/1.0", got.Get("User-Agent"))
	assert.Equal(t, "text/html", got.Get("Accept"))
	assert.Equal(t, "de-DE", got.Get("Accept-Language"))
	assert.Equal(t, ts.URL, got.Get("Origin"))
	assert.Empty(t, got.Get("Cookie"))
}

func TestFetcherContentTypeCorrection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("body { color: red; }"))
	}))
	defer ts.Close()

	cases := []struct {
		path string
		want string
	}{
		{"/asset?css", "text/css"},
		{"/asset?js", "application/javascript"},
		{"/theme.css", "text/css"},
		{"/app.js", "application/javascript"},
		{"/mod.mjs", "application/javascript"},
	}
	f := newTestFetcher()
	for _, tc := range cases {
		res, err := f.Do(context.Background(), http.MethodGet, ts.URL+tc.path, http.Header{}, nil)
		require.NoError(t, err, "path: %s", tc.path)
		assert.Equal(t, tc.want, res.ContentType, "path: %s", tc.path)
		res.Body.Close()
	}
}

func TestFetcherContentTypeSniff(t *testing.T) {
	const page = "<!DOCTYPE html><html><body>hello</body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(page))
	}))
	defer ts.Close()

	res, err := newTestFetcher().Do(context.Background(), http.MethodGet, ts.URL+"/download", http.Header{}, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.True(t, strings.HasPrefix(res.ContentType, "text/html"), "got %q", res.ContentType)

	// The sniff buffer is stitched back; the body reads in full.
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, page, string(body))
}

func TestFetcherDeclaredTypeWins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	res, err := newTestFetcher().Do(context.Background(), http.MethodGet, ts.URL+"/weird.css", http.Header{}, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "text/html; charset=utf-8", res.ContentType)
}

func TestFetcherGzipInflated(t *testing.T) {
	const plain = "body { background: url(/bg.png); }"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(plain))
		zw.Close()
	}))
	defer ts.Close()

	res, err := newTestFetcher().Do(context.Background(), http.MethodGet, ts.URL+"/site.css", http.Header{}, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, plain, string(body))
	assert.Empty(t, res.Header.Get("Content-Encoding"))
}

func TestFetcherHead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	res, err := newTestFetcher().Do(context.Background(), http.MethodHead, ts.URL, http.Header{}, nil)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.Status)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestFetcherPostBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer ts.Close()

	inbound := http.Header{}
	inbound.Set("Content-Type", "application/json")
	res, err := newTestFetcher().Do(context.Background(), http.MethodPost, ts.URL+"/api", inbound, strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(body))
}

func TestFetcherUpstreamUnreachable(t *testing.T) {
	_, err := newTestFetcher().Do(context.Background(), http.MethodGet, "http://127.0.0.1:1/", http.Header{}, nil)
	assert.Error(t, err)
}
