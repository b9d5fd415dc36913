package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return srv.Handler()
}

func serve(h http.Handler, method, target string) *http.Response {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec.Result()
}

func assertIsolated(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, "require-corp", resp.Header.Get("Cross-Origin-Embedder-Policy"))
	assert.Equal(t, "same-origin", resp.Header.Get("Cross-Origin-Opener-Policy"))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"udTest.wasm":      "application/wasm",
		"udTest.html":      "text/html",
		"udTest.js":        "application/x-javascript",
		"style.css":        "text/css",
		"UDTEST.WASM":      "application/wasm",
		"udTest.udmem":     DefaultContentType,
		"LICENSE":          DefaultContentType,
		"dir/udTest.wasm":  "application/wasm",
		"archive.unknownx": DefaultContentType,
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestStaticFilesCarryIsolationHeaders(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"udTest.html":                 "<html></html>",
		"udTest.js":                   "var Module = {};",
		"udTest.wasm":                 "\x00asm",
		"udTest.worker.js":            "self.onmessage = null;",
		"assets/style.css":            "body {}",
		"build/wasm/deep/udTest.wasm": "\x00asm",
		"assets/blob.bin":             "\x01\x02",
	})
	h := newTestHandler(t, testConfig(root))

	tests := []struct {
		target string
		want   string
	}{
		{"/udTest.html", "text/html"},
		{"/udTest.js", "application/x-javascript"},
		{"/udTest.worker.js", "application/x-javascript"},
		{"/udTest.wasm", "application/wasm"},
		{"/build/wasm/deep/udTest.wasm", "application/wasm"},
		{"/assets/style.css", "text/css"},
		{"/assets/blob.bin", DefaultContentType},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp := serve(h, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Content-Type"))
			assertIsolated(t, resp)
		})
	}
}

func TestNotFoundCarriesIsolationHeaders(t *testing.T) {
	h := newTestHandler(t, testConfig(t.TempDir()))

	resp := serve(h, http.MethodGet, "/missing/udTest.wasm")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assertIsolated(t, resp)
}

func TestDirectoryIndex(t *testing.T) {
	root := writeRoot(t, map[string]string{
		"index.html":      "<h1>tests</h1>",
		"nested/readme.x": "x",
	})
	h := newTestHandler(t, testConfig(root))

	resp := serve(h, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assertIsolated(t, resp)

	// Directory without index.html gets the file server's listing.
	resp = serve(h, http.MethodGet, "/nested/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "readme.x")
	assertIsolated(t, resp)

	resp = serve(h, http.MethodGet, "/nested")
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assertIsolated(t, resp)
}

func TestHeadAndUnsupportedMethods(t *testing.T) {
	root := writeRoot(t, map[string]string{"udTest.wasm": "\x00asm"})
	h := newTestHandler(t, testConfig(root))

	resp := serve(h, http.MethodHead, "/udTest.wasm")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/wasm", resp.Header.Get("Content-Type"))
	assertIsolated(t, resp)

	resp = serve(h, http.MethodPost, "/udTest.wasm")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assertIsolated(t, resp)
}

func TestPathTraversalStaysInRoot(t *testing.T) {
	h := newTestHandler(t, testConfig(writeRoot(t, nil)))

	resp := serve(h, http.MethodGet, "/../../etc/passwd")

	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	assertIsolated(t, resp)
}

func TestMetricsEndpoint(t *testing.T) {
	root := writeRoot(t, map[string]string{"udTest.wasm": "\x00asm"})
	cfg := testConfig(root)
	cfg.MetricsPath = "/metrics"
	h := newTestHandler(t, cfg)

	serve(h, http.MethodGet, "/udTest.wasm")
	serve(h, http.MethodGet, "/missing.js")

	resp := serve(h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assertIsolated(t, resp)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `webserver_requests_total{code="200",content_type="application/wasm"} 1`)
	assert.Contains(t, string(body), `code="404"`)
}

func TestMetricsDisabledByDefault(t *testing.T) {
	h := newTestHandler(t, testConfig(t.TempDir()))

	resp := serve(h, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatchModeDisablesCaching(t *testing.T) {
	root := writeRoot(t, map[string]string{"udTest.js": "1"})

	resp := serve(newTestHandler(t, testConfig(root)), http.MethodGet, "/udTest.js")
	assert.Empty(t, resp.Header.Get("Cache-Control"))

	cfg := testConfig(root)
	cfg.Watch = true
	resp = serve(newTestHandler(t, cfg), http.MethodGet, "/udTest.js")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}
