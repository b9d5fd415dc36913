package server

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cross-origin isolation headers sent with every response.
const (
	HeaderEmbedderPolicy = "Cross-Origin-Embedder-Policy"
	HeaderOpenerPolicy   = "Cross-Origin-Opener-Policy"

	EmbedderPolicy = "require-corp"
	OpenerPolicy   = "same-origin"
)

// DefaultContentType is served for files with no known extension.
const DefaultContentType = "application/octet-stream"

// contentTypes overrides the system MIME table for the test page's assets.
var contentTypes = map[string]string{
	".wasm": "application/wasm",
	".html": "text/html",
	".js":   "application/x-javascript",
	".css":  "text/css",
}

// ContentType returns the Content-Type served for a file name.
func ContentType(name string) string {
	ext := path.Ext(name)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	ext = strings.ToLower(ext)
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return DefaultContentType
}

// crossOriginIsolation sets the COEP/COOP pair before anything else writes
// headers, so error and redirect responses carry it too.
func crossOriginIsolation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(HeaderEmbedderPolicy, EmbedderPolicy)
		h.Set(HeaderOpenerPolicy, OpenerPolicy)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(crossOriginIsolation)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	if s.cfg.MetricsPath != "" {
		r.Method(http.MethodGet, s.cfg.MetricsPath, promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	}

	static := &staticHandler{
		root:    http.Dir(s.cfg.Root),
		noStore: s.cfg.Watch,
	}
	static.files = http.FileServer(static.root)
	r.Get("/*", static.ServeHTTP)
	r.Head("/*", static.ServeHTTP)
	return r
}

// staticHandler serves files under root with Content-Type taken from
// ContentType. Missing files, directories and redirects are left to
// http.FileServer.
type staticHandler struct {
	root    http.Dir
	files   http.Handler
	noStore bool
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.noStore {
		w.Header().Set("Cache-Control", "no-store")
	}
	if ct, ok := h.contentType(r.URL.Path); ok {
		w.Header().Set("Content-Type", ct)
	}
	h.files.ServeHTTP(w, r)
}

// contentType resolves the file a request path will be served from and
// reports its Content-Type. Directories resolve to their index.html.
func (h *staticHandler) contentType(urlPath string) (string, bool) {
	name := path.Clean("/" + urlPath)
	f, err := h.root.Open(name)
	if err != nil {
		return "", false
	}
	fi, err := f.Stat()
	f.Close()
	if err != nil {
		return "", false
	}
	if !fi.IsDir() {
		return ContentType(name), true
	}
	if !strings.HasSuffix(urlPath, "/") {
		return "", false
	}
	index, err := h.root.Open(path.Join(name, "index.html"))
	if err != nil {
		return "", false
	}
	index.Close()
	return ContentType("index.html"), true
}
