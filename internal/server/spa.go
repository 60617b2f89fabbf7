package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// spaHandler is the catch-all for the embedded frontend. Real files are
// served from the build output; anything else gets index.html so
// client-side routes like /transcripts/123 resolve in the browser.
type spaHandler struct {
	root  http.FileSystem
	files http.Handler
}

func newSPAHandler(fsys fs.FS) http.Handler {
	root := http.FS(fsys)
	return &spaHandler{root: root, files: http.FileServer(root)}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := path.Clean(r.URL.Path)
	if p == "." {
		p = "/"
	}

	// A service path landing here means no route matched; answer with
	// the JSON envelope, not the frontend.
	if isServicePath(p) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"endpoint not found"}}`))
		return
	}

	if p != "/" {
		if f, err := h.root.Open(p); err == nil {
			_ = f.Close()
			h.serveFile(w, r, p)
			return
		}
	}

	h.serveIndex(w, r)
}

// serveFile serves an existing static file. Vite hashes everything under
// assets/, so those are safe to cache forever.
func (h *spaHandler) serveFile(w http.ResponseWriter, r *http.Request, p string) {
	if strings.HasPrefix(p, "/assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	}
	h.files.ServeHTTP(w, r)
}

// serveIndex serves index.html uncached so a redeploy is picked up on
// the next page load.
func (h *spaHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	r.URL.Path = "/"
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.files.ServeHTTP(w, r)
}

func isServicePath(p string) bool {
	return strings.HasPrefix(p, "/v1/") || p == "/health" || p == "/openapi.yaml"
}
