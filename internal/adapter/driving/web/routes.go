package web

import (
	"io/fs"
	"net/http"
)

// NewStaticHandler returns a handler that serves the embedded shell. The
// shell's page routes (/login, /dashboard) all serve the same document; the
// shell reads the path and session state to decide what to render.
func NewStaticHandler() http.Handler {
	staticFS, _ := fs.Sub(StaticFS, "static")
	fileServer := http.FileServerFS(staticFS)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/", "/login", "/dashboard":
			http.ServeFileFS(w, r, staticFS, "index.html")
		default:
			fileServer.ServeHTTP(w, r)
		}
	})
}
