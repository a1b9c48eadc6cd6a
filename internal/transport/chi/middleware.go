package chi

import (
	"net/http"
	"strconv"
)

// RequestSizeLimit rejects bodies larger than maxBytes with 413 before
// any handler work. Declared Content-Length is checked up front; the body
// reader is capped as well for clients that lie.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cl := r.Header.Get("Content-Length"); cl != "" {
				if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > maxBytes {
					writeJSON(w, http.StatusRequestEntityTooLarge,
						detailResponse{Detail: "Request too large"})
					return
				}
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// StaticHandler serves the portfolio page: index.html at / and assets
// under /static/. dir is the configured static root.
func StaticHandler(dir string) (index http.HandlerFunc, assets http.Handler) {
	index = func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, dir+"/index.html")
	}
	assets = http.StripPrefix("/static/", http.FileServer(http.Dir(dir+"/static")))
	return index, assets
}
