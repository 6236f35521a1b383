package middleware

import (
	"net/http"
)

// NoStore marks every response as uncacheable. Session views carry addresses
// and partial card data, so neither browsers nor proxies may keep them.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
