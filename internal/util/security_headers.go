package util

import (
	"net/http"
	"strings"
)

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Permissions-Policy", "geolocation=(), camera=(), microphone=()"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"},
	{"Cross-Origin-Resource-Policy", "cross-origin"},
}

// cacheablePrefixes are API paths the browser may cache.
var cacheablePrefixes = []string{"/api/commands/download/"}

// WithSecurityHeaders sets the portfolio API response headers. Everything
// under /api/ is no-store apart from file downloads; HSTS is sent only over
// HTTPS, directly or behind a TLS-terminating proxy.
func WithSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		if noStore(r.URL.Path) {
			h.Set("Cache-Control", "no-store")
		}
		if isHTTPS(r) {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func noStore(path string) bool {
	if !strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, p := range cacheablePrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}
