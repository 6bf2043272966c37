package util

import (
	"net/http"
	"strings"
)

const corsAllowHeaders = "Authorization, Content-Type, X-Request-ID, X-Session-ID, X-User-Nickname, X-User-Timezone"

// CORSPolicy lists the browser origins allowed to call the API.
// A single "*" entry allows any origin.
type CORSPolicy struct {
	origins map[string]struct{}
	any     bool
}

// NewCORSPolicy builds a policy from configured origins. Empty input allows any origin.
func NewCORSPolicy(origins []string) *CORSPolicy {
	p := &CORSPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" {
			continue
		}
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(o)] = struct{}{}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

func (p *CORSPolicy) allowed(origin string) bool {
	if p == nil || p.any {
		return true
	}
	_, ok := p.origins[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// WithCORS adds CORS headers for allowed origins and answers preflight requests.
func WithCORS(policy *CORSPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case origin == "":
		case policy == nil || policy.any:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case policy.allowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
