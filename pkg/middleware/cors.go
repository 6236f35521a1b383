package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware. Zero values fall back to the
// session API defaults.
type CORSConfig struct {
	// AllowedOrigins lists storefront origins. "*" allows any origin.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	MaxAge           int // seconds
	AllowCredentials bool
	// Environment "development" allows any origin regardless of the list.
	Environment string
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultCORSHeaders = []string{"Accept", "Content-Type", CorrelationIDHeader, "traceparent"}
)

const defaultCORSMaxAge = 3600

// DefaultCORSConfig returns the development configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{CorrelationIDHeader},
		MaxAge:         defaultCORSMaxAge,
		Environment:    "development",
	}
}

// corsPolicy is a CORSConfig with its header values precomputed.
type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	exposed     string
	maxAge      string
	credentials bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		anyOrigin:   cfg.Environment == "development",
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
		methods:     strings.Join(orDefault(cfg.AllowedMethods, defaultCORSMethods), ", "),
		headers:     strings.Join(orDefault(cfg.AllowedHeaders, defaultCORSHeaders), ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      strconv.Itoa(defaultCORSMaxAge),
		credentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[o] = struct{}{}
	}
	return p
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// false when the origin is not allowed.
func (p *corsPolicy) allowOrigin(origin string) (string, bool) {
	if p.anyOrigin {
		return "*", true
	}
	if _, ok := p.origins[origin]; ok && origin != "" {
		return origin, true
	}
	return "", false
}

// CORS answers preflight requests and decorates other responses with the
// headers a browser needs to let the storefront read them.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !p.anyOrigin {
				h.Add("Vary", "Origin")
			}

			if allow, ok := p.allowOrigin(r.Header.Get("Origin")); ok {
				h.Set("Access-Control-Allow-Origin", allow)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.exposed != "" {
					h.Set("Access-Control-Expose-Headers", p.exposed)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", p.methods)
				h.Set("Access-Control-Allow-Headers", p.headers)
				h.Set("Access-Control-Max-Age", p.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
