package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func corsRequest(method, origin string, preflight bool) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/sessions", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	return req
}

func TestCORS_AllowOrigin(t *testing.T) {
	prod := CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com", "https://m.shop.example.com"},
		Environment:    "production",
	}

	tests := []struct {
		name      string
		cfg       CORSConfig
		origin    string
		wantAllow string
		wantVary  bool
	}{
		{"development allows any origin", CORSConfig{Environment: "development"}, "https://elsewhere.example", "*", false},
		{"wildcard in list allows any origin", CORSConfig{AllowedOrigins: []string{"https://a.example", "*"}}, "https://b.example", "*", false},
		{"listed origin echoed", prod, "https://shop.example.com", "https://shop.example.com", true},
		{"second listed origin echoed", prod, "https://m.shop.example.com", "https://m.shop.example.com", true},
		{"unlisted origin gets nothing", prod, "https://evil.example", "", true},
		{"missing origin gets nothing", prod, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			corsHandler(tt.cfg).ServeHTTP(rec, corsRequest(http.MethodGet, tt.origin, false))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantVary {
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			} else {
				assert.Empty(t, rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	reached := false
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, corsRequest(http.MethodOptions, "https://shop.example.com", true))

	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Accept, Content-Type, X-Correlation-ID, traceparent", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightHeadersOnlyOnPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	corsHandler(DefaultCORSConfig()).ServeHTTP(rec, corsRequest(http.MethodGet, "https://shop.example.com", false))

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "X-Correlation-ID", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	h := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, corsRequest(http.MethodOptions, "", false))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS_CustomValues(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins:   []string{"https://shop.example.com"},
		AllowedMethods:   []string{http.MethodPost},
		AllowedHeaders:   []string{"Content-Type", "X-Custom"},
		ExposedHeaders:   []string{"X-Correlation-ID", "Location"},
		MaxAge:           7200,
		AllowCredentials: true,
	}

	rec := httptest.NewRecorder()
	corsHandler(cfg).ServeHTTP(rec, corsRequest(http.MethodOptions, "https://shop.example.com", true))

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, X-Custom", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Correlation-ID, Location", rec.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "7200", rec.Header().Get("Access-Control-Max-Age"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_CredentialsNotSentToRejectedOrigin(t *testing.T) {
	cfg := CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}, AllowCredentials: true}

	rec := httptest.NewRecorder()
	corsHandler(cfg).ServeHTTP(rec, corsRequest(http.MethodGet, "https://evil.example", false))

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, []string{"X-Correlation-ID"}, cfg.ExposedHeaders)
	assert.Equal(t, "development", cfg.Environment)
}
