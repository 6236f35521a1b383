package http

import (
	"net/http"
	"strings"

	"github.com/utafrali/stylinx/pkg/httputil"
)

// maxBodyBytes caps request bodies. A command with a full cart line is well
// under this.
const maxBodyBytes = 64 << 10

// ContentTypeJSON rejects POST bodies declared as anything but JSON and caps
// the body size.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
