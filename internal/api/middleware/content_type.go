package middleware

import (
	"net/http"
	"strings"

	"github.com/servifield/servifield/internal/api/models"
)

// ContentTypeJSON sets the Content-Type header to application/json. Problem
// responses override it with application/problem+json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects requests whose body claims a non-JSON content type.
// Only the mutating methods carry bodies here: incident creation, updates
// and resolution. An absent Content-Type is tolerated for bodyless POSTs
// like the manual check trigger.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
				traceID := GetRequestID(r.Context())
				problem := models.NewUnsupportedMediaType(traceID, "Request bodies must be application/json.")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
