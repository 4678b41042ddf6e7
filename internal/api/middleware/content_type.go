package middleware

import (
	"mime"
	"net/http"

	"github.com/transportco2/transportco2/internal/api/models"
)

// RequireJSON rejects POST, PUT and PATCH bodies that declare a media type
// other than application/json. Requests without a Content-Type pass.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if contentType := r.Header.Get("Content-Type"); contentType != "" {
				mediaType, _, err := mime.ParseMediaType(contentType)
				if err != nil || mediaType != "application/json" {
					writeProblem(w, r, models.NewUnsupportedMediaType(GetRequestID(r.Context()), "Content-Type must be application/json"))
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
