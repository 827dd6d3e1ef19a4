package request

import (
	"net/http"

	"mesa/pkg/platform/httputil"
)

// BodyLimit caps request body size. Requests that declare an oversized body
// via Content-Length are rejected up front with a JSON 413; everything else
// goes through http.MaxBytesReader so chunked uploads hit the same cap while
// being read. Registration payloads are small, so the cap can be tight.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
					"error": "payload_too_large",
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
