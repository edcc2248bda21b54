package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size (1MB)
	DefaultMaxRequestSize int64 = 1 << 20 // 1MB

	// requestEnvelopeOverhead leaves room for the JSON around the submitted text
	requestEnvelopeOverhead int64 = 4 << 10
)

// MaxRequestSize limits the size of request bodies. maxTextBytes is the largest
// text a client may submit; the JSON envelope around it is allowed on top.
func MaxRequestSize(maxTextBytes int64) func(http.Handler) http.Handler {
	if maxTextBytes <= 0 {
		maxTextBytes = DefaultMaxRequestSize
	}
	// JSON escaping can double the size of the text
	maxBytes := maxTextBytes*2 + requestEnvelopeOverhead

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check Content-Length header early if present
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "request body is too large", nil)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
