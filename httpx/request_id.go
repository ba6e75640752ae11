package httpx

import (
	"net/http"

	"github.com/diewo77/go-pos/internal/logging"
	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation id.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the incoming X-Request-ID or generates one, stores it
// in the context for the logger and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}
