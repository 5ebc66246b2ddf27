package middleware

import (
	"context"
	"net/http"
	"runtime"

	"media-explorer/internal/logging"

	"github.com/google/uuid"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLength = 64

type requestIDKey struct{}

// RequestID tags every request with an ID, reusing a well-formed client
// supplied X-Request-ID and generating one otherwise. The ID is echoed in the
// response and stored in the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the ID set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// validRequestID accepts short IDs made of characters that are safe in a log
// field and a header value.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}

// Recoverer turns a handler panic into a 500 and logs it with the stack. The
// response is only written if the handler had not started one.
// http.ErrAbortHandler is re-panicked so net/http can abort the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := newStatusRecorder(w)
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			buf := make([]byte, 8192)
			buf = buf[:runtime.Stack(buf, false)]
			logging.Error("panic serving %s %s (request %s): %v\n%s",
				r.Method, sanitizeLogField(r.URL.Path), orDash(RequestIDFromContext(r.Context())), v, buf)

			if !rec.wroteHeader {
				http.Error(rec, "Internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(rec, r)
	})
}
