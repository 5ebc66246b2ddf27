// Package middleware provides the HTTP middleware chain of the media explorer.
//
// It includes:
//   - Request logging in W3C Extended Log Format through package logging
//   - Prometheus request metrics labelled by mux route template
//   - gzip compression for JSON and text responses
//   - Per-IP rate limiting for the API (github.com/go-chi/httprate)
//   - Security headers that disable content sniffing and framing
//   - X-Request-ID propagation and panic recovery
package middleware
