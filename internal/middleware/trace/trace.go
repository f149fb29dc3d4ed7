package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"
	"time"

	"estatecrm/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	routeKey     ContextKey = "route"

	// HeaderRequestID is echoed back on every response.
	HeaderRequestID = "X-Request-ID"

	// UnmatchedRoute labels requests that no route claimed.
	UnmatchedRoute = "unmatched"
)

var validRequestID = regexp.MustCompile(`^[A-Za-z0-9_\-]{8,64}$`)

// Observer receives one call per completed request. *metrics.Metrics
// satisfies it.
type Observer interface {
	ObserveRequest(method, route string, status int, d time.Duration)
}

// Middleware handles request tracing and logging
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	observer  Observer
	total     int64
}

// NewMiddleware creates a new trace middleware. observer may be nil.
func NewMiddleware(extractIP func(*http.Request) string, logger *log.Logger, observer Observer) *Middleware {
	if logger == nil {
		logger = log.Discard()
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(log.ComponentTrace),
		observer:  observer,
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if !validRequestID.MatchString(requestID) {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		route := &routeHolder{}
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, routeKey, route)
		r = r.WithContext(ctx)

		sl := log.NewStructuredLogger(m.logger.With(log.FieldRequestID, requestID))
		sl.LogHTTPStart(ctx, r, clientIP)
		atomic.AddInt64(&m.total, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		sl.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
		if m.observer != nil {
			m.observer.ObserveRequest(r.Method, route.get(), rw.statusCode, duration)
		}
	})
}

// TotalRequests returns the number of requests seen since start.
func (m *Middleware) TotalRequests() int64 {
	return atomic.LoadInt64(&m.total)
}

type routeHolder struct {
	pattern atomic.Value
}

func (h *routeHolder) get() string {
	if p, ok := h.pattern.Load().(string); ok && p != "" {
		return p
	}
	return UnmatchedRoute
}

// SetRoute records the mux pattern that served the request. The router
// calls it from inside the matched handler, where the pattern is known.
func SetRoute(ctx context.Context, pattern string) {
	if h, ok := ctx.Value(routeKey).(*routeHolder); ok {
		h.pattern.Store(pattern)
	}
}

// Route returns the pattern recorded by SetRoute.
func Route(ctx context.Context) string {
	if h, ok := ctx.Value(routeKey).(*routeHolder); ok {
		return h.get()
	}
	return UnmatchedRoute
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestID reads the request ID of r; it fits log.RequestIDMiddleware.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}
