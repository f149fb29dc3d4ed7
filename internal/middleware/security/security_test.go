package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name   string
		remote string
		xff    string
		realIP string
		want   string
	}{
		{name: "direct", remote: "203.0.113.5:1234", want: "203.0.113.5"},
		{name: "untrusted proxy ignores headers", remote: "203.0.113.5:1234", xff: "198.51.100.1", want: "203.0.113.5"},
		{name: "trusted proxy forwarded", remote: "10.1.2.3:80", xff: "198.51.100.1, 10.1.2.3", want: "198.51.100.1"},
		{name: "trusted proxy real ip", remote: "127.0.0.1:80", realIP: "198.51.100.2", want: "198.51.100.2"},
		{name: "trusted proxy garbage", remote: "192.168.1.1:80", xff: "not-an-ip", want: "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, d.ExtractClientIP(r))
		})
	}
	assert.Equal(t, int64(1), d.GetMetrics().InvalidIPAttempts)
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(nil)

	assert.False(t, d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/loans?status=active", nil)))
	assert.True(t, d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/.env", nil)))
	assert.True(t, d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/api/clients?q=1%20union%20select", nil)))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	assert.True(t, d.DetectSuspiciousRequest(r))

	assert.Equal(t, int64(3), d.GetMetrics().SuspiciousRequests)
	require.Error(t, d.AddTrustedProxy("nonsense"))
}

func TestDetectorMiddlewareRejectsTrace(t *testing.T) {
	d := NewDetector(nil)
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://unpkg.com")
	assert.Empty(t, rec.Header().Get("Cross-Origin-Embedder-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}
