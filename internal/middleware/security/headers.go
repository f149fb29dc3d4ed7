package security

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds security headers configuration. Empty values are not
// sent.
type HeadersConfig struct {
	CSP string

	// HSTS is only sent over TLS
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	PermissionsPolicy   string
	CrossOriginOpener   string
	CrossOriginEmbedder string
	CrossOriginResource string
}

// DefaultHeadersConfig returns the headers used by the CRM pages. htmx is
// loaded from unpkg, so no embedder policy is set.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'self'; " +
			"script-src 'self' https://unpkg.com; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'",

		HSTSMaxAge:            31536000,
		HSTSIncludeSubdomains: true,

		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "strict-origin-when-cross-origin",
		PermissionsPolicy:   "geolocation=(), microphone=(), camera=(), payment=()",
		CrossOriginOpener:   "same-origin",
		CrossOriginResource: "same-origin",
	}
}

// HeadersMiddleware applies security headers to responses
type HeadersMiddleware struct {
	headers [][2]string
	hsts    string
}

// NewHeadersMiddleware creates a new security headers middleware
func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	h := &HeadersMiddleware{}
	for _, kv := range [][2]string{
		{"Content-Security-Policy", config.CSP},
		{"X-Frame-Options", config.XFrameOptions},
		{"X-Content-Type-Options", config.XContentTypeOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
		{"Permissions-Policy", config.PermissionsPolicy},
		{"Cross-Origin-Opener-Policy", config.CrossOriginOpener},
		{"Cross-Origin-Embedder-Policy", config.CrossOriginEmbedder},
		{"Cross-Origin-Resource-Policy", config.CrossOriginResource},
	} {
		if kv[1] != "" {
			h.headers = append(h.headers, kv)
		}
	}
	if config.HSTSMaxAge > 0 {
		h.hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			h.hsts += "; includeSubDomains"
		}
		if config.HSTSPreload {
			h.hsts += "; preload"
		}
	}
	return h
}

// Middleware returns the HTTP middleware function
func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		for _, kv := range h.headers {
			headers.Set(kv[0], kv[1])
		}
		if r.TLS != nil && h.hsts != "" {
			headers.Set("Strict-Transport-Security", h.hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware adds caching headers for static assets
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
