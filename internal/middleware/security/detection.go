package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"estatecrm/internal/log"
)

var (
	suspiciousPatterns = []string{
		"../", "..\\", ".env", "wp-admin", "phpmyadmin",
		"admin.php", "config.php", ".git", ".ssh",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	suspiciousAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
	}
	unusualMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

const (
	maxURLLength     = 2048
	maxForwardedHops = 5
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags probing requests and resolves client IPs behind trusted
// proxies.
type Detector struct {
	suspicious     int64
	invalidIP      int64
	trustedProxies []*net.IPNet
	logger         *log.Logger
}

// NewDetector trusts loopback and the private ranges as proxies.
func NewDetector(logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Discard()
	}
	return &Detector{
		logger: logger.WithComponent(log.ComponentSecurity),
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("::1/128"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports whether r looks like a scanner or an
// injection probe.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	suspicious := unusualMethods[r.Method] || len(r.URL.String()) > maxURLLength

	path := strings.ToLower(r.URL.Path)
	query := r.URL.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}
	query = strings.ToLower(query)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			suspicious = true
			break
		}
	}

	userAgent := strings.ToLower(r.Header.Get("User-Agent"))
	for _, agent := range suspiciousAgents {
		if strings.Contains(userAgent, agent) {
			suspicious = true
			break
		}
	}

	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > maxForwardedHops {
		suspicious = true
	}

	if suspicious {
		atomic.AddInt64(&d.suspicious, 1)
	}
	return suspicious
}

// Middleware logs suspicious requests and refuses unusual methods. Other
// suspicious requests continue so that routing answers them normally.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d.DetectSuspiciousRequest(r) {
			d.logger.WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
			if unusualMethods[r.Method] {
				http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the connecting IP, or the forwarded client IP
// when the connection comes from a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !d.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
		atomic.AddInt64(&d.invalidIP, 1)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
		atomic.AddInt64(&d.invalidIP, 1)
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.suspicious),
		InvalidIPAttempts:  atomic.LoadInt64(&d.invalidIP),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
