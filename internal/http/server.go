package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"estatecrm/internal/auth"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
	"estatecrm/internal/middleware/ratelimit"
	"estatecrm/internal/middleware/security"
	"estatecrm/internal/middleware/trace"
	"estatecrm/internal/services"
	appweb "estatecrm/web"
)

const (
	requestTimeout = 10 * time.Second
	staticMaxAge   = 3600
)

// Checker is a named readiness probe.
type Checker func(ctx context.Context) error

// Deps are the collaborators of the server. Store, Loans, Transactions,
// Dashboard and Auth are required; the rest may be nil.
type Deps struct {
	Store         crm.Store
	Loans         *services.LoanService
	Transactions  *services.TransactionService
	Dashboard     *services.DashboardService
	Auth          *auth.Service
	Metrics       *metrics.Metrics
	Logger        *log.Logger
	RateLimit     ratelimit.Config
	SecureCookies bool
	Checks        map[string]Checker
}

type Server struct {
	http.Server
	deps      Deps
	logger    *log.Logger
	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	started   time.Time
	now       func() time.Time

	shutdownOnce sync.Once
}

type access int

const (
	public access = iota
	page
	api
)

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	s := &Server{
		deps:     deps,
		logger:   deps.Logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(deps.Logger),
		started:  time.Now(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger, deps.Metrics)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		s.handle(mux, "GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static).ServeHTTP, public)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	s.handle(mux, "GET /healthz", s.handleHealth, public)
	s.handle(mux, "GET /readyz", s.handleReady, public)
	if s.deps.Metrics != nil {
		s.handle(mux, "GET /metrics", s.deps.Metrics.Handler().ServeHTTP, public)
	}

	// Session
	s.handle(mux, "GET /login", s.handleLoginPage, public)
	s.handle(mux, "POST /login", s.handleLoginForm, public)
	s.handle(mux, "POST /logout", s.handleLogout, public)
	s.handle(mux, "POST /api/auth/login", s.handleAPILogin, public)
	s.handle(mux, "GET /api/me", s.handleMe, api)

	// Pages and htmx partials
	s.handle(mux, "GET /{$}", s.handleDashboard, page)
	for _, name := range []string{"projects", "properties", "clients", "loans", "investments", "transactions"} {
		s.handle(mux, "GET /"+name, s.handleListPage(name), page)
	}
	s.handle(mux, "GET /loans/{id}", s.handleLoanPage, page)
	s.handle(mux, "GET /ui/calculator", s.handleCalculatorForm, page)
	s.handle(mux, "POST /ui/calculator", s.handleCalculate, page)
	s.handle(mux, "POST /ui/loans", s.handleCreateLoanForm, page)
	s.handle(mux, "POST /ui/transactions", s.handleRecordTransactionForm, page)

	// JSON API
	store := s.deps.Store
	registerResource(s, mux, resource[core.Project, *core.Project]{name: "projects", repo: store.Projects()})
	registerResource(s, mux, resource[core.Property, *core.Property]{name: "properties", repo: store.Properties()})
	registerResource(s, mux, resource[core.Client, *core.Client]{name: "clients", repo: store.Clients()})
	registerResource(s, mux, resource[core.Investment, *core.Investment]{name: "investments", repo: store.Investments()})
	registerResource(s, mux, resource[core.Transaction, *core.Transaction]{
		name:   "transactions",
		repo:   store.Transactions(),
		create: s.deps.Transactions.Record,
	})
	registerResource(s, mux, resource[core.Loan, *core.Loan]{
		name:    "loans",
		repo:    store.Loans(),
		create:  s.deps.Loans.Create,
		update:  s.deps.Loans.Update,
		remove:  s.deps.Loans.Delete,
		skipGet: true,
	})
	s.handle(mux, "GET /api/loans/{id}", s.handleGetLoan, api)
	s.handle(mux, "GET /api/loans/{id}/schedule", s.handleLoanSchedule, api)
	s.handle(mux, "POST /api/loans/{id}/status", s.handleLoanStatus, api)
	s.handle(mux, "POST /api/loans/calculate", s.handleAPICalculate, api)
	s.handle(mux, "GET /api/dashboard", s.handleAPIDashboard, api)
}

// middleware wraps the mux, outermost first: request logger, tracing,
// request ID logging, probe detection, security headers, rate limiting.
func (s *Server) middleware(mux http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.deps.Metrics.RateLimited()
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:     "rate limit exceeded, please try again later",
			RequestID: trace.GetRequestID(r.Context()),
		})
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(s.deps.Logger)(h)
	return h
}

// handle registers h under pattern. The wrapper records the pattern for
// request metrics, bounds the request with a timeout and, unless the route
// is public, requires a valid session.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, level access) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), pattern)

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		if level != public {
			claims, err := s.deps.Auth.Authenticate(r)
			if err != nil {
				s.unauthorized(w, r, level)
				return
			}
			ctx = auth.WithClaims(ctx, claims)
			ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, claims.Subject))
			r = r.WithContext(ctx)
		}
		h(w, r)
	})
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, level access) {
	switch {
	case level == api:
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:     auth.ErrInvalidToken.Error(),
			RequestID: trace.GetRequestID(r.Context()),
		})
	case isHTMX(r):
		LoginRedirect().Write(w)
	default:
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
	}
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"requests":  s.tracer.TotalRequests(),
	})
}

// handleReady pings the store and every configured dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{}

	probe := func(name string, fn Checker) {
		if err := fn(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	probe("store", s.deps.Store.Ping)
	for name, fn := range s.deps.Checks {
		probe(name, fn)
	}
	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	sec := s.detector.GetMetrics()
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"security": map[string]int64{
			"suspicious_requests": sec.SuspiciousRequests,
			"invalid_ip_attempts": sec.InvalidIPAttempts,
			"rate_limited":        s.limiter.Rejected(),
		},
		"rate_limit_clients": s.limiter.ActiveClients(),
	})
}
