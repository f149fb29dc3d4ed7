package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/auth"
	"estatecrm/internal/cache"
	"estatecrm/internal/core"
	"estatecrm/internal/log"
	"estatecrm/internal/memory"
	"estatecrm/internal/metrics"
	"estatecrm/internal/middleware/ratelimit"
	"estatecrm/internal/services"
)

type testEnv struct {
	srv     *Server
	store   *memory.Store
	metrics *metrics.Metrics
	token   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.Discard()
	store := memory.New()
	m := metrics.New()

	loans := services.NewLoanService(store, cache.NewLRUCache[services.ScheduleView](32, time.Minute), nil, m, logger)
	txs := services.NewTransactionService(store, nil, m, logger)
	authSvc := auth.NewService(store.Users(), "test-secret", time.Hour, logger)

	u, err := authSvc.CreateUser(context.Background(), "agent@example.com", "Agent", "correct-horse", core.RoleAgent)
	require.NoError(t, err)
	token, _, err := authSvc.IssueToken(u)
	require.NoError(t, err)

	srv := NewServer(":0", Deps{
		Store:        store,
		Loans:        loans,
		Transactions: txs,
		Dashboard:    services.NewDashboardService(store, loans, logger),
		Auth:         authSvc,
		Metrics:      m,
		Logger:       logger,
		RateLimit:    ratelimit.Config{RequestsPerMinute: 1000},
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{srv: srv, store: store, metrics: m, token: token}
}

// do sends a request through the full middleware chain. A non-nil body is
// encoded as JSON.
func (e *testEnv) do(t *testing.T, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func (e *testEnv) createClient(t *testing.T) core.Client {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/clients", map[string]any{
		"full_name": "Ada Moss",
		"email":     "ada@example.com",
		"kind":      "buyer",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[core.Client](t, rr)
}

func (e *testEnv) createLoan(t *testing.T, clientID string) core.Loan {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/loans", map[string]any{
		"client_id":    clientID,
		"principal":    "100000",
		"annual_rate":  "6",
		"term_periods": 12,
		"frequency":    "monthly",
		"start_date":   "2024-01-01",
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[core.Loan](t, rr)
}

func TestHealthAndReady(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rr)["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	rr = e.do(t, http.MethodGet, "/readyz", nil, false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode[map[string]any](t, rr)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "ok", body["checks"].(map[string]any)["templates"])
}

func TestReadyReportsFailingCheck(t *testing.T) {
	e := newTestEnv(t)
	e.srv.deps.Checks = map[string]Checker{
		"amqp": func(context.Context) error { return context.DeadlineExceeded },
	}

	rr := e.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestAPIRequiresToken(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/loans", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, auth.ErrInvalidToken.Error(), decode[errorBody](t, rr).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPagesRedirectToLogin(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/loans?status=active", nil, false)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/loans?status=active"), rr.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rr = httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("HX-Redirect"))
}

func TestLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/login", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Sign in")

	rr = e.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "agent@example.com", Password: "wrong-password"}, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "agent@example.com", Password: "correct-horse"}, false)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[loginResponse](t, rr)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "agent@example.com", resp.User.Email)

	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			session = c
		}
	}
	require.NotNil(t, session)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(session)
	page := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(page, req)
	assert.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Outstanding principal")
}

func TestLoginFormRejectsOpenRedirect(t *testing.T) {
	e := newTestEnv(t)

	form := url.Values{"email": {"agent@example.com"}, "password": {"correct-horse"}, "next": {"//evil.example"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestClientCRUD(t *testing.T) {
	e := newTestEnv(t)
	c := e.createClient(t)
	require.NotEmpty(t, c.ID)

	rr := e.do(t, http.MethodGet, "/api/clients/"+c.ID, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ada Moss", decode[core.Client](t, rr).FullName)

	c.Phone = "+39 333 000"
	rr = e.do(t, http.MethodPut, "/api/clients/"+c.ID, c, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/api/clients", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[listBody[core.Client]](t, rr)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "+39 333 000", list.Items[0].Phone)

	rr = e.do(t, http.MethodDelete, "/api/clients/"+c.ID, nil, true)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = e.do(t, http.MethodGet, "/api/clients/"+c.ID, nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateRejectsUnknownFields(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/clients", map[string]any{"full_name": "X", "nickname": "y"}, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoanLifecycle(t *testing.T) {
	e := newTestEnv(t)
	c := e.createClient(t)
	l := e.createLoan(t, c.ID)

	assert.Equal(t, core.LoanActive, l.Status)
	assert.Equal(t, "8606.64", l.PeriodicPayment.String())
	assert.Equal(t, "2025-01-01", l.EndDate.String())

	rr := e.do(t, http.MethodGet, "/api/loans/"+l.ID+"?schedule=true", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[loanBody](t, rr)
	require.NotNil(t, body.Schedule)
	require.Len(t, body.Schedule.Entries, 12)
	assert.Equal(t, "0.00", body.Schedule.Entries[11].RemainingBalance)
	assert.Equal(t, "500.00", body.Schedule.Entries[0].Interest)

	rr = e.do(t, http.MethodGet, "/api/loans/"+l.ID+"/schedule", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[services.ScheduleView](t, rr)
	assert.Len(t, view.Entries, 12)
	assert.Equal(t, "8606.64", view.Summary.PeriodicPayment.String())

	rr = e.do(t, http.MethodPost, "/api/loans/"+l.ID+"/status", statusRequest{Status: core.LoanPaidOff}, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, core.LoanPaidOff, decode[core.Loan](t, rr).Status)

	rr = e.do(t, http.MethodPost, "/api/loans/"+l.ID+"/status", statusRequest{Status: core.LoanActive}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = e.do(t, http.MethodPost, "/api/loans/"+l.ID+"/status", statusRequest{Status: "frozen"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestLoanNotFound(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/loans/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, decode[errorBody](t, rr).RequestID)

	rr = e.do(t, http.MethodGet, "/loans/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoanRequiresExistingClient(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/loans", map[string]any{
		"client_id":    "nobody",
		"principal":    "1000",
		"annual_rate":  "5",
		"term_periods": 12,
		"frequency":    "monthly",
		"start_date":   "2024-01-01",
	}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCalculate(t *testing.T) {
	e := newTestEnv(t)
	terms := map[string]any{
		"principal":    "100000",
		"annual_rate":  "6",
		"term_periods": 12,
		"start_date":   "2024-01-01",
	}

	rr := e.do(t, http.MethodPost, "/api/loans/calculate", terms, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var sum struct {
		PeriodicPayment decimal.Decimal       `json:"periodic_payment"`
		TotalInterest   decimal.Decimal       `json:"total_interest"`
		Schedule        *services.ScheduleView `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	assert.Equal(t, "8606.64", sum.PeriodicPayment.StringFixed(2))
	assert.Equal(t, "3279.68", sum.TotalInterest.StringFixed(2))
	assert.Nil(t, sum.Schedule)

	rr = e.do(t, http.MethodPost, "/api/loans/calculate?schedule=true", terms, true)
	require.Equal(t, http.StatusOK, rr.Code)
	sum.Schedule = nil
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sum))
	require.NotNil(t, sum.Schedule)
	assert.Len(t, sum.Schedule.Entries, 12)
}

func TestCalculateRejectsBadTerms(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name  string
		terms map[string]any
		want  int
	}{
		{"negative rate", map[string]any{"principal": "1000", "annual_rate": "-1", "term_periods": 12}, http.StatusUnprocessableEntity},
		{"zero principal", map[string]any{"principal": "0", "annual_rate": "5", "term_periods": 12}, http.StatusUnprocessableEntity},
		{"zero term", map[string]any{"principal": "1000", "annual_rate": "5", "term_periods": 0}, http.StatusUnprocessableEntity},
		{"weekly", map[string]any{"principal": "1000", "annual_rate": "5", "term_periods": 12, "frequency": "weekly"}, http.StatusUnprocessableEntity},
		{"term past year 9999", map[string]any{"principal": "1000", "annual_rate": "5", "term_periods": 120000, "frequency": "annually"}, http.StatusUnprocessableEntity},
		{"overflowing term", map[string]any{"principal": "1000", "annual_rate": "5", "term_periods": "4611686018427387904"}, http.StatusUnprocessableEntity},
		{"term above maximum", map[string]any{"principal": "1000", "annual_rate": "5", "term_periods": 601}, http.StatusUnprocessableEntity},
		{"rate above maximum", map[string]any{"principal": "1000", "annual_rate": "1001", "term_periods": 12}, http.StatusUnprocessableEntity},
		{"principal above maximum", map[string]any{"principal": "1000000001", "annual_rate": "5", "term_periods": 12}, http.StatusUnprocessableEntity},
		{"sub-cent principal", map[string]any{"principal": "1000.005", "annual_rate": "5", "term_periods": 12}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/api/loans/calculate", tt.terms, true)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestCalculate_FixedPlaceAmounts(t *testing.T) {
	e := newTestEnv(t)
	terms := map[string]any{
		"principal":    "12000",
		"annual_rate":  "0",
		"term_periods": 12,
		"start_date":   "2024-01-01",
	}

	rr := e.do(t, http.MethodPost, "/api/loans/calculate?schedule=true", terms, true)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, `"periodic_payment":"1000.00"`)
	assert.Contains(t, body, `"total_interest":"0.00"`)
	assert.Contains(t, body, `"interest":"0.00"`)
	assert.Contains(t, body, `"principal":"12000.00"`)
	assert.NotContains(t, body, `"1000"`)
}

func TestCalculatorPartial(t *testing.T) {
	e := newTestEnv(t)

	form := url.Values{
		"principal":    {"100000"},
		"annual_rate":  {"6"},
		"term_periods": {"12"},
		"start_date":   {"2024-01-01"},
		"schedule":     {"on"},
	}
	req := httptest.NewRequest(http.MethodPost, "/ui/calculator", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.Header.Set("Authorization", "Bearer "+e.token)
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), "8,606.64")
	assert.Contains(t, rr.Body.String(), "2025-01-01")
}

func TestRecordTransactionAndDashboard(t *testing.T) {
	e := newTestEnv(t)
	c := e.createClient(t)
	l := e.createLoan(t, c.ID)

	rr := e.do(t, http.MethodPost, "/api/transactions", map[string]any{
		"kind":      "payment",
		"amount":    "8606.64",
		"date":      "2024-02-01",
		"loan_id":   l.ID,
		"client_id": c.ID,
	}, true)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = e.do(t, http.MethodGet, "/api/transactions?loan_id="+l.ID, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decode[listBody[core.Transaction]](t, rr).Count)

	rr = e.do(t, http.MethodGet, "/api/dashboard", nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	d := decode[core.Dashboard](t, rr)
	assert.Equal(t, 1, d.ActiveLoans)
	assert.Equal(t, 1, d.Clients)

	rr = e.do(t, http.MethodGet, "/loans/"+l.ID, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "8,606.64")
}

func TestBadFilter(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/loans?limit=lots", nil, true)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodGet, "/api/loans/abc", nil, true)
	e.do(t, http.MethodGet, "/nowhere", nil, false)

	rr := e.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `route="GET /api/loans/{id}"`)
	assert.Contains(t, body, `route="unmatched"`)
	assert.NotContains(t, body, "/api/loans/abc")
}

func TestSecurityHeadersAndProbeBlocking(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = e.do(t, "TRACE", "/healthz", nil, false)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	logger := log.Discard()
	store := memory.New()
	loans := services.NewLoanService(store, nil, nil, nil, logger)
	srv := NewServer(":0", Deps{
		Store:        store,
		Loans:        loans,
		Transactions: services.NewTransactionService(store, nil, nil, logger),
		Dashboard:    services.NewDashboardService(store, loans, logger),
		Auth:         auth.NewService(store.Users(), "s", time.Hour, logger),
		RateLimit:    ratelimit.Config{RequestsPerMinute: 2},
	})
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`))
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
