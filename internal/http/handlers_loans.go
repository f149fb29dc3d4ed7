package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
	"estatecrm/internal/auth"
	"estatecrm/internal/core"
	"estatecrm/internal/services"
)

type loanBody struct {
	core.Loan
	Schedule *scheduleBody `json:"schedule,omitempty"`
}

type calculationBody struct {
	summaryBody
	Schedule *scheduleBody `json:"schedule,omitempty"`
}

// Engine amounts go out with two fixed places, the same as core.Money.
type summaryBody struct {
	PeriodicPayment string    `json:"periodic_payment"`
	TotalInterest   string    `json:"total_interest"`
	EndDate         time.Time `json:"end_date"`
}

type entryBody struct {
	Period           int       `json:"period"`
	DueDate          time.Time `json:"due_date"`
	Payment          string    `json:"payment"`
	Interest         string    `json:"interest"`
	Principal        string    `json:"principal"`
	RemainingBalance string    `json:"remaining_balance"`
}

type scheduleBody struct {
	Summary       summaryBody `json:"summary"`
	Principal     string      `json:"principal"`
	Entries       []entryBody `json:"entries"`
	InterestPaid  string      `json:"interest_paid"`
	PrincipalPaid string      `json:"principal_paid"`
	Adjustment    string      `json:"adjustment"`
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(amortization.MinorUnitPlaces)
}

func newSummaryBody(sum amortization.Summary) summaryBody {
	return summaryBody{
		PeriodicPayment: fixed(sum.PeriodicPayment),
		TotalInterest:   fixed(sum.TotalInterest),
		EndDate:         sum.EndDate,
	}
}

func newScheduleBody(v services.ScheduleView) *scheduleBody {
	entries := make([]entryBody, len(v.Entries))
	for i, e := range v.Entries {
		entries[i] = entryBody{
			Period:           e.Period,
			DueDate:          e.DueDate,
			Payment:          fixed(e.Payment),
			Interest:         fixed(e.Interest),
			Principal:        fixed(e.Principal),
			RemainingBalance: fixed(e.RemainingBalance),
		}
	}
	return &scheduleBody{
		Summary:       newSummaryBody(v.Summary),
		Principal:     fixed(v.Principal),
		Entries:       entries,
		InterestPaid:  fixed(v.InterestPaid),
		PrincipalPaid: fixed(v.PrincipalPaid),
		Adjustment:    fixed(v.Adjustment),
	}
}

type statusRequest struct {
	Status core.LoanStatus `json:"status"`
}

// handleGetLoan returns a loan; ?schedule=true adds its full schedule.
func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !queryBool(r, "schedule") {
		l, err := s.deps.Loans.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, loanBody{Loan: l})
		return
	}

	l, view, err := s.deps.Loans.ScheduleFor(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loanBody{Loan: l, Schedule: newScheduleBody(view)})
}

func (s *Server) handleLoanSchedule(w http.ResponseWriter, r *http.Request) {
	_, view, err := s.deps.Loans.ScheduleFor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScheduleBody(view))
}

func (s *Server) handleLoanStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Status.IsValid() {
		writeError(w, r, fmt.Errorf("loan status %q: %w", req.Status, core.ErrInvalidStatus))
		return
	}
	l, err := s.deps.Loans.Transition(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleAPICalculate runs the engine on ad-hoc terms. The summary is always
// returned; ?schedule=true adds the entries.
func (s *Server) handleAPICalculate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		writeError(w, r, err)
		return
	}
	terms, err := ParseTerms(p, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	if queryBool(r, "schedule") || p.Get("schedule") == "true" {
		view, err := s.deps.Loans.Schedule(r.Context(), terms)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, calculationBody{summaryBody: newSummaryBody(view.Summary), Schedule: newScheduleBody(view)})
		return
	}

	sum, err := s.deps.Loans.Calculate(terms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calculationBody{summaryBody: newSummaryBody(sum)})
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Dashboard.Build(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         claims.Subject,
		"email":      claims.Email,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time,
	})
}
