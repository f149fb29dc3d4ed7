package http

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"estatecrm/internal/auth"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/services"
)

// view is the data every full page receives.
type view struct {
	User *auth.Claims
	Nav  string
	Data any
}

type tableRow struct {
	Link  string
	Cells []string
}

type tablePage struct {
	Title    string
	Resource string
	Columns  []string
	Rows     []tableRow
	Filter   crm.Filter
	Clients  []core.Client
}

type loanPage struct {
	Loan         core.Loan
	Schedule     services.ScheduleView
	Elapsed      int
	BalanceToday string
	Transactions []core.Transaction
}

type calculatorResult struct {
	View         services.ScheduleView
	WithSchedule bool
}

// render executes a page template into a buffer so that a failing template
// never leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	claims, _ := auth.FromContext(r.Context())
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, view{User: claims, Nav: r.URL.Path, Data: data}); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpRender,
			"template", name)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial renders an htmx fragment with the raw data.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		ErrorFragment(http.StatusInternalServerError, "Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Partial template failed",
			log.FieldError, err.Error(),
			"template", name)
		ErrorFragment(http.StatusInternalServerError, "Rendering failed").Write(w)
		return
	}
	NewHTMXResponse().Fragment(buf.Bytes()).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Dashboard.Build(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Dashboard build failed", log.FieldError, err.Error())
		http.Error(w, "dashboard unavailable", statusFor(err))
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_page", d)
}

// handleListPage renders the table of one resource.
func (s *Server) handleListPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p, err := s.buildTable(r, name, f)
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "List page failed",
				log.FieldError, err.Error(),
				log.FieldOperation, log.OpList,
				"resource", name)
			http.Error(w, http.StatusText(statusFor(err)), statusFor(err))
			return
		}
		s.render(w, r, http.StatusOK, "list_page", p)
	}
}

func (s *Server) buildTable(r *http.Request, name string, f crm.Filter) (tablePage, error) {
	ctx := r.Context()
	store := s.deps.Store
	p := tablePage{Resource: name, Filter: f}

	switch name {
	case "projects":
		items, err := store.Projects().List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Projects", []string{"Name", "Developer", "City", "Status"}
		for _, v := range items {
			p.Rows = append(p.Rows, tableRow{Cells: []string{v.Name, v.Developer, v.City, string(v.Status)}})
		}
	case "properties":
		items, err := store.Properties().List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Properties", []string{"Title", "Address", "Kind", "Price", "Area (m²)", "Status"}
		for _, v := range items {
			p.Rows = append(p.Rows, tableRow{Cells: []string{
				v.Title, v.Address, string(v.Kind), formatMoney(v.Price),
				strconv.FormatFloat(v.AreaSqm, 'f', -1, 64), string(v.Status),
			}})
		}
	case "clients":
		items, err := store.Clients().List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Clients", []string{"Name", "Email", "Phone", "Kind"}
		for _, v := range items {
			p.Rows = append(p.Rows, tableRow{Cells: []string{v.FullName, v.Email, v.Phone, string(v.Kind)}})
		}
	case "loans":
		items, err := s.deps.Loans.List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Loans", []string{"Client", "Principal", "Rate %", "Term", "Payment", "Ends", "Status"}
		for _, v := range items {
			p.Rows = append(p.Rows, tableRow{Link: "/loans/" + v.ID, Cells: []string{
				v.ClientID, formatMoney(v.Principal), v.AnnualRate.String(),
				fmt.Sprintf("%d %s", v.TermPeriods, v.Frequency), formatMoney(v.PeriodicPayment),
				v.EndDate.String(), string(v.Status),
			}})
		}
		if p.Clients, err = store.Clients().List(ctx, crm.Filter{}); err != nil {
			return p, err
		}
	case "investments":
		items, err := store.Investments().List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Investments", []string{"Client", "Property", "Amount", "Expected return %", "Start", "Status"}
		for _, v := range items {
			p.Rows = append(p.Rows, tableRow{Cells: []string{
				v.ClientID, v.PropertyID, formatMoney(v.Amount), v.ExpectedReturnPct.String(),
				v.StartDate.String(), string(v.Status),
			}})
		}
	case "transactions":
		items, err := s.deps.Transactions.List(ctx, f)
		if err != nil {
			return p, err
		}
		p.Title, p.Columns = "Transactions", []string{"Date", "Kind", "Amount", "Loan", "Client", "Description"}
		for _, v := range items {
			row := tableRow{Cells: []string{
				v.Date.String(), string(v.Kind), formatMoney(v.Amount), v.LoanID, v.ClientID, v.Description,
			}}
			if v.LoanID != "" {
				row.Link = "/loans/" + v.LoanID
			}
			p.Rows = append(p.Rows, row)
		}
	default:
		return p, fmt.Errorf("resource %q: %w", name, core.ErrNotFound)
	}
	return p, nil
}

func (s *Server) handleLoanPage(w http.ResponseWriter, r *http.Request) {
	l, sched, err := s.deps.Loans.ScheduleFor(r.Context(), r.PathValue("id"))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Loan page failed",
				log.FieldError, err.Error(),
				log.FieldLoanID, r.PathValue("id"))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), crm.Filter{LoanID: l.ID})
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Loan transactions unavailable", log.FieldError, err.Error())
	}

	elapsed := sched.PeriodsElapsed(s.now())
	s.render(w, r, http.StatusOK, "loan_page", loanPage{
		Loan:         l,
		Schedule:     sched,
		Elapsed:      elapsed,
		BalanceToday: formatMoney(sched.BalanceAfter(elapsed)),
		Transactions: txs,
	})
}

func (s *Server) handleCalculatorForm(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		s.renderPartial(w, r, "calculator_form", nil)
		return
	}
	s.render(w, r, http.StatusOK, "calculator_page", nil)
}

// handleCalculate renders the summary, and the schedule when asked.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ErrorFragment(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}
	terms, err := ParseTerms(p, s.now())
	if err != nil {
		writeHTMLError(w, r, err)
		return
	}
	sched, err := s.deps.Loans.Schedule(r.Context(), terms)
	if err != nil {
		writeHTMLError(w, r, err)
		return
	}
	s.renderPartial(w, r, "calculator_result", calculatorResult{
		View:         sched,
		WithSchedule: p.Get("schedule") == "on" || p.Get("schedule") == "true",
	})
}

func (s *Server) handleCreateLoanForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ErrorFragment(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}
	terms, err := ParseTerms(p, s.now())
	if err != nil {
		writeHTMLError(w, r, err)
		return
	}
	l := core.Loan{
		ClientID:    p.Get("client_id"),
		PropertyID:  p.Get("property_id"),
		Principal:   core.MoneyFromDecimal(terms.Principal),
		AnnualRate:  terms.AnnualRate,
		TermPeriods: terms.TermPeriods,
		Frequency:   terms.Frequency,
		StartDate:   core.DateOf(terms.StartDate),
	}
	if err := s.deps.Loans.Create(r.Context(), &l); err != nil {
		writeHTMLError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerLoanCreated(l.ID).
		TriggerFormReset().
		Notify(NotificationSuccess, "Loan created").
		Fragment(loanCreatedFragment(l)).
		Write(w)
}

func (s *Server) handleRecordTransactionForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		ErrorFragment(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}
	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		ErrorFragment(http.StatusUnprocessableEntity, "Invalid amount").Write(w)
		return
	}
	date := core.DateOf(s.now())
	if v := p.Get("date"); v != "" {
		if date, err = core.ParseDate(v); err != nil {
			ErrorFragment(http.StatusUnprocessableEntity, "Invalid date").Write(w)
			return
		}
	}
	t := core.Transaction{
		Kind:        core.TransactionKind(p.Get("kind")),
		Amount:      amount,
		Date:        date,
		ClientID:    p.Get("client_id"),
		LoanID:      p.Get("loan_id"),
		PropertyID:  p.Get("property_id"),
		Description: p.Get("description"),
	}
	if err := s.deps.Transactions.Record(r.Context(), &t); err != nil {
		writeHTMLError(w, r, err)
		return
	}

	NewHTMXResponse().
		TriggerTransactionRecorded(t.ID).
		TriggerDashboardRefresh().
		TriggerFormReset().
		Notify(NotificationSuccess, "Transaction recorded").
		Message("success", "Recorded %s of %s on %s", t.Kind, formatMoney(t.Amount), t.Date).
		Write(w)
}

func loanCreatedFragment(l core.Loan) []byte {
	id := template.HTMLEscapeString(l.ID)
	return []byte(fmt.Sprintf(`<div class="success">Loan <a href="/loans/%s">%s</a> created: %s per period until %s</div>`,
		id, id, template.HTMLEscapeString(formatMoney(l.PeriodicPayment)), l.EndDate))
}
