package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
	"estatecrm/internal/amqp"
	"estatecrm/internal/cache"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
)

// ScheduleView is the cacheable form of an amortization schedule.
type ScheduleView struct {
	Summary       amortization.Summary `json:"summary"`
	Principal     decimal.Decimal      `json:"principal"`
	Entries       []amortization.Entry `json:"entries"`
	InterestPaid  decimal.Decimal      `json:"interest_paid"`
	PrincipalPaid decimal.Decimal      `json:"principal_paid"`
	Adjustment    decimal.Decimal      `json:"adjustment"`
}

// BalanceAfter mirrors amortization.Schedule.BalanceAfter on the view.
func (v ScheduleView) BalanceAfter(periods int) decimal.Decimal {
	switch {
	case periods <= 0:
		return v.Principal
	case periods >= len(v.Entries):
		return decimal.Zero
	default:
		return v.Entries[periods-1].RemainingBalance
	}
}

// PeriodsElapsed counts entries due on or before t.
func (v ScheduleView) PeriodsElapsed(t time.Time) int {
	n := 0
	for _, e := range v.Entries {
		if e.DueDate.After(t) {
			break
		}
		n++
	}
	return n
}

func newScheduleView(sum amortization.Summary, s *amortization.Schedule) ScheduleView {
	return ScheduleView{
		Summary:       sum,
		Principal:     s.Principal(),
		Entries:       s.Entries(),
		InterestPaid:  s.TotalInterest(),
		PrincipalPaid: s.TotalPrincipal(),
		Adjustment:    s.Adjustment(),
	}
}

// LoanService owns loan writes: it derives the engine figures, keeps status
// changes on the allowed transitions and announces changes as events.
type LoanService struct {
	store     crm.Store
	schedules cache.Cache[ScheduleView]
	events    EventPublisher
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewLoanService(store crm.Store, schedules cache.Cache[ScheduleView], events EventPublisher, m *metrics.Metrics, logger *log.Logger) *LoanService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LoanService{
		store:     store,
		schedules: schedules,
		events:    events,
		metrics:   m,
		logger:    logger.WithComponent(log.ComponentLoan),
	}
}

// Calculate runs the engine without touching storage.
func (s *LoanService) Calculate(terms amortization.Terms) (amortization.Summary, error) {
	sum, err := terms.Summarize()
	if err != nil {
		s.engineError(context.Background(), err, terms)
		return amortization.Summary{}, err
	}
	return sum, nil
}

// Schedule returns the schedule for terms, from cache when possible.
func (s *LoanService) Schedule(ctx context.Context, terms amortization.Terms) (ScheduleView, error) {
	key := terms.Key()
	if s.schedules != nil {
		if v, ok := s.schedules.Get(key); ok {
			return v, nil
		}
	}

	sum, err := terms.Summarize()
	if err != nil {
		s.engineError(ctx, err, terms)
		return ScheduleView{}, err
	}
	sched, err := terms.Schedule()
	if err != nil {
		s.engineError(ctx, err, terms)
		return ScheduleView{}, err
	}
	s.metrics.ScheduleGenerated()

	v := newScheduleView(sum, sched)
	if s.schedules != nil {
		s.schedules.Set(key, v)
	}
	return v, nil
}

func (s *LoanService) engineError(ctx context.Context, err error, terms amortization.Terms) {
	s.metrics.EngineError(err)
	if amortization.IsValidationError(err) {
		s.logger.DebugContext(ctx, "Rejected loan terms", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "Amortization failed",
		"error", err,
		"principal", terms.Principal.String(),
		"annual_rate", terms.AnnualRate.String(),
		"term_periods", terms.TermPeriods,
		"frequency", terms.Frequency)
}

func (s *LoanService) Get(ctx context.Context, id string) (core.Loan, error) {
	return s.store.Loans().Get(ctx, id)
}

func (s *LoanService) List(ctx context.Context, f crm.Filter) ([]core.Loan, error) {
	return s.store.Loans().List(ctx, f)
}

// ScheduleFor loads a loan and its schedule.
func (s *LoanService) ScheduleFor(ctx context.Context, id string) (core.Loan, ScheduleView, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return l, ScheduleView{}, err
	}
	v, err := s.Schedule(ctx, l.Terms())
	return l, v, err
}

// Create validates references, derives the engine figures and stores the
// loan. New loans always start active.
func (s *LoanService) Create(ctx context.Context, l *core.Loan) error {
	if l.Status == "" {
		l.Status = core.LoanActive
	}
	if l.Status != core.LoanActive {
		return fmt.Errorf("new loan with status %q: %w", l.Status, core.ErrInvalidStatus)
	}
	if err := s.checkReferences(ctx, *l); err != nil {
		return err
	}
	if err := l.Derive(); err != nil {
		s.engineError(ctx, err, l.Terms())
		return err
	}
	if err := s.store.Loans().Create(ctx, l); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	s.metrics.LoanCreated()
	log.NewStructuredLogger(s.logger).LogLoanCreated(ctx, l.ID, l.ClientID, l.Principal.Cents, l.PeriodicPayment.Cents)
	publish(ctx, s.events, s.metrics, s.logger, amqp.LoanCreated, l.ID, nil)
	return nil
}

// Update replaces the editable terms of a loan and re-derives its figures.
// The status is kept; it only changes through Transition.
func (s *LoanService) Update(ctx context.Context, l *core.Loan) error {
	current, err := s.store.Loans().Get(ctx, l.ID)
	if err != nil {
		return err
	}
	if current.Status.Terminal() {
		return fmt.Errorf("loan %s is %s: %w", l.ID, current.Status, core.ErrInvalidTransition)
	}
	l.Status = current.Status
	if err := s.checkReferences(ctx, *l); err != nil {
		return err
	}
	if err := l.Derive(); err != nil {
		s.engineError(ctx, err, l.Terms())
		return err
	}
	if err := s.store.Loans().Update(ctx, l); err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	s.logger.InfoContext(ctx, "Loan updated", "loan_id", l.ID)
	return nil
}

// Transition moves a loan to a new status.
func (s *LoanService) Transition(ctx context.Context, id string, next core.LoanStatus) (core.Loan, error) {
	l, err := s.store.Loans().Get(ctx, id)
	if err != nil {
		return l, err
	}
	prev := l.Status
	if err := l.Transition(next); err != nil {
		return l, err
	}
	if err := s.store.Loans().Update(ctx, &l); err != nil {
		return l, fmt.Errorf("update loan status: %w", err)
	}

	s.logger.InfoContext(ctx, "Loan status changed", "loan_id", id, "from", prev, "to", next)
	publish(ctx, s.events, s.metrics, s.logger, amqp.LoanStatusChanged, id,
		amqp.StatusChange{From: string(prev), To: string(next)})
	return l, nil
}

func (s *LoanService) Delete(ctx context.Context, id string) error {
	return s.store.Loans().Delete(ctx, id)
}

func (s *LoanService) checkReferences(ctx context.Context, l core.Loan) error {
	if _, err := s.store.Clients().Get(ctx, l.ClientID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("client %s: %w", l.ClientID, core.ErrMissingReference)
		}
		return err
	}
	if l.PropertyID != "" {
		if _, err := s.store.Properties().Get(ctx, l.PropertyID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("property %s: %w", l.PropertyID, core.ErrMissingReference)
			}
			return err
		}
	}
	return nil
}
