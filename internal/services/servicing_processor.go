package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
)

// ServicingResult summarises one sweep.
type ServicingResult struct {
	Checked     int
	PaidOff     int
	Failed      int
	Outstanding decimal.Decimal
}

// ServicingProcessor walks active loans: loans past their end date are
// marked paid-off, the rest report their scheduled balance.
type ServicingProcessor struct {
	store   crm.Store
	loans   *LoanService
	metrics *metrics.Metrics
	logger  *log.Logger
}

func NewServicingProcessor(store crm.Store, loans *LoanService, m *metrics.Metrics, logger *log.Logger) *ServicingProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	return &ServicingProcessor{
		store:   store,
		loans:   loans,
		metrics: m,
		logger:  logger.WithComponent(log.ComponentServicing),
	}
}

// Run performs one sweep as of now. Per-loan failures are logged and
// counted; only a failure to list loans aborts the sweep.
func (p *ServicingProcessor) Run(ctx context.Context, now time.Time) (ServicingResult, error) {
	res := ServicingResult{Outstanding: decimal.Zero}
	if p.store == nil || p.loans == nil {
		return res, fmt.Errorf("processor not properly initialized")
	}

	active, err := p.store.Loans().List(ctx, crm.Filter{Status: string(core.LoanActive)})
	if err != nil {
		p.metrics.ServicingRun("failure", 0)
		return res, fmt.Errorf("list active loans: %w", err)
	}

	p.logger.InfoContext(ctx, "Servicing active loans",
		"total_active", len(active),
		"as_of", now.Format(core.DateLayout))

	for _, l := range active {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++

		if !l.EndDate.IsZero() && !l.EndDate.After(now) {
			if _, err := p.loans.Transition(ctx, l.ID, core.LoanPaidOff); err != nil {
				res.Failed++
				p.logger.ErrorContext(ctx, "Failed to mark loan paid off", "loan_id", l.ID, "error", err)
				continue
			}
			res.PaidOff++
			continue
		}

		v, err := p.loans.Schedule(ctx, l.Terms())
		if err != nil {
			res.Failed++
			p.logger.ErrorContext(ctx, "Failed to build schedule", "loan_id", l.ID, "error", err)
			continue
		}
		elapsed := v.PeriodsElapsed(now)
		balance := v.BalanceAfter(elapsed)
		res.Outstanding = res.Outstanding.Add(balance)

		p.logger.DebugContext(ctx, "Loan balance",
			"loan_id", l.ID,
			"periods_elapsed", elapsed,
			"term_periods", l.TermPeriods,
			"balance", balance.StringFixed(2))
	}

	outcome := "success"
	if res.Failed > 0 {
		outcome = "partial"
	}
	outstanding, _ := res.Outstanding.Float64()
	p.metrics.ServicingRun(outcome, outstanding)

	p.logger.InfoContext(ctx, "Servicing sweep complete",
		"checked", res.Checked,
		"paid_off", res.PaidOff,
		"failed", res.Failed,
		"outstanding", res.Outstanding.StringFixed(2))
	return res, nil
}
