package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
	"estatecrm/internal/log"
)

const recentTransactions = 8

// DashboardService assembles the landing-page overview.
type DashboardService struct {
	store  crm.Store
	loans  *LoanService
	now    func() time.Time
	logger *log.Logger
}

func NewDashboardService(store crm.Store, loans *LoanService, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{store: store, loans: loans, now: time.Now, logger: logger}
}

// Build loads every section concurrently.
func (s *DashboardService) Build(ctx context.Context) (core.Dashboard, error) {
	var (
		d           core.Dashboard
		loans       []core.Loan
		investments []core.Investment
		txs         []core.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, r interface{ Count(context.Context) (int, error) }) func() error {
		return func() error {
			n, err := r.Count(gctx)
			*dst = n
			return err
		}
	}
	g.Go(count(&d.Projects, s.store.Projects()))
	g.Go(count(&d.Properties, s.store.Properties()))
	g.Go(count(&d.Clients, s.store.Clients()))
	g.Go(func() (err error) {
		loans, err = s.store.Loans().List(gctx, crm.Filter{Status: string(core.LoanActive)})
		return err
	})
	g.Go(func() (err error) {
		investments, err = s.store.Investments().List(gctx, crm.Filter{Status: string(core.InvestmentOpen)})
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.store.Transactions().List(gctx, crm.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return d, fmt.Errorf("load dashboard: %w", err)
	}

	d.ActiveLoans = len(loans)
	d.Investments = len(investments)
	for _, inv := range investments {
		d.Invested = d.Invested.Add(inv.Amount)
	}

	byKind := map[core.TransactionKind]core.Money{}
	for _, t := range txs {
		if t.Inflow() {
			d.Inflow = d.Inflow.Add(t.Amount)
		} else {
			d.Outflow = d.Outflow.Add(t.Amount)
		}
		byKind[t.Kind] = byKind[t.Kind].Add(t.Amount)
	}
	for kind, amount := range byKind {
		d.ByKind = append(d.ByKind, core.KindAmount{Kind: kind, Amount: amount})
	}
	sort.Slice(d.ByKind, func(i, j int) bool { return d.ByKind[i].Kind < d.ByKind[j].Kind })
	d.Recent = txs[:min(len(txs), recentTransactions)]

	now := s.now()
	for _, l := range loans {
		v, err := s.loans.Schedule(ctx, l.Terms())
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping loan with failing schedule", "loan_id", l.ID, "error", err)
			continue
		}
		elapsed := v.PeriodsElapsed(now)
		d.Outstanding = d.Outstanding.Add(core.MoneyFromDecimal(v.BalanceAfter(elapsed)))
		if elapsed < len(v.Entries) {
			next := v.Entries[elapsed]
			d.UpcomingDues = append(d.UpcomingDues, core.Due{
				LoanID:   l.ID,
				ClientID: l.ClientID,
				Date:     core.DateOf(next.DueDate),
				Amount:   core.MoneyFromDecimal(next.Payment),
			})
		}
	}
	sort.Slice(d.UpcomingDues, func(i, j int) bool {
		return d.UpcomingDues[i].Date.Before(d.UpcomingDues[j].Date.Time)
	})

	return d, nil
}
