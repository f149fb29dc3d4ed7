// Package seed fills a store with deterministic demo data.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
	"estatecrm/internal/core"
	"estatecrm/internal/crm"
)

type Options struct {
	Seed     uint64
	Projects int
	Clients  int
}

func DefaultOptions() Options {
	return Options{Seed: 42, Projects: 3, Clients: 8}
}

// Counts reports what Generate created.
type Counts struct {
	Projects, Properties, Clients, Loans, Investments, Transactions int
}

var (
	projectNames = []string{"Harbor View", "Olive Grove", "Riverside Lofts", "Cedar Park", "Northgate"}
	developers   = []string{"Atlas Build", "Meridian Homes", "Stonebridge"}
	cities       = []string{"Lisbon", "Porto", "Valencia", "Bologna"}
	firstNames   = []string{"Ada", "Bruno", "Chiara", "Diego", "Elena", "Farah", "Gil", "Hana", "Ivo", "Julia"}
	lastNames    = []string{"Moss", "Ferri", "Lund", "Sato", "Costa", "Reyes", "Vidal"}
	streets      = []string{"Rua Augusta", "Via Roma", "Calle Mayor", "Avenida da Liberdade"}
	kinds        = []core.PropertyKind{core.Apartment, core.House, core.Commercial, core.Land}
	clientKinds  = []core.ClientKind{core.Buyer, core.Seller, core.Investor, core.Tenant}
	frequencies  = []amortization.Frequency{amortization.Monthly, amortization.Monthly, amortization.Quarterly, amortization.Annually}
)

// Generate writes demo records. The same Options always produce the same
// records apart from IDs and timestamps.
func Generate(ctx context.Context, s crm.Store, opts Options) (Counts, error) {
	var c Counts
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	pick := func(n int) int { return r.IntN(n) }

	var propertyIDs []string
	for i := 0; i < opts.Projects; i++ {
		p := core.Project{
			Name:        fmt.Sprintf("%s %d", projectNames[i%len(projectNames)], i+1),
			Developer:   developers[pick(len(developers))],
			City:        cities[pick(len(cities))],
			Status:      []core.ProjectStatus{core.ProjectPlanning, core.ProjectConstruction, core.ProjectCompleted}[pick(3)],
			Description: "Demo project",
		}
		if err := s.Projects().Create(ctx, &p); err != nil {
			return c, fmt.Errorf("create project: %w", err)
		}
		c.Projects++

		units := 2 + pick(3)
		for u := 0; u < units; u++ {
			kind := kinds[pick(len(kinds))]
			prop := core.Property{
				ProjectID: p.ID,
				Title:     fmt.Sprintf("%s unit %d", p.Name, u+1),
				Address:   fmt.Sprintf("%s %d, %s", streets[pick(len(streets))], 1+pick(200), p.City),
				Kind:      kind,
				Price:     core.Money{Cents: int64(80_000+pick(520_000)) * 100},
				AreaSqm:   float64(40 + pick(260)),
				Status:    []core.PropertyStatus{core.PropertyAvailable, core.PropertyAvailable, core.PropertyReserved, core.PropertySold}[pick(4)],
			}
			if err := s.Properties().Create(ctx, &prop); err != nil {
				return c, fmt.Errorf("create property: %w", err)
			}
			propertyIDs = append(propertyIDs, prop.ID)
			c.Properties++
		}
	}

	for i := 0; i < opts.Clients; i++ {
		first, last := firstNames[pick(len(firstNames))], lastNames[pick(len(lastNames))]
		cl := core.Client{
			FullName: first + " " + last,
			Email:    fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Phone:    fmt.Sprintf("+351 9%02d %03d %03d", pick(100), pick(1000), pick(1000)),
			Kind:     clientKinds[pick(len(clientKinds))],
		}
		if err := s.Clients().Create(ctx, &cl); err != nil {
			return c, fmt.Errorf("create client: %w", err)
		}
		c.Clients++

		switch cl.Kind {
		case core.Buyer:
			if err := seedLoan(ctx, s, r, cl, propertyIDs, &c); err != nil {
				return c, err
			}
		case core.Investor:
			inv := core.Investment{
				ClientID:          cl.ID,
				Amount:            core.Money{Cents: int64(10_000+pick(190_000)) * 100},
				ExpectedReturnPct: decimal.New(int64(300+pick(900)), -2),
				StartDate:         core.NewDate(2023, 1+pick(12), 1+pick(28)),
				Status:            core.InvestmentOpen,
			}
			if len(propertyIDs) > 0 {
				inv.PropertyID = propertyIDs[pick(len(propertyIDs))]
			}
			if err := s.Investments().Create(ctx, &inv); err != nil {
				return c, fmt.Errorf("create investment: %w", err)
			}
			c.Investments++
			tx := core.Transaction{Kind: core.TxDeposit, Amount: inv.Amount, Date: inv.StartDate, ClientID: cl.ID, PropertyID: inv.PropertyID, Description: "Investment deposit"}
			if err := s.Transactions().Create(ctx, &tx); err != nil {
				return c, fmt.Errorf("create transaction: %w", err)
			}
			c.Transactions++
		}
	}
	return c, nil
}

func seedLoan(ctx context.Context, s crm.Store, r *rand.Rand, cl core.Client, propertyIDs []string, c *Counts) error {
	freq := frequencies[r.IntN(len(frequencies))]
	ppy, _ := freq.PeriodsPerYear()
	l := core.Loan{
		ClientID:    cl.ID,
		Principal:   core.Money{Cents: int64(50_000+r.IntN(450_000)) * 100},
		AnnualRate:  decimal.New(int64(150+r.IntN(650)), -2),
		TermPeriods: ppy * (5 + r.IntN(26)),
		Frequency:   freq,
		StartDate:   core.NewDate(2020+r.IntN(5), 1+r.IntN(12), 1+r.IntN(28)),
		Status:      core.LoanActive,
	}
	if len(propertyIDs) > 0 {
		l.PropertyID = propertyIDs[r.IntN(len(propertyIDs))]
	}
	if err := l.Derive(); err != nil {
		return fmt.Errorf("derive loan: %w", err)
	}
	if err := s.Loans().Create(ctx, &l); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	c.Loans++

	disb := core.Transaction{Kind: core.TxDisbursement, Amount: l.Principal, Date: l.StartDate, ClientID: cl.ID, LoanID: l.ID, PropertyID: l.PropertyID, Description: "Loan disbursement"}
	if err := s.Transactions().Create(ctx, &disb); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	c.Transactions++
	for p := 1; p <= 3 && p <= l.TermPeriods; p++ {
		due := amortization.AddMonths(l.StartDate.Time, p*(12/ppy))
		pay := core.Transaction{Kind: core.TxPayment, Amount: l.PeriodicPayment, Date: core.DateOf(due), ClientID: cl.ID, LoanID: l.ID, Description: fmt.Sprintf("Installment %d", p)}
		if err := s.Transactions().Create(ctx, &pay); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		c.Transactions++
	}
	return nil
}
