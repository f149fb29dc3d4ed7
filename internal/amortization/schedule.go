package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one period of a schedule.
type Entry struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Payment          decimal.Decimal `json:"payment"`
	Interest         decimal.Decimal `json:"interest"`
	Principal        decimal.Decimal `json:"principal"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Schedule is the ordered, immutable list of entries for a loan. It is the
// authoritative answer to "balance after period N".
type Schedule struct {
	principal       decimal.Decimal
	periodicPayment decimal.Decimal
	entries         []Entry
}

// GenerateSchedule builds the full schedule. Inputs are validated before any
// entry is produced. The final period absorbs cumulative rounding drift: its
// principal portion is whatever balance remains, so the loan always retires
// exactly on schedule. When the rounded payment overshoots enough to clear the
// balance early, that period pays only what is owed and later periods are
// zero-payment entries.
func GenerateSchedule(principal, annualRate decimal.Decimal, termPeriods, periodsPerYear int, startDate time.Time) (*Schedule, error) {
	if err := validate(principal, annualRate, termPeriods, periodsPerYear); err != nil {
		return nil, err
	}
	rate := periodRate(annualRate, periodsPerYear)
	payment := periodicPayment(principal, rate, termPeriods)

	entries := make([]Entry, 0, termPeriods)
	balance := principal
	for i := 1; i <= termPeriods; i++ {
		interest := balance.Mul(rate).Round(MinorUnitPlaces)
		principalPortion := payment.Sub(interest)
		if i == termPeriods || principalPortion.GreaterThan(balance) {
			principalPortion = balance
		}
		if principalPortion.IsNegative() {
			return nil, fmt.Errorf("%w: period %d payment %s does not cover interest %s",
				ErrArithmeticInconsistency, i, payment, interest)
		}
		balance = balance.Sub(principalPortion)
		entries = append(entries, Entry{
			Period:           i,
			DueDate:          dueDate(startDate, i, periodsPerYear),
			Payment:          principalPortion.Add(interest),
			Interest:         interest,
			Principal:        principalPortion,
			RemainingBalance: balance,
		})
	}

	s := &Schedule{principal: principal, periodicPayment: payment, entries: entries}
	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schedule) verify() error {
	last := s.entries[len(s.entries)-1]
	if !last.RemainingBalance.IsZero() {
		return fmt.Errorf("%w: final balance %s is not zero", ErrArithmeticInconsistency, last.RemainingBalance)
	}
	if diff := s.TotalPrincipal().Sub(s.principal).Abs(); diff.GreaterThan(Tolerance) {
		return fmt.Errorf("%w: principal portions sum to %s, want %s",
			ErrArithmeticInconsistency, s.TotalPrincipal(), s.principal)
	}
	return nil
}

// Len returns the number of periods.
func (s *Schedule) Len() int { return len(s.entries) }

// PeriodicPayment is the regular payment; the final entry may differ by the
// rounding adjustment.
func (s *Schedule) PeriodicPayment() decimal.Decimal { return s.periodicPayment }

// Principal returns the amount borrowed.
func (s *Schedule) Principal() decimal.Decimal { return s.principal }

// Entries returns a copy of the entries.
func (s *Schedule) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry returns the entry for a 1-based period.
func (s *Schedule) Entry(period int) (Entry, bool) {
	if period < 1 || period > len(s.entries) {
		return Entry{}, false
	}
	return s.entries[period-1], true
}

// Last returns the final entry.
func (s *Schedule) Last() Entry { return s.entries[len(s.entries)-1] }

// BalanceAfter returns the remaining balance once the given number of
// periods has been paid. Zero periods yields the principal; anything past the
// term yields zero.
func (s *Schedule) BalanceAfter(periods int) decimal.Decimal {
	switch {
	case periods <= 0:
		return s.principal
	case periods >= len(s.entries):
		return decimal.Zero
	default:
		return s.entries[periods-1].RemainingBalance
	}
}

// PeriodsElapsed counts entries whose due date is on or before t.
func (s *Schedule) PeriodsElapsed(t time.Time) int {
	n := 0
	for _, e := range s.entries {
		if e.DueDate.After(t) {
			break
		}
		n++
	}
	return n
}

// TotalInterest sums the interest portions.
func (s *Schedule) TotalInterest() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		sum = sum.Add(e.Interest)
	}
	return sum
}

// TotalPrincipal sums the principal portions.
func (s *Schedule) TotalPrincipal() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		sum = sum.Add(e.Principal)
	}
	return sum
}

// TotalPaid sums every payment.
func (s *Schedule) TotalPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range s.entries {
		sum = sum.Add(e.Payment)
	}
	return sum
}

// Adjustment is what the schedule collects beyond PeriodicPayment * Len. It
// is the exact gap between TotalInterest() and the closed-form total interest,
// usually a few minor units on the final entry.
func (s *Schedule) Adjustment() decimal.Decimal {
	return s.TotalPaid().Sub(s.periodicPayment.Mul(decimal.NewFromInt(int64(len(s.entries)))))
}
