// Package amortization computes fixed-payment loan figures: the periodic
// payment, total interest, payoff date and the period-by-period schedule.
//
// Every function is pure. Money is carried as decimal.Decimal and rounded
// half-up to the minor currency unit (two places) wherever the result is a
// monetary amount that a borrower would see.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places kept for money.
const MinorUnitPlaces = 2

// MaxTermPeriods caps the length of a loan: fifty years of monthly payments.
const MaxTermPeriods = 600

// factorPlaces is the working precision of the annuity factor.
const factorPlaces = 32

var (
	// MaxPrincipal and MaxAnnualRate bound the amounts the engine accepts.
	MaxPrincipal  = decimal.NewFromInt(1_000_000_000)
	MaxAnnualRate = decimal.NewFromInt(1000)

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	// Tolerance is one minor currency unit.
	Tolerance = decimal.New(1, -MinorUnitPlaces)
	halfUnit  = decimal.New(5, -MinorUnitPlaces-1)
)

// Terms is the loan-terms record supplied by callers.
type Terms struct {
	Principal   decimal.Decimal
	AnnualRate  decimal.Decimal // percent, e.g. 6.5
	TermPeriods int
	Frequency   Frequency
	StartDate   time.Time
}

// Summary holds the figures derived from Terms.
type Summary struct {
	PeriodicPayment decimal.Decimal `json:"periodic_payment"`
	TotalInterest   decimal.Decimal `json:"total_interest"`
	EndDate         time.Time       `json:"end_date"`
}

// Validate checks the terms without computing anything.
func (t Terms) Validate() error {
	ppy, err := t.Frequency.PeriodsPerYear()
	if err != nil {
		return err
	}
	return validate(t.Principal, t.AnnualRate, t.TermPeriods, ppy)
}

// Summarize computes the periodic payment, total interest and end date.
func (t Terms) Summarize() (Summary, error) {
	ppy, err := t.Frequency.PeriodsPerYear()
	if err != nil {
		return Summary{}, err
	}
	payment, err := PeriodicPayment(t.Principal, t.AnnualRate, t.TermPeriods, ppy)
	if err != nil {
		return Summary{}, err
	}
	interest, err := TotalInterest(payment, t.TermPeriods, t.Principal)
	if err != nil {
		return Summary{}, err
	}
	end, err := EndDate(t.StartDate, t.TermPeriods, ppy)
	if err != nil {
		return Summary{}, err
	}
	return Summary{PeriodicPayment: payment, TotalInterest: interest, EndDate: end}, nil
}

// Schedule generates the full payment schedule for the terms.
func (t Terms) Schedule() (*Schedule, error) {
	ppy, err := t.Frequency.PeriodsPerYear()
	if err != nil {
		return nil, err
	}
	return GenerateSchedule(t.Principal, t.AnnualRate, t.TermPeriods, ppy, t.StartDate)
}

// Key identifies the terms for caching. Equal terms give equal keys and
// numerically different terms never share one.
func (t Terms) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s",
		t.Principal.String(),
		t.AnnualRate.String(),
		t.TermPeriods,
		t.Frequency,
		t.StartDate.Format("2006-01-02"))
}

// PeriodicPayment returns the constant payment that retires principal over
// termPeriods at annualRate percent, compounded periodsPerYear times a year.
// A zero rate degenerates to straight-line repayment.
func PeriodicPayment(principal, annualRate decimal.Decimal, termPeriods, periodsPerYear int) (decimal.Decimal, error) {
	if err := validate(principal, annualRate, termPeriods, periodsPerYear); err != nil {
		return decimal.Zero, err
	}
	return periodicPayment(principal, periodRate(annualRate, periodsPerYear), termPeriods), nil
}

// TotalInterest is periodicPayment * termPeriods - principal. Rounding the
// payment down can leave the product short of the principal by up to half a
// minor unit per period; that shortfall reports as zero interest because the
// schedule's final period repays it. Anything larger means the inputs do not
// describe an amortizing loan and is reported as ErrArithmeticInconsistency.
func TotalInterest(periodicPayment decimal.Decimal, termPeriods int, principal decimal.Decimal) (decimal.Decimal, error) {
	if termPeriods < 1 {
		return decimal.Zero, fmt.Errorf("%w: term periods %d must be at least 1", ErrInvalidTerm, termPeriods)
	}
	if !principal.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: principal %s must be positive", ErrInvalidAmount, principal)
	}
	n := decimal.NewFromInt(int64(termPeriods))
	total := periodicPayment.Mul(n).Sub(principal).Round(MinorUnitPlaces)
	if !total.IsNegative() {
		return total, nil
	}
	if total.Abs().LessThanOrEqual(halfUnit.Mul(n)) {
		return decimal.Zero, nil
	}
	return decimal.Zero, fmt.Errorf("%w: total interest %s is negative (payment %s x %d < principal %s)",
		ErrArithmeticInconsistency, total, periodicPayment, termPeriods, principal)
}

// EndDate returns startDate advanced by termPeriods payment periods.
func EndDate(startDate time.Time, termPeriods, periodsPerYear int) (time.Time, error) {
	if termPeriods < 1 || termPeriods > MaxTermPeriods {
		return time.Time{}, fmt.Errorf("%w: term periods %d must be between 1 and %d", ErrInvalidTerm, termPeriods, MaxTermPeriods)
	}
	if _, err := FrequencyFor(periodsPerYear); err != nil {
		return time.Time{}, err
	}
	return dueDate(startDate, termPeriods, periodsPerYear), nil
}

func validate(principal, annualRate decimal.Decimal, termPeriods, periodsPerYear int) error {
	switch {
	case !principal.IsPositive():
		return fmt.Errorf("%w: principal %s must be positive", ErrInvalidAmount, principal)
	case principal.GreaterThan(MaxPrincipal):
		return fmt.Errorf("%w: principal %s exceeds %s", ErrInvalidAmount, principal, MaxPrincipal)
	case !principal.Equal(principal.Truncate(MinorUnitPlaces)):
		return fmt.Errorf("%w: principal %s has more than %d decimal places", ErrInvalidAmount, principal, MinorUnitPlaces)
	case annualRate.IsNegative():
		return fmt.Errorf("%w: annual rate %s must not be negative", ErrInvalidRate, annualRate)
	case annualRate.GreaterThan(MaxAnnualRate):
		return fmt.Errorf("%w: annual rate %s exceeds %s", ErrInvalidRate, annualRate, MaxAnnualRate)
	case termPeriods < 1:
		return fmt.Errorf("%w: term periods %d must be at least 1", ErrInvalidTerm, termPeriods)
	case termPeriods > MaxTermPeriods:
		return fmt.Errorf("%w: term periods %d exceeds %d", ErrInvalidTerm, termPeriods, MaxTermPeriods)
	}
	if _, err := FrequencyFor(periodsPerYear); err != nil {
		return err
	}
	return nil
}

func periodRate(annualRate decimal.Decimal, periodsPerYear int) decimal.Decimal {
	return annualRate.Div(hundred).Div(decimal.NewFromInt(int64(periodsPerYear)))
}

func periodicPayment(principal, rate decimal.Decimal, termPeriods int) decimal.Decimal {
	if rate.IsZero() {
		return principal.DivRound(decimal.NewFromInt(int64(termPeriods)), MinorUnitPlaces)
	}
	// P * r * f / (f - 1) with f = (1+r)^n. For tiny r, f - 1 is close to
	// n*r and needs the full working precision.
	f := compound(one.Add(rate), termPeriods)
	return principal.Mul(rate).Mul(f).DivRound(f.Sub(one), factorPlaces).Round(MinorUnitPlaces)
}

// compound returns base^n by repeated squaring, rounding every product to
// factorPlaces.
func compound(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for ; n > 0; n >>= 1 {
		if n&1 == 1 {
			result = result.Mul(base).Round(factorPlaces)
		}
		base = base.Mul(base).Round(factorPlaces)
	}
	return result
}
