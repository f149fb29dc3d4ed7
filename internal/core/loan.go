package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
)

type LoanStatus string

const (
	LoanActive    LoanStatus = "active"
	LoanPaidOff   LoanStatus = "paid-off"
	LoanDefaulted LoanStatus = "defaulted"
	LoanCancelled LoanStatus = "cancelled"
)

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanActive, LoanPaidOff, LoanDefaulted, LoanCancelled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s LoanStatus) Terminal() bool {
	return s == LoanPaidOff || s == LoanDefaulted || s == LoanCancelled
}

// CanTransition reports whether a loan may move from s to next.
func (s LoanStatus) CanTransition(next LoanStatus) bool {
	return s == LoanActive && next.IsValid() && next != LoanActive
}

// Loan is a loan record. PeriodicPayment, TotalInterest and EndDate are
// derived from the terms by Derive and are never edited directly.
type Loan struct {
	Record
	ClientID    string                 `json:"client_id"`
	PropertyID  string                 `json:"property_id,omitempty"`
	Principal   Money                  `json:"principal"`
	AnnualRate  decimal.Decimal        `json:"annual_rate"`
	TermPeriods int                    `json:"term_periods"`
	Frequency   amortization.Frequency `json:"frequency"`
	StartDate   Date                   `json:"start_date"`
	Status      LoanStatus             `json:"status"`

	PeriodicPayment Money `json:"periodic_payment"`
	TotalInterest   Money `json:"total_interest"`
	EndDate         Date  `json:"end_date"`
}

// Terms returns the engine input for the loan.
func (l Loan) Terms() amortization.Terms {
	return amortization.Terms{
		Principal:   l.Principal.Decimal(),
		AnnualRate:  l.AnnualRate,
		TermPeriods: l.TermPeriods,
		Frequency:   l.Frequency,
		StartDate:   l.StartDate.Time,
	}
}

// Validate checks the record fields that the engine does not.
func (l Loan) Validate() error {
	if strings.TrimSpace(l.ClientID) == "" {
		return fmt.Errorf("client: %w", ErrMissingReference)
	}
	if err := l.StartDate.Validate(); err != nil {
		return fmt.Errorf("start date: %w", err)
	}
	if !l.Status.IsValid() {
		return fmt.Errorf("loan status %q: %w", l.Status, ErrInvalidStatus)
	}
	return l.Terms().Validate()
}

// Derive recomputes the derived fields from the terms.
func (l *Loan) Derive() error {
	sum, err := l.Terms().Summarize()
	if err != nil {
		return err
	}
	l.PeriodicPayment = MoneyFromDecimal(sum.PeriodicPayment)
	l.TotalInterest = MoneyFromDecimal(sum.TotalInterest)
	l.EndDate = DateOf(sum.EndDate)
	return nil
}

// Transition moves the loan to next or returns ErrInvalidTransition.
func (l *Loan) Transition(next LoanStatus) error {
	if !l.Status.CanTransition(next) {
		return fmt.Errorf("%s -> %s: %w", l.Status, next, ErrInvalidTransition)
	}
	l.Status = next
	return nil
}
