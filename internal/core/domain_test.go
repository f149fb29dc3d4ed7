package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"estatecrm/internal/amortization"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("case %d expected ErrInvalidDate, got %v", i, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 2, 29))
	if err != nil || string(b) != `"2024-02-29"` {
		t.Fatalf("marshal = %s, %v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-01"`), &d); err != nil || !d.Equal(NewDate(2024, 3, 1).Time) {
		t.Fatalf("unmarshal = %v, %v", d, err)
	}
	if err := json.Unmarshal([]byte(`"01/03/2024"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestRecordValidation(t *testing.T) {
	cases := []struct {
		name string
		v    interface{ Validate() error }
		want error
	}{
		{"project ok", Project{Name: "Harbor View", Status: ProjectPlanning}, nil},
		{"project no name", Project{Name: " ", Status: ProjectPlanning}, ErrEmptyName},
		{"project bad status", Project{Name: "x", Status: "paused"}, ErrInvalidStatus},
		{"property ok", Property{Title: "Unit 4B", Kind: Apartment, Status: PropertyAvailable, Price: Money{Cents: 1}}, nil},
		{"property bad kind", Property{Title: "x", Kind: "castle", Status: PropertyAvailable, Price: Money{Cents: 1}}, ErrInvalidKind},
		{"property no price", Property{Title: "x", Kind: Land, Status: PropertySold}, ErrInvalidAmount},
		{"client ok", Client{FullName: "Ada Moss", Email: "ada@example.com", Kind: Buyer}, nil},
		{"client no email ok", Client{FullName: "Ada Moss", Kind: Tenant}, nil},
		{"client bad email", Client{FullName: "Ada Moss", Email: "nope", Kind: Buyer}, ErrInvalidEmail},
		{"investment ok", Investment{ClientID: "c", Amount: Money{Cents: 100}, StartDate: NewDate(2024, 1, 1), Status: InvestmentOpen}, nil},
		{"investment no client", Investment{Amount: Money{Cents: 100}, StartDate: NewDate(2024, 1, 1), Status: InvestmentOpen}, ErrMissingReference},
		{"investment negative return", Investment{ClientID: "c", Amount: Money{Cents: 100}, ExpectedReturnPct: decimal.NewFromInt(-1), StartDate: NewDate(2024, 1, 1), Status: InvestmentOpen}, ErrInvalidRate},
		{"transaction ok", Transaction{Kind: TxFee, Amount: Money{Cents: 100}, Date: NewDate(2024, 1, 1)}, nil},
		{"payment without loan", Transaction{Kind: TxPayment, Amount: Money{Cents: 100}, Date: NewDate(2024, 1, 1)}, ErrMissingReference},
		{"transaction no date", Transaction{Kind: TxFee, Amount: Money{Cents: 100}}, ErrInvalidDate},
		{"user ok", User{Email: "a@b.co", Role: RoleAgent}, nil},
		{"user no email", User{Role: RoleAgent}, ErrInvalidEmail},
		{"user bad role", User{Email: "a@b.co", Role: "root"}, ErrInvalidKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.v.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !IsValidationError(err) {
				t.Fatalf("%v should classify as validation error", err)
			}
		})
	}
}

func TestRecordTouch(t *testing.T) {
	var r Record
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.Touch(t0)
	if r.ID == "" || !r.CreatedAt.Equal(t0) || !r.UpdatedAt.Equal(t0) {
		t.Fatalf("unexpected record %+v", r)
	}
	id := r.ID
	t1 := t0.Add(time.Hour)
	r.Touch(t1)
	if r.ID != id || !r.CreatedAt.Equal(t0) || !r.UpdatedAt.Equal(t1) {
		t.Fatalf("touch must keep id and creation time, got %+v", r)
	}
}

func sampleLoan() Loan {
	return Loan{
		ClientID:    "client-1",
		Principal:   Money{Cents: 10000000},
		AnnualRate:  decimal.NewFromInt(6),
		TermPeriods: 12,
		Frequency:   amortization.Monthly,
		StartDate:   NewDate(2024, 1, 1),
		Status:      LoanActive,
	}
}

func TestLoanDerive(t *testing.T) {
	l := sampleLoan()
	if err := l.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := l.Derive(); err != nil {
		t.Fatalf("derive: %v", err)
	}
	if l.PeriodicPayment.Cents != 860664 {
		t.Fatalf("payment = %s", l.PeriodicPayment)
	}
	if l.TotalInterest.Cents != 327968 {
		t.Fatalf("interest = %s", l.TotalInterest)
	}
	if l.EndDate.String() != "2025-01-01" {
		t.Fatalf("end date = %s", l.EndDate)
	}
}

func TestLoanValidate_EngineErrors(t *testing.T) {
	l := sampleLoan()
	l.AnnualRate = decimal.NewFromInt(-1)
	if err := l.Validate(); !errors.Is(err, amortization.ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	l = sampleLoan()
	l.TermPeriods = 0
	if err := l.Derive(); !errors.Is(err, amortization.ErrInvalidTerm) {
		t.Fatalf("expected ErrInvalidTerm, got %v", err)
	}
	l = sampleLoan()
	l.Frequency = "weekly"
	if err := l.Validate(); !errors.Is(err, amortization.ErrInvalidTerm) {
		t.Fatalf("expected ErrInvalidTerm, got %v", err)
	}
	l = sampleLoan()
	l.ClientID = ""
	if err := l.Validate(); !errors.Is(err, ErrMissingReference) {
		t.Fatalf("expected ErrMissingReference, got %v", err)
	}
}

func TestLoanTransition(t *testing.T) {
	cases := []struct {
		from, to LoanStatus
		ok       bool
	}{
		{LoanActive, LoanPaidOff, true},
		{LoanActive, LoanDefaulted, true},
		{LoanActive, LoanCancelled, true},
		{LoanActive, LoanActive, false},
		{LoanActive, "frozen", false},
		{LoanPaidOff, LoanActive, false},
		{LoanDefaulted, LoanPaidOff, false},
		{LoanCancelled, LoanActive, false},
	}
	for _, tc := range cases {
		l := Loan{Status: tc.from}
		err := l.Transition(tc.to)
		if tc.ok {
			if err != nil || l.Status != tc.to {
				t.Fatalf("%s -> %s: expected ok, got %v", tc.from, tc.to, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if l.Status != tc.from {
			t.Fatalf("status must not change on rejected transition")
		}
	}
}
