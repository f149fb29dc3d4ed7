package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	ProjectStatus   string
	PropertyKind    string
	PropertyStatus  string
	ClientKind      string
	InvestmentState string
	TransactionKind string
	Role            string
)

const (
	ProjectPlanning     ProjectStatus = "planning"
	ProjectConstruction ProjectStatus = "construction"
	ProjectCompleted    ProjectStatus = "completed"

	Apartment  PropertyKind = "apartment"
	House      PropertyKind = "house"
	Commercial PropertyKind = "commercial"
	Land       PropertyKind = "land"

	PropertyAvailable PropertyStatus = "available"
	PropertyReserved  PropertyStatus = "reserved"
	PropertySold      PropertyStatus = "sold"

	Buyer    ClientKind = "buyer"
	Seller   ClientKind = "seller"
	Investor ClientKind = "investor"
	Tenant   ClientKind = "tenant"

	InvestmentOpen   InvestmentState = "open"
	InvestmentClosed InvestmentState = "closed"

	TxPayment      TransactionKind = "payment"
	TxDisbursement TransactionKind = "disbursement"
	TxDeposit      TransactionKind = "deposit"
	TxFee          TransactionKind = "fee"
	TxIncome       TransactionKind = "income"
	TxExpense      TransactionKind = "expense"

	RoleAdmin Role = "admin"
	RoleAgent Role = "agent"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRate       = errors.New("invalid rate")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidKind       = errors.New("invalid kind")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrEmptyName         = errors.New("empty name")
	ErrMissingReference  = errors.New("missing reference")
	ErrTooLong           = errors.New("value too long")
	ErrDuplicate         = errors.New("duplicate")
)

// IsValidationError reports whether err describes bad input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidRate, ErrInvalidDate, ErrInvalidStatus,
		ErrInvalidKind, ErrInvalidTransition, ErrInvalidEmail, ErrEmptyName,
		ErrMissingReference, ErrTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Record is the bookkeeping every stored entity carries.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewID returns a fresh random identifier.
func NewID() string { return uuid.NewString() }

// Touch assigns an ID when missing and stamps the timestamps.
func (r *Record) Touch(now time.Time) {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

func (r Record) GetID() string { return r.ID }

// Meta exposes the embedded bookkeeping fields of any record.
func (r *Record) Meta() *Record { return r }

type Project struct {
	Record
	Name        string        `json:"name"`
	Developer   string        `json:"developer"`
	City        string        `json:"city"`
	Status      ProjectStatus `json:"status"`
	Description string        `json:"description"`
}

type Property struct {
	Record
	ProjectID string         `json:"project_id,omitempty"`
	Title     string         `json:"title"`
	Address   string         `json:"address"`
	Kind      PropertyKind   `json:"kind"`
	Price     Money          `json:"price"`
	AreaSqm   float64        `json:"area_sqm"`
	Status    PropertyStatus `json:"status"`
}

type Client struct {
	Record
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Kind     ClientKind `json:"kind"`
	Notes    string     `json:"notes"`
}

type Investment struct {
	Record
	ClientID          string          `json:"client_id"`
	PropertyID        string          `json:"property_id,omitempty"`
	Amount            Money           `json:"amount"`
	ExpectedReturnPct decimal.Decimal `json:"expected_return_pct"`
	StartDate         Date            `json:"start_date"`
	Status            InvestmentState `json:"status"`
}

type Transaction struct {
	Record
	Kind        TransactionKind `json:"kind"`
	Amount      Money           `json:"amount"`
	Date        Date            `json:"date"`
	ClientID    string          `json:"client_id,omitempty"`
	LoanID      string          `json:"loan_id,omitempty"`
	PropertyID  string          `json:"property_id,omitempty"`
	Description string          `json:"description"`
}

type User struct {
	Record
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

const (
	maxName        = 200
	maxDescription = 2000
)

func requireName(field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("%s: %w", field, ErrEmptyName)
	}
	if len(v) > maxName {
		return fmt.Errorf("%s exceeds %d characters: %w", field, maxName, ErrTooLong)
	}
	return nil
}

func checkEmail(v string, required bool) error {
	if strings.TrimSpace(v) == "" {
		if required {
			return ErrInvalidEmail
		}
		return nil
	}
	if _, err := mail.ParseAddress(v); err != nil {
		return fmt.Errorf("%q: %w", v, ErrInvalidEmail)
	}
	return nil
}

func (p Project) Validate() error {
	if err := requireName("name", p.Name); err != nil {
		return err
	}
	switch p.Status {
	case ProjectPlanning, ProjectConstruction, ProjectCompleted:
	default:
		return fmt.Errorf("project status %q: %w", p.Status, ErrInvalidStatus)
	}
	if len(p.Description) > maxDescription {
		return fmt.Errorf("description: %w", ErrTooLong)
	}
	return nil
}

func (p Property) Validate() error {
	if err := requireName("title", p.Title); err != nil {
		return err
	}
	switch p.Kind {
	case Apartment, House, Commercial, Land:
	default:
		return fmt.Errorf("property kind %q: %w", p.Kind, ErrInvalidKind)
	}
	switch p.Status {
	case PropertyAvailable, PropertyReserved, PropertySold:
	default:
		return fmt.Errorf("property status %q: %w", p.Status, ErrInvalidStatus)
	}
	if err := p.Price.Validate(); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	if p.AreaSqm < 0 {
		return fmt.Errorf("area %.2f: %w", p.AreaSqm, ErrInvalidAmount)
	}
	return nil
}

func (c Client) Validate() error {
	if err := requireName("full name", c.FullName); err != nil {
		return err
	}
	if err := checkEmail(c.Email, false); err != nil {
		return err
	}
	switch c.Kind {
	case Buyer, Seller, Investor, Tenant:
	default:
		return fmt.Errorf("client kind %q: %w", c.Kind, ErrInvalidKind)
	}
	return nil
}

func (i Investment) Validate() error {
	if strings.TrimSpace(i.ClientID) == "" {
		return fmt.Errorf("client: %w", ErrMissingReference)
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if i.ExpectedReturnPct.IsNegative() {
		return fmt.Errorf("expected return %s: %w", i.ExpectedReturnPct, ErrInvalidRate)
	}
	if err := i.StartDate.Validate(); err != nil {
		return err
	}
	switch i.Status {
	case InvestmentOpen, InvestmentClosed:
	default:
		return fmt.Errorf("investment status %q: %w", i.Status, ErrInvalidStatus)
	}
	return nil
}

func (t Transaction) Validate() error {
	switch t.Kind {
	case TxPayment, TxDisbursement, TxDeposit, TxFee, TxIncome, TxExpense:
	default:
		return fmt.Errorf("transaction kind %q: %w", t.Kind, ErrInvalidKind)
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Kind == TxPayment && t.LoanID == "" {
		return fmt.Errorf("payment needs a loan: %w", ErrMissingReference)
	}
	if len(t.Description) > maxName {
		return fmt.Errorf("description: %w", ErrTooLong)
	}
	return nil
}

// Inflow reports whether the transaction brings money in.
func (t Transaction) Inflow() bool {
	switch t.Kind {
	case TxPayment, TxDeposit, TxIncome, TxFee:
		return true
	}
	return false
}

func (u User) Validate() error {
	if err := checkEmail(u.Email, true); err != nil {
		return err
	}
	switch u.Role {
	case RoleAdmin, RoleAgent:
	default:
		return fmt.Errorf("role %q: %w", u.Role, ErrInvalidKind)
	}
	return nil
}
