// Package storage is the SQLite implementation of crm.Store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB

	projects     *table[core.Project, *core.Project]
	properties   *table[core.Property, *core.Property]
	clients      *table[core.Client, *core.Client]
	loans        *table[core.Loan, *core.Loan]
	investments  *table[core.Investment, *core.Investment]
	transactions *table[core.Transaction, *core.Transaction]
	users        *userTable
}

var _ crm.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return newStore(db, time.Now), nil
}

func newStore(db *sql.DB, now func() time.Time) *SQLiteStore {
	return &SQLiteStore{
		db: db,
		projects: &table[core.Project, *core.Project]{
			db: db, now: now, name: "projects",
			columns:   []string{"name", "developer", "city", "status", "description"},
			statusCol: "status",
			fields: func(p *core.Project) []any {
				return []any{&p.Name, &p.Developer, &p.City, &p.Status, &p.Description}
			},
		},
		properties: &table[core.Property, *core.Property]{
			db: db, now: now, name: "properties",
			columns:   []string{"project_id", "title", "address", "kind", "price_cents", "area_sqm", "status"},
			statusCol: "status",
			fields: func(p *core.Property) []any {
				return []any{&p.ProjectID, &p.Title, &p.Address, &p.Kind, &p.Price, &p.AreaSqm, &p.Status}
			},
		},
		clients: &table[core.Client, *core.Client]{
			db: db, now: now, name: "clients",
			columns:   []string{"full_name", "email", "phone", "kind", "notes"},
			statusCol: "kind",
			fields: func(c *core.Client) []any {
				return []any{&c.FullName, &c.Email, &c.Phone, &c.Kind, &c.Notes}
			},
		},
		loans: &table[core.Loan, *core.Loan]{
			db: db, now: now, name: "loans",
			columns: []string{
				"client_id", "property_id", "principal_cents", "annual_rate", "term_periods",
				"frequency", "start_date", "status", "periodic_payment_cents", "total_interest_cents", "end_date",
			},
			statusCol: "status",
			clientCol: "client_id",
			fields: func(l *core.Loan) []any {
				return []any{
					&l.ClientID, &l.PropertyID, &l.Principal, &l.AnnualRate, &l.TermPeriods,
					&l.Frequency, &l.StartDate, &l.Status, &l.PeriodicPayment, &l.TotalInterest, &l.EndDate,
				}
			},
		},
		investments: &table[core.Investment, *core.Investment]{
			db: db, now: now, name: "investments",
			columns:   []string{"client_id", "property_id", "amount_cents", "expected_return_pct", "start_date", "status"},
			statusCol: "status",
			clientCol: "client_id",
			fields: func(i *core.Investment) []any {
				return []any{&i.ClientID, &i.PropertyID, &i.Amount, &i.ExpectedReturnPct, &i.StartDate, &i.Status}
			},
		},
		transactions: &table[core.Transaction, *core.Transaction]{
			db: db, now: now, name: "transactions",
			columns:   []string{"kind", "amount_cents", "date", "client_id", "loan_id", "property_id", "description"},
			statusCol: "kind",
			clientCol: "client_id",
			loanCol:   "loan_id",
			fields: func(t *core.Transaction) []any {
				return []any{&t.Kind, &t.Amount, &t.Date, &t.ClientID, &t.LoanID, &t.PropertyID, &t.Description}
			},
		},
		users: &userTable{table[core.User, *core.User]{
			db: db, now: now, name: "users",
			columns: []string{"email", "name", "password_hash", "role"},
			fields: func(u *core.User) []any {
				return []any{&u.Email, &u.Name, &u.PasswordHash, &u.Role}
			},
		}},
	}
}

func (s *SQLiteStore) Projects() crm.Repository[core.Project] { return s.projects }
func (s *SQLiteStore) Properties() crm.Repository[core.Property] { return s.properties }
func (s *SQLiteStore) Clients() crm.Repository[core.Client] { return s.clients }
func (s *SQLiteStore) Loans() crm.Repository[core.Loan] { return s.loans }
func (s *SQLiteStore) Investments() crm.Repository[core.Investment] { return s.investments }
func (s *SQLiteStore) Transactions() crm.Repository[core.Transaction] { return s.transactions }
func (s *SQLiteStore) Users() crm.UserStore { return s.users }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type userTable struct {
	table[core.User, *core.User]
}

func (u *userTable) GetByEmail(ctx context.Context, email string) (core.User, error) {
	row := u.db.QueryRowContext(ctx, "SELECT "+u.selectList()+" FROM users WHERE email = ?", email)
	v, err := u.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("get user by email: %w", err)
	}
	return v, nil
}
