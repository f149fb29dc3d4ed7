// Package memory is an in-process crm.Store for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"estatecrm/internal/core"
	"estatecrm/internal/crm"
)

type table[T crm.Entity, P crm.Stamped[T]] struct {
	mu    sync.RWMutex
	now   func() time.Time
	match func(T, crm.Filter) bool
	rows  map[string]T
	order []string // insertion order
}

func newTable[T crm.Entity, P crm.Stamped[T]](now func() time.Time, match func(T, crm.Filter) bool) *table[T, P] {
	if match == nil {
		match = func(T, crm.Filter) bool { return true }
	}
	return &table[T, P]{now: now, match: match, rows: make(map[string]T)}
}

// List returns matching rows, newest first.
func (t *table[T, P]) List(_ context.Context, f crm.Filter) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for i := len(t.order) - 1; i >= 0; i-- {
		v := t.rows[t.order[i]]
		if t.match(v, f) {
			out = append(out, v)
		}
	}
	lo, hi := f.Window(len(out))
	return out[lo:hi], nil
}

func (t *table[T, P]) Get(_ context.Context, id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("id %s: %w", id, core.ErrNotFound)
	}
	return v, nil
}

func (t *table[T, P]) Create(_ context.Context, v *T) error {
	if err := (*v).Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	P(v).Meta().Touch(t.now())
	id := (*v).GetID()
	if _, dup := t.rows[id]; dup {
		return fmt.Errorf("id %s: %w", id, core.ErrDuplicate)
	}
	t.rows[id] = *v
	t.order = append(t.order, id)
	return nil
}

func (t *table[T, P]) Update(_ context.Context, v *T) error {
	if err := (*v).Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	id := (*v).GetID()
	old, ok := t.rows[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, core.ErrNotFound)
	}
	m := P(v).Meta()
	m.CreatedAt = P(&old).Meta().CreatedAt
	m.UpdatedAt = t.now()
	t.rows[id] = *v
	return nil
}

func (t *table[T, P]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("id %s: %w", id, core.ErrNotFound)
	}
	delete(t.rows, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *table[T, P]) Count(context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows), nil
}

type users struct {
	*table[core.User, *core.User]
}

func (u users) GetByEmail(_ context.Context, email string) (core.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, v := range u.rows {
		if strings.EqualFold(v.Email, email) {
			return v, nil
		}
	}
	return core.User{}, fmt.Errorf("user %s: %w", email, core.ErrNotFound)
}

func (u users) Create(ctx context.Context, v *core.User) error {
	if _, err := u.GetByEmail(ctx, v.Email); err == nil {
		return fmt.Errorf("user %s: %w", v.Email, core.ErrDuplicate)
	}
	return u.table.Create(ctx, v)
}

// Store implements crm.Store.
type Store struct {
	projects     *table[core.Project, *core.Project]
	properties   *table[core.Property, *core.Property]
	clients      *table[core.Client, *core.Client]
	loans        *table[core.Loan, *core.Loan]
	investments  *table[core.Investment, *core.Investment]
	transactions *table[core.Transaction, *core.Transaction]
	users        users
}

var _ crm.Store = (*Store)(nil)

func New() *Store { return NewWithClock(time.Now) }

// NewWithClock lets tests control CreatedAt/UpdatedAt.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		projects: newTable[core.Project, *core.Project](now, func(p core.Project, f crm.Filter) bool {
			return f.Status == "" || string(p.Status) == f.Status
		}),
		properties: newTable[core.Property, *core.Property](now, func(p core.Property, f crm.Filter) bool {
			return f.Status == "" || string(p.Status) == f.Status
		}),
		clients: newTable[core.Client, *core.Client](now, func(c core.Client, f crm.Filter) bool {
			return f.Status == "" || string(c.Kind) == f.Status
		}),
		loans: newTable[core.Loan, *core.Loan](now, func(l core.Loan, f crm.Filter) bool {
			return (f.Status == "" || string(l.Status) == f.Status) &&
				(f.ClientID == "" || l.ClientID == f.ClientID)
		}),
		investments: newTable[core.Investment, *core.Investment](now, func(i core.Investment, f crm.Filter) bool {
			return (f.Status == "" || string(i.Status) == f.Status) &&
				(f.ClientID == "" || i.ClientID == f.ClientID)
		}),
		transactions: newTable[core.Transaction, *core.Transaction](now, func(t core.Transaction, f crm.Filter) bool {
			return (f.Status == "" || string(t.Kind) == f.Status) &&
				(f.ClientID == "" || t.ClientID == f.ClientID) &&
				(f.LoanID == "" || t.LoanID == f.LoanID)
		}),
		users: users{newTable[core.User, *core.User](now, nil)},
	}
}

func (s *Store) Projects() crm.Repository[core.Project] { return s.projects }
func (s *Store) Properties() crm.Repository[core.Property] { return s.properties }
func (s *Store) Clients() crm.Repository[core.Client] { return s.clients }
func (s *Store) Loans() crm.Repository[core.Loan] { return s.loans }
func (s *Store) Investments() crm.Repository[core.Investment] { return s.investments }
func (s *Store) Transactions() crm.Repository[core.Transaction] { return s.transactions }
func (s *Store) Users() crm.UserStore { return s.users }
func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error { return nil }
