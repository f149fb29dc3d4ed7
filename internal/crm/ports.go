// Package crm declares the storage ports the services and handlers depend on.
package crm

import (
	"context"

	"estatecrm/internal/core"
)

type (
	// Entity is a record that can be stored in a Repository.
	Entity interface {
		GetID() string
		Validate() error
	}

	// Stamped is the pointer form of an Entity. Repositories stamp IDs and
	// timestamps through it.
	Stamped[T any] interface {
		*T
		Meta() *core.Record
	}

	// Filter narrows a List call. Zero values mean "no constraint". Status
	// matches Kind on records without a status (clients, transactions).
	Filter struct {
		Status   string
		ClientID string
		LoanID   string
		Limit    int
		Offset   int
	}

	Repository[T Entity] interface {
		List(ctx context.Context, f Filter) ([]T, error)
		Get(ctx context.Context, id string) (T, error)
		Create(ctx context.Context, v *T) error
		Update(ctx context.Context, v *T) error
		Delete(ctx context.Context, id string) error
		Count(ctx context.Context) (int, error)
	}

	UserStore interface {
		Get(ctx context.Context, id string) (core.User, error)
		GetByEmail(ctx context.Context, email string) (core.User, error)
		Create(ctx context.Context, u *core.User) error
		Update(ctx context.Context, u *core.User) error
		Count(ctx context.Context) (int, error)
	}

	// Store aggregates every repository of one backend.
	Store interface {
		Projects() Repository[core.Project]
		Properties() Repository[core.Property]
		Clients() Repository[core.Client]
		Loans() Repository[core.Loan]
		Investments() Repository[core.Investment]
		Transactions() Repository[core.Transaction]
		Users() UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// Window applies Offset and Limit to an already filtered slice.
func (f Filter) Window(n int) (lo, hi int) {
	lo = min(max(f.Offset, 0), n)
	hi = n
	if f.Limit > 0 && lo+f.Limit < n {
		hi = lo + f.Limit
	}
	return lo, hi
}
