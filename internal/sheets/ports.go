// Package sheets declares the spreadsheet export ports.
package sheets

import (
	"context"

	"estatecrm/internal/core"
)

// LedgerWriter appends recorded transactions to an external ledger.
type LedgerWriter interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
