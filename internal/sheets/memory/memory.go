// Package memory is an in-process LedgerWriter for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"estatecrm/internal/core"
	"estatecrm/internal/sheets"
)

var _ sheets.LedgerWriter = (*Ledger)(nil)

type Ledger struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Ledger { return &Ledger{} }

// AppendTransaction stores the transaction and returns a synthetic row
// reference. Appending the same transaction twice is a no-op.
func (l *Ledger) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, r := range l.rows {
		if r.ID != "" && r.ID == t.ID {
			return ref(i), nil
		}
	}
	l.rows = append(l.rows, t)
	return ref(len(l.rows) - 1), nil
}

// Rows returns a copy of the appended transactions in order.
func (l *Ledger) Rows() []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Transaction(nil), l.rows...)
}

// header occupies row 1
func ref(i int) string { return fmt.Sprintf("mem:%d", i+2) }
