package memory

import (
	"context"
	"testing"

	"estatecrm/internal/core"
)

func TestLedgerAppend(t *testing.T) {
	l := New()
	ctx := context.Background()
	tx := core.Transaction{
		Record: core.Record{ID: "txn_1"},
		Kind:   core.TxDeposit,
		Amount: core.Money{Cents: 150000},
		Date:   core.NewDate(2024, 5, 2),
	}

	ref, err := l.AppendTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("AppendTransaction() error = %v", err)
	}
	if ref != "mem:2" {
		t.Errorf("ref = %q, want mem:2", ref)
	}

	again, err := l.AppendTransaction(ctx, tx)
	if err != nil || again != ref {
		t.Errorf("second append = %q, %v; want %q", again, err, ref)
	}
	if n := len(l.Rows()); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestLedgerRejectsInvalid(t *testing.T) {
	if _, err := New().AppendTransaction(context.Background(), core.Transaction{Kind: "gift"}); err == nil {
		t.Fatal("expected validation error")
	}
}
