package google

import (
	"fmt"
	"strings"

	"estatecrm/internal/core"
)

// LedgerHeader names the columns written by ledgerRow.
var LedgerHeader = []string{"Date", "Kind", "Amount", "Loan", "Client", "Property", "Description", "ID"}

// ledgerRow lays a transaction out in LedgerHeader order. The amount is a
// plain decimal so the sheet can sum it under any locale.
func ledgerRow(t core.Transaction) []any {
	return []any{
		t.Date.String(),
		string(t.Kind),
		t.Amount.String(),
		t.LoanID,
		t.ClientID,
		t.PropertyID,
		t.Description,
		t.ID,
	}
}

// ledgerRange is the A1 range covering every ledger column.
func ledgerRange(sheet string) string {
	last := rune('A' + len(LedgerHeader) - 1)
	if strings.ContainsAny(sheet, " !'") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return fmt.Sprintf("%s!A:%c", sheet, last)
}
