package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estatecrm/internal/config"
	"estatecrm/internal/log"
)

func TestNewRuntime_MemoryWithoutOptionalServices(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DataBackend: "memory", ScheduleCacheTTL: time.Minute}

	rt, err := NewRuntime(ctx, cfg, log.Discard())
	require.NoError(t, err)

	assert.Nil(t, rt.Events)
	assert.Nil(t, rt.Publisher(), "a nil client must not become a non-nil interface")
	assert.Empty(t, rt.Checks())
	require.NotNil(t, rt.Loans)

	n, err := rt.Store.Store.Clients().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, rt.Close())
}

func TestNewRuntime_InvalidBackend(t *testing.T) {
	_, err := NewRuntime(context.Background(), &config.Config{DataBackend: "sheets"}, log.Discard())
	assert.ErrorContains(t, err, "open store")
}

func TestNewLedger_Disabled(t *testing.T) {
	ledger, err := NewLedger(context.Background(), &config.Config{}, log.Discard())
	require.NoError(t, err)
	assert.Nil(t, ledger)
}

func TestNewLedger_MissingCredentials(t *testing.T) {
	_, err := NewLedger(context.Background(), &config.Config{GoogleSpreadsheetID: "sheet-id", GoogleLedgerSheet: "Ledger"}, log.Discard())
	assert.ErrorContains(t, err, "missing oauth client")
}
