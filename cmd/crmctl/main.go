// Command crmctl administers the CRM: loan calculations, schema migrations,
// demo data, users and the Google Sheets ledger authorization.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"estatecrm/internal/backend"
	"estatecrm/internal/cli"
	"estatecrm/internal/config"
	"estatecrm/internal/log"
)

var (
	logLevel  string
	logFormat string

	logger *log.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "crmctl",
		Short: "Administer the real estate CRM",
		Long: `crmctl runs one-off administrative tasks against the CRM.

Storage settings (DATA_BACKEND, SQLITE_DB_PATH) and Google credentials are
read from the environment or a .env file, the same way the server reads them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = log.Setup(cmd.ErrOrStderr(), logLevel, logFormat, log.ComponentApp)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newAmortizeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newUserCmd(),
		newLedgerCmd(),
	)
	return root
}

func main() {
	cli.LoadEnvFile()
	ctx, stop := cli.NotifyContext(log.Discard())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// openStore opens the configured backend without requiring the server-only
// settings to be valid. Writes to the memory backend would be lost on exit,
// so it is refused.
func openStore(ctx context.Context) (*backend.Result, error) {
	cfg := config.Load()
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	if bc.Type == backend.MemoryBackend {
		return nil, errors.New("the memory backend does not persist; set DATA_BACKEND=sqlite")
	}
	if err := bc.Validate(); err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}
