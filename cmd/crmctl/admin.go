package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"estatecrm/internal/auth"
	"estatecrm/internal/config"
	"estatecrm/internal/core"
	"estatecrm/internal/seed"
	"estatecrm/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $SQLITE_DB_PATH)")
	db := func() string {
		if dbPath == "" {
			return config.Load().SQLiteDBPath
		}
		return dbPath
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.RunMigrations(db()); err != nil {
					return err
				}
				return printVersion(cmd, db())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps %q: must be a positive number", args[0])
					}
					steps = n
				}
				if err := storage.RollbackMigrations(db(), steps); err != nil {
					return err
				}
				return printVersion(cmd, db())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printVersion(cmd, db())
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, dbPath string) error {
	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", dbPath, version, state)
	return nil
}

func newSeedCmd() *cobra.Command {
	opts := seed.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write demo projects, properties, clients and loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			counts, err := seed.Generate(cmd.Context(), res.Store, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"created %d projects, %d properties, %d clients, %d loans, %d investments, %d transactions\n",
				counts.Projects, counts.Properties, counts.Clients, counts.Loans, counts.Investments, counts.Transactions)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed; equal seeds give equal data")
	cmd.Flags().IntVar(&opts.Projects, "projects", opts.Projects, "number of projects")
	cmd.Flags().IntVar(&opts.Clients, "clients", opts.Clients, "number of clients")
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage CRM users",
	}

	var email, name, password, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user who can sign in to the web UI and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer res.Cleanup()

			cfg := config.Load()
			svc := auth.NewService(res.Store.Users(), cfg.SessionSecret, cfg.SessionTTL, logger)
			u, err := svc.CreateUser(cmd.Context(), email, name, password, core.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "sign-in email")
	create.Flags().StringVar(&name, "name", "", "display name")
	create.Flags().StringVar(&password, "password", "", "initial password, at least 8 characters")
	create.Flags().StringVar(&role, "role", string(core.RoleAgent), "role (admin, agent)")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
