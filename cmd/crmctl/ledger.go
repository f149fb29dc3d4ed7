package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"estatecrm/internal/config"
	gsheet "estatecrm/internal/sheets/google"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Manage the Google Sheets transaction ledger",
	}

	var port, tokenFile string
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize the ledger export and save the OAuth token",
		Long: `Runs the OAuth consent flow for the Google Sheets ledger.

The OAuth client is read from GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE. Open the printed URL, grant access, and the token
is written to --token-file (default $GOOGLE_OAUTH_TOKEN_FILE).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if tokenFile == "" {
				tokenFile = cfg.GoogleOAuthTokenFile
			}
			if tokenFile == "" {
				return errors.New("no token file: pass --token-file or set GOOGLE_OAUTH_TOKEN_FILE")
			}

			oc, err := gsheet.OAuthConfig(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
			if err != nil {
				return err
			}
			tok, err := gsheet.Authorize(cmd.Context(), oc, port, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	authCmd.Flags().StringVar(&port, "port", "8085", "local port for the OAuth redirect")
	authCmd.Flags().StringVar(&tokenFile, "token-file", "", "where to write the token")

	cmd.AddCommand(authCmd)
	return cmd
}
