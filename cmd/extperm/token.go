package main

import (
	"fmt"

	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/relay"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tokenSubject string
	tokenSecret  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a relay token for an extperm-host",
	Long: `Token signs a bearer token that an auditor presents to an extperm-host.
The secret must match the host's relay.secret.

  export EXTPERM_INVENTORY_TOKEN=$(extperm token --subject ci-runner)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		secret := tokenSecret
		if secret == "" {
			secret = v.GetString("relay.secret")
		}
		if secret == "" {
			return fmt.Errorf("no secret: pass --secret or set relay.secret")
		}

		ti := relay.NewTokenIssuer(secret, config.Duration(v, "relay.token_ttl", 0))
		token, err := ti.Issue(tokenSubject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "extperm-cli", "Subject recorded in the token")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Shared relay secret (default relay.secret)")
}
