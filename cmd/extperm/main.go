package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile    string
	debug      bool
	outFormat  string
	inventoryM string
	remoteURL  string
	relayToken string
	profiles   []string
	policyFile string

	logger = zap.NewNop()
)

// exitCode is returned by commands that have already told the user what went
// wrong and only need the process to exit non-zero.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extperm",
	Short: "Audit browser extension permissions",
	Long: `extperm scores every installed browser extension by the permissions it
holds and how much of the web it can reach, then sorts them into Low, Medium,
High and Critical risk tiers.

Extensions are read from local Chromium-family profiles by default. Point
--inventory remote at an extperm-host to audit another machine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
		}

		v := viper.GetViper()
		flags := cmd.Flags()
		for key, flag := range map[string]string{
			"inventory.mode":       "inventory",
			"inventory.remote_url": "remote",
			"inventory.token":      "token",
			"inventory.profiles":   "profile",
			"policy.file":          "policy",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		return config.Load(v, "extperm", cfgFile)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default configs/extperm.yaml or ./extperm.yaml)")
	pf.BoolVar(&debug, "debug", false, "log diagnostics to stderr")
	pf.StringVar(&inventoryM, "inventory", config.ModeProfile, "inventory source: profile or remote")
	pf.StringVar(&remoteURL, "remote", "", "extperm-host base URL for --inventory remote")
	pf.StringVar(&relayToken, "token", "", "relay token for the extperm-host")
	pf.StringSliceVar(&profiles, "profile", nil, "browser profile directory or glob (repeatable)")
	pf.StringVar(&policyFile, "policy", "", "YAML file overriding permission weights and annotations")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&outFormat, "format", "text", "Output format: text or json")
}

func checkFormat() error {
	outFormat = strings.ToLower(outFormat)
	switch outFormat {
	case render.FormatText, render.FormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown --format %q (want text or json)", outFormat)
	}
}

func newService() (*audit.Service, error) {
	return config.NewAuditService(viper.GetViper(), logger)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the extperm version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "extperm %s\n", version)
	},
}
