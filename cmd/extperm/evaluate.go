package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/render"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	evalName  string
	evalPerms []string
	evalHosts []string
	evalFile  string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score an extension that is not installed",
	Long: `Evaluate scores extensions described on the command line or in a JSON
file, without touching the local inventory.

  extperm evaluate --name "Grammar Helper" --permission scripting,storage --host "<all_urls>"
  extperm evaluate --file extensions.json

The file may hold a single record, an array of records, or an inventory
response ({"success": true, "extensions": [...]}). Records use the inventory
field names: name, permissions, hostPermissions. Use --file - for stdin.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	addFormatFlag(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalName, "name", "", "Extension display name")
	evaluateCmd.Flags().StringSliceVarP(&evalPerms, "permission", "p", nil, "API permission (repeatable or comma-separated)")
	evaluateCmd.Flags().StringSliceVar(&evalHosts, "host", nil, "Host match pattern (repeatable or comma-separated)")
	evaluateCmd.Flags().StringVarP(&evalFile, "file", "f", "", "JSON file of extension records, or - for stdin")
	evaluateCmd.Flags().BoolVarP(&reportVerbose, "verbose", "v", false, "Show per-permission detail for every record in --file")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(); err != nil {
		return err
	}
	table, err := config.LoadTable(viper.GetViper())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if evalFile != "" {
		records, err := readRecords(cmd.InOrStdin(), evalFile)
		if err != nil {
			return err
		}
		svc := audit.NewService(inventory.NewCollector(inventory.StaticSource(records), logger), table, logger)
		return printReport(out, svc.Run(cmd.Context()), risk.TierLow)
	}

	if evalName == "" {
		evalName = "unnamed"
	}
	svc := audit.NewService(inventory.NewCollector(inventory.StaticSource{}, logger), table, logger)
	result, err := svc.EvaluateRecord(inventory.Record{
		Name:            evalName,
		Permissions:     evalPerms,
		HostPermissions: evalHosts,
	})
	if err != nil {
		return err
	}
	if outFormat == render.FormatJSON {
		return render.JSON(out, result)
	}
	return render.NewPrinter(out, true).Extension(result)
}

// readRecords decodes a record, a list of records or an inventory response.
func readRecords(stdin io.Reader, path string) ([]inventory.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read records: %s is empty", path)
	}

	if data[0] == '[' {
		var recs []inventory.Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return recs, nil
	}

	var probe struct {
		Extensions *[]inventory.Record `json:"extensions"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if probe.Extensions != nil {
		return *probe.Extensions, nil
	}

	var rec inventory.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return []inventory.Record{rec}, nil
}
