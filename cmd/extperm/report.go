package main

import (
	"fmt"
	"io"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/render"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/spf13/cobra"
)

var (
	reportMinTier string
	reportFailOn  string
	reportVerbose bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Audit every installed extension",
	Long: `Report reads the extension inventory once, scores every extension and
prints them highest risk first.

  extperm report
  extperm report --min-tier high --verbose
  extperm report --format json --inventory remote --remote http://desktop:8081 --token $TOKEN

With --fail-on the command exits with status 2 when any extension reaches the
given tier, which makes it usable as a CI or fleet check.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	addFormatFlag(reportCmd)
	reportCmd.Flags().StringVar(&reportMinTier, "min-tier", "", "Only show extensions at or above this tier (low, medium, high, critical)")
	reportCmd.Flags().StringVar(&reportFailOn, "fail-on", "", "Exit with status 2 if any extension reaches this tier")
	reportCmd.Flags().BoolVarP(&reportVerbose, "verbose", "v", false, "Show per-permission weights and risk annotations")
}

func runReport(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(); err != nil {
		return err
	}
	min, err := parseOptionalTier(reportMinTier)
	if err != nil {
		return err
	}
	failOn, err := parseOptionalTier(reportFailOn)
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	report := svc.Run(cmd.Context())

	if err := printReport(cmd.OutOrStdout(), report, min); err != nil {
		return err
	}
	if report.Error != "" {
		return exitCode(1)
	}
	if reportFailOn != "" && report.Highest() >= failOn && len(report.Extensions) > 0 {
		return exitCode(2)
	}
	return nil
}

func printReport(w io.Writer, report *audit.Report, min risk.Tier) error {
	if min > risk.TierLow {
		report = report.Filter(min)
	}
	if outFormat == render.FormatJSON {
		return render.JSON(w, report)
	}
	return render.NewPrinter(w, reportVerbose).Report(report)
}

func parseOptionalTier(s string) (risk.Tier, error) {
	if s == "" {
		return risk.TierLow, nil
	}
	t, err := risk.ParseTier(s)
	if err != nil {
		return risk.TierLow, fmt.Errorf("%w (want low, medium, high or critical)", err)
	}
	return t, nil
}
