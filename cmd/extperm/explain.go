package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/jmerrifield20/extperm/internal/audit"
	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/render"
	"github.com/jmerrifield20/extperm/internal/risk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var explainAll bool

var explainCmd = &cobra.Command{
	Use:   "explain <permission> [permission...]",
	Short: "Show the weight and risk annotation of permissions",
	Long: `Explain prints how much each permission adds to a risk score and, for the
curated set of especially sensitive permissions, why.

  extperm explain webRequest tabs
  extperm explain --all`,
	RunE: runExplain,
}

func init() {
	addFormatFlag(explainCmd)
	explainCmd.Flags().BoolVar(&explainAll, "all", false, "List the whole weight table")
}

func runExplain(cmd *cobra.Command, args []string) error {
	if err := checkFormat(); err != nil {
		return err
	}
	if !explainAll && len(args) == 0 {
		return fmt.Errorf("name at least one permission, or pass --all")
	}

	table, err := config.LoadTable(viper.GetViper())
	if err != nil {
		return err
	}
	svc := audit.NewService(nil, table, logger)
	out := cmd.OutOrStdout()

	if explainAll {
		return printWeightTable(cmd, table)
	}

	explanations := make([]audit.Explanation, 0, len(args))
	for _, p := range args {
		explanations = append(explanations, svc.Explain(p))
	}
	if outFormat == render.FormatJSON {
		if len(explanations) == 1 {
			return render.JSON(out, explanations[0])
		}
		return render.JSON(out, explanations)
	}

	pr := render.NewPrinter(out, false)
	for i, e := range explanations {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := pr.Explanation(e); err != nil {
			return err
		}
	}
	return nil
}

func printWeightTable(cmd *cobra.Command, table *risk.Table) error {
	weights := table.Weights()
	out := cmd.OutOrStdout()
	if outFormat == render.FormatJSON {
		return render.JSON(out, map[string]any{
			"default_weight": table.DefaultWeight(),
			"weights":        weights,
			"annotations":    table.Annotations(),
		})
	}

	names := make([]string, 0, len(weights))
	for p := range weights {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERMISSION\tWEIGHT\tANNOTATED")
	for _, p := range names {
		_, annotated := table.AnnotationFor(p)
		mark := ""
		if annotated {
			mark = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", p, weights[p], mark)
	}
	fmt.Fprintf(w, "(any other)\t%d\t\n", table.DefaultWeight())
	return w.Flush()
}
