package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmerrifield20/extperm/internal/config"
	"github.com/jmerrifield20/extperm/internal/inventory"
	"github.com/jmerrifield20/extperm/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the report whenever extensions change",
	Long: `Watch prints a report, then prints a fresh one each time an extension is
installed, updated or removed, or the policy file changes. Nothing is kept
between runs.

In profile mode changes are picked up from the filesystem. In remote mode the
inventory host is polled every --interval.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addFormatFlag(watchCmd)
	watchCmd.Flags().StringVar(&reportMinTier, "min-tier", "", "Only show extensions at or above this tier")
	watchCmd.Flags().BoolVarP(&reportVerbose, "verbose", "v", false, "Show per-permission weights and risk annotations")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Minute, "Poll interval in remote mode")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if err := checkFormat(); err != nil {
		return err
	}
	min, err := parseOptionalTier(reportMinTier)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := viper.GetViper()
	out := cmd.OutOrStdout()

	rerun := func() {
		// The policy file may be what changed, so rebuild the service each time.
		svc, err := config.NewAuditService(v, logger)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
			return
		}
		report := svc.Run(ctx)
		fmt.Fprintf(out, "── %s ──\n", report.GeneratedAt.Local().Format(time.RFC1123))
		if err := printReport(out, report, min); err != nil {
			logger.Warn("watch: print report", zap.Error(err))
		}
		fmt.Fprintln(out)
	}

	rerun()

	src, err := config.BuildSource(v, logger)
	if err != nil {
		return err
	}
	profile, ok := src.(*inventory.ProfileSource)
	if !ok {
		return poll(ctx, watchInterval, rerun)
	}

	dirs, err := profile.ExtensionDirs()
	if err != nil {
		return err
	}
	paths := append(dirs, v.GetString("policy.file"))
	w, err := watch.New(paths, watch.DefaultDebounce, logger)
	if err != nil {
		return err
	}
	if w.Watched() == 0 {
		return fmt.Errorf("no extension directories to watch")
	}
	return w.Run(ctx, rerun)
}

func poll(ctx context.Context, every time.Duration, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-ctx.Done():
			return nil
		}
	}
}
