package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func newCheckOutstandingCommand(a *app) *cobra.Command {
	var (
		lookbackDays int
		staleHours   int
		alwaysNotify bool
		noNotify     bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "check_outstanding",
		Short: "Report unsent drafts and unanswered sales leads",
		Long: `Audit the ledger for drafts still waiting for approval and sales leads
that never got a draft, and notify the configured channels when anything
needs attention. The sweep never writes.

Examples:
  inbox-triage check_outstanding
  inbox-triage check_outstanding --lookback-days 14 --stale-hours 48 --always-notify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sweeper, warnings, err := a.sweeper(cmd.Context())
			if err != nil {
				return err
			}

			opts := a.sweepOptions()
			if lookbackDays > 0 {
				opts.LookbackDays = lookbackDays
			}
			if staleHours > 0 {
				opts.StaleHours = staleHours
			}
			opts.AlwaysNotify = opts.AlwaysNotify || alwaysNotify
			opts.DisableNotify = noNotify
			opts.Now = time.Now()

			report, err := sweeper.Sweep(cmd.Context(), opts)
			if err != nil {
				return err
			}
			report.Warnings = append(report.Warnings, warnings...)
			return emit(cmd.OutOrStdout(), a.outputPath("check_outstanding", output), report)
		},
	}

	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 0, "Window of drafts and leads to audit (defaults to LOOKBACK_DAYS)")
	cmd.Flags().IntVar(&staleHours, "stale-hours", 0, "Age at which an unsent draft is stale (defaults to STALE_HOURS)")
	cmd.Flags().BoolVar(&alwaysNotify, "always-notify", false, "Notify even when nothing needs attention")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "Only print the report")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/check_outstanding.json)")
	return cmd
}
