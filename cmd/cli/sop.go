package cli

import (
	"github.com/spf13/cobra"
)

func newFetchSOPCommand(a *app) *cobra.Command {
	var pageID, cacheFile, output string

	cmd := &cobra.Command{
		Use:   "fetch_sop",
		Short: "Fetch the policy snapshot",
		Long: `Fetch the operating policy (SOP) page and fingerprint it.

When the source cannot be read the last cached snapshot is returned with
degraded=true. With no cache the command fails.

Examples:
  inbox-triage fetch_sop
  inbox-triage fetch_sop --page-id 1c2f... --cache-file var/sop_cache.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pageID == "" {
				pageID = a.cfg.SOPPageID
			}
			provider, err := a.policyProvider(cacheFile)
			if err != nil {
				return err
			}
			snapshot, err := provider.FetchPolicy(cmd.Context(), pageID)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("fetch_sop", output), snapshot)
		},
	}

	cmd.Flags().StringVar(&pageID, "page-id", "", "Policy page id, or markdown path with SOP_SOURCE=file (defaults to SOP_PAGE_ID)")
	cmd.Flags().StringVar(&cacheFile, "cache-file", "", "Snapshot cache file (defaults to SOP_CACHE_FILE)")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/fetch_sop.json)")
	return cmd
}
