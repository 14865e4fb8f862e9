package cli

import (
	"context"
	"time"

	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxusecase "inbox-triage/internal/inbox/usecase"
	"inbox-triage/pkg/config"

	"github.com/spf13/cobra"
)

// pollFlags override the configured poll window. Zero values keep the
// configuration.
type pollFlags struct {
	accounts       string
	query          string
	overlapMinutes int
	maxAgeHours    int
	maxResults     int
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.accounts, "accounts", "", "Comma separated mailboxes to poll (defaults to every configured mailbox)")
	cmd.Flags().StringVar(&f.query, "query", "", "Mailbox filter query (defaults to POLL_QUERY)")
	cmd.Flags().IntVar(&f.overlapMinutes, "overlap-minutes", 0, "Minutes re-read before the cursor (defaults to OVERLAP_MINUTES)")
	cmd.Flags().IntVar(&f.maxAgeHours, "max-age-hours", 0, "Drop messages older than this (defaults to MAX_AGE_HOURS)")
	cmd.Flags().IntVar(&f.maxResults, "max-results", 0, "Messages fetched per mailbox (defaults to MAX_RESULTS)")
}

func (f *pollFlags) options(cfg *config.Config, now time.Time) inboxusecase.PollOptions {
	opts := inboxusecase.PollOptions{
		Query:      cfg.PollQuery,
		Overlap:    cfg.Overlap(),
		MaxAge:     cfg.MaxAge(),
		MaxResults: cfg.MaxResults,
		Now:        now.UTC(),
	}
	if f.query != "" {
		opts.Query = f.query
	}
	if f.overlapMinutes > 0 {
		opts.Overlap = time.Duration(f.overlapMinutes) * time.Minute
	}
	if f.maxAgeHours > 0 {
		opts.MaxAge = time.Duration(f.maxAgeHours) * time.Hour
	}
	if f.maxResults > 0 {
		opts.MaxResults = f.maxResults
	}
	return opts
}

// poll reads the selected mailboxes. Only storage failures are errors;
// mailbox failures are reported in the result.
func (a *app) poll(ctx context.Context, f *pollFlags) (*inboxdomain.PollResult, error) {
	poller, err := a.poller()
	if err != nil {
		return nil, err
	}
	mailboxes := a.cfg.ResolveMailboxes(config.SplitList(f.accounts))
	return poller.Poll(ctx, a.mailboxSources(ctx, mailboxes), f.options(a.cfg, time.Now()))
}

func newPollInboxesCommand(a *app) *cobra.Command {
	var (
		flags  pollFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "poll_inboxes",
		Short: "Fetch new messages from every mailbox",
		Long: `Fetch messages received since each mailbox cursor, minus the overlap
window. Cursors are not moved here; process_inbound advances them after the
batch is stored. A failing mailbox is reported and the others still run.

Examples:
  inbox-triage poll_inboxes
  inbox-triage poll_inboxes --accounts sales@example.com --max-results 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.poll(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("poll_inboxes", output), result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/poll_inboxes.json)")
	return cmd
}
