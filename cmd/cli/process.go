package cli

import (
	"context"
	"fmt"

	inboxdomain "inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
	triageusecase "inbox-triage/internal/triage/usecase"

	"github.com/spf13/cobra"
)

// process classifies poll and records the outcome.
func (a *app) process(ctx context.Context, poll *inboxdomain.PollResult, policy *policydomain.PolicySnapshot) (*triageusecase.Result, error) {
	processor, warnings, err := a.processor()
	if err != nil {
		return nil, err
	}

	mailboxes := make([]string, 0, len(poll.PerMailbox))
	for _, r := range poll.PerMailbox {
		mailboxes = append(mailboxes, r.Mailbox)
	}

	result, err := processor.Process(ctx, triageusecase.Input{
		Poll:    poll,
		Policy:  policy,
		Labeler: a.routeLabeler(ctx, mailboxes),
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	return result, nil
}

// loadPolicy reads a snapshot written by fetch_sop, or fetches one when
// path is empty.
func (a *app) loadPolicy(ctx context.Context, path string) (*policydomain.PolicySnapshot, error) {
	if path == "" {
		provider, err := a.policyProvider("")
		if err != nil {
			return nil, err
		}
		return provider.FetchPolicy(ctx, a.cfg.SOPPageID)
	}
	var snapshot policydomain.PolicySnapshot
	if err := readJSON(path, &snapshot); err != nil {
		return nil, err
	}
	if snapshot.PolicyHash == "" {
		return nil, fmt.Errorf("%s is not a policy snapshot: policyHash is empty", path)
	}
	return &snapshot, nil
}

func newProcessInboundCommand(a *app) *cobra.Command {
	var pollFile, sopFile, output string

	cmd := &cobra.Command{
		Use:   "process_inbound",
		Short: "Classify a polled batch, draft sales replies and advance cursors",
		Long: `Classify every message of a poll_inboxes result in fetch order, record
contacts, activities and accounting entries, draft replies for sales leads and
advance the cursors of mailboxes that were processed cleanly.

Running the same batch twice converges to the same rows.

Examples:
  inbox-triage process_inbound --poll-file var/poll_inboxes.json
  inbox-triage process_inbound --poll-file var/poll_inboxes.json --sop-file var/fetch_sop.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var poll inboxdomain.PollResult
			if err := readJSON(pollFile, &poll); err != nil {
				return err
			}
			policy, err := a.loadPolicy(cmd.Context(), sopFile)
			if err != nil {
				return err
			}
			result, err := a.process(cmd.Context(), &poll, policy)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("process_inbound", output), result)
		},
	}

	cmd.Flags().StringVar(&pollFile, "poll-file", "", "poll_inboxes result to process (required)")
	cmd.Flags().StringVar(&sopFile, "sop-file", "", "fetch_sop result to use (fetched live when empty)")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/process_inbound.json)")
	_ = cmd.MarkFlagRequired("poll-file")
	return cmd
}
