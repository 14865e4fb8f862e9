package cli

import (
	"fmt"
	"time"

	authusecase "inbox-triage/internal/auth/usecase"
	draftdomain "inbox-triage/internal/draft/domain"
	draftusecase "inbox-triage/internal/draft/usecase"

	"github.com/spf13/cobra"
)

func newApprovalActionCommand(a *app) *cobra.Command {
	var action, draftID, approvedBy, notes, reason, output string

	cmd := &cobra.Command{
		Use:   "approval_action",
		Short: "Approve, revise or reject a draft reply",
		Long: `Run one approval action on a draft.

approve sends the draft through its mailbox and marks it sent; revise appends
notes to the body; reject closes it. Sent and rejected drafts accept no
further action: the command then reports ok=false and changes nothing.

Examples:
  inbox-triage approval_action --action approve --draft-id <id> --approved-by alice
  inbox-triage approval_action --action revise --draft-id <id> --notes "Offer a call on Tuesday"
  inbox-triage approval_action --action reject --draft-id <id> --reason "Not a real lead"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch action {
			case draftdomain.ActionApprove, draftdomain.ActionRevise, draftdomain.ActionReject:
			default:
				return fmt.Errorf("%w: %q (want approve, revise or reject)", draftusecase.ErrUnknownAction, action)
			}
			approvals, err := a.approvals()
			if err != nil {
				return err
			}
			result, err := approvals.Do(cmd.Context(), action, draftID, draftusecase.ActionInput{
				ApprovedBy: approvedBy,
				Notes:      notes,
				Reason:     reason,
			})
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("approval_action", output), result)
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "approve, revise or reject (required)")
	cmd.Flags().StringVar(&draftID, "draft-id", "", "Draft id (required)")
	cmd.Flags().StringVar(&approvedBy, "approved-by", "", "Who approved the send (defaults to operator)")
	cmd.Flags().StringVar(&notes, "notes", "", "Revision notes, required for revise")
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason, required for reject")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/approval_action.json)")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("draft-id")
	return cmd
}

func newIssueApprovalTokenCommand(a *app) *cobra.Command {
	var (
		approver string
		ttl      time.Duration
		output   string
	)

	cmd := &cobra.Command{
		Use:   "issue_approval_token",
		Short: "Issue a bearer token for the approval server",
		Long: `Sign an HS256 token with APPROVAL_SIGNING_SECRET. The approval server
records the token subject as approvedBy on every draft sent with it.

Examples:
  inbox-triage issue_approval_token --approver alice@example.com
  inbox-triage issue_approval_token --approver chat-bot --ttl 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := a.credentials().Resolve(a.cfg.ApprovalSigningSecret)
			if err != nil {
				return fmt.Errorf("resolve APPROVAL_SIGNING_SECRET: %w", err)
			}
			tokens, err := authusecase.NewTokens(secret)
			if err != nil {
				return err
			}
			issued, err := tokens.Issue(approver, ttl)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("issue_approval_token", output), issued)
		},
	}

	cmd.Flags().StringVar(&approver, "approver", "", "Token subject (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", authusecase.DefaultTTL, "Token lifetime")
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/issue_approval_token.json)")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}
