package cli

import (
	"context"
	"fmt"
	"time"

	activitydomain "inbox-triage/internal/activity/domain"
	inboxdomain "inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
	triageusecase "inbox-triage/internal/triage/usecase"
	"inbox-triage/pkg/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CycleResult is the run_cycle output.
type CycleResult struct {
	Policy        CyclePolicy           `json:"policy"`
	Poll          CyclePoll             `json:"poll"`
	Process       *triageusecase.Result `json:"process"`
	MetricsPushed bool                  `json:"metricsPushed"`
	Warnings      []string              `json:"warnings"`
	StartedAt     time.Time             `json:"startedAt"`
	FinishedAt    time.Time             `json:"finishedAt"`
}

// CyclePolicy summarizes the snapshot a cycle ran with.
type CyclePolicy struct {
	SourceID   string   `json:"sourceId"`
	PolicyHash string   `json:"policyHash"`
	Degraded   bool     `json:"degraded"`
	Warnings   []string `json:"warnings,omitempty"`
}

// CyclePoll summarizes the poll without repeating every message.
type CyclePoll struct {
	PolledAt       time.Time                   `json:"polledAt"`
	PerMailbox     []inboxdomain.MailboxReport `json:"perMailbox"`
	PartialFailure bool                        `json:"partialFailure"`
	Messages       int                         `json:"messages"`
}

func newCycleResult(policy *policydomain.PolicySnapshot, poll *inboxdomain.PollResult) *CycleResult {
	return &CycleResult{
		Policy: CyclePolicy{
			SourceID:   policy.SourceID,
			PolicyHash: policy.PolicyHash,
			Degraded:   policy.Degraded,
			Warnings:   policy.Warnings,
		},
		Poll: CyclePoll{
			PolledAt:       poll.PolledAt,
			PerMailbox:     poll.PerMailbox,
			PartialFailure: poll.PartialFailure,
			Messages:       len(poll.Messages),
		},
		Warnings: []string{},
	}
}

// cycleStats maps one cycle onto the pushed gauges.
func cycleStats(poll *inboxdomain.PollResult, result *triageusecase.Result, elapsed time.Duration, finishedAt time.Time) metrics.CycleStats {
	dropped := 0
	for _, r := range poll.PerMailbox {
		dropped += r.Dropped
	}
	return metrics.CycleStats{
		Fetched:        len(poll.Messages),
		Dropped:        dropped,
		Processed:      len(result.Classifications),
		Labels:         result.ClassificationCounts,
		DraftsCreated:  result.Metrics()["drafts_created"],
		Warnings:       len(result.Warnings),
		PartialFailure: result.Status == activitydomain.JobPartialFailure,
		Duration:       elapsed,
		FinishedAt:     finishedAt,
	}
}

// runCycle runs fetch_sop, poll_inboxes and process_inbound back to back.
func (a *app) runCycle(ctx context.Context, flags *pollFlags) (*CycleResult, error) {
	started := time.Now()

	policy, err := a.loadPolicy(ctx, "")
	if err != nil {
		return nil, err
	}
	poll, err := a.poll(ctx, flags)
	if err != nil {
		return nil, err
	}
	result, err := a.process(ctx, poll, policy)
	if err != nil {
		return nil, err
	}

	finished := time.Now()
	out := newCycleResult(policy, poll)
	out.Process = result
	out.StartedAt = started.UTC()
	out.FinishedAt = finished.UTC()

	if a.cfg.PushgatewayURL != "" {
		cycle := metrics.NewCycle()
		cycle.Observe(cycleStats(poll, result, finished.Sub(started), finished))
		if err := cycle.Push(ctx, a.cfg.PushgatewayURL); err != nil {
			a.logger.Warn("metrics push failed", zap.Error(err))
			out.Warnings = append(out.Warnings, fmt.Sprintf("metrics: %v", err))
		} else {
			out.MetricsPushed = true
		}
	}

	a.logger.Info("cycle finished",
		zap.String("status", result.Status),
		zap.Int("messages", len(poll.Messages)),
		zap.Duration("elapsed", finished.Sub(started)))
	return out, nil
}

func newRunCycleCommand(a *app) *cobra.Command {
	var (
		flags  pollFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "run_cycle",
		Short: "Fetch policy, poll and process in one run",
		Long: `Run fetch_sop, poll_inboxes and process_inbound in one process, then push
cycle metrics to PUSHGATEWAY_URL when it is set. Intended for the hourly
scheduler.

Examples:
  inbox-triage run_cycle
  inbox-triage run_cycle --accounts sales@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.runCycle(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), a.outputPath("run_cycle", output), result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "Result file (defaults to <OUTPUT_DIR>/run_cycle.json)")
	return cmd
}
