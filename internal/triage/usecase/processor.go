package usecase

import (
	"context"
	"fmt"
	"time"

	activitydomain "inbox-triage/internal/activity/domain"
	activityrepo "inbox-triage/internal/activity/repository"
	activityusecase "inbox-triage/internal/activity/usecase"
	"inbox-triage/internal/classifier"
	draftusecase "inbox-triage/internal/draft/usecase"
	inboxdomain "inbox-triage/internal/inbox/domain"
	inboxrepo "inbox-triage/internal/inbox/repository"
	inboxusecase "inbox-triage/internal/inbox/usecase"
	policydomain "inbox-triage/internal/policy/domain"
	"inbox-triage/pkg/ai"
	"inbox-triage/pkg/notify"

	"go.uber.org/zap"
)

// JobKind is the job run kind recorded by Process.
const JobKind = "process_inbound"

// RouteLabeler tags a message in its mailbox with a routing label. A labeler
// is built per run so anything it caches dies with the run.
type RouteLabeler interface {
	ApplyLabel(ctx context.Context, mailbox, messageID, label string) error
}

// EventPublisher announces classified activities to downstream consumers.
type EventPublisher interface {
	PublishActivity(ctx context.Context, event notify.ActivityEvent) error
}

// Dependencies wires the processor to storage and collaborators. Model and
// Events may be nil.
type Dependencies struct {
	Classifier *classifier.Classifier
	Model      ai.Backend
	Activities activityrepo.ActivityRepository
	Contacts   activityrepo.ContactRepository
	Accounting activityrepo.AccountingRepository
	JobRuns    activityrepo.JobRunRepository
	PollState  inboxrepo.PollStateRepository
	Drafter    *draftusecase.Drafter
	Approvals  *draftusecase.Approvals
	Events     EventPublisher
	Logger     *zap.Logger
}

// Input is one batch to process. Labeler may be nil.
type Input struct {
	Poll    *inboxdomain.PollResult
	Policy  *policydomain.PolicySnapshot
	Labeler RouteLabeler
}

// Processor classifies a poll batch and records every outcome.
type Processor struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

func NewProcessor(deps Dependencies) *Processor {
	if deps.Classifier == nil {
		deps.Classifier = classifier.New(nil)
	}
	return &Processor{deps: deps, logger: deps.Logger.Named("processor"), now: time.Now}
}

// Process handles messages one at a time in fetch order. A failing message
// becomes a warning and leaves its mailbox cursor where it was, so the next
// cycle sees the message again.
func (p *Processor) Process(ctx context.Context, in Input) (*Result, error) {
	if in.Poll == nil {
		return nil, fmt.Errorf("process: poll result is required")
	}
	policy := in.Policy
	if policy == nil {
		policy = &policydomain.PolicySnapshot{}
	}

	run, err := p.deps.JobRuns.Start(ctx, JobKind, policy.PolicyHash, policy.Degraded, p.now())
	if err != nil {
		return nil, fmt.Errorf("start job run: %w", err)
	}

	out := newResult(run.ID, policy)
	for _, report := range in.Poll.PerMailbox {
		if report.Error != "" {
			out.warn("mailbox %s poll failed: %s", report.Mailbox, report.Error)
		}
	}
	if policy.Degraded {
		out.Warnings = append(out.Warnings, policy.Warnings...)
	}

	failedMailboxes := make(map[string]bool)
	for _, msg := range in.Poll.Messages {
		if msg.SourceKey == "" {
			msg.SourceKey = inboxdomain.SourceKey(msg.Mailbox, msg.MessageID)
		}
		if err := p.processMessage(ctx, msg, policy, in.Labeler, out); err != nil {
			failedMailboxes[msg.Mailbox] = true
			out.metrics["message_failures"]++
			out.warn("message %s failed: %v", msg.SourceKey, err)
			p.logger.Error("failed to process message",
				zap.String("source_key", msg.SourceKey),
				zap.Error(err))
		}
	}

	updates, err := inboxusecase.AdvanceCursors(ctx, p.deps.PollState, withFailedMailboxes(in.Poll, failedMailboxes))
	out.PollStateUpdates = append(out.PollStateUpdates, updates...)
	if err != nil {
		out.warn("advance poll cursors: %v", err)
		out.cursorFailed = true
	}

	out.Status = activitydomain.JobOK
	if in.Poll.PartialFailure || len(failedMailboxes) > 0 || out.cursorFailed {
		out.Status = activitydomain.JobPartialFailure
	}
	out.metrics["messages"] = len(in.Poll.Messages)
	out.metrics["warnings"] = len(out.Warnings)

	if err := p.deps.JobRuns.Finish(ctx, run, out.Status, out.metrics, out.Warnings, p.now()); err != nil {
		return out, fmt.Errorf("finish job run: %w", err)
	}

	p.logger.Info("batch processed",
		zap.String("job_run_id", run.ID),
		zap.String("status", out.Status),
		zap.Int("messages", len(in.Poll.Messages)),
		zap.Any("counts", out.ClassificationCounts))
	return out, nil
}

func (p *Processor) processMessage(ctx context.Context, msg inboxdomain.InboundMessage, policy *policydomain.PolicySnapshot, labeler RouteLabeler, out *Result) error {
	res := p.deps.Classifier.Classify(ctx, msg, policy, p.deps.Model)

	activity := &activitydomain.Activity{
		SourceKey:      msg.SourceKey,
		Mailbox:        msg.Mailbox,
		MessageID:      msg.MessageID,
		ThreadID:       msg.ThreadID,
		Sender:         msg.Sender,
		SenderEmail:    msg.SenderEmail(),
		Subject:        msg.Subject,
		Snippet:        msg.Snippet,
		ReceivedAt:     msg.ReceivedAt.UTC(),
		Label:          res.Label,
		Confidence:     res.Confidence,
		Reasons:        res.Reasons,
		PolicyHash:     policy.PolicyHash,
		PolicyDegraded: policy.Degraded,
		RawPayload:     msg,
	}

	if res.Label == classifier.LabelSales || res.Label == classifier.LabelSupport {
		contact, err := p.deps.Contacts.Touch(ctx, msg.SenderEmail(), msg.SenderName(), msg.Mailbox, res.Label, msg.ReceivedAt)
		if err != nil {
			return fmt.Errorf("upsert contact: %w", err)
		}
		activity.ContactID = &contact.ID
	}

	if err := p.deps.Activities.Upsert(ctx, activity); err != nil {
		return fmt.Errorf("upsert activity: %w", err)
	}

	if res.Label == classifier.LabelSales {
		draft, created, err := p.deps.Drafter.EnsureDraft(ctx, activity.ID, msg, policy)
		if err != nil {
			return err
		}
		if created {
			out.metrics["drafts_created"]++
		}
		out.SalesDrafts = append(out.SalesDrafts, SalesDraft{
			ActivityID: activity.ID,
			DraftID:    draft.ID,
			SourceKey:  msg.SourceKey,
			ToEmail:    draft.ToEmail,
			Subject:    draft.Subject,
			Status:     draft.Status,
			Method:     draft.Method,
			Created:    created,
		})
	} else {
		rejected, err := p.deps.Approvals.RejectIfOpen(ctx, activity.ID, draftusecase.ReclassifiedReason)
		if err != nil {
			return fmt.Errorf("reject stale draft: %w", err)
		}
		if rejected {
			out.metrics["drafts_reclassified"]++
			p.logger.Info("open draft rejected after reclassification",
				zap.String("source_key", msg.SourceKey),
				zap.String("label", res.Label))
		}
	}

	if res.Label != classifier.LabelReceipt {
		removed, err := p.deps.Accounting.DeleteBySourceKey(ctx, msg.SourceKey)
		if err != nil {
			return fmt.Errorf("remove accounting entry: %w", err)
		}
		if removed {
			out.metrics["accounting_reclassified"]++
			p.logger.Info("accounting entry removed after reclassification",
				zap.String("source_key", msg.SourceKey),
				zap.String("label", res.Label))
		}
	} else {
		entry := activityusecase.NewAccountingEntry(activity, msg)
		if err := p.deps.Accounting.Upsert(ctx, entry); err != nil {
			return fmt.Errorf("upsert accounting entry: %w", err)
		}
		out.AccountingEntries = append(out.AccountingEntries, AccountingEntry{
			SourceKey:  entry.SourceKey,
			ActivityID: entry.ActivityID,
			Vendor:     entry.Vendor,
			Amount:     entry.Amount,
			Currency:   entry.Currency,
		})
	}

	out.ClassificationCounts[res.Label]++
	out.metrics["label_"+res.Label]++
	out.Classifications = append(out.Classifications, Classification{
		SourceKey:  msg.SourceKey,
		ActivityID: activity.ID,
		Label:      res.Label,
		Confidence: res.Confidence,
		Reasons:    res.Reasons,
	})

	// Labels and events are conveniences; the ledger above is the record.
	if labeler != nil {
		if err := labeler.ApplyLabel(ctx, msg.Mailbox, msg.MessageID, res.Label); err != nil {
			out.warn("routing label for %s: %v", msg.SourceKey, err)
		}
	}
	if p.deps.Events != nil {
		event := notify.ActivityEvent{
			SourceKey:  msg.SourceKey,
			ActivityID: activity.ID,
			Mailbox:    msg.Mailbox,
			Label:      res.Label,
			Confidence: res.Confidence,
			Reasons:    res.Reasons,
			PolicyHash: policy.PolicyHash,
			Degraded:   policy.Degraded,
			OccurredAt: p.now().UTC(),
		}
		if err := p.deps.Events.PublishActivity(ctx, event); err != nil {
			out.warn("publish event for %s: %v", msg.SourceKey, err)
		}
	}
	return nil
}

// withFailedMailboxes marks mailboxes with failed messages as errored so
// their cursors stay put.
func withFailedMailboxes(poll *inboxdomain.PollResult, failed map[string]bool) *inboxdomain.PollResult {
	if len(failed) == 0 {
		return poll
	}
	copied := *poll
	copied.PerMailbox = make([]inboxdomain.MailboxReport, len(poll.PerMailbox))
	for i, report := range poll.PerMailbox {
		if failed[report.Mailbox] && report.Error == "" {
			report.Error = "message processing failed"
		}
		copied.PerMailbox[i] = report
	}
	return &copied
}
