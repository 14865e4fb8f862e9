package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	activitydomain "inbox-triage/internal/activity/domain"
	activityrepo "inbox-triage/internal/activity/repository"
	"inbox-triage/internal/classifier"
	draftdomain "inbox-triage/internal/draft/domain"
	draftrepo "inbox-triage/internal/draft/repository"
	"inbox-triage/pkg/notify"

	"go.uber.org/zap"
)

// PreviewLimit caps each list in a report.
const PreviewLimit = 10

// Options bound one sweep. Zero values fall back to 7 days, 24 hours and a
// notify threshold of 1. DisableNotify builds the report without notifying
// anyone.
type Options struct {
	LookbackDays   int
	StaleHours     int
	NotifyMinCount int
	AlwaysNotify   bool
	DisableNotify  bool
	Now            time.Time
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = 7
	}
	if o.StaleHours <= 0 {
		o.StaleHours = 24
	}
	if o.NotifyMinCount <= 0 {
		o.NotifyMinCount = 1
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.UTC()
	return o
}

// Sweeper audits the ledger for work nobody finished. It never writes.
type Sweeper struct {
	drafts     draftrepo.DraftRepository
	activities activityrepo.ActivityRepository
	classifier *classifier.Classifier
	notifier   notify.Notifier
	logger     *zap.Logger
}

// NewSweeper builds a sweeper. notifier may be nil, in which case reports are
// only returned.
func NewSweeper(drafts draftrepo.DraftRepository, activities activityrepo.ActivityRepository, notifier notify.Notifier, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		drafts:     drafts,
		activities: activities,
		classifier: classifier.New(nil),
		notifier:   notifier,
		logger:     logger.Named("outstanding"),
	}
}

// Sweep collects open drafts and unanswered leads inside the lookback window
// and notifies when enough of them need attention.
func (s *Sweeper) Sweep(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	since := opts.Now.AddDate(0, 0, -opts.LookbackDays)
	staleAfter := time.Duration(opts.StaleHours) * time.Hour

	report := newReport(opts)

	open, err := s.drafts.ListOpenCreatedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list open drafts: %w", err)
	}
	for i := range open {
		d := &open[i]
		preview := newDraftPreview(d, opts.Now)
		report.Totals.UnsentDrafts++
		if len(report.UnsentDrafts) < PreviewLimit {
			report.UnsentDrafts = append(report.UnsentDrafts, preview)
		}
		if IsStale(d, opts.Now, staleAfter) {
			report.Totals.StaleDrafts++
			if len(report.StaleDrafts) < PreviewLimit {
				report.StaleDrafts = append(report.StaleDrafts, preview)
			}
		}
	}

	leads, err := s.unansweredLeads(ctx, since)
	if err != nil {
		return nil, err
	}
	report.Totals.UnansweredSalesLeads = len(leads)
	for i := 0; i < len(leads) && i < PreviewLimit; i++ {
		report.UnansweredSalesLeads = append(report.UnansweredSalesLeads, newLeadPreview(&leads[i]))
	}

	needsAttention := report.Totals.StaleDrafts + report.Totals.UnansweredSalesLeads
	if s.notifier != nil && !opts.DisableNotify && (opts.AlwaysNotify || needsAttention >= opts.NotifyMinCount) {
		if err := s.notifier.Notify(ctx, report.Message()); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("notify: %v", err))
			s.logger.Warn("outstanding notification failed", zap.Error(err))
		} else {
			report.Notified = true
		}
	}

	s.logger.Info("outstanding sweep finished",
		zap.Int("unsent", report.Totals.UnsentDrafts),
		zap.Int("stale", report.Totals.StaleDrafts),
		zap.Int("unanswered", report.Totals.UnansweredSalesLeads),
		zap.Bool("notified", report.Notified))
	return report, nil
}

// unansweredLeads re-checks stored sales and ignore activities with the lead
// heuristic instead of trusting their label, and keeps those without a draft.
func (s *Sweeper) unansweredLeads(ctx context.Context, since time.Time) ([]activitydomain.Activity, error) {
	candidates, err := s.activities.ListByLabelsSince(ctx, []string{classifier.LabelSales, classifier.LabelIgnore}, since)
	if err != nil {
		return nil, fmt.Errorf("list candidate activities: %w", err)
	}

	var leads []activitydomain.Activity
	ids := make([]string, 0, len(candidates))
	for _, a := range candidates {
		if s.classifier.LooksLikeBusinessLead(a.RawPayload) {
			leads = append(leads, a)
			ids = append(ids, a.ID)
		}
	}

	drafted, err := s.drafts.ActivityIDsWithDrafts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup drafts: %w", err)
	}
	out := leads[:0]
	for _, a := range leads {
		if !drafted[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// IsStale reports whether d has gone staleAfter or longer without a change.
// The boundary is inclusive.
func IsStale(d *draftdomain.Draft, now time.Time, staleAfter time.Duration) bool {
	return !now.Before(lastTouched(d).Add(staleAfter))
}

func lastTouched(d *draftdomain.Draft) time.Time {
	if !d.UpdatedAt.IsZero() {
		return d.UpdatedAt
	}
	return d.CreatedAt
}

// Message renders the report for chat channels.
func (r *Report) Message() notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Unsent drafts: %d (stale > %dh: %d)\nUnanswered sales leads: %d",
		r.Totals.UnsentDrafts, r.StaleHours, r.Totals.StaleDrafts, r.Totals.UnansweredSalesLeads)
	if len(r.StaleDrafts) > 0 {
		b.WriteString("\n\nStale drafts:")
		for _, d := range r.StaleDrafts {
			fmt.Fprintf(&b, "\n- %s (%s, %.0fh) id=%s", d.Subject, d.ToEmail, d.AgeHours, d.DraftID)
		}
	}
	if len(r.UnansweredSalesLeads) > 0 {
		b.WriteString("\n\nLeads without a draft:")
		for _, l := range r.UnansweredSalesLeads {
			fmt.Fprintf(&b, "\n- %s from %s [%s]", l.Subject, l.Sender, l.Label)
		}
	}
	return notify.Message{
		Title: fmt.Sprintf("Inbox triage: %d items need attention", r.Totals.StaleDrafts+r.Totals.UnansweredSalesLeads),
		Text:  b.String(),
		Data: map[string]string{
			"type":       "outstanding_report",
			"unsent":     fmt.Sprint(r.Totals.UnsentDrafts),
			"stale":      fmt.Sprint(r.Totals.StaleDrafts),
			"unanswered": fmt.Sprint(r.Totals.UnansweredSalesLeads),
		},
	}
}
