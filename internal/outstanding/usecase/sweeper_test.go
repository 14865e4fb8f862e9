package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	activitydomain "inbox-triage/internal/activity/domain"
	activityrepo "inbox-triage/internal/activity/repository"
	draftdomain "inbox-triage/internal/draft/domain"
	draftrepo "inbox-triage/internal/draft/repository"
	inboxdomain "inbox-triage/internal/inbox/domain"
	"inbox-triage/pkg/database"
	"inbox-triage/pkg/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	messages []notify.Message
	err      error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.messages = append(r.messages, msg)
	return r.err
}

func newSweeper(t *testing.T, n notify.Notifier) (*Sweeper, *gorm.DB) {
	t.Helper()
	db := database.NewTestDB(t, &activitydomain.Activity{}, &draftdomain.Draft{})
	return NewSweeper(draftrepo.NewDraftRepository(db), activityrepo.NewActivityRepository(db), n, zap.NewNop()), db
}

func seedDraft(t *testing.T, db *gorm.DB, id string, created, updated time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&draftdomain.Draft{
		ID:         id,
		ActivityID: "act-" + id,
		ToEmail:    "lead@example.com",
		Subject:    "Re: " + id,
		Status:     draftdomain.StatusDraft,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}).Error)
}

func seedActivity(t *testing.T, db *gorm.DB, id, label, from, subject, body string, received time.Time) {
	t.Helper()
	msg := inboxdomain.InboundMessage{
		Mailbox:    "ops@example.com",
		MessageID:  id,
		Sender:     from,
		Subject:    subject,
		Snippet:    body,
		BodyText:   body,
		ReceivedAt: received,
		SourceKey:  inboxdomain.SourceKey("ops@example.com", id),
	}
	require.NoError(t, db.Create(&activitydomain.Activity{
		ID:         id,
		SourceKey:  msg.SourceKey,
		Mailbox:    msg.Mailbox,
		MessageID:  id,
		Sender:     from,
		Subject:    subject,
		ReceivedAt: received,
		Label:      label,
		RawPayload: msg,
	}).Error)
}

func TestStaleBoundaryIsInclusive(t *testing.T) {
	sweeper, db := newSweeper(t, nil)
	created := now.Add(-48 * time.Hour)
	seedDraft(t, db, "exact", created, now.Add(-24*time.Hour))
	seedDraft(t, db, "younger", created, now.Add(-24*time.Hour+time.Second))

	report, err := sweeper.Sweep(context.Background(), Options{StaleHours: 24, Now: now})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Totals.UnsentDrafts)
	assert.Equal(t, 1, report.Totals.StaleDrafts)
	require.Len(t, report.StaleDrafts, 1)
	assert.Equal(t, "exact", report.StaleDrafts[0].DraftID)
	assert.Equal(t, 24.0, report.StaleDrafts[0].AgeHours)
}

func TestIsStale(t *testing.T) {
	d := &draftdomain.Draft{CreatedAt: now.Add(-30 * time.Hour)}
	assert.True(t, IsStale(d, now, 24*time.Hour), "falls back to created_at")

	d.UpdatedAt = now.Add(-time.Hour)
	assert.False(t, IsStale(d, now, 24*time.Hour))
}

func TestSweepIgnoresClosedAndOldDrafts(t *testing.T) {
	sweeper, db := newSweeper(t, nil)
	seedDraft(t, db, "old", now.AddDate(0, 0, -8), now.AddDate(0, 0, -8))
	seedDraft(t, db, "sent", now.Add(-30*time.Hour), now.Add(-30*time.Hour))
	require.NoError(t, db.Model(&draftdomain.Draft{}).Where("id = ?", "sent").
		UpdateColumn("status", draftdomain.StatusSent).Error)

	report, err := sweeper.Sweep(context.Background(), Options{LookbackDays: 7, Now: now})
	require.NoError(t, err)
	assert.Zero(t, report.Totals.UnsentDrafts)
	assert.Empty(t, report.UnsentDrafts)
}

func TestUnansweredLeads(t *testing.T) {
	sweeper, db := newSweeper(t, nil)
	recent := now.Add(-6 * time.Hour)

	// Stored as ignore but reads like a lead and has no draft.
	seedActivity(t, db, "missed", "ignore", "scout@guidepoint.com", "Paid consultation request",
		"Happy to share budget and timeline for a 30-min call.", recent)
	// A lead that already has a draft.
	seedActivity(t, db, "answered", "sales", "Dana <dana@brand.co>", "Sponsorship inquiry",
		"Would you be interested in a paid sponsorship? Budget is set.", recent)
	seedDraft(t, db, "answered-draft", recent, recent)
	require.NoError(t, db.Model(&draftdomain.Draft{}).Where("id = ?", "answered-draft").
		UpdateColumn("activity_id", "answered").Error)
	seedActivity(t, db, "digest", "ignore", "news@dailydigest.io", "This week's top stories",
		"Highlights. unsubscribe | manage preferences", recent)
	seedActivity(t, db, "stale-lead", "sales", "scout@guidepoint.com", "Paid consultation request",
		"budget and timeline", now.AddDate(0, 0, -9))

	report, err := sweeper.Sweep(context.Background(), Options{LookbackDays: 7, Now: now})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Totals.UnansweredSalesLeads)
	require.Len(t, report.UnansweredSalesLeads, 1)
	assert.Equal(t, "missed", report.UnansweredSalesLeads[0].ActivityID)
	assert.Equal(t, "ignore", report.UnansweredSalesLeads[0].Label)
}

func TestPreviewsAreCapped(t *testing.T) {
	sweeper, db := newSweeper(t, nil)
	for i := 0; i < PreviewLimit+3; i++ {
		ts := now.Add(-time.Duration(30+i) * time.Hour)
		seedDraft(t, db, "d"+string(rune('a'+i)), ts, ts)
	}

	report, err := sweeper.Sweep(context.Background(), Options{Now: now})
	require.NoError(t, err)
	assert.Equal(t, PreviewLimit+3, report.Totals.UnsentDrafts)
	assert.Equal(t, PreviewLimit+3, report.Totals.StaleDrafts)
	assert.Len(t, report.UnsentDrafts, PreviewLimit)
	assert.Len(t, report.StaleDrafts, PreviewLimit)
}

func TestNotificationThreshold(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		stale     int
		wantNotif bool
	}{
		{"below threshold", Options{NotifyMinCount: 2}, 1, false},
		{"at threshold", Options{NotifyMinCount: 2}, 2, true},
		{"nothing outstanding", Options{}, 0, false},
		{"always notify", Options{AlwaysNotify: true}, 0, true},
		{"notify disabled", Options{AlwaysNotify: true, DisableNotify: true}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			sweeper, db := newSweeper(t, n)
			for i := 0; i < tt.stale; i++ {
				ts := now.Add(-time.Duration(25+i) * time.Hour)
				seedDraft(t, db, "s"+string(rune('a'+i)), ts, ts)
			}

			tt.opts.Now = now
			report, err := sweeper.Sweep(context.Background(), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNotif, report.Notified)
			assert.Equal(t, tt.wantNotif, len(n.messages) == 1)
		})
	}
}

func TestNotifyFailureIsAWarning(t *testing.T) {
	n := &recordingNotifier{err: errors.New("webhook 500")}
	sweeper, _ := newSweeper(t, n)

	report, err := sweeper.Sweep(context.Background(), Options{AlwaysNotify: true, Now: now})
	require.NoError(t, err)
	assert.False(t, report.Notified)
	assert.Equal(t, []string{"notify: webhook 500"}, report.Warnings)
}

func TestReportMessage(t *testing.T) {
	r := &Report{
		StaleHours: 24,
		Totals:     Totals{UnsentDrafts: 3, StaleDrafts: 1, UnansweredSalesLeads: 1},
		StaleDrafts: []DraftPreview{
			{DraftID: "d-1", Subject: "Re: Paid consultation", ToEmail: "scout@guidepoint.com", AgeHours: 30},
		},
		UnansweredSalesLeads: []LeadPreview{
			{Subject: "Sponsorship", Sender: "dana@brand.co", Label: "ignore"},
		},
	}
	msg := r.Message()
	assert.Equal(t, "Inbox triage: 2 items need attention", msg.Title)
	assert.Contains(t, msg.Text, "Unsent drafts: 3 (stale > 24h: 1)")
	assert.Contains(t, msg.Text, "- Re: Paid consultation (scout@guidepoint.com, 30h) id=d-1")
	assert.Contains(t, msg.Text, "- Sponsorship from dana@brand.co [ignore]")
	assert.Equal(t, "1", msg.Data["unanswered"])
}
