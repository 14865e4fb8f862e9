package repository

import (
	"context"
	"testing"
	"time"

	"inbox-triage/internal/activity/domain"
	inboxdomain "inbox-triage/internal/inbox/domain"
	"inbox-triage/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newActivity(sourceKey, label string, received time.Time) *domain.Activity {
	return &domain.Activity{
		SourceKey:  sourceKey,
		Mailbox:    "ops@example.com",
		MessageID:  sourceKey,
		Sender:     "ana@acme.io",
		Subject:    "Hello",
		ReceivedAt: received,
		Label:      label,
		Confidence: 0.9,
		Reasons:    []string{"rule-a"},
		RawPayload: inboxdomain.InboundMessage{MessageID: sourceKey, Subject: "Hello"},
	}
}

func TestActivityUpsertConverges(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository(database.NewTestDB(t, domain.Models()...))
	received := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first := newActivity("ops@example.com:1", "ignore", received)
	require.NoError(t, repo.Upsert(ctx, first))

	second := newActivity("ops@example.com:1", "sales", received)
	second.Reasons = []string{"rule-explicit-business-lead"}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	stored, err := repo.FindBySourceKey(ctx, "ops@example.com:1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "sales", stored.Label)
	assert.Equal(t, []string{"rule-explicit-business-lead"}, stored.Reasons)
	assert.Equal(t, "Hello", stored.RawPayload.Subject)

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByLabelsSince(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository(database.NewTestDB(t, domain.Models()...))
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(ctx, newActivity("k:old", "sales", base.Add(-10*24*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, newActivity("k:sales", "sales", base.Add(-time.Hour))))
	require.NoError(t, repo.Upsert(ctx, newActivity("k:ignore", "ignore", base.Add(-2*time.Hour))))
	require.NoError(t, repo.Upsert(ctx, newActivity("k:receipt", "receipt", base.Add(-time.Hour))))

	got, err := repo.ListByLabelsSince(ctx, []string{"sales", "ignore"}, base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "k:sales", got[0].SourceKey)
	assert.Equal(t, "k:ignore", got[1].SourceKey)
}

func TestContactTouch(t *testing.T) {
	ctx := context.Background()
	repo := NewContactRepository(database.NewTestDB(t, domain.Models()...))
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	c, err := repo.Touch(ctx, "Ana@Acme.io", "Ana", "ops@example.com", "sales", t2)
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.io", c.Email)

	again, err := repo.Touch(ctx, "ana@acme.io", "", "sales@example.com", "support", t1)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.True(t, again.LastSeenAt.Equal(t2))
	assert.True(t, again.FirstSeenAt.Equal(t1))
	assert.Equal(t, "ops@example.com", again.Mailbox)
	assert.Equal(t, "Ana", again.Name)

	_, err = repo.Touch(ctx, " ", "", "", "", t1)
	assert.Error(t, err)
}

func TestAccountingUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountingRepository(database.NewTestDB(t, domain.Models()...))

	amount := 12.5
	entry := &domain.AccountingEntry{SourceKey: "k:1", ActivityID: "a-1", Amount: &amount}
	require.NoError(t, repo.Upsert(ctx, entry))

	vendor := "Acme"
	replay := &domain.AccountingEntry{SourceKey: "k:1", ActivityID: "a-1", Vendor: &vendor, Amount: &amount}
	require.NoError(t, repo.Upsert(ctx, replay))
	assert.Equal(t, entry.ID, replay.ID)

	stored, err := repo.FindBySourceKey(ctx, "k:1")
	require.NoError(t, err)
	require.NotNil(t, stored.Vendor)
	assert.Equal(t, "Acme", *stored.Vendor)
	assert.Nil(t, stored.Currency)
}

func TestAccountingDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountingRepository(database.NewTestDB(t, domain.Models()...))

	require.NoError(t, repo.Upsert(ctx, &domain.AccountingEntry{SourceKey: "k:1", ActivityID: "a-1"}))

	ok, err := repo.DeleteBySourceKey(ctx, "k:1")
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindBySourceKey(ctx, "k:1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	ok, err = repo.DeleteBySourceKey(ctx, "k:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJobRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunRepository(database.NewTestDB(t, domain.Models()...))
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run, err := repo.Start(ctx, "process_inbound", "hash-1", true, start)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, run.Status)

	require.NoError(t, repo.Finish(ctx, run, domain.JobPartialFailure, map[string]int{"messages": 3}, []string{"mailbox x failed"}, start.Add(time.Minute)))

	stored, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPartialFailure, stored.Status)
	assert.Equal(t, 3, stored.Metrics["messages"])
	assert.Equal(t, []string{"mailbox x failed"}, stored.Warnings)
	require.NotNil(t, stored.FinishedAt)
	assert.True(t, stored.PolicyDegraded)
}
