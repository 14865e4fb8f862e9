package usecase

import (
	"context"
	"time"

	"inbox-triage/internal/inbox/domain"
	"inbox-triage/internal/inbox/repository"
)

// CursorTarget is the newest message time observed for a mailbox that polled
// cleanly. Mailboxes that reported an error have no target and keep their
// previous cursor.
type CursorTarget struct {
	Mailbox     string
	LastMessage time.Time
}

// CursorTargets derives the cursor advances implied by a poll result, in the
// order the mailboxes were polled.
func CursorTargets(result *domain.PollResult) []CursorTarget {
	newest := make(map[string]time.Time)
	for _, msg := range result.Messages {
		if msg.ReceivedAt.After(newest[msg.Mailbox]) {
			newest[msg.Mailbox] = msg.ReceivedAt
		}
	}

	targets := make([]CursorTarget, 0, len(result.PerMailbox))
	for _, report := range result.PerMailbox {
		if report.Error != "" {
			continue
		}
		targets = append(targets, CursorTarget{Mailbox: report.Mailbox, LastMessage: newest[report.Mailbox]})
	}
	return targets
}

// AdvanceCursors persists every target from result.
func AdvanceCursors(ctx context.Context, repo repository.PollStateRepository, result *domain.PollResult) ([]domain.CursorUpdate, error) {
	updates := make([]domain.CursorUpdate, 0, len(result.PerMailbox))
	for _, target := range CursorTargets(result) {
		update, err := repo.Advance(ctx, target.Mailbox, result.PolledAt, target.LastMessage)
		if err != nil {
			return updates, err
		}
		updates = append(updates, *update)
	}
	return updates, nil
}
