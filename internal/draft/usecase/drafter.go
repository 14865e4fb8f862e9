package usecase

import (
	"context"
	"fmt"

	"inbox-triage/internal/draft/domain"
	"inbox-triage/internal/draft/repository"
	inboxdomain "inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
)

// Drafter creates the single draft a sales activity may have.
type Drafter struct {
	drafts   repository.DraftRepository
	composer *Composer
}

func NewDrafter(drafts repository.DraftRepository, composer *Composer) *Drafter {
	return &Drafter{drafts: drafts, composer: composer}
}

// EnsureDraft returns the activity's draft, composing and storing one only
// when none exists in any status. created reports whether this call made it.
func (d *Drafter) EnsureDraft(ctx context.Context, activityID string, msg inboxdomain.InboundMessage, policy *policydomain.PolicySnapshot) (draft *domain.Draft, created bool, err error) {
	existing, err := d.drafts.FindByActivityID(ctx, activityID)
	if err != nil {
		return nil, false, fmt.Errorf("find draft: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	comp := d.composer.Compose(ctx, msg, policy)
	draft = &domain.Draft{
		ActivityID:   activityID,
		SourceKey:    msg.SourceKey,
		AccountEmail: msg.Mailbox,
		ToEmail:      msg.SenderEmail(),
		Subject:      comp.Subject,
		Body:         comp.Body,
		ThreadID:     msg.ThreadID,
		InReplyTo:    msg.RFC822MessageID,
		Status:       domain.StatusDraft,
		Method:       comp.Method,
	}
	if policy != nil {
		draft.PolicyHash = policy.PolicyHash
		draft.PolicyDegraded = policy.Degraded
	}

	created, err = d.drafts.CreateIfAbsent(ctx, draft)
	if err != nil {
		return nil, false, fmt.Errorf("create draft: %w", err)
	}
	return draft, created, nil
}
