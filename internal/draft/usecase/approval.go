package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inbox-triage/internal/draft/domain"
	"inbox-triage/internal/draft/repository"

	"go.uber.org/zap"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrMissingFields  = errors.New("draft is missing fields required to send")
	ErrNotesRequired  = errors.New("revision notes are required")
	ErrReasonRequired = errors.New("rejection reason is required")
	ErrUnknownAction  = errors.New("unknown approval action")
)

// RevisionMarker introduces appended revision notes in a draft body.
const RevisionMarker = "[Revision requested]"

// ReclassifiedReason is stored on drafts rejected because their activity
// stopped being a sales lead.
const ReclassifiedReason = "reclassified"

// defaultClaimTTL bounds how long a crashed approve blocks a retry.
const defaultClaimTTL = 10 * time.Minute

// Sender delivers an approved reply through the mail transport of the
// draft's account.
type Sender interface {
	Send(ctx context.Context, email domain.OutboundEmail) error
}

// ActionInput carries the optional arguments of an approval action.
type ActionInput struct {
	ApprovedBy string
	Notes      string
	Reason     string
}

// Approvals is the draft state machine: draft moves to sent or rejected and
// may be revised while it is still a draft.
type Approvals struct {
	drafts   repository.DraftRepository
	sender   Sender
	logger   *zap.Logger
	now      func() time.Time
	claimTTL time.Duration
}

func NewApprovals(drafts repository.DraftRepository, sender Sender, logger *zap.Logger) *Approvals {
	return &Approvals{
		drafts:   drafts,
		sender:   sender,
		logger:   logger.Named("approvals"),
		now:      time.Now,
		claimTTL: defaultClaimTTL,
	}
}

// Do dispatches action by name.
func (a *Approvals) Do(ctx context.Context, action, draftID string, in ActionInput) (*domain.ActionResult, error) {
	switch action {
	case domain.ActionApprove:
		return a.Approve(ctx, draftID, in.ApprovedBy)
	case domain.ActionRevise:
		return a.Revise(ctx, draftID, in.Notes)
	case domain.ActionReject:
		return a.Reject(ctx, draftID, in.Reason)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Approve sends the draft and marks it sent. The draft is claimed before the
// send so that two approvals racing on the same draft send at most once.
func (a *Approvals) Approve(ctx context.Context, draftID, approvedBy string) (*domain.ActionResult, error) {
	draft, err := a.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.IsTerminal() {
		return guardResult(domain.ActionApprove, draft), nil
	}
	if missing := missingSendFields(draft); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	approvedBy = strings.TrimSpace(approvedBy)
	if approvedBy == "" {
		approvedBy = "operator"
	}

	claimed, err := a.drafts.ClaimForSend(ctx, draft.ID, a.now(), a.claimTTL)
	if err != nil {
		return nil, fmt.Errorf("claim draft: %w", err)
	}
	if !claimed {
		return a.lostRace(ctx, domain.ActionApprove, draft.ID)
	}

	err = a.sender.Send(ctx, domain.OutboundEmail{
		From:      draft.AccountEmail,
		To:        draft.ToEmail,
		Subject:   draft.Subject,
		Body:      draft.Body,
		ThreadID:  draft.ThreadID,
		InReplyTo: draft.InReplyTo,
	})
	if err != nil {
		if relErr := a.drafts.ReleaseClaim(ctx, draft.ID); relErr != nil {
			a.logger.Error("failed to release send claim", zap.String("draft_id", draft.ID), zap.Error(relErr))
		}
		return nil, fmt.Errorf("send draft %s: %w", draft.ID, err)
	}

	ok, err := a.drafts.MarkSent(ctx, draft.ID, approvedBy, a.now())
	if err != nil {
		// The mail is out; keep the claim so nothing resends it.
		return nil, fmt.Errorf("draft %s was sent but could not be marked sent: %w", draft.ID, err)
	}
	if !ok {
		return nil, fmt.Errorf("draft %s was sent but changed state concurrently", draft.ID)
	}

	a.logger.Info("draft sent",
		zap.String("draft_id", draft.ID),
		zap.String("to", draft.ToEmail),
		zap.String("approved_by", approvedBy))
	return &domain.ActionResult{
		OK:            true,
		Action:        domain.ActionApprove,
		DraftID:       draft.ID,
		UpdatedStatus: domain.StatusSent,
	}, nil
}

// Revise appends notes to the body; the draft stays open for approval.
func (a *Approvals) Revise(ctx context.Context, draftID, notes string) (*domain.ActionResult, error) {
	draft, err := a.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.IsTerminal() {
		return guardResult(domain.ActionRevise, draft), nil
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrNotesRequired
	}

	body := strings.TrimRight(draft.Body, "\n") + "\n\n" + RevisionMarker + "\n" + notes
	ok, err := a.drafts.Revise(ctx, draft.ID, body, notes, a.now(), a.claimTTL)
	if err != nil {
		return nil, fmt.Errorf("revise draft: %w", err)
	}
	if !ok {
		return a.lostRace(ctx, domain.ActionRevise, draft.ID)
	}
	return &domain.ActionResult{
		OK:            true,
		Action:        domain.ActionRevise,
		DraftID:       draft.ID,
		UpdatedStatus: domain.StatusDraft,
	}, nil
}

// Reject closes the draft for good.
func (a *Approvals) Reject(ctx context.Context, draftID, reason string) (*domain.ActionResult, error) {
	draft, err := a.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.IsTerminal() {
		return guardResult(domain.ActionReject, draft), nil
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	ok, err := a.drafts.Reject(ctx, draft.ID, reason, a.now(), a.claimTTL)
	if err != nil {
		return nil, fmt.Errorf("reject draft: %w", err)
	}
	if !ok {
		return a.lostRace(ctx, domain.ActionReject, draft.ID)
	}
	return &domain.ActionResult{
		OK:            true,
		Action:        domain.ActionReject,
		DraftID:       draft.ID,
		UpdatedStatus: domain.StatusRejected,
	}, nil
}

// RejectIfOpen rejects the activity's draft when it is still open and no
// send is in flight. It reports whether a draft was rejected.
func (a *Approvals) RejectIfOpen(ctx context.Context, activityID, reason string) (bool, error) {
	return a.drafts.RejectOpenByActivity(ctx, activityID, reason, a.now(), a.claimTTL)
}

func (a *Approvals) load(ctx context.Context, draftID string) (*domain.Draft, error) {
	if strings.TrimSpace(draftID) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrDraftNotFound)
	}
	draft, err := a.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return draft, nil
}

// lostRace reports a conditional update that matched nothing: another action
// got there first.
func (a *Approvals) lostRace(ctx context.Context, action, draftID string) (*domain.ActionResult, error) {
	draft, err := a.load(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.IsTerminal() {
		return guardResult(action, draft), nil
	}
	return &domain.ActionResult{
		Action:        action,
		DraftID:       draft.ID,
		UpdatedStatus: draft.Status,
		Message:       "Draft is being sent by another action; try again later.",
	}, nil
}

func guardResult(action string, draft *domain.Draft) *domain.ActionResult {
	msg := fmt.Sprintf("Draft is already %s; no further actions are permitted.", draft.Status)
	if action == domain.ActionApprove && draft.Status == domain.StatusSent {
		msg = "Draft is already sent; not sending again."
	}
	return &domain.ActionResult{
		OK:            false,
		Action:        action,
		DraftID:       draft.ID,
		UpdatedStatus: draft.Status,
		Message:       msg,
	}
}

func missingSendFields(d *domain.Draft) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"accountEmail", d.AccountEmail},
		{"toEmail", d.ToEmail},
		{"subject", d.Subject},
		{"body", d.Body},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
