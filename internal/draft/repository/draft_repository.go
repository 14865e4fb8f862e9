package repository

import (
	"context"
	"errors"
	"time"

	"inbox-triage/internal/draft/domain"
	"inbox-triage/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DraftRepository persists drafts. Every transition is a conditional patch on
// status so a draft that reached a terminal state cannot be changed by a
// concurrent or retried action.
type DraftRepository interface {
	// CreateIfAbsent stores d unless the activity already has a draft. It
	// reports whether d was inserted; d always ends up holding the stored row.
	CreateIfAbsent(ctx context.Context, d *domain.Draft) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Draft, error)
	FindByActivityID(ctx context.Context, activityID string) (*domain.Draft, error)
	// ClaimForSend marks an open draft as being sent. A claim older than
	// staleAfter is considered abandoned and may be taken over.
	ClaimForSend(ctx context.Context, id string, now time.Time, staleAfter time.Duration) (bool, error)
	ReleaseClaim(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id, approvedBy string, now time.Time) (bool, error)
	// Revise, Reject and RejectOpenByActivity leave a draft alone while a
	// send claim younger than staleAfter holds it.
	Revise(ctx context.Context, id, body, notes string, now time.Time, staleAfter time.Duration) (bool, error)
	Reject(ctx context.Context, id, reason string, now time.Time, staleAfter time.Duration) (bool, error)
	// RejectOpenByActivity rejects the activity's draft if it is still open.
	RejectOpenByActivity(ctx context.Context, activityID, reason string, now time.Time, staleAfter time.Duration) (bool, error)
	// ListOpenCreatedSince returns drafts in status draft created at or after
	// since, oldest first.
	ListOpenCreatedSince(ctx context.Context, since time.Time) ([]domain.Draft, error)
	// ActivityIDsWithDrafts returns the subset of activityIDs that have a draft
	// in any status.
	ActivityIDsWithDrafts(ctx context.Context, activityIDs []string) (map[string]bool, error)
}

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

func (r *draftRepository) CreateIfAbsent(ctx context.Context, d *domain.Draft) (bool, error) {
	existing, err := r.FindByActivityID(ctx, d.ActivityID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*d = *existing
		return false, nil
	}

	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.Status == "" {
		d.Status = domain.StatusDraft
	}
	insertedID := d.ID
	if err := database.Upsert(ctx, r.db, d, map[string]interface{}{"activity_id": d.ActivityID}, nil); err != nil {
		return false, err
	}
	return d.ID == insertedID, nil
}

func (r *draftRepository) FindByID(ctx context.Context, id string) (*domain.Draft, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *draftRepository) FindByActivityID(ctx context.Context, activityID string) (*domain.Draft, error) {
	return r.findOne(ctx, "activity_id = ?", activityID)
}

func (r *draftRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Draft, error) {
	var draft domain.Draft
	err := r.db.WithContext(ctx).Where(query, arg).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (r *draftRepository) ClaimForSend(ctx context.Context, id string, now time.Time, staleAfter time.Duration) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND status = ? AND (send_claimed_at IS NULL OR send_claimed_at < ?)",
			id, domain.StatusDraft, now.Add(-staleAfter).UTC()).
		UpdateColumn("send_claimed_at", now.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Claims do not touch updated_at so they never reset draft staleness.
func (r *draftRepository) ReleaseClaim(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("id = ? AND status = ?", id, domain.StatusDraft).
		UpdateColumn("send_claimed_at", nil).Error
}

func (r *draftRepository) MarkSent(ctx context.Context, id, approvedBy string, now time.Time) (bool, error) {
	n, err := database.Patch(ctx, r.db, &domain.Draft{},
		map[string]interface{}{"id": id, "status": domain.StatusDraft},
		map[string]interface{}{
			"status":      domain.StatusSent,
			"approved_by": approvedBy,
			"sent_at":     now.UTC(),
		})
	return n == 1, err
}

func (r *draftRepository) Revise(ctx context.Context, id, body, notes string, now time.Time, staleAfter time.Duration) (bool, error) {
	res := r.open(ctx, now, staleAfter).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"body":           body,
			"revision_notes": notes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *draftRepository) Reject(ctx context.Context, id, reason string, now time.Time, staleAfter time.Duration) (bool, error) {
	return r.reject(ctx, "id = ?", id, reason, now, staleAfter)
}

func (r *draftRepository) RejectOpenByActivity(ctx context.Context, activityID, reason string, now time.Time, staleAfter time.Duration) (bool, error) {
	return r.reject(ctx, "activity_id = ?", activityID, reason, now, staleAfter)
}

func (r *draftRepository) reject(ctx context.Context, query string, arg interface{}, reason string, now time.Time, staleAfter time.Duration) (bool, error) {
	res := r.open(ctx, now, staleAfter).
		Where(query, arg).
		Updates(map[string]interface{}{
			"status":          domain.StatusRejected,
			"rejected_reason": reason,
			"rejected_at":     now.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// open scopes an update to drafts that are still open and not held by a
// live send claim.
func (r *draftRepository) open(ctx context.Context, now time.Time, staleAfter time.Duration) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("status = ? AND (send_claimed_at IS NULL OR send_claimed_at < ?)",
			domain.StatusDraft, now.Add(-staleAfter).UTC())
}

func (r *draftRepository) ListOpenCreatedSince(ctx context.Context, since time.Time) ([]domain.Draft, error) {
	var drafts []domain.Draft
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", domain.StatusDraft, since.UTC()).
		Order("created_at ASC").
		Find(&drafts).Error
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *draftRepository) ActivityIDsWithDrafts(ctx context.Context, activityIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(activityIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.Draft{}).
		Where("activity_id IN ?", activityIDs).
		Pluck("activity_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
