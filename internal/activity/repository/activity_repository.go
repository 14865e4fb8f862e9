package repository

import (
	"context"
	"errors"
	"time"

	"inbox-triage/internal/activity/domain"
	"inbox-triage/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityRepository stores one activity per source key.
type ActivityRepository interface {
	// Upsert inserts a or overwrites the classification of the row with the
	// same source key. a receives the stored row.
	Upsert(ctx context.Context, a *domain.Activity) error
	FindByID(ctx context.Context, id string) (*domain.Activity, error)
	FindBySourceKey(ctx context.Context, sourceKey string) (*domain.Activity, error)
	// ListByLabelsSince returns activities with one of labels received at or
	// after since, newest first.
	ListByLabelsSince(ctx context.Context, labels []string, since time.Time) ([]domain.Activity, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

var activityUpdateColumns = []string{
	"thread_id", "sender", "sender_email", "subject", "snippet", "received_at",
	"label", "confidence", "reasons", "contact_id", "policy_hash", "policy_degraded",
	"raw_payload", "updated_at",
}

func (r *activityRepository) Upsert(ctx context.Context, a *domain.Activity) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return database.Upsert(ctx, r.db, a,
		map[string]interface{}{"source_key": a.SourceKey},
		activityUpdateColumns)
}

func (r *activityRepository) FindByID(ctx context.Context, id string) (*domain.Activity, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *activityRepository) FindBySourceKey(ctx context.Context, sourceKey string) (*domain.Activity, error) {
	return r.findOne(ctx, "source_key = ?", sourceKey)
}

func (r *activityRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Activity, error) {
	var activity domain.Activity
	err := r.db.WithContext(ctx).Where(query, arg).First(&activity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func (r *activityRepository) ListByLabelsSince(ctx context.Context, labels []string, since time.Time) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := r.db.WithContext(ctx).
		Where("label IN ? AND received_at >= ?", labels, since.UTC()).
		Order("received_at DESC").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}
