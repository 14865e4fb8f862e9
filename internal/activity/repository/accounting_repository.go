package repository

import (
	"context"
	"errors"

	"inbox-triage/internal/activity/domain"
	"inbox-triage/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountingRepository stores accounting entries keyed by source key.
type AccountingRepository interface {
	Upsert(ctx context.Context, e *domain.AccountingEntry) error
	FindBySourceKey(ctx context.Context, sourceKey string) (*domain.AccountingEntry, error)
	// DeleteBySourceKey removes the entry of a message that is no longer a
	// receipt. It reports whether an entry existed.
	DeleteBySourceKey(ctx context.Context, sourceKey string) (bool, error)
}

type accountingRepository struct {
	db *gorm.DB
}

func NewAccountingRepository(db *gorm.DB) AccountingRepository {
	return &accountingRepository{db: db}
}

func (r *accountingRepository) Upsert(ctx context.Context, e *domain.AccountingEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return database.Upsert(ctx, r.db, e,
		map[string]interface{}{"source_key": e.SourceKey},
		[]string{"activity_id", "mailbox", "subject", "vendor", "amount", "currency", "received_at", "updated_at"})
}

func (r *accountingRepository) FindBySourceKey(ctx context.Context, sourceKey string) (*domain.AccountingEntry, error) {
	var entry domain.AccountingEntry
	err := r.db.WithContext(ctx).Where("source_key = ?", sourceKey).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *accountingRepository) DeleteBySourceKey(ctx context.Context, sourceKey string) (bool, error) {
	res := r.db.WithContext(ctx).Where("source_key = ?", sourceKey).Delete(&domain.AccountingEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
