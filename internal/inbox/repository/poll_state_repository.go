package repository

import (
	"context"
	"errors"
	"time"

	"inbox-triage/internal/inbox/domain"
	"inbox-triage/pkg/database"

	"gorm.io/gorm"
)

// PollStateRepository stores one cursor per mailbox.
type PollStateRepository interface {
	Find(ctx context.Context, mailbox string) (*domain.PollCursor, error)
	// Advance records a completed poll. The stored LastMessageTimestamp never
	// moves backwards; the returned update shows the before and after values.
	Advance(ctx context.Context, mailbox string, polledAt, lastMessage time.Time) (*domain.CursorUpdate, error)
}

type pollStateRepository struct {
	db *gorm.DB
}

func NewPollStateRepository(db *gorm.DB) PollStateRepository {
	return &pollStateRepository{db: db}
}

func (r *pollStateRepository) Find(ctx context.Context, mailbox string) (*domain.PollCursor, error) {
	var cursor domain.PollCursor
	err := r.db.WithContext(ctx).Where("mailbox = ?", mailbox).First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cursor, nil
}

func (r *pollStateRepository) Advance(ctx context.Context, mailbox string, polledAt, lastMessage time.Time) (*domain.CursorUpdate, error) {
	existing, err := r.Find(ctx, mailbox)
	if err != nil {
		return nil, err
	}

	update := &domain.CursorUpdate{
		Mailbox:              mailbox,
		LastPolledAt:         polledAt.UTC(),
		LastMessageTimestamp: lastMessage.UTC(),
	}
	if existing != nil {
		update.PreviousMessageTimestamp = existing.LastMessageTimestamp.UTC()
		if existing.LastMessageTimestamp.After(lastMessage) {
			update.LastMessageTimestamp = existing.LastMessageTimestamp.UTC()
		}
		if existing.LastPolledAt.After(polledAt) {
			update.LastPolledAt = existing.LastPolledAt.UTC()
		}
	}

	cursor := &domain.PollCursor{
		Mailbox:              mailbox,
		LastPolledAt:         update.LastPolledAt,
		LastMessageTimestamp: update.LastMessageTimestamp,
	}
	err = database.Upsert(ctx, r.db, cursor,
		map[string]interface{}{"mailbox": mailbox},
		[]string{"last_polled_at", "last_message_timestamp", "updated_at"})
	if err != nil {
		return nil, err
	}
	return update, nil
}
