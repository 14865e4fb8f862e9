package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"inbox-triage/internal/activity/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactRepository stores contacts keyed by email.
type ContactRepository interface {
	// Touch creates the contact for email or refreshes it. LastSeenAt only
	// moves forward so replaying old messages leaves it unchanged.
	Touch(ctx context.Context, email, name, mailbox, label string, seenAt time.Time) (*domain.Contact, error)
	FindByEmail(ctx context.Context, email string) (*domain.Contact, error)
}

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) FindByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	var contact domain.Contact
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *contactRepository) Touch(ctx context.Context, email, name, mailbox, label string, seenAt time.Time) (*domain.Contact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("contact email is required")
	}
	seenAt = seenAt.UTC()

	contact, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		contact = &domain.Contact{
			ID:          uuid.New().String(),
			Email:       email,
			Name:        name,
			Mailbox:     mailbox,
			LastLabel:   label,
			FirstSeenAt: seenAt,
			LastSeenAt:  seenAt,
		}
		if err := r.db.WithContext(ctx).Create(contact).Error; err != nil {
			return nil, err
		}
		return contact, nil
	}

	if name != "" {
		contact.Name = name
	}
	if seenAt.Before(contact.FirstSeenAt) {
		contact.FirstSeenAt = seenAt
	}
	if !seenAt.Before(contact.LastSeenAt) {
		contact.LastSeenAt = seenAt
		contact.Mailbox = mailbox
		contact.LastLabel = label
	}
	if err := r.db.WithContext(ctx).Save(contact).Error; err != nil {
		return nil, err
	}
	return contact, nil
}
