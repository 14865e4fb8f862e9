package domain

import (
	"time"

	inboxdomain "inbox-triage/internal/inbox/domain"
)

// Activity is the ledger row for one classified message, unique per source key.
type Activity struct {
	ID             string                     `json:"id" gorm:"primaryKey"`
	SourceKey      string                     `json:"sourceKey" gorm:"uniqueIndex;not null"`
	Mailbox        string                     `json:"mailbox" gorm:"index;not null"`
	MessageID      string                     `json:"messageId" gorm:"not null"`
	ThreadID       string                     `json:"threadId,omitempty"`
	Sender         string                     `json:"sender"`
	SenderEmail    string                     `json:"senderEmail" gorm:"index"`
	Subject        string                     `json:"subject"`
	Snippet        string                     `json:"snippet" gorm:"type:text"`
	ReceivedAt     time.Time                  `json:"receivedAt" gorm:"index"`
	Label          string                     `json:"label" gorm:"index;not null"`
	Confidence     float64                    `json:"confidence"`
	Reasons        []string                   `json:"reasons" gorm:"serializer:json;type:text"`
	ContactID      *string                    `json:"contactId,omitempty"`
	PolicyHash     string                     `json:"policyHash"`
	PolicyDegraded bool                       `json:"policyDegraded"`
	RawPayload     inboxdomain.InboundMessage `json:"rawPayload" gorm:"serializer:json;type:text"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

func (Activity) TableName() string {
	return "activities"
}
