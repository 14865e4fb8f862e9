package domain

import "time"

// AccountingEntry is derived from a receipt. Vendor, amount and currency are
// best-effort and stay nil when the message could not be parsed.
type AccountingEntry struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	SourceKey  string    `json:"sourceKey" gorm:"uniqueIndex;not null"`
	ActivityID string    `json:"activityId" gorm:"index;not null"`
	Mailbox    string    `json:"mailbox"`
	Subject    string    `json:"subject"`
	Vendor     *string   `json:"vendor"`
	Amount     *float64  `json:"amount"`
	Currency   *string   `json:"currency"`
	ReceivedAt time.Time `json:"receivedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (AccountingEntry) TableName() string {
	return "accounting_entries"
}
