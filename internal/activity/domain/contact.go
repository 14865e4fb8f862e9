package domain

import "time"

// Contact is a sender worth remembering: leads and support requesters.
type Contact struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Email       string    `json:"email" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name"`
	Mailbox     string    `json:"mailbox"`
	LastLabel   string    `json:"lastLabel"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Contact) TableName() string {
	return "contacts"
}
