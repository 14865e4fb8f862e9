package domain

import "time"

// PollCursor remembers how far a mailbox has been read.
type PollCursor struct {
	Mailbox              string    `json:"mailbox" gorm:"primaryKey"`
	LastPolledAt         time.Time `json:"lastPolledAt"`
	LastMessageTimestamp time.Time `json:"lastMessageTimestamp"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

func (PollCursor) TableName() string {
	return "poll_state"
}

// MailboxReport summarizes one mailbox's share of a poll.
type MailboxReport struct {
	Mailbox        string    `json:"mailbox"`
	Provider       string    `json:"provider,omitempty"`
	Query          string    `json:"query"`
	SinceTimestamp time.Time `json:"sinceTimestamp"`
	Fetched        int       `json:"fetched"`
	Dropped        int       `json:"dropped"`
	Duplicates     int       `json:"duplicates"`
	Kept           int       `json:"kept"`
	Error          string    `json:"error,omitempty"`
}

// PollResult is the output of poll_inboxes and the input of process_inbound.
type PollResult struct {
	PolledAt       time.Time        `json:"polledAt"`
	PerMailbox     []MailboxReport  `json:"perMailbox"`
	PartialFailure bool             `json:"partialFailure"`
	Messages       []InboundMessage `json:"messages"`
}

// CursorUpdate describes how a mailbox cursor moved after processing.
type CursorUpdate struct {
	Mailbox                  string    `json:"mailbox"`
	LastPolledAt             time.Time `json:"lastPolledAt"`
	PreviousMessageTimestamp time.Time `json:"previousMessageTimestamp"`
	LastMessageTimestamp     time.Time `json:"lastMessageTimestamp"`
}
