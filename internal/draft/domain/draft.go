package domain

import "time"

// Draft statuses. sent and rejected are terminal.
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusRejected = "rejected"
)

// Approval actions.
const (
	ActionApprove = "approve"
	ActionRevise  = "revise"
	ActionReject  = "reject"
)

// Draft is the suggested reply to a sales activity; at most one per activity.
type Draft struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	ActivityID     string     `json:"activityId" gorm:"uniqueIndex;not null"`
	SourceKey      string     `json:"sourceKey" gorm:"index"`
	AccountEmail   string     `json:"accountEmail"`
	ToEmail        string     `json:"toEmail"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body" gorm:"type:text"`
	ThreadID       string     `json:"threadId,omitempty"`
	InReplyTo      string     `json:"inReplyTo,omitempty"`
	Status         string     `json:"status" gorm:"index;not null"`
	Method         string     `json:"method"`
	PolicyHash     string     `json:"policyHash"`
	PolicyDegraded bool       `json:"policyDegraded"`
	RevisionNotes  *string    `json:"revisionNotes,omitempty" gorm:"type:text"`
	RejectedReason *string    `json:"rejectedReason,omitempty"`
	ApprovedBy     *string    `json:"approvedBy,omitempty"`
	SendClaimedAt  *time.Time `json:"sendClaimedAt,omitempty"`
	SentAt         *time.Time `json:"sentAt,omitempty"`
	RejectedAt     *time.Time `json:"rejectedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (Draft) TableName() string {
	return "drafts"
}

// IsTerminal reports whether no further action may change the draft.
func (d *Draft) IsTerminal() bool {
	return d.Status == StatusSent || d.Status == StatusRejected
}

// OutboundEmail is what the mail transport is asked to send.
type OutboundEmail struct {
	From      string
	To        string
	Subject   string
	Body      string
	ThreadID  string
	InReplyTo string
}

// ActionResult is the outcome of an approval action. Guard failures are
// reported here with OK false rather than as errors.
type ActionResult struct {
	OK            bool   `json:"ok"`
	Action        string `json:"action"`
	DraftID       string `json:"draftId"`
	UpdatedStatus string `json:"updatedStatus"`
	Message       string `json:"message,omitempty"`
}
