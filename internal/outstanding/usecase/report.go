package usecase

import (
	"time"

	activitydomain "inbox-triage/internal/activity/domain"
	draftdomain "inbox-triage/internal/draft/domain"
)

// Report is the check_outstanding output.
type Report struct {
	GeneratedAt          time.Time      `json:"generatedAt"`
	LookbackDays         int            `json:"lookbackDays"`
	StaleHours           int            `json:"staleHours"`
	Totals               Totals         `json:"totals"`
	UnsentDrafts         []DraftPreview `json:"unsentDrafts"`
	StaleDrafts          []DraftPreview `json:"staleDrafts"`
	UnansweredSalesLeads []LeadPreview  `json:"unansweredSalesLeads"`
	Notified             bool           `json:"notified"`
	Warnings             []string       `json:"warnings"`
}

type Totals struct {
	UnsentDrafts         int `json:"unsentDrafts"`
	StaleDrafts          int `json:"staleDrafts"`
	UnansweredSalesLeads int `json:"unansweredSalesLeads"`
}

type DraftPreview struct {
	DraftID    string    `json:"draftId"`
	ActivityID string    `json:"activityId"`
	Account    string    `json:"accountEmail"`
	ToEmail    string    `json:"toEmail"`
	Subject    string    `json:"subject"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	AgeHours   float64   `json:"ageHours"`
}

type LeadPreview struct {
	ActivityID string    `json:"activityId"`
	SourceKey  string    `json:"sourceKey"`
	Mailbox    string    `json:"mailbox"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Label      string    `json:"label"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func newReport(opts Options) *Report {
	return &Report{
		GeneratedAt:          opts.Now,
		LookbackDays:         opts.LookbackDays,
		StaleHours:           opts.StaleHours,
		UnsentDrafts:         []DraftPreview{},
		StaleDrafts:          []DraftPreview{},
		UnansweredSalesLeads: []LeadPreview{},
		Warnings:             []string{},
	}
}

func newDraftPreview(d *draftdomain.Draft, now time.Time) DraftPreview {
	age := now.Sub(lastTouched(d)).Hours()
	return DraftPreview{
		DraftID:    d.ID,
		ActivityID: d.ActivityID,
		Account:    d.AccountEmail,
		ToEmail:    d.ToEmail,
		Subject:    d.Subject,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		AgeHours:   float64(int(age*10)) / 10,
	}
}

func newLeadPreview(a *activitydomain.Activity) LeadPreview {
	return LeadPreview{
		ActivityID: a.ID,
		SourceKey:  a.SourceKey,
		Mailbox:    a.Mailbox,
		Sender:     a.Sender,
		Subject:    a.Subject,
		Label:      a.Label,
		ReceivedAt: a.ReceivedAt,
	}
}
