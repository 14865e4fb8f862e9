package usecase

import (
	"fmt"

	"inbox-triage/internal/classifier"
	inboxdomain "inbox-triage/internal/inbox/domain"
	policydomain "inbox-triage/internal/policy/domain"
)

// Result is the process_inbound output.
type Result struct {
	Status               string                     `json:"status"`
	JobRunID             string                     `json:"jobRunId"`
	PolicyHash           string                     `json:"policyHash"`
	Degraded             bool                       `json:"degraded"`
	ClassificationCounts map[string]int             `json:"classificationCounts"`
	Classifications      []Classification           `json:"classifications"`
	SalesDrafts          []SalesDraft               `json:"salesDrafts"`
	AccountingEntries    []AccountingEntry          `json:"accountingEntries"`
	PollStateUpdates     []inboxdomain.CursorUpdate `json:"pollStateUpdates"`
	Warnings             []string                   `json:"warnings"`

	metrics      map[string]int
	cursorFailed bool
}

// Classification is the per-message outcome.
type Classification struct {
	SourceKey  string   `json:"sourceKey"`
	ActivityID string   `json:"activityId"`
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// SalesDraft summarizes the draft attached to a sales activity.
type SalesDraft struct {
	ActivityID string `json:"activityId"`
	DraftID    string `json:"draftId"`
	SourceKey  string `json:"sourceKey"`
	ToEmail    string `json:"toEmail"`
	Subject    string `json:"subject"`
	Status     string `json:"status"`
	Method     string `json:"method"`
	Created    bool   `json:"created"`
}

// AccountingEntry summarizes a receipt's accounting row.
type AccountingEntry struct {
	SourceKey  string   `json:"sourceKey"`
	ActivityID string   `json:"activityId"`
	Vendor     *string  `json:"vendor"`
	Amount     *float64 `json:"amount"`
	Currency   *string  `json:"currency"`
}

func newResult(jobRunID string, policy *policydomain.PolicySnapshot) *Result {
	counts := make(map[string]int, len(classifier.Labels))
	for _, l := range classifier.Labels {
		counts[l] = 0
	}
	return &Result{
		JobRunID:             jobRunID,
		PolicyHash:           policy.PolicyHash,
		Degraded:             policy.Degraded,
		ClassificationCounts: counts,
		Classifications:      []Classification{},
		SalesDrafts:          []SalesDraft{},
		AccountingEntries:    []AccountingEntry{},
		PollStateUpdates:     []inboxdomain.CursorUpdate{},
		Warnings:             []string{},
		metrics:              map[string]int{},
	}
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Metrics returns the counters recorded on the job run.
func (r *Result) Metrics() map[string]int {
	return r.metrics
}
