package domain

import "time"

// Job run statuses.
const (
	JobRunning        = "running"
	JobOK             = "ok"
	JobPartialFailure = "partial_failure"
)

// JobRun audits one poll-and-process cycle.
type JobRun struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	Kind           string         `json:"kind" gorm:"index;not null"`
	Status         string         `json:"status" gorm:"not null"`
	PolicyHash     string         `json:"policyHash"`
	PolicyDegraded bool           `json:"policyDegraded"`
	Metrics        map[string]int `json:"metrics" gorm:"serializer:json;type:text"`
	Warnings       []string       `json:"warnings" gorm:"serializer:json;type:text"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
}

func (JobRun) TableName() string {
	return "job_runs"
}

// Models lists the ledger tables for migration.
func Models() []interface{} {
	return []interface{}{&Activity{}, &Contact{}, &AccountingEntry{}, &JobRun{}}
}
