package repository

import (
	"context"
	"errors"
	"time"

	"inbox-triage/internal/activity/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobRunRepository records batch cycles.
type JobRunRepository interface {
	Start(ctx context.Context, kind, policyHash string, degraded bool, startedAt time.Time) (*domain.JobRun, error)
	// Finish stamps the final status, metrics and warnings on run.
	Finish(ctx context.Context, run *domain.JobRun, status string, metrics map[string]int, warnings []string, finishedAt time.Time) error
	FindByID(ctx context.Context, id string) (*domain.JobRun, error)
}

type jobRunRepository struct {
	db *gorm.DB
}

func NewJobRunRepository(db *gorm.DB) JobRunRepository {
	return &jobRunRepository{db: db}
}

func (r *jobRunRepository) Start(ctx context.Context, kind, policyHash string, degraded bool, startedAt time.Time) (*domain.JobRun, error) {
	run := &domain.JobRun{
		ID:             uuid.New().String(),
		Kind:           kind,
		Status:         domain.JobRunning,
		PolicyHash:     policyHash,
		PolicyDegraded: degraded,
		Metrics:        map[string]int{},
		Warnings:       []string{},
		StartedAt:      startedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *jobRunRepository) Finish(ctx context.Context, run *domain.JobRun, status string, metrics map[string]int, warnings []string, finishedAt time.Time) error {
	finished := finishedAt.UTC()
	run.Status = status
	run.Metrics = metrics
	run.Warnings = warnings
	run.FinishedAt = &finished
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *jobRunRepository) FindByID(ctx context.Context, id string) (*domain.JobRun, error) {
	var run domain.JobRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}
