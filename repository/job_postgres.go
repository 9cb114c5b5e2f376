package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/resumelab/cv-optimizer/entity"
)

var activeStatuses = []entity.JobStatus{entity.JobStatusPending, entity.JobStatusProcessing}

type PostgresJobStore struct {
	db *gorm.DB
}

func NewPostgresJobStore(db *gorm.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

func (s *PostgresJobStore) Create(ctx context.Context, job *entity.OptimizationJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *PostgresJobStore) Update(ctx context.Context, jobID uuid.UUID, fields map[string]interface{}) error {
	merged := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["last_updated"] = time.Now()

	// The status guard in the WHERE clause enforces terminal-state
	// monotonicity at the store, not just in callers.
	result := s.db.WithContext(ctx).Model(&entity.OptimizationJob{}).
		Where("id = ? AND status IN ?", jobID, activeStatuses).
		Updates(merged)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&entity.OptimizationJob{}).
			Where("id = ?", jobID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrJobNotFound
		}
		return ErrTerminalState
	}
	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, jobID, ownerID uuid.UUID) (*entity.OptimizationJob, error) {
	var job entity.OptimizationJob
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", jobID, ownerID).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *PostgresJobStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.OptimizationJob, error) {
	var jobs []entity.OptimizationJob
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("start_time DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
