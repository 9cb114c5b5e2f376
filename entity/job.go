package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobType string

const (
	JobTypeCVOptimize JobType = "cv_optimize"
	JobTypeApplyBatch JobType = "apply_batch"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// Error codes surfaced to clients in the error envelope.
const (
	ErrCodeStuck            = "JOB_STUCK"
	ErrCodeProcessingFailed = "PROCESSING_FAILED"
	ErrCodeCancelled        = "JOB_CANCELLED"
)

// StuckTerminatedMessage is written when the Status Evaluator terminates a job
// that stopped heartbeating.
const StuckTerminatedMessage = "stuck and automatically terminated"

// OptimizationJob is one long-running CV operation. It is created by the HTTP
// API, mutated by the background worker as it advances through phases, and read
// by polling requests. Records are never resurrected: once Status reaches
// completed or error, no update may move it back.
type OptimizationJob struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID        uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Type           JobType        `json:"type" gorm:"type:varchar(32);not null;index"`
	Status         JobStatus      `json:"status" gorm:"type:varchar(16);not null;index"`
	Progress       int            `json:"progress" gorm:"not null;default:0"`
	Step           string         `json:"step" gorm:"type:varchar(255)"`
	CVID           uuid.UUID      `json:"cv_id" gorm:"type:uuid;not null;index"`
	JobDescription string         `json:"job_description" gorm:"type:text"`
	Result         datatypes.JSON `json:"result,omitempty" gorm:"type:jsonb"`
	ErrorMessage   string         `json:"error_message" gorm:"type:text"`
	ErrorCode      string         `json:"error_code" gorm:"type:varchar(64)"`
	Cancelled      bool           `json:"cancelled" gorm:"not null;default:false"`
	StartTime      time.Time      `json:"start_time" gorm:"not null"`
	LastUpdated    time.Time      `json:"last_updated" gorm:"not null"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

func (OptimizationJob) TableName() string {
	return "optimization_jobs"
}

// NewOptimizationJob allocates a pending record with a fresh identifier.
func NewOptimizationJob(ownerID uuid.UUID, jobType JobType, cvID uuid.UUID, jobDescription string) *OptimizationJob {
	now := time.Now()
	return &OptimizationJob{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Type:           jobType,
		Status:         JobStatusPending,
		Progress:       0,
		CVID:           cvID,
		JobDescription: jobDescription,
		StartTime:      now,
		LastUpdated:    now,
	}
}

// Terminal reports whether the job has reached a terminal state.
func (j *OptimizationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}
