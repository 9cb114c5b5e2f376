package logic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/repository"
)

// Reporter pushes a worker's phase transitions into the Job Record. It is the
// only writer on the worker side; progress values come from the phase
// schedule and are clamped monotonically non-decreasing.
type Reporter struct {
	store    repository.JobStore
	jobID    uuid.UUID
	ownerID  uuid.UUID
	schedule Schedule
	progress int
}

func NewReporter(store repository.JobStore, job *entity.OptimizationJob) (*Reporter, error) {
	schedule, err := ScheduleFor(job.Type)
	if err != nil {
		return nil, err
	}
	return &Reporter{
		store:    store,
		jobID:    job.ID,
		ownerID:  job.OwnerID,
		schedule: schedule,
		progress: job.Progress,
	}, nil
}

// Begin marks the record as processing. Called once before the first phase.
func (r *Reporter) Begin(ctx context.Context) error {
	return r.store.Update(ctx, r.jobID, map[string]interface{}{
		repository.FieldStatus: entity.JobStatusProcessing,
	})
}

// Advance records the start of a phase. The progress value is the cumulative
// weight of all completed phases.
func (r *Reporter) Advance(ctx context.Context, phase string) error {
	progress, err := r.schedule.ProgressBefore(phase)
	if err != nil {
		return err
	}
	if progress < r.progress {
		progress = r.progress
	}
	r.progress = progress

	return r.store.Update(ctx, r.jobID, map[string]interface{}{
		repository.FieldStatus:   entity.JobStatusProcessing,
		repository.FieldProgress: progress,
		repository.FieldStep:     phase,
	})
}

// Complete attaches the result and moves the record to its terminal success
// state. Progress reaches 100 here and nowhere else.
func (r *Reporter) Complete(ctx context.Context, result datatypes.JSON) error {
	now := time.Now()
	r.progress = 100
	return r.store.Update(ctx, r.jobID, map[string]interface{}{
		repository.FieldStatus:      entity.JobStatusCompleted,
		repository.FieldProgress:    100,
		repository.FieldStep:        "Completed",
		repository.FieldResult:      result,
		repository.FieldCompletedAt: &now,
	})
}

// Fail records a terminal failure. The result field is never written on this
// path, so a failed job cannot leak a partial result.
func (r *Reporter) Fail(ctx context.Context, code string, cause error) error {
	return r.store.Update(ctx, r.jobID, map[string]interface{}{
		repository.FieldStatus:       entity.JobStatusError,
		repository.FieldErrorMessage: cause.Error(),
		repository.FieldErrorCode:    code,
	})
}

// Cancelled re-reads the record's cancellation flag. Workers call this at
// phase boundaries; there is no hard kill.
func (r *Reporter) Cancelled(ctx context.Context) (bool, error) {
	job, err := r.store.Get(ctx, r.jobID, r.ownerID)
	if err != nil {
		return false, err
	}
	return job.Cancelled, nil
}
