package logic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/repository"
)

// memJobStore is an in-memory JobStore with the same terminal-state guard the
// real backends enforce.
type memJobStore struct {
	jobs    map[uuid.UUID]*entity.OptimizationJob
	updates []map[string]interface{}
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*entity.OptimizationJob)}
}

func (s *memJobStore) Create(ctx context.Context, job *entity.OptimizationJob) error {
	s.jobs[job.ID] = job
	return nil
}

func (s *memJobStore) Update(ctx context.Context, jobID uuid.UUID, fields map[string]interface{}) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	if job.Terminal() {
		return repository.ErrTerminalState
	}
	for field, value := range fields {
		switch field {
		case repository.FieldStatus:
			job.Status = value.(entity.JobStatus)
		case repository.FieldProgress:
			job.Progress = value.(int)
		case repository.FieldStep:
			job.Step = value.(string)
		case repository.FieldResult:
			job.Result = value.(datatypes.JSON)
		case repository.FieldErrorMessage:
			job.ErrorMessage = value.(string)
		case repository.FieldErrorCode:
			job.ErrorCode = value.(string)
		case repository.FieldCancelled:
			job.Cancelled = value.(bool)
		case repository.FieldCompletedAt:
			job.CompletedAt = value.(*time.Time)
		}
	}
	job.LastUpdated = time.Now()
	s.updates = append(s.updates, fields)
	return nil
}

func (s *memJobStore) Get(ctx context.Context, jobID, ownerID uuid.UUID) (*entity.OptimizationJob, error) {
	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, repository.ErrJobNotFound
	}
	return job, nil
}

func (s *memJobStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.OptimizationJob, error) {
	var out []entity.OptimizationJob
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func newReporterFixture(t *testing.T) (*memJobStore, *Reporter, *entity.OptimizationJob) {
	t.Helper()
	store := newMemJobStore()
	job := entity.NewOptimizationJob(uuid.New(), entity.JobTypeCVOptimize, uuid.New(), "backend role")
	require.NoError(t, store.Create(context.Background(), job))

	reporter, err := NewReporter(store, job)
	require.NoError(t, err)
	return store, reporter, job
}

func TestReporterBegin(t *testing.T) {
	_, reporter, job := newReporterFixture(t)

	require.NoError(t, reporter.Begin(context.Background()))
	assert.Equal(t, entity.JobStatusProcessing, job.Status)
}

func TestReporterAdvanceFollowsSchedule(t *testing.T) {
	_, reporter, job := newReporterFixture(t)
	ctx := context.Background()
	require.NoError(t, reporter.Begin(ctx))

	require.NoError(t, reporter.Advance(ctx, "Analyzing CV content"))
	assert.Equal(t, 10, job.Progress)
	assert.Equal(t, "Analyzing CV content", job.Step)

	require.NoError(t, reporter.Advance(ctx, "Generating optimization suggestions"))
	assert.Equal(t, 60, job.Progress)
}

// Progress never moves backwards even if phases are reported out of order.
func TestReporterProgressIsMonotonic(t *testing.T) {
	_, reporter, job := newReporterFixture(t)
	ctx := context.Background()
	require.NoError(t, reporter.Begin(ctx))

	require.NoError(t, reporter.Advance(ctx, "Saving results"))
	assert.Equal(t, 90, job.Progress)

	require.NoError(t, reporter.Advance(ctx, "Extracting CV text"))
	assert.Equal(t, 90, job.Progress)
	assert.Equal(t, "Extracting CV text", job.Step)
}

func TestReporterAdvanceRejectsUnknownPhase(t *testing.T) {
	_, reporter, _ := newReporterFixture(t)
	assert.Error(t, reporter.Advance(context.Background(), "Daydreaming"))
}

func TestReporterComplete(t *testing.T) {
	_, reporter, job := newReporterFixture(t)
	ctx := context.Background()
	require.NoError(t, reporter.Begin(ctx))

	result := datatypes.JSON(`{"score": 91}`)
	require.NoError(t, reporter.Complete(ctx, result))

	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, result, job.Result)
	require.NotNil(t, job.CompletedAt)
}

func TestReporterFailNeverWritesResult(t *testing.T) {
	store, reporter, job := newReporterFixture(t)
	ctx := context.Background()
	require.NoError(t, reporter.Begin(ctx))

	require.NoError(t, reporter.Fail(ctx, entity.ErrCodeProcessingFailed, assert.AnError))

	assert.Equal(t, entity.JobStatusError, job.Status)
	assert.Equal(t, entity.ErrCodeProcessingFailed, job.ErrorCode)
	assert.Empty(t, job.Result)
	for _, update := range store.updates {
		_, wroteResult := update[repository.FieldResult]
		assert.False(t, wroteResult)
	}
}

// Once a job is terminal, late reporter writes bounce off the store guard.
func TestReporterWritesBounceOffTerminalRecord(t *testing.T) {
	_, reporter, _ := newReporterFixture(t)
	ctx := context.Background()
	require.NoError(t, reporter.Begin(ctx))
	require.NoError(t, reporter.Fail(ctx, entity.ErrCodeProcessingFailed, assert.AnError))

	err := reporter.Advance(ctx, "Saving results")
	assert.ErrorIs(t, err, repository.ErrTerminalState)
}

func TestReporterCancelledReadsFlag(t *testing.T) {
	store, reporter, job := newReporterFixture(t)
	ctx := context.Background()

	cancelled, err := reporter.Cancelled(ctx)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, store.Update(ctx, job.ID, map[string]interface{}{
		repository.FieldCancelled: true,
	}))

	cancelled, err = reporter.Cancelled(ctx)
	require.NoError(t, err)
	assert.True(t, cancelled)
}
