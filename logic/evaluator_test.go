package logic

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
)

var evalNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// evalJob builds a record whose start and last-update ages are expressed
// relative to evalNow.
func evalJob(status entity.JobStatus, progress int, step string, sinceStart, sinceUpdate time.Duration) *entity.OptimizationJob {
	return &entity.OptimizationJob{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Type:        entity.JobTypeCVOptimize,
		Status:      status,
		Progress:    progress,
		Step:        step,
		StartTime:   evalNow.Add(-sinceStart),
		LastUpdated: evalNow.Add(-sinceUpdate),
	}
}

func TestEvaluateCompleted(t *testing.T) {
	job := evalJob(entity.JobStatusCompleted, 100, "Completed", 90*time.Second, 5*time.Second)
	job.Result = datatypes.JSON(`{"score": 88}`)
	completedAt := evalNow.Add(-10 * time.Second)
	job.CompletedAt = &completedAt

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassCompleted, ev.Classification)
	assert.Equal(t, 100, ev.Progress)
	assert.Equal(t, datatypes.JSON(`{"score": 88}`), ev.Result)
	require.NotNil(t, ev.Duration)
	assert.Equal(t, 80, *ev.Duration)
	assert.False(t, ev.ForceCompleted)
}

func TestEvaluateCompletedWithoutCompletedAt(t *testing.T) {
	job := evalJob(entity.JobStatusCompleted, 100, "Completed", 90*time.Second, 5*time.Second)
	job.Result = datatypes.JSON(`{}`)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	require.NotNil(t, ev.Duration)
	assert.Equal(t, 90, *ev.Duration)
}

// A completed record stays completed no matter how stale it is; terminal
// states outrank every elapsed-time signal.
func TestEvaluateTerminalOutranksStaleness(t *testing.T) {
	job := evalJob(entity.JobStatusCompleted, 100, "Completed", 2*time.Hour, time.Hour)
	job.Result = datatypes.JSON(`{}`)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassCompleted, ev.Classification)
	assert.False(t, ev.TerminateStuck)
}

func TestEvaluateError(t *testing.T) {
	job := evalJob(entity.JobStatusError, 40, "Analyzing CV content", 60*time.Second, 10*time.Second)
	job.ErrorMessage = "model call failed"
	job.ErrorCode = entity.ErrCodeProcessingFailed

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassError, ev.Classification)
	assert.Equal(t, "model call failed", ev.ErrorMessage)
	assert.Equal(t, entity.ErrCodeProcessingFailed, ev.ErrorCode)
	assert.True(t, ev.CanRetry)
}

func TestEvaluateErrorDefaultsErrorCode(t *testing.T) {
	job := evalJob(entity.JobStatusError, 0, "", time.Minute, time.Minute)
	job.ErrorMessage = "boom"

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, entity.ErrCodeProcessingFailed, ev.ErrorCode)
	assert.True(t, ev.CanRetry)
}

func TestEvaluateCancelledIsNotRetryable(t *testing.T) {
	job := evalJob(entity.JobStatusError, 30, "", time.Minute, time.Minute)
	job.ErrorCode = entity.ErrCodeCancelled

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassError, ev.Classification)
	assert.False(t, ev.CanRetry)
}

func TestEvaluateAutoRecovery(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 40, LocalAnalysisCompleteStep, 300*time.Second, 200*time.Second)
	job.Result = datatypes.JSON(`{"analysis": "done"}`)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassCompleted, ev.Classification)
	assert.True(t, ev.ForceCompleted)
	assert.Equal(t, 100, ev.Progress)
	assert.Equal(t, job.Result, ev.Result)
}

// Without an attached result the marker step gets no special treatment; the
// record above is 200s past its last update, so it classifies as stuck.
func TestEvaluateNoRecoveryWithoutResult(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 40, LocalAnalysisCompleteStep, 300*time.Second, 200*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassStuck, ev.Classification)
	assert.False(t, ev.ForceCompleted)
}

// The marker is a single named exception; other steps with a result present
// do not force-complete.
func TestEvaluateNoRecoveryForOtherSteps(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 40, "Analyzing CV content", 60*time.Second, 10*time.Second)
	job.Result = datatypes.JSON(`{"analysis": "done"}`)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassInProgress, ev.Classification)
	assert.False(t, ev.ForceCompleted)
}

func TestEvaluateStuck(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 30, "Matching against job description", 130*time.Second, 121*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassStuck, ev.Classification)
	assert.True(t, ev.IsStuck)
	assert.True(t, ev.TerminateStuck)
	assert.Equal(t, "no progress updates received from the background task", ev.StuckReason)
	assert.Equal(t, 5, ev.RetryIn)
	assert.Equal(t, 30, ev.Progress)
}

// Exactly at the threshold is not stuck yet; the window is strictly greater
// than.
func TestEvaluateStuckBoundary(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 30, "x", 125*time.Second, 120*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.NotEqual(t, ClassStuck, ev.Classification)
	assert.False(t, ev.TerminateStuck)
}

// Staleness outranks total runtime: a record both stuck and past the long
// timeout is reported stuck.
func TestEvaluateStuckOutranksTimeout(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 50, "x", 700*time.Second, 300*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassStuck, ev.Classification)
	assert.Equal(t, TimeoutNone, ev.Level)
}

func TestEvaluateTimeoutTiers(t *testing.T) {
	tests := []struct {
		name       string
		sinceStart time.Duration
		level      TimeoutLevel
		retryIn    int
	}{
		{"below short", 44 * time.Second, TimeoutNone, 3},
		{"short", 46 * time.Second, TimeoutShort, 5},
		{"below medium", 179 * time.Second, TimeoutShort, 5},
		{"medium", 181 * time.Second, TimeoutMedium, 10},
		{"below long", 599 * time.Second, TimeoutMedium, 10},
		{"long", 601 * time.Second, TimeoutLong, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Keep the record fresh so staleness never interferes.
			job := evalJob(entity.JobStatusProcessing, 50, "x", tt.sinceStart, 10*time.Second)

			ev := Evaluate(job, evalNow, DefaultThresholds())

			assert.Equal(t, tt.level, ev.Level)
			assert.Equal(t, tt.retryIn, ev.RetryIn)
			if tt.level == TimeoutNone {
				assert.Equal(t, ClassInProgress, ev.Classification)
			} else {
				assert.Equal(t, ClassTimeout, ev.Classification)
				assert.True(t, ev.ContinuePolling)
			}
		})
	}
}

func TestEvaluateEstimateRemaining(t *testing.T) {
	// 50% done after 100s extrapolates to 100s more.
	job := evalJob(entity.JobStatusProcessing, 50, "x", 100*time.Second, 10*time.Second)
	ev := Evaluate(job, evalNow, DefaultThresholds())
	require.NotNil(t, ev.EstimatedTimeRemaining)
	assert.Equal(t, 100, *ev.EstimatedTimeRemaining)
}

func TestEvaluateEstimateUnknownAtZeroProgress(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 0, "x", 100*time.Second, 10*time.Second)
	ev := Evaluate(job, evalNow, DefaultThresholds())
	assert.Equal(t, ClassTimeout, ev.Classification)
	assert.Nil(t, ev.EstimatedTimeRemaining)
}

func TestEvaluateEstimateClampedToCap(t *testing.T) {
	// 10% done after 500s extrapolates to 4500s; the cap brings it back down.
	job := evalJob(entity.JobStatusProcessing, 10, "x", 500*time.Second, 10*time.Second)
	ev := Evaluate(job, evalNow, DefaultThresholds())
	require.NotNil(t, ev.EstimatedTimeRemaining)
	assert.Equal(t, 600, *ev.EstimatedTimeRemaining)
}

func TestEvaluateInProgress(t *testing.T) {
	job := evalJob(entity.JobStatusProcessing, 20, "Analyzing CV content", 30*time.Second, 5*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassInProgress, ev.Classification)
	assert.Equal(t, string(entity.JobStatusProcessing), ev.Status)
	assert.False(t, ev.IsStuck)
	assert.Equal(t, 3, ev.RetryIn)
	assert.Equal(t, 30, int(ev.TimeSinceStart/time.Second))
	assert.Equal(t, 5, int(ev.TimeSinceLastUpdate/time.Second))
}

// After the stuck corrective write the record is terminal, so re-evaluating
// yields a stable error answer instead of terminating again.
func TestEvaluateTerminatedStuckIsStableOnReevaluation(t *testing.T) {
	job := evalJob(entity.JobStatusError, 30, "x", 400*time.Second, 300*time.Second)
	job.ErrorMessage = entity.StuckTerminatedMessage
	job.ErrorCode = entity.ErrCodeStuck

	ev := Evaluate(job, evalNow, DefaultThresholds())

	assert.Equal(t, ClassError, ev.Classification)
	assert.False(t, ev.TerminateStuck)
	assert.Equal(t, entity.ErrCodeStuck, ev.ErrorCode)
	assert.True(t, ev.CanRetry)
}

func TestEvaluatePendingNeverStarted(t *testing.T) {
	job := evalJob(entity.JobStatusPending, 0, "", 130*time.Second, 125*time.Second)

	ev := Evaluate(job, evalNow, DefaultThresholds())

	// A pending record nobody ever touched goes stuck like any other.
	assert.Equal(t, ClassStuck, ev.Classification)
	assert.True(t, ev.TerminateStuck)
}
