package logic

import (
	"time"

	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/entity"
)

// LocalAnalysisCompleteStep triggers the one auto-recovery exception in
// Evaluate: a record nominally still processing, but whose step carries this
// marker and whose result is already attached, is force-completed. This exists
// for a single historical failure mode of the analysis phase and must not be
// generalized to other phases.
const LocalAnalysisCompleteStep = "local_analysis_complete"

type Classification string

const (
	ClassCompleted  Classification = "completed"
	ClassError      Classification = "error"
	ClassStuck      Classification = "stuck"
	ClassTimeout    Classification = "timeout"
	ClassInProgress Classification = "in_progress"
)

type TimeoutLevel string

const (
	TimeoutNone   TimeoutLevel = ""
	TimeoutShort  TimeoutLevel = "short"
	TimeoutMedium TimeoutLevel = "medium"
	TimeoutLong   TimeoutLevel = "long"
)

// Thresholds drives the elapsed-time classification. All figures come from
// configuration; the defaults are the canonical ones.
type Thresholds struct {
	Stuck         time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	EstimateCap   time.Duration
	RetryAfter    time.Duration
}

func ThresholdsFromConfig(cfg *config.EnvConfig) Thresholds {
	return Thresholds{
		Stuck:         time.Duration(cfg.Jobs.StuckThreshold) * time.Second,
		TimeoutShort:  time.Duration(cfg.Jobs.TimeoutShort) * time.Second,
		TimeoutMedium: time.Duration(cfg.Jobs.TimeoutMedium) * time.Second,
		TimeoutLong:   time.Duration(cfg.Jobs.TimeoutLong) * time.Second,
		EstimateCap:   time.Duration(cfg.Jobs.EstimateCap) * time.Second,
		RetryAfter:    time.Duration(cfg.Jobs.RetryAfter) * time.Second,
	}
}

// DefaultThresholds returns the canonical threshold set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Stuck:         120 * time.Second,
		TimeoutShort:  45 * time.Second,
		TimeoutMedium: 180 * time.Second,
		TimeoutLong:   600 * time.Second,
		EstimateCap:   600 * time.Second,
		RetryAfter:    5 * time.Second,
	}
}

// Evaluation is the richer classification derived from a Job Record and the
// current wall-clock time.
type Evaluation struct {
	Classification Classification
	Status         string
	Progress       int
	Step           string
	Result         datatypes.JSON
	ErrorMessage   string
	ErrorCode      string
	CanRetry       bool

	TimeSinceLastUpdate time.Duration
	TimeSinceStart      time.Duration

	IsStuck     bool
	StuckReason string

	Level                  TimeoutLevel
	ContinuePolling        bool
	EstimatedTimeRemaining *int // seconds; nil when progress == 0
	RetryIn                int  // advisory polling interval, seconds

	Duration *int // seconds, terminal success only

	// TerminateStuck asks the caller to perform the evaluator's single
	// corrective write: status=error, code JOB_STUCK. Idempotent by
	// construction, a terminated record evaluates to ClassError next time.
	TerminateStuck bool

	// ForceCompleted marks the named local-analysis auto-recovery exception.
	ForceCompleted bool
}

// Evaluate classifies a Job Record against the current time. It is a pure
// function: the only side effects are the ones the caller performs when
// TerminateStuck or ForceCompleted are set.
func Evaluate(job *entity.OptimizationJob, now time.Time, t Thresholds) Evaluation {
	sinceUpdate := now.Sub(job.LastUpdated)
	sinceStart := now.Sub(job.StartTime)

	ev := Evaluation{
		Progress:            job.Progress,
		Step:                job.Step,
		TimeSinceLastUpdate: sinceUpdate,
		TimeSinceStart:      sinceStart,
	}

	if job.Status == entity.JobStatusCompleted {
		ev.Classification = ClassCompleted
		ev.Status = string(entity.JobStatusCompleted)
		ev.Progress = 100
		ev.Result = job.Result
		duration := int(sinceStart / time.Second)
		if job.CompletedAt != nil {
			duration = int(job.CompletedAt.Sub(job.StartTime) / time.Second)
		}
		ev.Duration = &duration
		return ev
	}

	if job.Status == entity.JobStatusError {
		ev.Classification = ClassError
		ev.Status = string(entity.JobStatusError)
		ev.ErrorMessage = job.ErrorMessage
		ev.ErrorCode = job.ErrorCode
		if ev.ErrorCode == "" {
			ev.ErrorCode = entity.ErrCodeProcessingFailed
		}
		ev.CanRetry = ev.ErrorCode != entity.ErrCodeCancelled
		return ev
	}

	// Auto-recovery exception, see LocalAnalysisCompleteStep.
	if job.Status == entity.JobStatusProcessing && job.Step == LocalAnalysisCompleteStep && len(job.Result) > 0 {
		ev.Classification = ClassCompleted
		ev.Status = string(entity.JobStatusCompleted)
		ev.Progress = 100
		ev.Result = job.Result
		duration := int(sinceStart / time.Second)
		ev.Duration = &duration
		ev.ForceCompleted = true
		return ev
	}

	if sinceUpdate > t.Stuck {
		ev.Classification = ClassStuck
		ev.Status = string(job.Status)
		ev.IsStuck = true
		ev.StuckReason = "no progress updates received from the background task"
		ev.RetryIn = int(t.RetryAfter / time.Second)
		ev.TerminateStuck = true
		return ev
	}

	if level, retryIn := timeoutLevel(sinceStart, t); level != TimeoutNone {
		ev.Classification = ClassTimeout
		ev.Status = "timeout"
		ev.Level = level
		ev.ContinuePolling = true
		ev.RetryIn = retryIn
		ev.EstimatedTimeRemaining = estimateRemaining(job.Progress, sinceStart, t.EstimateCap)
		return ev
	}

	ev.Classification = ClassInProgress
	ev.Status = string(job.Status)
	ev.RetryIn = 3
	return ev
}

func timeoutLevel(sinceStart time.Duration, t Thresholds) (TimeoutLevel, int) {
	switch {
	case sinceStart > t.TimeoutLong:
		return TimeoutLong, 15
	case sinceStart > t.TimeoutMedium:
		return TimeoutMedium, 10
	case sinceStart > t.TimeoutShort:
		return TimeoutShort, 5
	default:
		return TimeoutNone, 0
	}
}

// estimateRemaining extrapolates linearly from the progress rate so far:
// remaining = elapsed * (100 - progress) / progress, clamped to the cap.
// With zero progress there is no rate to extrapolate from, so the estimate is
// unknown rather than infinite.
func estimateRemaining(progress int, elapsed time.Duration, limit time.Duration) *int {
	if progress <= 0 {
		return nil
	}
	remaining := time.Duration(float64(elapsed) * float64(100-progress) / float64(progress))
	if remaining < 0 {
		remaining = 0
	}
	if remaining > limit {
		remaining = limit
	}
	seconds := int(remaining / time.Second)
	return &seconds
}
