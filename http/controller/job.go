package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/http/controller/dto"
	"github.com/resumelab/cv-optimizer/infra/produce"
	"github.com/resumelab/cv-optimizer/logic"
	"github.com/resumelab/cv-optimizer/repository"
	"github.com/resumelab/cv-optimizer/utils"
)

// CreateJob accepts a CV operation, persists the pending Job Record and hands
// the work to the queue. The record is the only coordination point with the
// worker from here on.
func (ctrl *Controller) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "cv_id is required")
		return
	}

	cvID, err := uuid.Parse(req.CVID)
	if err != nil {
		utils.JSON400(c, "Invalid cv_id format")
		return
	}

	jobType := entity.JobTypeCVOptimize
	if req.Type != "" {
		jobType = entity.JobType(req.Type)
		if jobType != entity.JobTypeCVOptimize && jobType != entity.JobTypeApplyBatch {
			utils.JSON400(c, "Unknown job type")
			return
		}
	}

	if _, err := ctrl.CVs.FindByIDAndOwner(ctx, cvID, userID); err != nil {
		if errors.Is(err, repository.ErrCVNotFound) {
			utils.JSON404(c, "CV not found")
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to look up CV %s", cvID)
		utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", true)
		return
	}

	job := entity.NewOptimizationJob(userID, jobType, cvID, req.JobDescription)
	if err := ctrl.Jobs.Create(ctx, job); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to persist job record")
		utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", true)
		return
	}

	if err := ctrl.publishJob(c, job, req.JobCount); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to publish job %s", job.ID)
		// The record exists but no worker will ever pick it up; terminate it
		// now instead of letting the stuck detector do it minutes later.
		_ = ctrl.Jobs.Update(ctx, job.ID, map[string]interface{}{
			repository.FieldStatus:       entity.JobStatusError,
			repository.FieldErrorMessage: "failed to enqueue job",
			repository.FieldErrorCode:    "QUEUE_UNAVAILABLE",
		})
		utils.JSONError(c, http.StatusInternalServerError, "QUEUE_UNAVAILABLE", "Failed to enqueue job", true)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Accepted %s job %s for user %s", jobType, job.ID, userID)

	utils.JSON202(c, gin.H{
		"success": true,
		"job_id":  job.ID.String(),
	})
}

func (ctrl *Controller) publishJob(c *gin.Context, job *entity.OptimizationJob, jobCount int) error {
	ctx := c.Request.Context()
	switch job.Type {
	case entity.JobTypeApplyBatch:
		if jobCount <= 0 {
			jobCount = 25
		}
		return ctrl.Publisher.PublishApplyBatch(ctx, produce.ApplyBatchMessage{
			JobID:    job.ID.String(),
			OwnerID:  job.OwnerID.String(),
			CVID:     job.CVID.String(),
			JobCount: jobCount,
		})
	default:
		return ctrl.Publisher.PublishOptimizeJob(ctx, produce.OptimizeJobMessage{
			JobID:          job.ID.String(),
			OwnerID:        job.OwnerID.String(),
			CVID:           job.CVID.String(),
			JobDescription: job.JobDescription,
		})
	}
}

// GetJobStatus serves polling requests through the Status Evaluator.
func (ctrl *Controller) GetJobStatus(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid job id format")
		return
	}

	job, err := ctrl.Jobs.Get(ctx, jobID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			// Not-owned and nonexistent are deliberately indistinguishable.
			utils.JSON404(c, "Job not found")
		case errors.Is(err, repository.ErrMalformedRecord):
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Malformed record for job %s, serving partial response", jobID)
			c.Header("Cache-Control", "no-store")
			utils.JSON200(c, gin.H{
				"success":      true,
				"partial_data": true,
				"status":       string(entity.JobStatusProcessing),
				"progress":     0,
			})
		default:
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to load job %s", jobID)
			utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job status", true)
		}
		return
	}

	ev := logic.Evaluate(job, time.Now(), ctrl.Thresholds)

	// The evaluator's single corrective write. ErrTerminalState means another
	// poll already terminated the record, which is the idempotent case.
	if ev.TerminateStuck {
		err := ctrl.Jobs.Update(ctx, jobID, map[string]interface{}{
			repository.FieldStatus:       entity.JobStatusError,
			repository.FieldErrorMessage: entity.StuckTerminatedMessage,
			repository.FieldErrorCode:    entity.ErrCodeStuck,
		})
		if err != nil && !errors.Is(err, repository.ErrTerminalState) {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to terminate stuck job %s", jobID)
		} else {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Terminated stuck job %s (no update for %s)", jobID, ev.TimeSinceLastUpdate)
		}
	}

	if ev.ForceCompleted {
		now := time.Now()
		err := ctrl.Jobs.Update(ctx, jobID, map[string]interface{}{
			repository.FieldStatus:      entity.JobStatusCompleted,
			repository.FieldProgress:    100,
			repository.FieldCompletedAt: &now,
		})
		if err != nil && !errors.Is(err, repository.ErrTerminalState) {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to force-complete job %s", jobID)
		} else {
			ctrl.Infra.Logger.WarningWithContextf(ctx, "[Job] Force-completed job %s from local analysis marker", jobID)
		}
	}

	ctrl.writeStatusResponse(c, job, ev)
}

func (ctrl *Controller) writeStatusResponse(c *gin.Context, job *entity.OptimizationJob, ev logic.Evaluation) {
	debug := c.Query("debug") == "true"

	var body gin.H

	switch ev.Classification {
	case logic.ClassCompleted:
		c.Header("Cache-Control", "private, max-age=60")
		body = gin.H{
			"success":  true,
			"status":   ev.Status,
			"progress": ev.Progress,
			"result":   rawResult(ev),
			"duration": ev.Duration,
		}

	case logic.ClassError:
		c.Header("Cache-Control", "no-store")
		body = gin.H{
			"success":    false,
			"status":     ev.Status,
			"error":      ev.ErrorMessage,
			"error_code": ev.ErrorCode,
			"can_retry":  ev.CanRetry,
		}

	case logic.ClassStuck:
		c.Header("Cache-Control", "no-store")
		c.Header("Retry-After", strconv.Itoa(ev.RetryIn))
		body = gin.H{
			"success":                true,
			"status":                 ev.Status,
			"progress":               ev.Progress,
			"step":                   ev.Step,
			"time_since_last_update": int(ev.TimeSinceLastUpdate / time.Second),
			"time_since_start":       int(ev.TimeSinceStart / time.Second),
			"is_stuck":               true,
			"stuck_reason":           ev.StuckReason,
			"retry_in":               ev.RetryIn,
		}

	case logic.ClassTimeout:
		c.Header("Cache-Control", "no-store")
		body = gin.H{
			"success":          true,
			"status":           ev.Status,
			"timeout_level":    string(ev.Level),
			"continue_polling": true,
			"progress":         ev.Progress,
			"step":             ev.Step,
			"time_since_start": int(ev.TimeSinceStart / time.Second),
			"retry_in":         ev.RetryIn,
		}
		if ev.EstimatedTimeRemaining != nil {
			body["estimated_time_remaining"] = *ev.EstimatedTimeRemaining
		}

	default:
		c.Header("Cache-Control", "no-store")
		body = gin.H{
			"success":                true,
			"status":                 ev.Status,
			"progress":               ev.Progress,
			"step":                   ev.Step,
			"time_since_last_update": int(ev.TimeSinceLastUpdate / time.Second),
			"time_since_start":       int(ev.TimeSinceStart / time.Second),
			"is_stuck":               false,
			"retry_in":               ev.RetryIn,
		}
	}

	if debug {
		body["debug"] = gin.H{
			"start_time":             job.StartTime,
			"last_updated":           job.LastUpdated,
			"stuck_threshold":        int(ctrl.Thresholds.Stuck / time.Second),
			"timeout_short":          int(ctrl.Thresholds.TimeoutShort / time.Second),
			"timeout_medium":         int(ctrl.Thresholds.TimeoutMedium / time.Second),
			"timeout_long":           int(ctrl.Thresholds.TimeoutLong / time.Second),
			"classification":         string(ev.Classification),
			"force_completed":        ev.ForceCompleted,
			"terminated_as_stuck":    ev.TerminateStuck,
			"time_since_last_update": int(ev.TimeSinceLastUpdate / time.Second),
		}
	}

	c.JSON(http.StatusOK, body)
}

func rawResult(ev logic.Evaluation) interface{} {
	if len(ev.Result) == 0 {
		return nil
	}
	return json.RawMessage(ev.Result)
}

// CancelJob flips the cooperative cancellation flag. The worker observes it at
// the next phase boundary; nothing is interrupted forcibly.
func (ctrl *Controller) CancelJob(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.JSON400(c, "Invalid job id format")
		return
	}

	job, err := ctrl.Jobs.Get(ctx, jobID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			utils.JSON404(c, "Job not found")
			return
		}
		if !errors.Is(err, repository.ErrMalformedRecord) {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to load job %s for cancel", jobID)
			utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel job", true)
			return
		}
	}

	if job != nil && job.Terminal() {
		utils.JSONError(c, http.StatusConflict, "JOB_ALREADY_FINISHED", "Job has already finished", false)
		return
	}

	err = ctrl.Jobs.Update(ctx, jobID, map[string]interface{}{
		repository.FieldCancelled: true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrTerminalState) {
			utils.JSONError(c, http.StatusConflict, "JOB_ALREADY_FINISHED", "Job has already finished", false)
			return
		}
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to cancel job %s", jobID)
		utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel job", true)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Job] Cancellation requested for job %s", jobID)

	utils.JSON200(c, gin.H{
		"success":   true,
		"cancelled": true,
		"message":   "Cancellation requested; the job stops at the next phase boundary",
	})
}

// ListJobs returns the caller's recent jobs, newest first.
func (ctrl *Controller) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()

	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSON401(c, "Unauthorized: user_id not found")
		return
	}

	jobs, err := ctrl.Jobs.ListByOwner(ctx, userID, 20)
	if err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Job] Failed to list jobs for user %s", userID)
		utils.JSONError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", true)
		return
	}

	summaries := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, gin.H{
			"job_id":     job.ID.String(),
			"type":       string(job.Type),
			"status":     string(job.Status),
			"progress":   job.Progress,
			"step":       job.Step,
			"start_time": job.StartTime,
		})
	}

	utils.JSON200(c, gin.H{
		"success": true,
		"jobs":    summaries,
	})
}
