package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/infra/produce"
	"github.com/resumelab/cv-optimizer/logic"
	"github.com/resumelab/cv-optimizer/repository"
)

type OptimizeConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
}

func NewOptimizeConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *OptimizeConsumer {
	return &OptimizeConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
	}
}

func (c *OptimizeConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.OptimizeQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register optimize consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Optimize Consumer] Started listening for jobs on queue: %s", produce.OptimizeQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.infra.Logger.InfoWithContextf(ctx, "[Optimize Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.infra.Logger.WarningWithContextf(ctx, "[Optimize Consumer] Channel closed")
					return
				}
				c.handleOptimize(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *OptimizeConsumer) handleOptimize(ctx context.Context, msg amqp.Delivery) {
	var payload produce.OptimizeJobMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Invalid job ID: %v", err)
		_ = msg.Nack(false, false)
		return
	}
	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Invalid owner ID: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	job, err := c.repository.Jobs.Get(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.infra.Logger.WarningWithContextf(ctx, "[Optimize Consumer] Job %s no longer exists, dropping", jobID)
			_ = msg.Ack(false)
			return
		}
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to load job %s: %v", jobID, err)
		_ = msg.Nack(false, true)
		return
	}
	if job.Terminal() {
		// Already finished elsewhere, e.g. terminated as stuck before this
		// delivery arrived. Nothing left to do.
		_ = msg.Ack(false)
		return
	}

	reporter, err := logic.NewReporter(c.repository.Jobs, job)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to build reporter for job %s: %v", jobID, err)
		_ = msg.Nack(false, false)
		return
	}

	c.runOptimize(ctx, reporter, job, payload)
	// The Job Record carries the outcome either way; redelivery would only
	// rerun work against a terminal record.
	_ = msg.Ack(false)
}

func (c *OptimizeConsumer) runOptimize(ctx context.Context, reporter *logic.Reporter, job *entity.OptimizationJob, payload produce.OptimizeJobMessage) {
	jobID := job.ID

	if err := reporter.Begin(ctx); err != nil {
		c.logRecordError(ctx, jobID, "begin", err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Extracting CV text"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	cvText, err := c.fetchCVText(ctx, job)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Analyzing CV content"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	analysis, err := c.infra.AI.AnalyzeCV(ctx, cvText)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Matching against job description"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	match, err := c.matchAgainstDescription(ctx, analysis, payload.JobDescription)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Generating optimization suggestions"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	suggestions, err := c.infra.AI.OptimizeCV(ctx, cvText, payload.JobDescription, analysis)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Saving results"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	result, err := json.Marshal(map[string]interface{}{
		"analysis":    asJSONValue(analysis),
		"match":       asJSONValue(match),
		"suggestions": asJSONValue(suggestions),
	})
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if err := reporter.Complete(ctx, datatypes.JSON(result)); err != nil {
		c.logRecordError(ctx, jobID, "complete", err)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Optimize Consumer] Completed job %s", jobID)
}

func (c *OptimizeConsumer) fetchCVText(ctx context.Context, job *entity.OptimizationJob) (string, error) {
	cv, err := c.repository.CVs.FindByIDAndOwner(ctx, job.CVID, job.OwnerID)
	if err != nil {
		return "", fmt.Errorf("cv lookup failed: %w", err)
	}

	bucket := cv.Bucket
	if bucket == "" {
		bucket = c.infra.Minio.CVBucket
	}
	data, err := c.infra.Minio.FetchObject(ctx, bucket, cv.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("failed to fetch CV object %s: %w", cv.ObjectKey, err)
	}
	return string(data), nil
}

func (c *OptimizeConsumer) matchAgainstDescription(ctx context.Context, analysis, jobDescription string) (string, error) {
	if jobDescription == "" {
		return `{"match_score": null, "note": "no job description provided"}`, nil
	}
	prompt := fmt.Sprintf(
		"Given this CV analysis:\n%s\n\nAnd this job description:\n%s\n\n"+
			"Return a JSON object with match_score (0-100), matching_skills (array) and missing_skills (array).",
		analysis, jobDescription,
	)
	return c.infra.AI.Complete(ctx, prompt, true)
}

// stopIfCancelled checks the cooperative cancellation flag at a phase
// boundary and finalizes the record when it is set.
func (c *OptimizeConsumer) stopIfCancelled(ctx context.Context, reporter *logic.Reporter, jobID uuid.UUID) bool {
	cancelled, err := reporter.Cancelled(ctx)
	if err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Optimize Consumer] Failed to read cancel flag for job %s: %v", jobID, err)
		return false
	}
	if !cancelled {
		return false
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Optimize Consumer] Job %s cancelled, stopping", jobID)
	if err := reporter.Fail(ctx, entity.ErrCodeCancelled, errors.New("cancelled by user")); err != nil && !errors.Is(err, repository.ErrTerminalState) {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to finalize cancelled job %s: %v", jobID, err)
	}
	return true
}

func (c *OptimizeConsumer) fail(ctx context.Context, reporter *logic.Reporter, jobID uuid.UUID, cause error) {
	c.infra.Logger.ErrorWithContextf(ctx, cause, "[Optimize Consumer] Job %s failed: %v", jobID, cause)
	if err := reporter.Fail(ctx, entity.ErrCodeProcessingFailed, cause); err != nil && !errors.Is(err, repository.ErrTerminalState) {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to record failure for job %s: %v", jobID, err)
	}
}

func (c *OptimizeConsumer) logRecordError(ctx context.Context, jobID uuid.UUID, stage string, err error) {
	if errors.Is(err, repository.ErrTerminalState) {
		// The stuck detector or a cancel finished the record first; stop
		// without overwriting the terminal state.
		c.infra.Logger.WarningWithContextf(ctx, "[Optimize Consumer] Job %s reached a terminal state mid-run, stopping", jobID)
		return
	}
	c.infra.Logger.ErrorWithContextf(ctx, err, "[Optimize Consumer] Failed to %s job %s: %v", stage, jobID, err)
}
