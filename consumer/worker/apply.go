package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/infra/produce"
	"github.com/resumelab/cv-optimizer/logic"
	"github.com/resumelab/cv-optimizer/repository"
)

const maxCoverLetters = 5

type ApplyBatchConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
}

// jobMatch is one opening proposed for the candidate, as returned by the
// search and evaluation prompts.
type jobMatch struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	MatchScore  int    `json:"match_score"`
	Reason      string `json:"reason,omitempty"`
	CoverLetter string `json:"cover_letter,omitempty"`
}

func NewApplyBatchConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *ApplyBatchConsumer {
	return &ApplyBatchConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
	}
}

func (c *ApplyBatchConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.ApplyBatchQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register apply batch consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Apply Consumer] Started listening for jobs on queue: %s", produce.ApplyBatchQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.infra.Logger.InfoWithContextf(ctx, "[Apply Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.infra.Logger.WarningWithContextf(ctx, "[Apply Consumer] Channel closed")
					return
				}
				c.handleApplyBatch(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *ApplyBatchConsumer) handleApplyBatch(ctx context.Context, msg amqp.Delivery) {
	var payload produce.ApplyBatchMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Invalid job ID: %v", err)
		_ = msg.Nack(false, false)
		return
	}
	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Invalid owner ID: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	job, err := c.repository.Jobs.Get(ctx, jobID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			c.infra.Logger.WarningWithContextf(ctx, "[Apply Consumer] Job %s no longer exists, dropping", jobID)
			_ = msg.Ack(false)
			return
		}
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to load job %s: %v", jobID, err)
		_ = msg.Nack(false, true)
		return
	}
	if job.Terminal() {
		_ = msg.Ack(false)
		return
	}

	reporter, err := logic.NewReporter(c.repository.Jobs, job)
	if err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to build reporter for job %s: %v", jobID, err)
		_ = msg.Nack(false, false)
		return
	}

	c.runApplyBatch(ctx, reporter, job, payload)
	_ = msg.Ack(false)
}

func (c *ApplyBatchConsumer) runApplyBatch(ctx context.Context, reporter *logic.Reporter, job *entity.OptimizationJob, payload produce.ApplyBatchMessage) {
	jobID := job.ID

	if err := reporter.Begin(ctx); err != nil {
		c.logRecordError(ctx, jobID, "begin", err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Analyzing CV content"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	cvText, err := c.fetchCVText(ctx, job)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
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
	if err := reporter.Advance(ctx, "Searching matching jobs"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	matches, err := c.searchJobs(ctx, analysis, payload.JobCount)
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Evaluating job matches"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	matches = rankMatches(matches)

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Generating cover letters"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	for i := range matches {
		if i >= maxCoverLetters {
			break
		}
		letter, err := c.infra.AI.GenerateCoverLetter(ctx, analysis, matches[i].Title, matches[i].Company)
		if err != nil {
			c.fail(ctx, reporter, jobID, err)
			return
		}
		matches[i].CoverLetter = letter
	}

	if c.stopIfCancelled(ctx, reporter, jobID) {
		return
	}
	if err := reporter.Advance(ctx, "Saving results"); err != nil {
		c.logRecordError(ctx, jobID, "advance", err)
		return
	}
	result, err := json.Marshal(map[string]interface{}{
		"analysis":      asJSONValue(analysis),
		"matches":       matches,
		"total_matches": len(matches),
	})
	if err != nil {
		c.fail(ctx, reporter, jobID, err)
		return
	}

	if err := reporter.Complete(ctx, datatypes.JSON(result)); err != nil {
		c.logRecordError(ctx, jobID, "complete", err)
		return
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Apply Consumer] Completed job %s with %d matches", jobID, len(matches))
}

func (c *ApplyBatchConsumer) fetchCVText(ctx context.Context, job *entity.OptimizationJob) (string, error) {
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

func (c *ApplyBatchConsumer) searchJobs(ctx context.Context, analysis string, jobCount int) ([]jobMatch, error) {
	if jobCount <= 0 || jobCount > 50 {
		jobCount = 25
	}
	prompt := fmt.Sprintf(
		"Based on this candidate analysis, propose up to %d realistic job openings the candidate should apply to. "+
			"Return a JSON array of objects with keys \"title\", \"company\", \"match_score\" (0-100) and \"reason\".\n\nAnalysis:\n%s",
		jobCount, analysis,
	)
	raw, err := c.infra.AI.Complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}

	var matches []jobMatch
	if err := json.Unmarshal([]byte(raw), &matches); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Jobs []jobMatch `json:"jobs"`
		}
		if err2 := json.Unmarshal([]byte(raw), &wrapped); err2 != nil || len(wrapped.Jobs) == 0 {
			return nil, fmt.Errorf("unparseable job search response: %w", err)
		}
		matches = wrapped.Jobs
	}
	return matches, nil
}

// rankMatches orders proposals by score, best first, keeping the model's
// order for equal scores.
func rankMatches(matches []jobMatch) []jobMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

func (c *ApplyBatchConsumer) stopIfCancelled(ctx context.Context, reporter *logic.Reporter, jobID uuid.UUID) bool {
	cancelled, err := reporter.Cancelled(ctx)
	if err != nil {
		c.infra.Logger.WarningWithContextf(ctx, "[Apply Consumer] Failed to read cancel flag for job %s: %v", jobID, err)
		return false
	}
	if !cancelled {
		return false
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Apply Consumer] Job %s cancelled, stopping", jobID)
	if err := reporter.Fail(ctx, entity.ErrCodeCancelled, errors.New("cancelled by user")); err != nil && !errors.Is(err, repository.ErrTerminalState) {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to finalize cancelled job %s: %v", jobID, err)
	}
	return true
}

func (c *ApplyBatchConsumer) fail(ctx context.Context, reporter *logic.Reporter, jobID uuid.UUID, cause error) {
	c.infra.Logger.ErrorWithContextf(ctx, cause, "[Apply Consumer] Job %s failed: %v", jobID, cause)
	if err := reporter.Fail(ctx, entity.ErrCodeProcessingFailed, cause); err != nil && !errors.Is(err, repository.ErrTerminalState) {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to record failure for job %s: %v", jobID, err)
	}
}

func (c *ApplyBatchConsumer) logRecordError(ctx context.Context, jobID uuid.UUID, stage string, err error) {
	if errors.Is(err, repository.ErrTerminalState) {
		c.infra.Logger.WarningWithContextf(ctx, "[Apply Consumer] Job %s reached a terminal state mid-run, stopping", jobID)
		return
	}
	c.infra.Logger.ErrorWithContextf(ctx, err, "[Apply Consumer] Failed to %s job %s: %v", stage, jobID, err)
}
