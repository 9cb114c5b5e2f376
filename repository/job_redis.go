package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/infra"
)

const (
	jobKeyPrefix   = "cvjobs:job:"
	ownerKeyPrefix = "cvjobs:owner:"
)

// RedisJobStore keeps each Job Record as a redis hash, so Update merges at
// field granularity exactly like the Postgres backend. Records carry a TTL so
// abandoned jobs expire instead of accumulating.
type RedisJobStore struct {
	redis *infra.RedisClient
	ttl   time.Duration
}

func NewRedisJobStore(redisClient *infra.RedisClient, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{redis: redisClient, ttl: ttl}
}

func jobKey(id uuid.UUID) string {
	return jobKeyPrefix + id.String()
}

func ownerKey(id uuid.UUID) string {
	return ownerKeyPrefix + id.String()
}

func (s *RedisJobStore) Create(ctx context.Context, job *entity.OptimizationJob) error {
	fields := map[string]interface{}{
		"id":              job.ID.String(),
		"owner_id":        job.OwnerID.String(),
		"type":            string(job.Type),
		FieldStatus:       string(job.Status),
		FieldProgress:     strconv.Itoa(job.Progress),
		FieldStep:         job.Step,
		"cv_id":           job.CVID.String(),
		"job_description": job.JobDescription,
		FieldResult:       string(job.Result),
		FieldErrorMessage: job.ErrorMessage,
		FieldErrorCode:    job.ErrorCode,
		FieldCancelled:    strconv.FormatBool(job.Cancelled),
		"start_time":      job.StartTime.Format(time.RFC3339Nano),
		"last_updated":    job.LastUpdated.Format(time.RFC3339Nano),
		FieldCompletedAt:  "",
	}

	key := jobKey(job.ID)
	if err := s.redis.Client.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	if err := s.redis.Client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return err
	}

	oKey := ownerKey(job.OwnerID)
	if err := s.redis.Client.ZAdd(ctx, oKey, redis.Z{
		Score:  float64(job.StartTime.UnixNano()),
		Member: job.ID.String(),
	}).Err(); err != nil {
		return err
	}
	return s.redis.Client.Expire(ctx, oKey, s.ttl).Err()
}

func (s *RedisJobStore) Update(ctx context.Context, jobID uuid.UUID, fields map[string]interface{}) error {
	key := jobKey(jobID)

	status, err := s.redis.Client.HGet(ctx, key, FieldStatus).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrJobNotFound
		}
		return err
	}
	switch entity.JobStatus(status) {
	case entity.JobStatusCompleted, entity.JobStatusError:
		return ErrTerminalState
	}

	encoded := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		ev, err := encodeField(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		encoded[k] = ev
	}
	encoded["last_updated"] = time.Now().Format(time.RFC3339Nano)

	return s.redis.Client.HSet(ctx, key, encoded).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, jobID, ownerID uuid.UUID) (*entity.OptimizationJob, error) {
	data, err := s.redis.Client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrJobNotFound
	}
	// Ownership check first so a foreign job looks exactly like a missing one,
	// even when the record is malformed.
	if data["owner_id"] != ownerID.String() {
		return nil, ErrJobNotFound
	}
	return parseJobHash(jobID, ownerID, data)
}

func (s *RedisJobStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.OptimizationJob, error) {
	ids, err := s.redis.Client.ZRevRange(ctx, ownerKey(ownerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]entity.OptimizationJob, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		job, err := s.Get(ctx, id, ownerID)
		if err != nil {
			// Expired or malformed entries are skipped in listings.
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// parseJobHash decodes a job hash. On a malformed field it returns whatever
// was readable plus ErrMalformedRecord, with progress forced to 0, so callers
// can serve the safe partial response.
func parseJobHash(jobID, ownerID uuid.UUID, data map[string]string) (*entity.OptimizationJob, error) {
	job := &entity.OptimizationJob{
		ID:             jobID,
		OwnerID:        ownerID,
		Type:           entity.JobType(data["type"]),
		Status:         entity.JobStatus(data[FieldStatus]),
		Step:           data[FieldStep],
		JobDescription: data["job_description"],
		ErrorMessage:   data[FieldErrorMessage],
		ErrorCode:      data[FieldErrorCode],
	}

	malformed := false

	if cvID, err := uuid.Parse(data["cv_id"]); err == nil {
		job.CVID = cvID
	} else {
		malformed = true
	}

	if progress, err := strconv.Atoi(data[FieldProgress]); err == nil {
		job.Progress = progress
	} else {
		malformed = true
	}

	if cancelled, err := strconv.ParseBool(data[FieldCancelled]); err == nil {
		job.Cancelled = cancelled
	} else {
		malformed = true
	}

	if t, err := time.Parse(time.RFC3339Nano, data["start_time"]); err == nil {
		job.StartTime = t
	} else {
		malformed = true
	}

	if t, err := time.Parse(time.RFC3339Nano, data["last_updated"]); err == nil {
		job.LastUpdated = t
	} else {
		malformed = true
	}

	if raw := data[FieldCompletedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			job.CompletedAt = &t
		} else {
			malformed = true
		}
	}

	if raw := data[FieldResult]; raw != "" {
		if json.Valid([]byte(raw)) {
			job.Result = datatypes.JSON(raw)
		} else {
			malformed = true
		}
	}

	if malformed {
		job.Progress = 0
		return job, ErrMalformedRecord
	}
	return job, nil
}

func encodeField(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case entity.JobStatus:
		return string(v), nil
	case entity.JobType:
		return string(v), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return v.Format(time.RFC3339Nano), nil
	case *time.Time:
		if v == nil {
			return "", nil
		}
		return v.Format(time.RFC3339Nano), nil
	case datatypes.JSON:
		return string(v), nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported field type %T", value)
	}
}
