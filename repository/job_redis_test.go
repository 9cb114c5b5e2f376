package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/resumelab/cv-optimizer/entity"
)

func validJobHash(cvID uuid.UUID) map[string]string {
	return map[string]string{
		"type":           string(entity.JobTypeCVOptimize),
		FieldStatus:      string(entity.JobStatusProcessing),
		FieldProgress:    "40",
		FieldStep:        "Analyzing CV content",
		"cv_id":          cvID.String(),
		FieldCancelled:   "false",
		"start_time":     time.Now().Add(-time.Minute).Format(time.RFC3339Nano),
		"last_updated":   time.Now().Format(time.RFC3339Nano),
		FieldCompletedAt: "",
		FieldResult:      "",
	}
}

func TestParseJobHashRoundTrip(t *testing.T) {
	jobID, ownerID, cvID := uuid.New(), uuid.New(), uuid.New()
	data := validJobHash(cvID)
	data[FieldResult] = `{"score": 91}`

	job, err := parseJobHash(jobID, ownerID, data)
	require.NoError(t, err)

	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, ownerID, job.OwnerID)
	assert.Equal(t, cvID, job.CVID)
	assert.Equal(t, entity.JobStatusProcessing, job.Status)
	assert.Equal(t, 40, job.Progress)
	assert.Equal(t, datatypes.JSON(`{"score": 91}`), job.Result)
	assert.False(t, job.Cancelled)
	assert.Nil(t, job.CompletedAt)
}

func TestParseJobHashMalformedProgress(t *testing.T) {
	data := validJobHash(uuid.New())
	data[FieldProgress] = "forty"

	job, err := parseJobHash(uuid.New(), uuid.New(), data)

	assert.ErrorIs(t, err, ErrMalformedRecord)
	require.NotNil(t, job)
	// Whatever else was readable survives, but progress resets to the safe
	// floor.
	assert.Equal(t, 0, job.Progress)
	assert.Equal(t, entity.JobStatusProcessing, job.Status)
}

func TestParseJobHashMalformedResult(t *testing.T) {
	data := validJobHash(uuid.New())
	data[FieldResult] = `{"truncated`

	job, err := parseJobHash(uuid.New(), uuid.New(), data)

	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Empty(t, job.Result)
	assert.Equal(t, 0, job.Progress)
}

func TestParseJobHashMalformedTimestamps(t *testing.T) {
	data := validJobHash(uuid.New())
	data["last_updated"] = "yesterday"

	_, err := parseJobHash(uuid.New(), uuid.New(), data)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestParseJobHashCompletedAt(t *testing.T) {
	completedAt := time.Now().Truncate(time.Millisecond)
	data := validJobHash(uuid.New())
	data[FieldStatus] = string(entity.JobStatusCompleted)
	data[FieldProgress] = "100"
	data[FieldCompletedAt] = completedAt.Format(time.RFC3339Nano)

	job, err := parseJobHash(uuid.New(), uuid.New(), data)
	require.NoError(t, err)
	require.NotNil(t, job.CompletedAt)
	assert.True(t, job.CompletedAt.Equal(completedAt))
}

func TestEncodeField(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"nil", nil, ""},
		{"string", "Saving results", "Saving results"},
		{"status", entity.JobStatusError, "error"},
		{"type", entity.JobTypeApplyBatch, "apply_batch"},
		{"int", 85, "85"},
		{"bool", true, "true"},
		{"time", now, "2026-03-14T12:00:00Z"},
		{"time pointer", &now, "2026-03-14T12:00:00Z"},
		{"nil time pointer", (*time.Time)(nil), ""},
		{"json", datatypes.JSON(`{"a":1}`), `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := encodeField(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeFieldRejectsUnknownTypes(t *testing.T) {
	_, err := encodeField(3.14)
	assert.Error(t, err)
}
