package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumelab/cv-optimizer/entity"
)

func TestSchedulesCoverFullProgressRange(t *testing.T) {
	for _, jobType := range []entity.JobType{entity.JobTypeCVOptimize, entity.JobTypeApplyBatch} {
		s, err := ScheduleFor(jobType)
		require.NoError(t, err)
		assert.Equal(t, 100, s.TotalWeight(), "schedule for %s must total 100", jobType)
	}
}

func TestScheduleForUnknownType(t *testing.T) {
	_, err := ScheduleFor(entity.JobType("bulk_export"))
	assert.Error(t, err)
}

func TestProgressBeforeIsCumulative(t *testing.T) {
	s, err := ScheduleFor(entity.JobTypeCVOptimize)
	require.NoError(t, err)

	expected := []int{0, 10, 40, 60, 90}
	prev := -1
	for i, phase := range s {
		progress, err := s.ProgressBefore(phase.Name)
		require.NoError(t, err)
		assert.Equal(t, expected[i], progress)
		assert.Greater(t, progress, prev)
		prev = progress
	}
}

func TestProgressBeforeUnknownPhase(t *testing.T) {
	s, err := ScheduleFor(entity.JobTypeCVOptimize)
	require.NoError(t, err)

	_, err = s.ProgressBefore("Polishing output")
	assert.Error(t, err)
}
