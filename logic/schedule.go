package logic

import (
	"fmt"

	"github.com/resumelab/cv-optimizer/entity"
)

// Phase is one step of a job's work, with its share of the 0-100 progress
// range. Progress is computed from the cumulative weights, so adding or
// reordering phases cannot break the 0-100 contract.
type Phase struct {
	Name   string
	Weight int
}

// Schedule is the ordered phase list for one job type. Weights must sum
// to 100.
type Schedule []Phase

var schedules = map[entity.JobType]Schedule{
	entity.JobTypeCVOptimize: {
		{Name: "Extracting CV text", Weight: 10},
		{Name: "Analyzing CV content", Weight: 30},
		{Name: "Matching against job description", Weight: 20},
		{Name: "Generating optimization suggestions", Weight: 30},
		{Name: "Saving results", Weight: 10},
	},
	entity.JobTypeApplyBatch: {
		{Name: "Analyzing CV content", Weight: 20},
		{Name: "Searching matching jobs", Weight: 15},
		{Name: "Evaluating job matches", Weight: 40},
		{Name: "Generating cover letters", Weight: 20},
		{Name: "Saving results", Weight: 5},
	},
}

// ScheduleFor returns the phase schedule for a job type.
func ScheduleFor(jobType entity.JobType) (Schedule, error) {
	s, ok := schedules[jobType]
	if !ok {
		return nil, fmt.Errorf("no schedule for job type %q", jobType)
	}
	return s, nil
}

// ProgressBefore returns the cumulative progress when the named phase begins,
// i.e. the sum of the weights of all earlier phases.
func (s Schedule) ProgressBefore(phase string) (int, error) {
	total := 0
	for _, p := range s {
		if p.Name == phase {
			return total, nil
		}
		total += p.Weight
	}
	return 0, fmt.Errorf("unknown phase %q", phase)
}

// TotalWeight sums the schedule's weights. A well-formed schedule totals 100.
func (s Schedule) TotalWeight() int {
	total := 0
	for _, p := range s {
		total += p.Weight
	}
	return total
}
