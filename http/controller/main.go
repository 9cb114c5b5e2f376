package controller

import (
	"context"

	"github.com/google/uuid"

	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/entity"
	"github.com/resumelab/cv-optimizer/infra"
	"github.com/resumelab/cv-optimizer/infra/produce"
	"github.com/resumelab/cv-optimizer/logic"
	"github.com/resumelab/cv-optimizer/repository"
)

// JobPublisher hands accepted jobs to the worker fleet.
type JobPublisher interface {
	PublishOptimizeJob(ctx context.Context, msg produce.OptimizeJobMessage) error
	PublishApplyBatch(ctx context.Context, msg produce.ApplyBatchMessage) error
}

// CVStore is the slice of the CV repository the handlers need.
type CVStore interface {
	FindByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*entity.CVDocument, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]entity.CVDocument, error)
}

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Jobs       repository.JobStore
	CVs        CVStore
	Publisher  JobPublisher
	Thresholds logic.Thresholds
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	return &Controller{
		Config:     config,
		Infra:      infra,
		Jobs:       repo.Jobs,
		CVs:        repo.CVs,
		Publisher:  infra.Produce.JobService,
		Thresholds: logic.ThresholdsFromConfig(config.EnvConfig),
	}
}
