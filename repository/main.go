package repository

import (
	"time"

	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/infra"
)

type Repository struct {
	Jobs JobStore
	CVs  *CVRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra, cfg *config.Config) *Repository {
	var jobs JobStore
	switch cfg.EnvConfig.Jobs.StoreBackend {
	case "redis":
		ttl := time.Duration(cfg.EnvConfig.Jobs.RecordTTLHours) * time.Hour
		jobs = NewRedisJobStore(infra.Redis, ttl)
	default:
		jobs = NewPostgresJobStore(infra.Postgres.DB)
	}

	repository = &Repository{
		Jobs: jobs,
		CVs:  NewCVRepository(infra.Postgres.DB),
	}
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}
