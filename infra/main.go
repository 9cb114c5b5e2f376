package infra

import (
	"log"

	"github.com/resumelab/cv-optimizer/config"
	"github.com/resumelab/cv-optimizer/infra/produce"
)

type Infra struct {
	Redis    *RedisClient
	Postgres *PostgresClient
	Logger   *LoggerClient
	RabbitMQ *RabbitMQClient
	Minio    *MinioClient
	AI       *AIClient
	Produce  *produce.Produce
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	redis := InitRedisClient(cfg.EnvConfig)
	if redis == nil {
		panic("Failed to initialize Redis service")
	}

	postgres := InitPostgresClient(cfg.EnvConfig)
	if postgres == nil {
		panic("Failed to initialize Postgres service")
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	rabbitMQ := InitRabbitMQClient(cfg.EnvConfig)
	if rabbitMQ == nil {
		panic("Failed to initialize RabbitMQ service")
	}

	produceService := produce.InitProduce(rabbitMQ.Channel)
	if produceService == nil {
		panic("Failed to initialize Produce service")
	}

	minio := InitMinioClient(cfg.EnvConfig)
	if minio == nil {
		panic("Failed to initialize MinIO service")
	}

	// AI is optional on the API side; the consumer refuses to start without it.
	ai, err := InitAIClient(cfg.EnvConfig)
	if err != nil {
		log.Printf("Warning: AI client not initialized: %v (workers will not run)", err)
		ai = nil
	}

	infraInstance = &Infra{
		Redis:    redis,
		Postgres: postgres,
		Logger:   logger,
		RabbitMQ: rabbitMQ,
		Minio:    minio,
		AI:       ai,
		Produce:  produceService,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}
