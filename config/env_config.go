package config

import (
	"os"
	"strconv"
)

type EnvConfig struct {
	Postgres struct {
		Host     string
		Database string
		Username string
		Password string
		Port     string
	}
	JWT struct {
		SecretKey string
		Algorithm string
	}
	CORS struct {
		AllowDomains string
	}
	Redis struct {
		Password string
		Database int
		Host     string
		Port     string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Minio struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		CVBucket  string
	}
	OpenAI struct {
		APIKey string
		Model  string
	}
	Jobs struct {
		StoreBackend string // "postgres" or "redis"

		// Status evaluation thresholds, all in seconds.
		StuckThreshold int
		TimeoutShort   int
		TimeoutMedium  int
		TimeoutLong    int
		EstimateCap    int
		RetryAfter     int

		// TTL applied to records in the redis backend.
		RecordTTLHours int
	}
	RateLimit struct {
		RequestsPerMinute int
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode string
	}
	HTTPPort string
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.Host = getEnv("PGPOOL_HOST", "localhost")
	config.Postgres.Database = getEnv("PGPOOL_DB", "cv_optimizer")
	config.Postgres.Username = getEnv("PGPOOL_USER", "postgres")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = getEnv("PGPOOL_PORT", "5432")

	// JWT
	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.JWT.Algorithm = getEnv("JWT_ALGORITHM", "HS256")

	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	// Redis
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database = getEnvInt("REDIS_DB", 0)
	config.Redis.Host = getEnv("REDIS_HOST", "localhost")
	config.Redis.Port = getEnv("REDIS_PORT", "6379")

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")

	// MinIO (CV document storage)
	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
	config.Minio.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	config.Minio.CVBucket = getEnv("MINIO_CV_BUCKET", "cv-documents")

	// OpenAI
	config.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	config.OpenAI.Model = getEnv("OPENAI_MODEL", "gpt-4o-mini")

	// Job lifecycle
	config.Jobs.StoreBackend = getEnv("JOB_STORE_BACKEND", "postgres")
	config.Jobs.StuckThreshold = getEnvInt("JOB_STUCK_THRESHOLD_SECONDS", 120)
	config.Jobs.TimeoutShort = getEnvInt("JOB_TIMEOUT_SHORT_SECONDS", 45)
	config.Jobs.TimeoutMedium = getEnvInt("JOB_TIMEOUT_MEDIUM_SECONDS", 180)
	config.Jobs.TimeoutLong = getEnvInt("JOB_TIMEOUT_LONG_SECONDS", 600)
	config.Jobs.EstimateCap = getEnvInt("JOB_ESTIMATE_CAP_SECONDS", 600)
	config.Jobs.RetryAfter = getEnvInt("JOB_STUCK_RETRY_AFTER_SECONDS", 5)
	config.Jobs.RecordTTLHours = getEnvInt("JOB_RECORD_TTL_HOURS", 24)

	config.RateLimit.RequestsPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)

	// Grafana/OpenTelemetry
	config.Grafana.OTLPEndpoint = os.Getenv("GRAFANA_OTLP_ENDPOINT")
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "cv-optimizer-service")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")

	config.HTTPPort = getEnv("HTTP_PORT", "8080")

	return &config
}
