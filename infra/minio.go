package infra

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/resumelab/cv-optimizer/config"
)

// MinioClient reads CV documents out of object storage for the workers.
// Uploads happen in a separate service; this side is read-only.
type MinioClient struct {
	Client   *minio.Client
	Endpoint string
	CVBucket string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: false,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	log.Println("Connected to MinIO:", endpoint)

	return &MinioClient{
		Client:   client,
		Endpoint: endpoint,
		CVBucket: cfg.Minio.CVBucket,
	}
}

// FetchObject downloads a stored document in full.
func (m *MinioClient) FetchObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// StatObject verifies a document exists without downloading it.
func (m *MinioClient) StatObject(ctx context.Context, bucket, key string) (int64, error) {
	info, err := m.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object %s/%s: %w", bucket, key, err)
	}
	return info.Size, nil
}
