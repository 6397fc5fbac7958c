package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/drishti-ai/drishti/internal/config"
)

// MinioStager stages payloads in an object store bucket so multiple
// server replicas can share the processing window.
type MinioStager struct {
	client *minio.Client
	bucket string
}

func NewMinioStager(ctx context.Context, cfg config.BlobConfig) (*MinioStager, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStager{client: cli, bucket: cfg.Bucket}, nil
}

func (s *MinioStager) Put(ctx context.Context, id uuid.UUID, payload []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(id),
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("stage payload: %w", err)
	}
	return nil
}

func (s *MinioStager) Get(ctx context.Context, id uuid.UUID) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch staged payload: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, ErrNotStaged
		}
		return nil, fmt.Errorf("read staged payload: %w", err)
	}
	return data, nil
}

func (s *MinioStager) Remove(ctx context.Context, id uuid.UUID) error {
	return s.client.RemoveObject(ctx, s.bucket, objectKey(id), minio.RemoveObjectOptions{})
}

func objectKey(id uuid.UUID) string {
	return "staging/" + id.String()
}

var _ Stager = (*MinioStager)(nil)
