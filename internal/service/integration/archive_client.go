package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrNotArchived is returned by Get when no document exists for the essay.
var ErrNotArchived = errors.New("document not archived")

// ArchiveClient stores the plain text document of each essay.
type ArchiveClient interface {
	Put(ctx context.Context, essayID string, document []byte) error
	Get(ctx context.Context, essayID string) ([]byte, error)
	Remove(ctx context.Context, essayID string) error
}

func ObjectName(essayID string) string {
	return "essays/" + essayID + ".txt"
}

type minioArchive struct {
	client *minio.Client
	bucket string
	logger zerolog.Logger
}

func NewMinIOArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger zerolog.Logger) (ArchiveClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	a := &minioArchive{
		client: client,
		bucket: bucket,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info().
		Str("endpoint", endpoint).
		Str("bucket", bucket).
		Bool("ssl", useSSL).
		Msg("Connected to MinIO")

	return a, nil
}

func (a *minioArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	a.logger.Info().Str("bucket", a.bucket).Msg("Created new bucket")
	return nil
}

func (a *minioArchive) Put(ctx context.Context, essayID string, document []byte) error {
	info, err := a.client.PutObject(ctx, a.bucket, ObjectName(essayID), bytes.NewReader(document), int64(len(document)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("failed to archive essay: %w", err)
	}

	a.logger.Debug().
		Str("essay_id", essayID).
		Str("etag", info.ETag).
		Int("size", len(document)).
		Msg("Essay archived")

	return nil
}

func (a *minioArchive) Get(ctx context.Context, essayID string) ([]byte, error) {
	object, err := a.client.GetObject(ctx, a.bucket, ObjectName(essayID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get archived essay: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotArchived
		}
		return nil, fmt.Errorf("failed to read archived essay: %w", err)
	}

	return data, nil
}

func (a *minioArchive) Remove(ctx context.Context, essayID string) error {
	err := a.client.RemoveObject(ctx, a.bucket, ObjectName(essayID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to remove archived essay: %w", err)
	}
	return nil
}

type noopArchive struct{}

func NewNoopArchive() ArchiveClient {
	return noopArchive{}
}

func (noopArchive) Put(context.Context, string, []byte) error { return nil }

func (noopArchive) Get(context.Context, string) ([]byte, error) { return nil, ErrNotArchived }

func (noopArchive) Remove(context.Context, string) error { return nil }
