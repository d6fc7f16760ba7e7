package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"emlak-ingest/utils"
)

// PhotoKey returns a fresh object key for a property photo.
func PhotoKey(propertyID string) string {
	return fmt.Sprintf("properties/%s/%s.jpg", propertyID, uuid.NewString())
}

// MinioPhotoStore uploads photos to an S3-compatible bucket.
type MinioPhotoStore struct {
	client *minio.Client
	bucket string
	logger *utils.Logger
}

// NewMinioPhotoStore connects to the endpoint and makes sure the bucket exists.
func NewMinioPhotoStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *utils.Logger) (*MinioPhotoStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client for %s: %w", endpoint, err)
	}

	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		exists, errExists := client.BucketExists(ctx, bucket)
		if errExists != nil || !exists {
			return nil, fmt.Errorf("minio: make bucket %s: %w", bucket, err)
		}
		logger.Debug("[minio] bucket %s already exists", bucket)
	} else {
		logger.Info("[minio] created bucket %s", bucket)
	}

	return &MinioPhotoStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *MinioPhotoStore) UploadPhoto(ctx context.Context, propertyID string, data []byte, contentType string) (string, error) {
	key := PhotoKey(propertyID)
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio: put %s: %w", key, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, key)
	s.logger.Debug("[minio] stored %d bytes at %s", len(data), url)
	return url, nil
}
