// Package objectstore wraps the object-store collaborator behind a small
// interface, grounded on tnqbao-gau-cloud-service's minio-go wiring
// (backend/infra/minio.go) — the one repo in the pack that talks to an
// S3-compatible store.
package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yourorg/imageforge/internal/domain"
)

// Store is the narrow interface the Task Pipeline needs: idempotent
// overwrite-on-upload under a stable path (§4.2 step 4, §6).
type Store interface {
	PutVariant(ctx context.Context, imageID uuid.UUID, preset domain.Preset, data []byte) (path string, err error)
}

// MinioStore implements Store against an S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// New connects to endpoint and ensures bucket exists, creating it if not,
// mirroring InitMinioClient's panic-on-misconfiguration startup pattern
// from the teacher's sibling repo but returning errors instead since this
// runs as part of normal service startup, not an admin CLI.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

// PutVariant writes one variant under the stable path
// {image_id}/{preset}.jpg (§6). Uploads overwrite unconditionally, which is
// what makes a crash-and-retry converge on a single observable file.
func (s *MinioStore) PutVariant(ctx context.Context, imageID uuid.UUID, preset domain.Preset, data []byte) (string, error) {
	path := fmt.Sprintf("%s/%s.jpg", imageID, preset)

	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("upload variant %q: %w", path, err)
	}
	return path, nil
}
