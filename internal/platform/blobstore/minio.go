package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the S3-compatible endpoint settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore stores blobs as objects in a single bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to the endpoint and creates the bucket if it is missing.
func NewMinioBlobStore(ctx context.Context, cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioBlobStore) Put(ctx context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error) {
	if err := checkPut(key, data); err != nil {
		return nil, err
	}

	hash := hashOf(data)
	meta := map[string]string{"sha256": hash}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
		UserTags:     tags,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
	}

	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size,
		Hash:        hash,
		CreatedAt:   info.LastModified,
		Tags:        tags,
	}, nil
}

func (s *MinioBlobStore) Get(ctx context.Context, key string) ([]byte, *Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, nil, s.mapErr(key, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("read object %s/%s: %w", s.bucket, key, err)
	}
	return data, objectFromInfo(info), nil
}

func (s *MinioBlobStore) Stat(ctx context.Context, key string) (*Object, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return objectFromInfo(info), nil
}

func (s *MinioBlobStore) Delete(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *MinioBlobStore) mapErr(key string, err error) error {
	if minio.ToErrorResponse(err).StatusCode == http.StatusNotFound {
		return ErrBlobNotFound
	}
	return fmt.Errorf("object %s/%s: %w", s.bucket, key, err)
}

func objectFromInfo(info minio.ObjectInfo) *Object {
	return &Object{
		Key:         info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Hash:        info.UserMetadata["Sha256"],
		CreatedAt:   info.LastModified,
		Tags:        info.UserTags,
	}
}
