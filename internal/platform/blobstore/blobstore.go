// Package blobstore archives generated documents such as payment receipts.
// It defines the BlobStore interface, an in-memory implementation for tests
// and development, and a MinIO/S3 implementation.
package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrEmptyKey     = errors.New("blob key is required")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// MaxFileSize is the maximum allowed blob size in bytes (16 MB).
const MaxFileSize = 16 * 1024 * 1024

// Object describes a stored blob.
type Object struct {
	Key         string            `json:"key"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"created_at"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// BlobStore defines the contract for blob storage backends. Put overwrites
// an existing object with the same key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	Stat(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

func checkPut(key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(data) > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

type storedBlob struct {
	object  Object
	content []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]*storedBlob)}
}

func (s *InMemoryBlobStore) Put(_ context.Context, key, contentType string, data []byte, tags map[string]string) (*Object, error) {
	if err := checkPut(key, data); err != nil {
		return nil, err
	}

	content := make([]byte, len(data))
	copy(content, data)
	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(content)),
		Hash:        hashOf(content),
		CreatedAt:   time.Now().UTC(),
		Tags:        make(map[string]string, len(tags)),
	}
	for k, v := range tags {
		obj.Tags[k] = v
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{object: obj, content: content}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *InMemoryBlobStore) Get(_ context.Context, key string) ([]byte, *Object, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	content := make([]byte, len(b.content))
	copy(content, b.content)
	obj := b.object
	return content, &obj, nil
}

func (s *InMemoryBlobStore) Stat(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	b, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	obj := b.object
	return &obj, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}
