package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestInMemory_PutGet(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	data := []byte("%PDF-1.3 receipt")

	obj, err := store.Put(ctx, "receipts/p-1/paid.pdf", "application/pdf", data, map[string]string{"status": "paid"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if obj.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), obj.Size)
	}
	if obj.Hash != fmt.Sprintf("%x", sha256.Sum256(data)) {
		t.Errorf("unexpected hash %s", obj.Hash)
	}

	got, meta, err := store.Get(ctx, "receipts/p-1/paid.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("content mismatch")
	}
	if meta.ContentType != "application/pdf" || meta.Tags["status"] != "paid" {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestInMemory_PutCopiesInput(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	data := []byte("abc")
	store.Put(ctx, "k", "text/plain", data, nil)
	data[0] = 'z'

	got, _, _ := store.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored content changed with caller buffer: %q", got)
	}
}

func TestInMemory_Overwrite(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	store.Put(ctx, "k", "text/plain", []byte("one"), nil)
	store.Put(ctx, "k", "text/plain", []byte("two"), nil)

	got, _, _ := store.Get(ctx, "k")
	if string(got) != "two" {
		t.Errorf("expected overwrite, got %q", got)
	}
}

func TestInMemory_NotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Get: expected ErrBlobNotFound, got %v", err)
	}
	if _, err := store.Stat(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Stat: expected ErrBlobNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Delete: expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemory_Validation(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "", "text/plain", []byte("x"), nil); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	big := make([]byte, MaxFileSize+1)
	if _, err := store.Put(ctx, "big", "application/octet-stream", big, nil); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestInMemory_Delete(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	store.Put(ctx, "k", "text/plain", []byte("x"), nil)

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Stat(ctx, "k"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected blob gone, got %v", err)
	}
}

func TestInMemory_ConcurrentPut(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put(ctx, fmt.Sprintf("k-%d", i), "text/plain", []byte("x"), nil)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 20; i++ {
		if _, err := store.Stat(ctx, fmt.Sprintf("k-%d", i)); err != nil {
			t.Errorf("k-%d: %v", i, err)
		}
	}
}
