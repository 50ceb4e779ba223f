package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"pyqportal/internal/config"
)

func newTestMinIOStore(t *testing.T) *MinIOStore {
	t.Helper()
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("set TEST_MINIO_ENDPOINT to run minio-backed storage tests")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := NewMinIOStore(ctx, config.MinIOConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_MINIO_SECRET_KEY"),
		Bucket:    fmt.Sprintf("pyq-test-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("minio store: %v", err)
	}
	return store
}

func TestMinIOStoreRoundTrip(t *testing.T) {
	store := newTestMinIOStore(t)
	ctx := context.Background()
	content := []byte("%PDF-1.7 object")
	key := "2023-2024/Semester3/DSA/pdf-1-1.pdf"

	if _, err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/pdf"); !errors.Is(err, ErrBlobExists) {
		t.Fatalf("expected ErrBlobExists, got %v", err)
	}
	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch")
	}
	if _, err := store.Open(ctx, "missing/key.pdf"); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}

	var seen int
	if err := store.Walk(ctx, func(k string, size int64) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected 1 object, got %d", seen)
	}
}
