package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

var (
	ErrBlobExists   = errors.New("blob already exists")
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidKey   = errors.New("invalid blob key")
)

// WalkFunc is called once per stored blob with its slash separated key.
type WalkFunc func(key string, size int64) error

// BlobStore persists uploaded files under slash separated keys such as
// "2023-2024/Semester3/DSA/pdf-1700000000000-42.pdf".
type BlobStore interface {
	// Put writes r under key. It never overwrites: an existing key yields ErrBlobExists.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Walk(ctx context.Context, fn WalkFunc) error
}

// CleanKey validates a relative key and returns its canonical form.
func CleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
