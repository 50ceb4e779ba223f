package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pyqportal/internal/models"
)

var ErrReindexRunning = errors.New("reindex already running")

const DefaultReindexInterval = time.Hour

// ReindexResult summarizes one pass over the blob store.
type ReindexResult struct {
	Scanned int `json:"scanned"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Reindex records every stored PDF the catalog does not know about yet.
// Only one pass runs at a time; a concurrent call returns ErrReindexRunning.
func (s *Service) Reindex(ctx context.Context) (ReindexResult, error) {
	if !s.reindexing.CompareAndSwap(false, true) {
		return ReindexResult{}, ErrReindexRunning
	}
	defer s.reindexing.Store(false)
	return s.reindex(ctx)
}

// ReindexAsync starts a pass in the background and returns immediately.
func (s *Service) ReindexAsync(ctx context.Context) error {
	if !s.reindexing.CompareAndSwap(false, true) {
		return ErrReindexRunning
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.reindexing.Store(false)
		if _, err := s.reindex(ctx); err != nil {
			s.log.Error("reindex failed", zap.Error(err))
		}
	}()
	return nil
}

// StartReindexer runs Reindex every interval until ctx is done.
func (s *Service) StartReindexer(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReindexInterval
	}
	go s.reindexLoop(ctx, interval)
}

func (s *Service) reindexLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reindex(ctx); err != nil && !errors.Is(err, ErrReindexRunning) {
				s.log.Error("periodic reindex failed", zap.Error(err))
			}
		}
	}
}

func (s *Service) reindex(ctx context.Context) (ReindexResult, error) {
	var res ReindexResult
	err := s.blobs.Walk(ctx, func(key string, size int64) error {
		res.Scanned++
		f, ok := fileFromKey(key, size, s.now())
		if !ok {
			res.Skipped++
			return nil
		}
		exists, err := s.repo.ExistsKey(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := s.repo.Insert(ctx, f); err != nil {
			// an upload recorded the key between the lookup and the insert
			if exists, lookupErr := s.repo.ExistsKey(ctx, key); lookupErr == nil && exists {
				return nil
			}
			return err
		}
		res.Added++
		return nil
	})
	if res.Added > 0 {
		s.invalidate(ctx)
	}
	if err != nil {
		return res, fmt.Errorf("reindex: %w", err)
	}
	s.log.Info("reindex finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("added", res.Added),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// fileFromKey rebuilds catalog metadata from a <year>/<semester>/<subject>/<name>.pdf key.
func fileFromKey(key string, size int64, now time.Time) (*models.StoredFile, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 {
		return nil, false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return nil, false
		}
	}
	name := parts[3]
	if strings.HasPrefix(name, ".") || !strings.EqualFold(path.Ext(name), ".pdf") {
		return nil, false
	}
	return &models.StoredFile{
		Key:          key,
		Filename:     name,
		OriginalName: name,
		MimeType:     "application/pdf",
		Size:         size,
		Year:         parts[0],
		Semester:     parts[1],
		Subject:      parts[2],
		CreatedAt:    uploadTime(name, now),
	}, true
}

// uploadTime reads the epoch milliseconds embedded in generated names such as
// pdf-1700000000000-42.pdf, falling back to now.
func uploadTime(name string, now time.Time) time.Time {
	fields := strings.Split(strings.TrimSuffix(name, path.Ext(name)), "-")
	if len(fields) != 3 {
		return now.UTC()
	}
	ms, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || ms <= 0 {
		return now.UTC()
	}
	return time.UnixMilli(ms).UTC()
}
