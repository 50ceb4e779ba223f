package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"pyqportal/internal/models"
	"pyqportal/internal/redis"
	"pyqportal/internal/storage"
)

const (
	DefaultCacheTTL = time.Minute

	redisInvalidateChannel = "catalog:invalidate"
	redisGenerationKey     = "catalog:generation"
	redisKeyPrefix         = "catalog:cache"
)

type invalidateMessage struct {
	Origin     string `json:"origin"`
	Generation int64  `json:"generation"`
}

// Service answers catalog reads through an in-process cache backed by redis,
// and keeps both coherent across instances when files are added.
type Service struct {
	repo  *Repository
	blobs storage.BlobStore
	l1    *gocache.Cache
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger

	instanceID string
	generation atomic.Int64
	reindexing atomic.Bool
	now        func() time.Time
}

// NewService wires the catalog. rdb may be nil, which leaves only the in-process cache.
func NewService(repo *Repository, blobs storage.BlobStore, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		blobs:      blobs,
		l1:         gocache.New(ttl, 2*ttl),
		rdb:        rdb,
		ttl:        ttl,
		log:        log,
		instanceID: uuid.NewString(),
		now:        time.Now,
	}
}

// Record indexes a freshly stored upload. A row a reindex already created for the
// same key is replaced, since the upload carries the submitted metadata.
func (s *Service) Record(ctx context.Context, f *models.StoredFile) error {
	if err := s.repo.Insert(ctx, f); err != nil {
		exists, lookupErr := s.repo.ExistsKey(ctx, f.Key)
		if lookupErr != nil || !exists {
			return err
		}
		if err := s.repo.UpdateByKey(ctx, f); err != nil {
			return err
		}
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) List(ctx context.Context, q Query) (*models.CatalogPage, error) {
	q = q.normalized()
	return cached(ctx, s, q.cacheKey(), func() (*models.CatalogPage, error) {
		return s.repo.List(ctx, q)
	})
}

// Search is List with a free-text term.
func (s *Service) Search(ctx context.Context, term string, q Query) (*models.CatalogPage, error) {
	q.Search = term
	return s.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id int64) (*models.StoredFile, error) {
	return cached(ctx, s, fmt.Sprintf("file:%d", id), func() (*models.StoredFile, error) {
		return s.repo.Get(ctx, id)
	})
}

func (s *Service) Facets(ctx context.Context) (*models.FilterOptions, error) {
	return cached(ctx, s, "facets", func() (*models.FilterOptions, error) {
		return s.repo.Facets(ctx)
	})
}

// Open returns the stored file's metadata and content. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id int64) (*models.StoredFile, io.ReadCloser, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, f.Key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open %s: %w", f.Key, err)
	}
	return f, rc, nil
}

// Listen drops the local cache whenever another instance reports a change.
func (s *Service) Listen(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Subscribe(ctx, redisInvalidateChannel, func(payload []byte) {
		var msg invalidateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("catalog invalidation decode failed", zap.Error(err))
			return
		}
		if msg.Origin == s.instanceID {
			return
		}
		s.dropLocal()
	})
}

func (s *Service) dropLocal() {
	s.generation.Add(1)
	s.l1.Flush()
}

func (s *Service) invalidate(ctx context.Context) {
	s.dropLocal()
	if s.rdb == nil {
		return
	}
	gen, err := s.rdb.Incr(ctx, redisGenerationKey)
	if err != nil {
		s.log.Warn("catalog generation bump failed", zap.Error(err))
		return
	}
	payload, err := json.Marshal(invalidateMessage{Origin: s.instanceID, Generation: gen})
	if err != nil {
		s.log.Warn("catalog invalidation marshal failed", zap.Error(err))
		return
	}
	if err := s.rdb.Publish(ctx, redisInvalidateChannel, payload); err != nil {
		s.log.Warn("catalog invalidation publish failed", zap.Error(err))
	}
}

// remoteGeneration namespaces shared cache entries; ok is false when redis is unusable.
func (s *Service) remoteGeneration(ctx context.Context) (string, bool) {
	if s.rdb == nil {
		return "", false
	}
	gen, err := s.rdb.Get(ctx, redisGenerationKey)
	if errors.Is(err, redis.ErrCacheMiss) {
		return "0", true
	}
	if err != nil {
		s.log.Warn("catalog generation read failed", zap.Error(err))
		return "", false
	}
	return gen, true
}

// cached reads key from the local cache, then redis, then load. Entries are keyed by
// the generation observed before loading so a concurrent invalidation is never masked.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	localKey := fmt.Sprintf("%d:%s", s.generation.Load(), key)
	if v, ok := s.l1.Get(localKey); ok {
		return v.(T), nil
	}

	gen, remote := s.remoteGeneration(ctx)
	remoteKey := strings.Join([]string{redisKeyPrefix, gen, key}, ":")
	if remote {
		if raw, err := s.rdb.Get(ctx, remoteKey); err == nil {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err == nil {
				s.l1.Set(localKey, v, s.ttl)
				return v, nil
			}
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.Warn("catalog cache read failed", zap.String("key", remoteKey), zap.Error(err))
		}
	}

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	s.l1.Set(localKey, v, s.ttl)
	if remote {
		if data, err := json.Marshal(v); err == nil {
			if err := s.rdb.Set(ctx, remoteKey, data, s.ttl); err != nil {
				s.log.Warn("catalog cache write failed", zap.String("key", remoteKey), zap.Error(err))
			}
		}
	}
	return v, nil
}
