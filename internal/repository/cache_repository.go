package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lumenlms/announce-api/internal/models"
	appErrors "github.com/lumenlms/announce-api/pkg/errors"
)

// CacheRepository caches resolved viewer contexts in Redis. A nil client
// degrades every operation to a miss, so Redis stays optional.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func viewerKey(email string) string {
	return "announce:viewer:" + email
}

// GetViewer returns the cached viewer context, or ErrCacheMiss.
func (r *CacheRepository) GetViewer(ctx context.Context, email string) (*models.ViewerContext, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, viewerKey(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get viewer %s: %w", email, err)
	}
	var viewer models.ViewerContext
	if err := json.Unmarshal(raw, &viewer); err != nil {
		return nil, fmt.Errorf("unmarshal cached viewer %s: %w", email, err)
	}
	return &viewer, nil
}

// SetViewer stores the viewer context with the given TTL.
func (r *CacheRepository) SetViewer(ctx context.Context, viewer *models.ViewerContext, ttl time.Duration) error {
	if r.client == nil || viewer == nil {
		return nil
	}
	payload, err := json.Marshal(viewer)
	if err != nil {
		return fmt.Errorf("marshal viewer %s: %w", viewer.Email, err)
	}
	if err := r.client.Set(ctx, viewerKey(viewer.Email), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set viewer %s: %w", viewer.Email, err)
	}
	return nil
}

// InvalidateViewer drops a cached viewer context.
func (r *CacheRepository) InvalidateViewer(ctx context.Context, email string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, viewerKey(email)).Err(); err != nil {
		return fmt.Errorf("redis delete viewer %s: %w", email, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
