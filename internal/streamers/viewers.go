package streamers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ViewerFeed caches the live concurrent-viewer count (CCV) per streamer. The
// count is pushed by an external feed and expires after a TTL; when the cache
// is cold, pricing falls back to the streamer's stored average views.
type ViewerFeed struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewViewerFeed creates a viewer-count cache.
func NewViewerFeed(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ViewerFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewerFeed{client: client, ttl: ttl, logger: logger}
}

func ccvKey(streamerID uuid.UUID) string { return "ccv:" + streamerID.String() }

// Set records the current viewer count for a streamer.
func (f *ViewerFeed) Set(ctx context.Context, streamerID uuid.UUID, viewers int64) error {
	if viewers < 0 {
		return fmt.Errorf("viewer count must not be negative")
	}
	if err := f.client.Set(ctx, ccvKey(streamerID), viewers, f.ttl).Err(); err != nil {
		return fmt.Errorf("cache viewer count: %w", err)
	}
	return nil
}

// Current returns the cached live viewer count, or fallback when the feed has
// not reported recently.
func (f *ViewerFeed) Current(ctx context.Context, streamerID uuid.UUID, fallback int64) int64 {
	raw, err := f.client.Get(ctx, ccvKey(streamerID)).Result()
	if err == redis.Nil {
		return fallback
	}
	if err != nil {
		f.logger.Warn("viewer feed read failed", zap.Error(err), zap.String("streamer_id", streamerID.String()))
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
