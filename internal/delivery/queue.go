// Package delivery implements the per-streamer delivery queue: a Redis sorted
// set keyed by due-time score with FIFO tie-break, holding pending playable
// items (ad videos and donation messages) until the playback client pops them.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/models"
)

// Notifier receives queue-state changes so a connected playback session sees
// fresh queue lengths without polling. Push is an optimization only; polling
// PopDue remains the delivery baseline.
type Notifier interface {
	QueueChanged(streamerID uuid.UUID, status *QueueStatus)
}

// QueueStatus is the introspection view of one streamer's queue.
type QueueStatus struct {
	Length               int64      `json:"length"`
	NextDueTime          *time.Time `json:"next_due_time,omitempty"`
	EstimatedWaitSeconds int64      `json:"estimated_wait_seconds"`
}

// popDueScript atomically removes and returns the earliest item whose
// due-time score is <= now. Check and remove must be one step so two
// concurrent pollers never receive the same item.
var popDueScript = redis.NewScript(`
local m = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #m == 0 then
  return false
end
redis.call('ZREM', KEYS[1], m[1])
local body = redis.call('HGET', KEYS[2], m[1])
redis.call('HDEL', KEYS[2], m[1])
return body
`)

// Queue is the Redis-backed per-streamer delivery queue. Each streamer's
// queue is an independent key set, so cross-streamer operations never
// contend.
type Queue struct {
	client   *redis.Client
	notifier Notifier
	playback time.Duration
	logger   *zap.Logger
}

// NewQueue creates a delivery queue on the given Redis client. notifier may
// be nil. playback is the fixed per-item playback duration used for wait
// estimates.
func NewQueue(client *redis.Client, notifier Notifier, playback time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, notifier: notifier, playback: playback, logger: logger}
}

func queueKey(streamerID uuid.UUID) string { return "delivery:" + streamerID.String() }
func itemsKey(streamerID uuid.UUID) string { return queueKey(streamerID) + ":items" }
func seqKey(streamerID uuid.UUID) string   { return queueKey(streamerID) + ":seq" }

// Enqueue inserts an item. A zero DueAt means immediately poppable. The same
// logical video may be enqueued many times; every insertion is a distinct
// item with its own play number. Members carry a zero-padded per-streamer
// sequence so equal due-times keep insertion order.
func (q *Queue) Enqueue(ctx context.Context, item *models.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	if item.DueAt.IsZero() {
		item.DueAt = now
	}
	item.EnqueuedAt = now

	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	seq, err := q.client.Incr(ctx, seqKey(item.StreamerID)).Result()
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}
	member := fmt.Sprintf("%020d", seq)

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, itemsKey(item.StreamerID), member, raw)
	pipe.ZAdd(ctx, queueKey(item.StreamerID), redis.Z{
		Score:  float64(item.DueAt.UnixMilli()),
		Member: member,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	q.logger.Debug("item enqueued",
		zap.String("streamer_id", item.StreamerID.String()),
		zap.String("item_id", item.ID),
		zap.Time("due_at", item.DueAt),
	)
	q.notifyChanged(ctx, item.StreamerID)
	return nil
}

// PeekDue returns the earliest item with due-time <= now without removing it,
// or nil when nothing is due.
func (q *Queue) PeekDue(ctx context.Context, streamerID uuid.UUID, now time.Time) (*models.QueueItem, error) {
	members, err := q.client.ZRangeByScore(ctx, queueKey(streamerID), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("peek: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	raw, err := q.client.HGet(ctx, itemsKey(streamerID), members[0]).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek body: %w", err)
	}
	return decodeItem([]byte(raw))
}

// PopDue atomically removes and returns the earliest due item. Returns nil
// when the queue is empty or the head is scheduled for the future; an empty
// queue is a normal state, not an error.
func (q *Queue) PopDue(ctx context.Context, streamerID uuid.UUID, now time.Time) (*models.QueueItem, error) {
	res, err := popDueScript.Run(ctx, q.client,
		[]string{queueKey(streamerID), itemsKey(streamerID)},
		now.UnixMilli(),
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop: %w", err)
	}
	raw, ok := res.(string)
	if !ok {
		return nil, nil
	}
	item, err := decodeItem([]byte(raw))
	if err != nil {
		return nil, err
	}
	q.logger.Debug("item popped",
		zap.String("streamer_id", streamerID.String()),
		zap.String("item_id", item.ID),
	)
	q.notifyChanged(ctx, streamerID)
	return item, nil
}

// Length returns the number of queued items for a streamer.
func (q *Queue) Length(ctx context.Context, streamerID uuid.UUID) (int64, error) {
	n, err := q.client.ZCard(ctx, queueKey(streamerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("length: %w", err)
	}
	return n, nil
}

// ListFirstN returns up to n queued items in due-time order, including items
// scheduled for the future. Read-only view for status displays.
func (q *Queue) ListFirstN(ctx context.Context, streamerID uuid.UUID, n int64) ([]models.QueueItem, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := q.client.ZRange(ctx, queueKey(streamerID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	raws, err := q.client.HMGet(ctx, itemsKey(streamerID), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("list bodies: %w", err)
	}
	items := make([]models.QueueItem, 0, len(raws))
	for _, r := range raws {
		s, ok := r.(string)
		if !ok {
			continue
		}
		item, err := decodeItem([]byte(s))
		if err != nil {
			q.logger.Warn("skipping undecodable queue item", zap.Error(err))
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}

// Clear drops all items for a streamer.
func (q *Queue) Clear(ctx context.Context, streamerID uuid.UUID) error {
	if err := q.client.Del(ctx, queueKey(streamerID), itemsKey(streamerID), seqKey(streamerID)).Err(); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	q.notifyChanged(ctx, streamerID)
	return nil
}

// Contains reports whether any queued item references the given donation.
// Used by the sweep to decide whether a stuck donation was already popped.
func (q *Queue) Contains(ctx context.Context, streamerID uuid.UUID, donationID uuid.UUID) (bool, error) {
	raws, err := q.client.HVals(ctx, itemsKey(streamerID)).Result()
	if err != nil {
		return false, fmt.Errorf("scan items: %w", err)
	}
	for _, r := range raws {
		item, err := decodeItem([]byte(r))
		if err != nil {
			continue
		}
		if item.DonationID != nil && *item.DonationID == donationID {
			return true, nil
		}
	}
	return false, nil
}

// RemoveCampaign drops every queued item belonging to the given campaign,
// leaving all other items in place. Returns the number of items removed.
// Compensation path for a failed campaign fan-out.
func (q *Queue) RemoveCampaign(ctx context.Context, streamerID uuid.UUID, campaignID uuid.UUID) (int, error) {
	raws, err := q.client.HGetAll(ctx, itemsKey(streamerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("scan items: %w", err)
	}
	var members []string
	for member, raw := range raws {
		item, err := decodeItem([]byte(raw))
		if err != nil {
			continue
		}
		if item.CampaignID != nil && *item.CampaignID == campaignID {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		return 0, nil
	}
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, queueKey(streamerID), membersToInterfaces(members)...)
	pipe.HDel(ctx, itemsKey(streamerID), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("remove campaign items: %w", err)
	}
	q.notifyChanged(ctx, streamerID)
	return len(members), nil
}

func membersToInterfaces(members []string) []interface{} {
	out := make([]interface{}, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

// Status returns queue length, the head item's due-time and a rough wait
// estimate (queue position x playback duration, plus time until the head
// becomes due).
func (q *Queue) Status(ctx context.Context, streamerID uuid.UUID) (*QueueStatus, error) {
	length, err := q.Length(ctx, streamerID)
	if err != nil {
		return nil, err
	}
	status := &QueueStatus{Length: length}
	if length == 0 {
		return status, nil
	}
	head, err := q.client.ZRangeWithScores(ctx, queueKey(streamerID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("head: %w", err)
	}
	wait := length * int64(q.playback.Seconds())
	if len(head) > 0 {
		due := time.UnixMilli(int64(head[0].Score))
		status.NextDueTime = &due
		if until := time.Until(due); until > 0 {
			wait += int64(until.Seconds())
		}
	}
	status.EstimatedWaitSeconds = wait
	return status, nil
}

func (q *Queue) notifyChanged(ctx context.Context, streamerID uuid.UUID) {
	if q.notifier == nil {
		return
	}
	status, err := q.Status(ctx, streamerID)
	if err != nil {
		q.logger.Warn("queue status for notification failed", zap.Error(err), zap.String("streamer_id", streamerID.String()))
		return
	}
	q.notifier.QueueChanged(streamerID, status)
}

func decodeItem(raw []byte) (*models.QueueItem, error) {
	var item models.QueueItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &item, nil
}
