package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlance/backend/internal/models"
)

func newTestQueue(t *testing.T, notifier Notifier) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, notifier, 15*time.Second, nil)
}

func videoItem(streamerID uuid.UUID, url string, due time.Time) *models.QueueItem {
	return &models.QueueItem{
		StreamerID: streamerID,
		Kind:       models.QueueItemVideo,
		VideoURL:   url,
		PlayNumber: 1,
		TotalPlays: 1,
		DueAt:      due,
	}
}

func TestPopDueReturnsDueTimeOrder(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	base := time.Now()

	// Enqueue out of due-time order.
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "c", base.Add(3*time.Minute))))
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "a", base.Add(1*time.Minute))))
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "b", base.Add(2*time.Minute))))

	now := base.Add(10 * time.Minute)
	var urls []string
	for {
		item, err := q.PopDue(ctx, sid, now)
		require.NoError(t, err)
		if item == nil {
			break
		}
		urls = append(urls, item.VideoURL)
	}
	assert.Equal(t, []string{"a", "b", "c"}, urls)
}

func TestPopDueFIFOOnEqualDueTimes(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	due := time.Now()

	for _, url := range []string{"first", "second", "third"} {
		require.NoError(t, q.Enqueue(ctx, videoItem(sid, url, due)))
	}

	for _, want := range []string{"first", "second", "third"} {
		item, err := q.PopDue(ctx, sid, due)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, want, item.VideoURL)
	}
}

func TestPopDueNoPrematureDelivery(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "later", now.Add(time.Hour))))

	length, err := q.Length(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	// Non-empty queue with a future head is invisible to pop and peek.
	item, err := q.PopDue(ctx, sid, now)
	require.NoError(t, err)
	assert.Nil(t, item)

	item, err = q.PeekDue(ctx, sid, now)
	require.NoError(t, err)
	assert.Nil(t, item)

	item, err = q.PopDue(ctx, sid, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "later", item.VideoURL)
}

func TestImmediateAndScheduledMix(t *testing.T) {
	// Two immediate items and one 15s out: two pops return the immediates in
	// insertion order, a third pop before the scheduled due-time is empty.
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "one", now)))
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "two", now)))
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "scheduled", now.Add(15*time.Second))))

	first, err := q.PopDue(ctx, sid, now)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "one", first.VideoURL)

	second, err := q.PopDue(ctx, sid, now)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "two", second.VideoURL)

	third, err := q.PopDue(ctx, sid, now.Add(5*time.Second))
	require.NoError(t, err)
	assert.Nil(t, third)
}

func TestPeekDueDoesNotRemove(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "only", now)))

	for i := 0; i < 3; i++ {
		item, err := q.PeekDue(ctx, sid, now)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "only", item.VideoURL)
	}
	length, err := q.Length(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestPopDueAtMostOnceUnderConcurrency(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	const total = 40
	for i := 0; i < total; i++ {
		require.NoError(t, q.Enqueue(ctx, videoItem(sid, "v", now)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.PopDue(ctx, sid, now)
				if err != nil || item == nil {
					return
				}
				mu.Lock()
				seen[item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s delivered %d times", id, n)
	}
}

func TestQueuesAreIndependentPerStreamer(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, videoItem(a, "for-a", now)))

	item, err := q.PopDue(ctx, b, now)
	require.NoError(t, err)
	assert.Nil(t, item)

	item, err = q.PopDue(ctx, a, now)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "for-a", item.VideoURL)
}

func TestListFirstNAndClear(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	for i, url := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(ctx, videoItem(sid, url, now.Add(time.Duration(i)*time.Minute))))
	}

	items, err := q.ListFirstN(ctx, sid, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].VideoURL)
	assert.Equal(t, "b", items[1].VideoURL)

	require.NoError(t, q.Clear(ctx, sid))
	length, err := q.Length(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestStatusEstimatesWait(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()

	status, err := q.Status(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, status.Length)
	assert.Nil(t, status.NextDueTime)

	now := time.Now()
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "a", now)))
	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "b", now)))

	status, err = q.Status(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), status.Length)
	require.NotNil(t, status.NextDueTime)
	// Two items at 15s playback each.
	assert.Equal(t, int64(30), status.EstimatedWaitSeconds)
}

func TestContainsFindsDonationBackReference(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	donationID := uuid.New()

	item := videoItem(sid, "v", time.Now())
	item.Kind = models.QueueItemDonation
	item.DonationID = &donationID
	require.NoError(t, q.Enqueue(ctx, item))

	ok, err := q.Contains(ctx, sid, donationID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Contains(ctx, sid, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveCampaignDropsOnlyThatCampaign(t *testing.T) {
	q := newTestQueue(t, nil)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()
	campaignID := uuid.New()
	otherCampaignID := uuid.New()

	for i := 0; i < 3; i++ {
		item := videoItem(sid, "doomed", now)
		item.CampaignID = &campaignID
		require.NoError(t, q.Enqueue(ctx, item))
	}
	survivor := videoItem(sid, "keep", now)
	survivor.CampaignID = &otherCampaignID
	require.NoError(t, q.Enqueue(ctx, survivor))
	donationID := uuid.New()
	donation := videoItem(sid, "", now)
	donation.Kind = models.QueueItemDonation
	donation.DonationID = &donationID
	require.NoError(t, q.Enqueue(ctx, donation))

	removed, err := q.RemoveCampaign(ctx, sid, campaignID)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	items, err := q.ListFirstN(ctx, sid, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		if item.CampaignID != nil {
			assert.Equal(t, otherCampaignID, *item.CampaignID)
		}
	}

	removed, err = q.RemoveCampaign(ctx, sid, campaignID)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *recordingNotifier) QueueChanged(_ uuid.UUID, status *QueueStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, status.Length)
}

func TestNotifierSeesEnqueueAndPop(t *testing.T) {
	notifier := &recordingNotifier{}
	q := newTestQueue(t, notifier)
	ctx := context.Background()
	sid := uuid.New()
	now := time.Now()

	require.NoError(t, q.Enqueue(ctx, videoItem(sid, "v", now)))
	item, err := q.PopDue(ctx, sid, now)
	require.NoError(t, err)
	require.NotNil(t, item)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.calls, 2)
	assert.Equal(t, int64(1), notifier.calls[0])
	assert.Equal(t, int64(0), notifier.calls[1])
}
