package campaigns

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/delivery"
	"github.com/streamlance/backend/internal/models"
)

func newTestQueue(t *testing.T) *delivery.Queue {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return delivery.NewQueue(client, nil, 15*time.Second, nil)
}

func TestEnqueuePlaysFansOutDistinctItems(t *testing.T) {
	queue := newTestQueue(t)
	svc := &Service{queue: queue}

	streamerA := uuid.New()
	streamerB := uuid.New()
	cp := &models.Campaign{
		ID:       uuid.New(),
		VideoURL: "https://cdn.example.com/spot.mp4",
		Selections: []models.CampaignSelection{
			{StreamerID: streamerA, Plays: 3},
			{StreamerID: streamerB, Plays: 1},
		},
	}

	require.NoError(t, svc.enqueuePlays(context.Background(), cp))

	itemsA, err := queue.ListFirstN(context.Background(), streamerA, 10)
	require.NoError(t, err)
	require.Len(t, itemsA, 3)

	seen := make(map[string]bool)
	for i, item := range itemsA {
		assert.Equal(t, models.QueueItemVideo, item.Kind)
		assert.Equal(t, cp.VideoURL, item.VideoURL)
		assert.Equal(t, i+1, item.PlayNumber)
		assert.Equal(t, 3, item.TotalPlays)
		require.NotNil(t, item.CampaignID)
		assert.Equal(t, cp.ID, *item.CampaignID)
		assert.False(t, seen[item.ID], "queue items must be distinct")
		seen[item.ID] = true
	}

	itemsB, err := queue.ListFirstN(context.Background(), streamerB, 10)
	require.NoError(t, err)
	require.Len(t, itemsB, 1)
	assert.Equal(t, 1, itemsB[0].PlayNumber)
	assert.Equal(t, 1, itemsB[0].TotalPlays)
}

func TestFanOutRollbackLeavesNoPartialPlays(t *testing.T) {
	queue := newTestQueue(t)
	svc := &Service{queue: queue, logger: zap.NewNop()}
	ctx := context.Background()

	streamerID := uuid.New()
	// An unrelated donation already waiting must survive the rollback.
	donationID := uuid.New()
	require.NoError(t, queue.Enqueue(ctx, &models.QueueItem{
		StreamerID: streamerID,
		Kind:       models.QueueItemDonation,
		Message:    "thanks for the stream",
		DonationID: &donationID,
		DueAt:      time.Now(),
	}))

	cp := &models.Campaign{
		ID:         uuid.New(),
		VideoURL:   "https://cdn.example.com/spot.mp4",
		Selections: []models.CampaignSelection{{StreamerID: streamerID, Plays: 3}},
	}
	require.NoError(t, svc.enqueuePlays(ctx, cp))

	length, err := queue.Length(ctx, streamerID)
	require.NoError(t, err)
	require.Equal(t, int64(4), length)

	// Fan-out failed partway: the compensation must remove every play that
	// made it into the queue and nothing else.
	svc.rollbackPlays(ctx, cp)

	items, err := queue.ListFirstN(ctx, streamerID, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.QueueItemDonation, items[0].Kind)
	require.NotNil(t, items[0].DonationID)
	assert.Equal(t, donationID, *items[0].DonationID)
}

func TestEnqueuedPlaysAreImmediatelyPoppable(t *testing.T) {
	queue := newTestQueue(t)
	svc := &Service{queue: queue}

	streamerID := uuid.New()
	cp := &models.Campaign{
		ID:         uuid.New(),
		VideoURL:   "https://cdn.example.com/spot.mp4",
		Selections: []models.CampaignSelection{{StreamerID: streamerID, Plays: 2}},
	}
	require.NoError(t, svc.enqueuePlays(context.Background(), cp))

	now := time.Now().Add(time.Second)
	first, err := queue.PopDue(context.Background(), streamerID, now)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.PlayNumber)

	second, err := queue.PopDue(context.Background(), streamerID, now)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.PlayNumber)

	third, err := queue.PopDue(context.Background(), streamerID, now)
	require.NoError(t, err)
	assert.Nil(t, third)
}
